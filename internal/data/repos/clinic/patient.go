// Package clinic binds the patient aggregate to the generic repository.
package clinic

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tablecraft/tablecraft-backend/internal/data/persistence"
	"github.com/tablecraft/tablecraft-backend/internal/domain/aggregates"
	dm "github.com/tablecraft/tablecraft-backend/internal/domain/clinic"
	"github.com/tablecraft/tablecraft-backend/internal/pkg/dbctx"
	"github.com/tablecraft/tablecraft-backend/internal/platform/logger"
	"github.com/tablecraft/tablecraft-backend/internal/types"
	"gorm.io/gorm"
)

type PatientRepo struct {
	*persistence.Repository[*dm.Patient, types.Patient]
}

func NewPatientRepo(tx *gorm.DB, log *logger.Logger) (*PatientRepo, error) {
	cfg := persistence.Config[*dm.Patient, types.Patient]{
		Name:   "patient",
		Mapper: &Mapper{},
		Filters: []persistence.FilterColumnMapper{
			{
				Model: &types.Patient{},
				Columns: map[string]string{
					"id":         "id",
					"name":       "full_name",
					"full_name":  "full_name",
					"email":      "email",
					"created_at": "created_at",
					"updated_at": "updated_at",
					"discarded":  "discarded",
				},
			},
			{
				Model: &types.Appointment{},
				Columns: map[string]string{
					"practitioner":       "practitioner",
					"appointment_start":  "starts_at",
					"appointment_status": "status",
				},
				JoinPath: []persistence.JoinHop{{Model: "appointment", Relationship: "Appointments"}},
			},
		},
		Preloads: []string{"Appointments"},
	}
	base, err := persistence.NewRepository(tx, cfg, log)
	if err != nil {
		return nil, err
	}
	return &PatientRepo{Repository: base}, nil
}

// Mapper converts between the patient aggregate and its rows. An appointment
// row keeps its id across saves via the (patient, practitioner, start) slot.
type Mapper struct {
	Timeout time.Duration
}

func (mp *Mapper) timeout() time.Duration {
	if mp.Timeout > 0 {
		return mp.Timeout
	}
	return persistence.DefaultReconcileTimeout
}

func (mp *Mapper) DomainToRow(dbc dbctx.Context, p *dm.Patient, merge bool) (*types.Patient, bool, error) {
	exists := true
	var found types.Patient
	err := dbc.DB().Select("id").First(&found, "id = ?", p.ID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		exists = false
		merge = true
	case err != nil:
		return nil, false, persistence.MapStoreError("mapper.patient", err)
	}

	apptRows := make([]types.Appointment, len(p.Appointments))
	var tasks []persistence.ChildTask
	for i := range p.Appointments {
		i := i
		tasks = append(tasks, func(ctx context.Context, stx *persistence.SerialTx) error {
			return reconcileAppointment(stx, p.ID, p.Appointments[i], &apptRows[i])
		})
	}
	if err := persistence.ReconcileChildren(dbc, mp.timeout(), tasks); err != nil {
		return nil, false, err
	}

	row := &types.Patient{
		ID:           p.ID,
		Version:      p.AggregateVersion(),
		Discarded:    p.IsDiscarded(),
		FullName:     p.FullName,
		Email:        p.Email,
		DateOfBirth:  p.DateOfBirth,
		CreatedAt:    p.CreatedAt,
		Appointments: apptRows,
	}
	if exists {
		err := dbc.DB().Session(&gorm.Session{FullSaveAssociations: true}).Save(row).Error
		if err != nil {
			return nil, false, persistence.MapStoreError("mapper.patient", err)
		}
		return row, true, nil
	}
	return row, false, nil
}

func reconcileAppointment(stx *persistence.SerialTx, patientID string, a dm.Appointment, out *types.Appointment) error {
	var existing types.Appointment
	notFound := false
	if err := stx.Do(func(dbc dbctx.Context) error {
		err := dbc.DB().
			Where("patient_id = ? AND practitioner = ? AND starts_at = ?", patientID, a.Practitioner, a.StartsAt).
			First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			notFound = true
			return nil
		}
		return persistence.MapStoreError("mapper.patient.appointment", err)
	}); err != nil {
		return err
	}
	notes, err := marshalNotes(a.Notes)
	if err != nil {
		return err
	}
	row := types.Appointment{
		ID:           uuid.NewString(),
		PatientID:    patientID,
		Practitioner: a.Practitioner,
		StartsAt:     a.StartsAt,
		DurationMin:  a.DurationMin,
		Status:       a.Status,
		Notes:        notes,
	}
	if !notFound {
		row.ID = existing.ID
		row.CreatedAt = existing.CreatedAt
	}
	*out = row
	return nil
}

func (mp *Mapper) RowToDomain(row *types.Patient) (*dm.Patient, error) {
	appts := make([]dm.Appointment, 0, len(row.Appointments))
	for _, a := range row.Appointments {
		notes, err := unmarshalNotes(a.Notes)
		if err != nil {
			return nil, err
		}
		appts = append(appts, dm.Appointment{
			Practitioner: a.Practitioner,
			StartsAt:     a.StartsAt,
			DurationMin:  a.DurationMin,
			Status:       a.Status,
			Notes:        notes,
		})
	}
	return dm.Restore(row.ID, row.Version, row.Discarded, row.UpdatedAt,
		row.FullName, row.Email, row.DateOfBirth, row.CreatedAt, appts), nil
}

func marshalNotes(n map[string]any) ([]byte, error) {
	if n == nil {
		return nil, nil
	}
	b, err := json.Marshal(n)
	if err != nil {
		return nil, aggregates.Wrap(aggregates.CodeMapping, "mapper.patient.notes", err)
	}
	return b, nil
}

func unmarshalNotes(b []byte) (map[string]any, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var n map[string]any
	if err := json.Unmarshal(b, &n); err != nil {
		return nil, aggregates.Wrap(aggregates.CodeMapping, "mapper.patient.notes", err)
	}
	return n, nil
}
