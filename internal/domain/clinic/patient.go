// Package clinic holds the practice-management patient aggregate and its
// appointment book. An appointment is identified within a patient by the
// (practitioner, start time) pair.
package clinic

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tablecraft/tablecraft-backend/internal/domain/aggregates"
)

const (
	AppointmentBookedStatus    = "booked"
	AppointmentCancelledStatus = "cancelled"
)

type Appointment struct {
	Practitioner string
	StartsAt     time.Time
	DurationMin  int
	Status       string
	Notes        map[string]any
}

type Patient struct {
	aggregates.Base

	FullName    string
	Email       string
	DateOfBirth time.Time
	CreatedAt   time.Time

	Appointments []Appointment
}

type PatientRegistered struct {
	aggregates.BaseEvent
	Email string
}

type AppointmentBooked struct {
	aggregates.BaseEvent
	Practitioner string
	StartsAt     time.Time
}

type AppointmentCancelled struct {
	aggregates.BaseEvent
	Practitioner string
	StartsAt     time.Time
}

func NewPatient(fullName, email string, dateOfBirth time.Time) (*Patient, error) {
	fullName = strings.TrimSpace(fullName)
	email = strings.TrimSpace(strings.ToLower(email))
	if fullName == "" {
		return nil, aggregates.NewError(aggregates.CodeValidation, "clinic.register", "patient name is required", nil)
	}
	p := &Patient{
		FullName:    fullName,
		Email:       email,
		DateOfBirth: dateOfBirth,
		CreatedAt:   time.Now().UTC(),
	}
	p.ID = uuid.NewString()
	p.Apply(PatientRegistered{
		BaseEvent: aggregates.NewBaseEvent("patient.registered", p.ID),
		Email:     email,
	})
	return p, nil
}

func (p *Patient) BookAppointment(practitioner string, startsAt time.Time, durationMin int, notes map[string]any) error {
	practitioner = strings.TrimSpace(practitioner)
	if practitioner == "" {
		return aggregates.NewError(aggregates.CodeValidation, "clinic.book", "practitioner is required", nil)
	}
	if durationMin <= 0 {
		return aggregates.NewError(aggregates.CodeValidation, "clinic.book", "duration must be positive", nil)
	}
	for _, a := range p.Appointments {
		if a.Practitioner == practitioner && a.StartsAt.Equal(startsAt) {
			return aggregates.NewError(aggregates.CodeValidation, "clinic.book", "appointment slot already booked", nil)
		}
	}
	p.Appointments = append(p.Appointments, Appointment{
		Practitioner: practitioner,
		StartsAt:     startsAt,
		DurationMin:  durationMin,
		Status:       AppointmentBookedStatus,
		Notes:        notes,
	})
	p.Apply(AppointmentBooked{
		BaseEvent:    aggregates.NewBaseEvent("patient.appointment_booked", p.ID),
		Practitioner: practitioner,
		StartsAt:     startsAt,
	})
	return nil
}

func (p *Patient) CancelAppointment(practitioner string, startsAt time.Time) error {
	for i := range p.Appointments {
		a := &p.Appointments[i]
		if a.Practitioner == practitioner && a.StartsAt.Equal(startsAt) {
			if a.Status == AppointmentCancelledStatus {
				return nil
			}
			a.Status = AppointmentCancelledStatus
			p.Apply(AppointmentCancelled{
				BaseEvent:    aggregates.NewBaseEvent("patient.appointment_cancelled", p.ID),
				Practitioner: practitioner,
				StartsAt:     startsAt,
			})
			return nil
		}
	}
	return aggregates.NewError(aggregates.CodeNotFound, "clinic.cancel", "no such appointment", nil)
}

// Restore rebuilds a patient from storage without emitting events.
func Restore(id string, version int, discarded bool, updatedAt time.Time, fullName, email string, dateOfBirth, createdAt time.Time, appointments []Appointment) *Patient {
	p := &Patient{
		FullName:     fullName,
		Email:        email,
		DateOfBirth:  dateOfBirth,
		CreatedAt:    createdAt,
		Appointments: appointments,
	}
	p.Base.Restore(id, version, discarded, updatedAt)
	return p
}
