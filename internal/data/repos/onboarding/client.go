// Package onboarding binds the client aggregate to the generic repository.
package onboarding

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tablecraft/tablecraft-backend/internal/data/persistence"
	"github.com/tablecraft/tablecraft-backend/internal/domain/aggregates"
	dm "github.com/tablecraft/tablecraft-backend/internal/domain/onboarding"
	"github.com/tablecraft/tablecraft-backend/internal/pkg/dbctx"
	"github.com/tablecraft/tablecraft-backend/internal/platform/logger"
	"github.com/tablecraft/tablecraft-backend/internal/types"
	"gorm.io/gorm"
)

type ClientRepo struct {
	*persistence.Repository[*dm.Client, types.Client]
}

func NewClientRepo(tx *gorm.DB, log *logger.Logger) (*ClientRepo, error) {
	cfg := persistence.Config[*dm.Client, types.Client]{
		Name:   "client",
		Mapper: &Mapper{},
		Filters: []persistence.FilterColumnMapper{
			{
				Model: &types.Client{},
				Columns: map[string]string{
					"id":             "id",
					"email":          "email",
					"status":         "status",
					"source_form_id": "source_form_id",
					"created_at":     "created_at",
					"updated_at":     "updated_at",
					"discarded":      "discarded",
				},
			},
			{
				Model:    &types.ClientNote{},
				Columns:  map[string]string{"note_author_id": "author_id"},
				JoinPath: []persistence.JoinHop{{Model: "client_note", Relationship: "Notes"}},
			},
		},
		TagRelation: "Tags",
		TagType:     dm.TagType,
		Preloads:    []string{"Notes", "Tags"},
	}
	base, err := persistence.NewRepository(tx, cfg, log)
	if err != nil {
		return nil, err
	}
	return &ClientRepo{Repository: base}, nil
}

// Mapper converts between the client aggregate and its rows. Notes carry
// their own identity, so reconciliation is a lookup by note id.
type Mapper struct {
	Timeout time.Duration
}

func (mp *Mapper) timeout() time.Duration {
	if mp.Timeout > 0 {
		return mp.Timeout
	}
	return persistence.DefaultReconcileTimeout
}

func (mp *Mapper) DomainToRow(dbc dbctx.Context, c *dm.Client, merge bool) (*types.Client, bool, error) {
	exists := true
	var found types.Client
	err := dbc.DB().Select("id").First(&found, "id = ?", c.ID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		exists = false
		merge = true
	case err != nil:
		return nil, false, persistence.MapStoreError("mapper.client", err)
	}

	noteRows := make([]types.ClientNote, len(c.Notes))
	tagRows := make([]types.Tag, len(c.Tags))
	var tasks []persistence.ChildTask
	for i := range c.Notes {
		i := i
		tasks = append(tasks, func(ctx context.Context, stx *persistence.SerialTx) error {
			return reconcileNote(stx, c.ID, c.Notes[i], &noteRows[i])
		})
	}
	for i := range c.Tags {
		i := i
		tasks = append(tasks, func(ctx context.Context, stx *persistence.SerialTx) error {
			return reconcileTag(stx, c.Tags[i].Key, c.Tags[i].Value, c.Tags[i].AuthorID, dm.TagType, &tagRows[i])
		})
	}
	if err := persistence.ReconcileChildren(dbc, mp.timeout(), tasks); err != nil {
		return nil, false, err
	}

	answers, err := marshalAnswers(c.Answers)
	if err != nil {
		return nil, false, err
	}
	row := &types.Client{
		ID:           c.ID,
		Version:      c.AggregateVersion(),
		Discarded:    c.IsDiscarded(),
		Email:        c.Email,
		FullName:     c.FullName,
		SourceFormID: c.SourceFormID,
		Status:       c.Status,
		Answers:      answers,
		CreatedAt:    c.CreatedAt,
		Notes:        noteRows,
		Tags:         tagRows,
	}
	if exists {
		err := dbc.DB().Session(&gorm.Session{FullSaveAssociations: true}).Save(row).Error
		if err != nil {
			return nil, false, persistence.MapStoreError("mapper.client", err)
		}
		return row, true, nil
	}
	return row, false, nil
}

func reconcileNote(stx *persistence.SerialTx, clientID string, n dm.Note, out *types.ClientNote) error {
	var existing types.ClientNote
	notFound := false
	if err := stx.Do(func(dbc dbctx.Context) error {
		err := dbc.DB().Where("id = ?", n.NoteID).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			notFound = true
			return nil
		}
		return persistence.MapStoreError("mapper.client.note", err)
	}); err != nil {
		return err
	}
	row := types.ClientNote{
		ID:       n.NoteID,
		ClientID: clientID,
		AuthorID: n.AuthorID,
		Body:     n.Body,
		NotedAt:  n.At,
	}
	if !notFound {
		row.CreatedAt = existing.CreatedAt
	}
	*out = row
	return nil
}

func reconcileTag(stx *persistence.SerialTx, key, value, authorID, tagType string, out *types.Tag) error {
	var existing types.Tag
	notFound := false
	if err := stx.Do(func(dbc dbctx.Context) error {
		err := dbc.DB().
			Where("key = ? AND value = ? AND author_id = ? AND type = ?", key, value, authorID, tagType).
			First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			notFound = true
			return nil
		}
		return persistence.MapStoreError("mapper.tag", err)
	}); err != nil {
		return err
	}
	if notFound {
		*out = types.Tag{ID: uuid.NewString(), Key: key, Value: value, AuthorID: authorID, Type: tagType}
		return nil
	}
	*out = existing
	return nil
}

func (mp *Mapper) RowToDomain(row *types.Client) (*dm.Client, error) {
	answers, err := unmarshalAnswers(row.Answers)
	if err != nil {
		return nil, err
	}
	notes := make([]dm.Note, 0, len(row.Notes))
	for _, n := range row.Notes {
		notes = append(notes, dm.Note{NoteID: n.ID, AuthorID: n.AuthorID, Body: n.Body, At: n.NotedAt})
	}
	tags := make([]dm.Tag, 0, len(row.Tags))
	for _, t := range row.Tags {
		tags = append(tags, dm.Tag{Key: t.Key, Value: t.Value, AuthorID: t.AuthorID})
	}
	return dm.Restore(row.ID, row.Version, row.Discarded, row.UpdatedAt,
		row.Email, row.FullName, row.SourceFormID, row.Status, answers,
		row.CreatedAt, notes, tags), nil
}

func marshalAnswers(a map[string]any) ([]byte, error) {
	if a == nil {
		return nil, nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, aggregates.Wrap(aggregates.CodeMapping, "mapper.client.answers", err)
	}
	return b, nil
}

func unmarshalAnswers(b []byte) (map[string]any, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var a map[string]any
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, aggregates.Wrap(aggregates.CodeMapping, "mapper.client.answers", err)
	}
	return a, nil
}
