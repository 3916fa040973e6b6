// Package onboarding holds the client aggregate created from inbound form
// webhook submissions. Raw answers are kept as an opaque document; field
// validation happens at the edge before the factory is called.
package onboarding

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tablecraft/tablecraft-backend/internal/domain/aggregates"
)

// TagType scopes client tags in the shared tag table.
const TagType = "client"

const (
	StatusNew      = "new"
	StatusActive   = "active"
	StatusArchived = "archived"
)

type Note struct {
	NoteID   string
	AuthorID string
	Body     string
	At       time.Time
}

type Tag struct {
	Key      string
	Value    string
	AuthorID string
}

type Client struct {
	aggregates.Base

	Email        string
	FullName     string
	SourceFormID string
	Status       string
	Answers      map[string]any
	CreatedAt    time.Time

	Notes []Note
	Tags  []Tag
}

type ClientOnboarded struct {
	aggregates.BaseEvent
	Email        string
	SourceFormID string
}

type ClientNoteAdded struct {
	aggregates.BaseEvent
	NoteID string
}

type ClientStatusChanged struct {
	aggregates.BaseEvent
	Status string
}

type ClientTagged struct {
	aggregates.BaseEvent
	Key   string
	Value string
}

type ClientArchived struct {
	aggregates.BaseEvent
}

// NewClient is called by the webhook adapter after payload validation.
func NewClient(email, fullName, sourceFormID string, answers map[string]any) (*Client, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil, aggregates.NewError(aggregates.CodeValidation, "onboarding.new", "client email is required", nil)
	}
	c := &Client{
		Email:        email,
		FullName:     strings.TrimSpace(fullName),
		SourceFormID: strings.TrimSpace(sourceFormID),
		Status:       StatusNew,
		Answers:      answers,
		CreatedAt:    time.Now().UTC(),
	}
	c.ID = uuid.NewString()
	c.Apply(ClientOnboarded{
		BaseEvent:    aggregates.NewBaseEvent("client.onboarded", c.ID),
		Email:        email,
		SourceFormID: c.SourceFormID,
	})
	return c, nil
}

func (c *Client) AddNote(authorID, body string) error {
	authorID = strings.TrimSpace(authorID)
	body = strings.TrimSpace(body)
	if authorID == "" || body == "" {
		return aggregates.NewError(aggregates.CodeValidation, "onboarding.add_note", "note author and body are required", nil)
	}
	n := Note{
		NoteID:   uuid.NewString(),
		AuthorID: authorID,
		Body:     body,
		At:       time.Now().UTC(),
	}
	c.Notes = append(c.Notes, n)
	c.Apply(ClientNoteAdded{
		BaseEvent: aggregates.NewBaseEvent("client.note_added", c.ID),
		NoteID:    n.NoteID,
	})
	return nil
}

func (c *Client) ChangeStatus(status string) error {
	switch status {
	case StatusNew, StatusActive, StatusArchived:
	default:
		return aggregates.NewError(aggregates.CodeValidation, "onboarding.change_status", "unknown status: "+status, nil)
	}
	c.Status = status
	c.Apply(ClientStatusChanged{
		BaseEvent: aggregates.NewBaseEvent("client.status_changed", c.ID),
		Status:    status,
	})
	return nil
}

func (c *Client) AddTag(key, value, authorID string) error {
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	authorID = strings.TrimSpace(authorID)
	if key == "" || value == "" || authorID == "" {
		return aggregates.NewError(aggregates.CodeValidation, "onboarding.add_tag", "tag key, value and author id are required", nil)
	}
	for _, t := range c.Tags {
		if t.Key == key && t.Value == value && t.AuthorID == authorID {
			return nil
		}
	}
	c.Tags = append(c.Tags, Tag{Key: key, Value: value, AuthorID: authorID})
	c.Apply(ClientTagged{
		BaseEvent: aggregates.NewBaseEvent("client.tagged", c.ID),
		Key:       key,
		Value:     value,
	})
	return nil
}

func (c *Client) Archive() {
	c.Status = StatusArchived
	c.Discard(ClientArchived{
		BaseEvent: aggregates.NewBaseEvent("client.archived", c.ID),
	})
}

// Restore rebuilds a client from storage without emitting events.
func Restore(id string, version int, discarded bool, updatedAt time.Time, email, fullName, sourceFormID, status string, answers map[string]any, createdAt time.Time, notes []Note, tags []Tag) *Client {
	c := &Client{
		Email:        email,
		FullName:     fullName,
		SourceFormID: sourceFormID,
		Status:       status,
		Answers:      answers,
		CreatedAt:    createdAt,
		Notes:        notes,
		Tags:         tags,
	}
	c.Base.Restore(id, version, discarded, updatedAt)
	return c
}
