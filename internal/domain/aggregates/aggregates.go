// Package aggregates defines the common aggregate contract shared by every
// bounded context: identity, a monotonic version counter, soft-delete state,
// and a FIFO queue of pending domain events drained at commit time.
package aggregates

import (
	"time"
)

// Event is a domain event pending dispatch. Events accumulate on the
// aggregate that emitted them and are collected by the unit of work after a
// successful commit.
type Event interface {
	EventName() string
	AggregateID() string
	OccurredAt() time.Time
}

// Aggregate is the contract every domain aggregate satisfies.
type Aggregate interface {
	AggregateID() string
	AggregateVersion() int
	IsDiscarded() bool
	PendingEvents() []Event
	DrainEvents() []Event
}

// Base carries the shared aggregate state. Domain types embed it and route
// every mutation through Apply so the version counter and event queue stay
// consistent: one logical change, one event, one version increment.
type Base struct {
	ID        string
	Version   int
	Discarded bool
	UpdatedAt time.Time

	events []Event
}

func (b *Base) AggregateID() string   { return b.ID }
func (b *Base) AggregateVersion() int { return b.Version }
func (b *Base) IsDiscarded() bool     { return b.Discarded }

// Apply records a state transition: the event is queued and the version is
// incremented exactly once. Mutating aggregate fields outside Apply is a bug.
func (b *Base) Apply(e Event) {
	b.Version++
	b.UpdatedAt = e.OccurredAt()
	b.events = append(b.events, e)
}

// Discard soft-deletes the aggregate through the same transition path.
func (b *Base) Discard(e Event) {
	b.Discarded = true
	b.Apply(e)
}

// PendingEvents returns the queued events without draining them.
func (b *Base) PendingEvents() []Event {
	out := make([]Event, len(b.events))
	copy(out, b.events)
	return out
}

// DrainEvents empties the queue and returns the events in FIFO order.
func (b *Base) DrainEvents() []Event {
	out := b.events
	b.events = nil
	return out
}

// Restore rebuilds base state from storage without emitting events; mappers
// use it when hydrating aggregates from rows.
func (b *Base) Restore(id string, version int, discarded bool, updatedAt time.Time) {
	b.ID = id
	b.Version = version
	b.Discarded = discarded
	b.UpdatedAt = updatedAt
	b.events = nil
}

// BaseEvent carries the fields every domain event shares. Context packages
// embed it in their concrete event types.
type BaseEvent struct {
	Name string
	ID   string
	At   time.Time
}

func NewBaseEvent(name, aggregateID string) BaseEvent {
	return BaseEvent{Name: name, ID: aggregateID, At: time.Now().UTC()}
}

func (e BaseEvent) EventName() string     { return e.Name }
func (e BaseEvent) AggregateID() string   { return e.ID }
func (e BaseEvent) OccurredAt() time.Time { return e.At }
