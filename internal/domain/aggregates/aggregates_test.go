package aggregates

import (
	"testing"
	"time"
)

func TestApplyAdvancesVersionAndCollectsEvents(t *testing.T) {
	var b Base
	b.ID = "agg-1"

	e1 := NewBaseEvent("thing.created", b.ID)
	e2 := NewBaseEvent("thing.renamed", b.ID)
	b.Apply(e1)
	b.Apply(e2)

	if b.AggregateVersion() != 2 {
		t.Fatalf("version: expected 2, got %d", b.AggregateVersion())
	}
	if !b.UpdatedAt.Equal(e2.OccurredAt()) {
		t.Fatalf("updated_at: expected %v, got %v", e2.OccurredAt(), b.UpdatedAt)
	}

	pending := b.PendingEvents()
	if len(pending) != 2 {
		t.Fatalf("pending: expected 2 events, got %d", len(pending))
	}
	if pending[0].EventName() != "thing.created" || pending[1].EventName() != "thing.renamed" {
		t.Fatalf("pending order: got %q, %q", pending[0].EventName(), pending[1].EventName())
	}
}

func TestDrainEventsEmptiesPending(t *testing.T) {
	var b Base
	b.ID = "agg-2"
	b.Apply(NewBaseEvent("thing.created", b.ID))

	drained := b.DrainEvents()
	if len(drained) != 1 {
		t.Fatalf("drain: expected 1 event, got %d", len(drained))
	}
	if got := b.DrainEvents(); len(got) != 0 {
		t.Fatalf("second drain: expected none, got %d", len(got))
	}
	if got := b.PendingEvents(); len(got) != 0 {
		t.Fatalf("pending after drain: expected none, got %d", len(got))
	}
}

func TestDiscardMarksAndStillApplies(t *testing.T) {
	var b Base
	b.ID = "agg-3"
	b.Apply(NewBaseEvent("thing.created", b.ID))
	b.Discard(NewBaseEvent("thing.discarded", b.ID))

	if !b.IsDiscarded() {
		t.Fatal("expected aggregate to be discarded")
	}
	if b.AggregateVersion() != 2 {
		t.Fatalf("version after discard: expected 2, got %d", b.AggregateVersion())
	}
}

func TestRestoreHydratesWithoutEvents(t *testing.T) {
	var b Base
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b.Restore("agg-4", 7, true, at)

	if b.AggregateID() != "agg-4" || b.AggregateVersion() != 7 || !b.IsDiscarded() {
		t.Fatalf("restore: got id=%s version=%d discarded=%v", b.AggregateID(), b.AggregateVersion(), b.IsDiscarded())
	}
	if !b.UpdatedAt.Equal(at) {
		t.Fatalf("restore updated_at: got %v", b.UpdatedAt)
	}
	if len(b.PendingEvents()) != 0 {
		t.Fatal("restore must not register pending events")
	}
}
