package persistence

import (
	"context"

	"github.com/tablecraft/tablecraft-backend/internal/domain/aggregates"
)

// SimilaritySearcher resolves a fuzzy term into a set of aggregate ids. It is
// used to rewrite derived filters (e.g. a product name) into IN-filters
// before generic resolution.
type SimilaritySearcher interface {
	Search(ctx context.Context, term string, limit int) ([]string, error)
}

// EventDispatcher receives the events collected by the unit of work after a
// successful commit. Delivery semantics belong to the implementation.
type EventDispatcher interface {
	Dispatch(ctx context.Context, events []aggregates.Event) error
}
