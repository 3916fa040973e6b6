package persistence

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tablecraft/tablecraft-backend/internal/domain/aggregates"
	"github.com/tablecraft/tablecraft-backend/internal/pkg/dbctx"
	"golang.org/x/sync/errgroup"
)

// DefaultReconcileTimeout bounds the child-reconciliation fan-out of a single
// mapping call.
const DefaultReconcileTimeout = 5 * time.Second

// EntityMapper converts between a domain aggregate and its row model.
//
// DomainToRow reconciles nested child collections against existing rows and,
// when a row for the aggregate already exists, merges the assembled parent
// into storage and reports existed=true; otherwise the returned row is a
// fresh insert candidate for the repository. RowToDomain is the pure inverse:
// a lossless deep conversion of a loaded row.
type EntityMapper[A aggregates.Aggregate, R any] interface {
	DomainToRow(dbc dbctx.Context, a A, merge bool) (row *R, existed bool, err error)
	RowToDomain(row *R) (A, error)
}

// SerialTx serializes statement execution on a shared transaction. GORM
// transactions are not safe for concurrent statements, so concurrent child
// reconciliation funnels every store call through Do.
type SerialTx struct {
	mu  sync.Mutex
	dbc dbctx.Context
}

func (s *SerialTx) Do(fn func(dbc dbctx.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.dbc)
}

// ChildTask reconciles one child row. Tasks run concurrently under a shared
// deadline; store access goes through the SerialTx.
type ChildTask func(ctx context.Context, stx *SerialTx) error

// ReconcileChildren fans the tasks out with a single deadline. The first
// failure or the deadline cancels the remaining in-flight tasks; a deadline
// hit surfaces as reconciliation_timeout, any other failure as mapping,
// so callers can tell "too slow" from "invalid data". A single child
// failure aborts the whole parent mapping.
func ReconcileChildren(dbc dbctx.Context, timeout time.Duration, tasks []ChildTask) error {
	if len(tasks) == 0 {
		return nil
	}
	if timeout <= 0 {
		timeout = DefaultReconcileTimeout
	}
	parent := dbc.Ctx
	if parent == nil {
		parent = context.Background()
	}
	cctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	stx := &SerialTx{dbc: dbctx.Context{Ctx: cctx, Tx: dbc.Tx}}
	g, gctx := errgroup.WithContext(cctx)
	for _, task := range tasks {
		task := task
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			return task(gctx, stx)
		})
	}
	if err := g.Wait(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(cctx.Err(), context.DeadlineExceeded) {
			return aggregates.NewError(aggregates.CodeReconciliationTimeout, "mapper.reconcile",
				"child reconciliation exceeded "+timeout.String(), err)
		}
		var aggErr *aggregates.Error
		if errors.As(err, &aggErr) {
			return err
		}
		return aggregates.Wrap(aggregates.CodeMapping, "mapper.reconcile", err)
	}
	return nil
}
