package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/tablecraft/tablecraft-backend/internal/domain/aggregates"
	"github.com/tablecraft/tablecraft-backend/internal/platform/logger"
	"gorm.io/gorm"
)

// UoWState tracks the unit of work's lifecycle: open on Begin, then exactly
// one of committed or rolled back.
type UoWState string

const (
	StateOpen       UoWState = "open"
	StateCommitted  UoWState = "committed"
	StateRolledBack UoWState = "rolled_back"
)

// SeenSource is anything exposing an identity set; every generic repository
// qualifies. The unit of work walks registered sources to collect events.
type SeenSource interface {
	Seen() []aggregates.Aggregate
}

// Flusher is implemented by repositories that defer writes until commit.
type Flusher interface {
	Flush(ctx context.Context) error
}

// UnitOfWork owns exactly one storage transaction. It is scoped to one
// logical operation and must not be shared across concurrent callers.
// Repositories are constructed against Tx() at Begin time; on Commit pending
// writes flush and the transaction finalizes; Rollback is safe to defer on
// every exit path.
type UnitOfWork struct {
	ctx   context.Context
	tx    *gorm.DB
	log   *logger.Logger
	hooks Hooks

	mu      sync.Mutex
	state   UoWState
	sources []SeenSource
}

// Begin opens the storage transaction backing a new unit of work.
func Begin(ctx context.Context, db *gorm.DB, log *logger.Logger, hooks Hooks) (*UnitOfWork, error) {
	if hooks == nil {
		hooks = NoopHooks()
	}
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, MapStoreError("uow.begin", tx.Error)
	}
	if log != nil {
		log = log.With("component", "uow")
	}
	return &UnitOfWork{
		ctx:   ctx,
		tx:    tx,
		log:   log,
		hooks: hooks,
		state: StateOpen,
	}, nil
}

// Tx exposes the owned transaction for repository construction.
func (u *UnitOfWork) Tx() *gorm.DB { return u.tx }

// Context returns the request context this unit of work is scoped to.
func (u *UnitOfWork) Context() context.Context { return u.ctx }

// State reports the lifecycle state.
func (u *UnitOfWork) State() UoWState {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state
}

// Register adds a repository to the event-collection walk. Registration
// order fixes cross-repository event ordering.
func (u *UnitOfWork) Register(src SeenSource) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.sources = append(u.sources, src)
}

// Commit flushes every registered repository's pending writes, then
// finalizes the transaction. Any failure rolls back; storage errors
// propagate unmodified in cause.
func (u *UnitOfWork) Commit() error {
	u.mu.Lock()
	if u.state != StateOpen {
		state := u.state
		u.mu.Unlock()
		return aggregates.NewError(aggregates.CodeInternal, "uow.commit",
			"commit on "+string(state)+" unit of work", nil)
	}
	sources := make([]SeenSource, len(u.sources))
	copy(sources, u.sources)
	u.mu.Unlock()

	start := time.Now()
	for _, src := range sources {
		fl, ok := src.(Flusher)
		if !ok {
			continue
		}
		if err := fl.Flush(u.ctx); err != nil {
			u.observe("uow.commit", err, start)
			_ = u.Rollback()
			return err
		}
	}
	if err := u.tx.Commit().Error; err != nil {
		mapped := MapStoreError("uow.commit", err)
		u.observe("uow.commit", mapped, start)
		_ = u.Rollback()
		return mapped
	}
	u.mu.Lock()
	u.state = StateCommitted
	u.mu.Unlock()
	u.observe("uow.commit", nil, start)
	return nil
}

// Rollback releases the transaction. It is idempotent and a no-op after
// commit, so callers defer it unconditionally.
func (u *UnitOfWork) Rollback() error {
	u.mu.Lock()
	if u.state != StateOpen {
		u.mu.Unlock()
		return nil
	}
	u.state = StateRolledBack
	u.mu.Unlock()
	if err := u.tx.Rollback().Error; err != nil {
		if u.log != nil {
			u.log.Warn("rollback failed", "error", err)
		}
		return MapStoreError("uow.rollback", err)
	}
	return nil
}

// CollectNewEvents drains every seen aggregate's pending events in FIFO
// order: sources in registration order, aggregates in identity-set insertion
// order, events in emission order. This is the only path by which domain
// events leave the persistence layer.
func (u *UnitOfWork) CollectNewEvents() []aggregates.Event {
	u.mu.Lock()
	sources := make([]SeenSource, len(u.sources))
	copy(sources, u.sources)
	u.mu.Unlock()

	var out []aggregates.Event
	for _, src := range sources {
		for _, a := range src.Seen() {
			out = append(out, a.DrainEvents()...)
		}
	}
	return out
}

func (u *UnitOfWork) observe(op string, err error, start time.Time) {
	status := "success"
	if err != nil {
		status = string(aggregates.CodeOf(err))
		if status == "" {
			status = "failure"
		}
		if aggregates.IsCode(err, aggregates.CodeIntegrityViolation) {
			u.hooks.IncConflict(op)
		}
	}
	u.hooks.ObserveOperation(op, status, time.Since(start))
}
