// Package repos exposes the per-context repositories under one import and
// owns the unit-of-work factory that wires them to a shared transaction.
package repos

import (
	"context"

	"github.com/tablecraft/tablecraft-backend/internal/data/persistence"
	"github.com/tablecraft/tablecraft-backend/internal/data/repos/catalog"
	"github.com/tablecraft/tablecraft-backend/internal/data/repos/clinic"
	"github.com/tablecraft/tablecraft-backend/internal/data/repos/meals"
	"github.com/tablecraft/tablecraft-backend/internal/data/repos/onboarding"
	"github.com/tablecraft/tablecraft-backend/internal/domain/aggregates"
	"github.com/tablecraft/tablecraft-backend/internal/platform/logger"
	"gorm.io/gorm"
)

type MealRepo = meals.MealRepo
type ProductRepo = catalog.ProductRepo
type ProductSearch = catalog.ProductSearch
type ClientRepo = onboarding.ClientRepo
type PatientRepo = clinic.PatientRepo

// UnitOfWork bundles one open transaction with repositories bound to it.
// Commit, Rollback and CollectNewEvents come from the embedded core.
type UnitOfWork struct {
	*persistence.UnitOfWork

	Meals    *MealRepo
	Products *ProductRepo
	Clients  *ClientRepo
	Patients *PatientRepo
}

// Factory opens units of work against the application database. A nil
// dispatcher means WithinTx only returns events; a non-nil one also
// receives them after commit.
type Factory struct {
	db         *gorm.DB
	log        *logger.Logger
	hooks      persistence.Hooks
	dispatcher persistence.EventDispatcher
}

func NewFactory(db *gorm.DB, log *logger.Logger, hooks persistence.Hooks, dispatcher persistence.EventDispatcher) *Factory {
	if hooks == nil {
		hooks = persistence.NoopHooks()
	}
	return &Factory{db: db, log: log, hooks: hooks, dispatcher: dispatcher}
}

// Begin opens a transaction and constructs every repository against it.
// Registration order fixes the FIFO order of collected events.
func (f *Factory) Begin(ctx context.Context) (*UnitOfWork, error) {
	core, err := persistence.Begin(ctx, f.db, f.log, f.hooks)
	if err != nil {
		return nil, err
	}
	uow, err := f.bind(core)
	if err != nil {
		_ = core.Rollback()
		return nil, err
	}
	return uow, nil
}

func (f *Factory) bind(core *persistence.UnitOfWork) (*UnitOfWork, error) {
	tx := core.Tx()
	search := catalog.NewProductSearch(tx)

	mealRepo, err := meals.NewMealRepo(tx, search, f.log)
	if err != nil {
		return nil, err
	}
	productRepo, err := catalog.NewProductRepo(tx, f.log)
	if err != nil {
		return nil, err
	}
	clientRepo, err := onboarding.NewClientRepo(tx, f.log)
	if err != nil {
		return nil, err
	}
	patientRepo, err := clinic.NewPatientRepo(tx, f.log)
	if err != nil {
		return nil, err
	}

	uow := &UnitOfWork{
		UnitOfWork: core,
		Meals:      mealRepo,
		Products:   productRepo,
		Clients:    clientRepo,
		Patients:   patientRepo,
	}
	core.Register(mealRepo)
	core.Register(productRepo)
	core.Register(clientRepo)
	core.Register(patientRepo)
	return uow, nil
}

// WithinTx runs fn inside a fresh unit of work, commits on success and
// returns the events drained from every aggregate touched by fn.
func (f *Factory) WithinTx(ctx context.Context, fn func(uow *UnitOfWork) error) ([]aggregates.Event, error) {
	uow, err := f.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = uow.Rollback() }()

	if err := fn(uow); err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}
	events := uow.CollectNewEvents()
	if f.dispatcher != nil && len(events) > 0 {
		if err := f.dispatcher.Dispatch(ctx, events); err != nil {
			f.log.Warn("event dispatch failed", "error", err, "events", len(events))
		}
	}
	return events, nil
}
