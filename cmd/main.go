package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/tablecraft/tablecraft-backend/internal/data/db"
	"github.com/tablecraft/tablecraft-backend/internal/data/persistence"
	"github.com/tablecraft/tablecraft-backend/internal/data/repos"
	"github.com/tablecraft/tablecraft-backend/internal/data/seed"
	"github.com/tablecraft/tablecraft-backend/internal/domain/aggregates"
	"github.com/tablecraft/tablecraft-backend/internal/platform/envutil"
	"github.com/tablecraft/tablecraft-backend/internal/platform/logger"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	seedOnStart := envutil.GetBool("SEED_ON_START", true, log)

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	// Unit-of-work factory
	log.Info("Setting up unit-of-work factory from main...")
	factory := repos.NewFactory(thePG, log,
		loggingHooks{log: log.With("component", "hooks")},
		logDispatcher{log: log.With("component", "dispatcher")})

	// Seed
	if seedOnStart {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := seed.Catalog(ctx, factory, log); err != nil {
			log.Error("Catalog seed failed", "error", err)
			os.Exit(1)
		}
	}

	log.Info("Persistence layer ready")
}

// loggingHooks records operation outcomes through the structured logger.
// Deployments with a metrics stack supply their own Hooks instead.
type loggingHooks struct {
	log *logger.Logger
}

func (h loggingHooks) ObserveOperation(op, status string, d time.Duration) {
	h.log.Debug("operation observed", "op", op, "status", status, "duration", d)
}

func (h loggingHooks) IncConflict(op string) {
	h.log.Warn("storage conflict", "op", op)
}

// logDispatcher is the default event sink: it logs each collected event.
type logDispatcher struct {
	log *logger.Logger
}

func (d logDispatcher) Dispatch(ctx context.Context, events []aggregates.Event) error {
	for _, e := range events {
		d.log.Info("domain event", "event", e.EventName(), "aggregate_id", e.AggregateID(), "occurred_at", e.OccurredAt())
	}
	return nil
}

var _ persistence.EventDispatcher = logDispatcher{}
var _ persistence.Hooks = loggingHooks{}
