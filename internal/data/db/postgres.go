package db

import (
	"fmt"

	"github.com/tablecraft/tablecraft-backend/internal/platform/envutil"
	"github.com/tablecraft/tablecraft-backend/internal/platform/logger"
	"github.com/tablecraft/tablecraft-backend/internal/types"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	postgresHost := envutil.Get("POSTGRES_HOST", "localhost", log)
	postgresPort := envutil.Get("POSTGRES_PORT", "5432", log)
	postgresUser := envutil.Get("POSTGRES_USER", "postgres", log)
	postgresPassword := envutil.Get("POSTGRES_PASSWORD", "", log)
	postgresName := envutil.Get("POSTGRES_NAME", "tablecraft", log)

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		postgresUser, postgresPassword, postgresHost, postgresPort, postgresName)

	log.Info("Connecting to Postgres...")
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		log.Error("Failed to connect to Postgres", "error", err)
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	return &PostgresService{db: gdb, log: serviceLog}, nil
}

func (s *PostgresService) DB() *gorm.DB { return s.db }

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	if err := AutoMigrate(s.db); err != nil {
		s.log.Error("Auto migration failed for postgres tables", "error", err)
		return err
	}
	return nil
}

// AutoMigrate migrates every row model. The test harness reuses it against
// its own database handle.
func AutoMigrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&types.Tag{},

		&types.Meal{},
		&types.Recipe{},
		&types.Ingredient{},
		&types.Rating{},

		&types.Product{},
		&types.ProductCategory{},

		&types.Client{},
		&types.ClientNote{},

		&types.Patient{},
		&types.Appointment{},
	)
}
