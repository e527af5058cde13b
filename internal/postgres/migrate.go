package postgres

import (
	"embed"
	"errors"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/wispbill/wispbill/internal/config"
	ierr "github.com/wispbill/wispbill/internal/errors"
	"github.com/wispbill/wispbill/internal/logger"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrator applies the embedded schema migrations. It opens its own
// connection so closing it never touches the application pool.
type Migrator struct {
	m      *migrate.Migrate
	logger *logger.Logger
}

func NewMigrator(cfg *config.Configuration, logger *logger.Logger) (*Migrator, error) {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to load embedded migrations").
			Mark(ierr.ErrSystem)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, cfg.Postgres.GetURL())
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to create migration instance").
			Mark(ierr.ErrDatabase)
	}

	return &Migrator{m: m, logger: logger}, nil
}

// Up applies all pending migrations
func (mg *Migrator) Up() error {
	mg.logger.Info("running database migrations")

	if err := mg.m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			mg.logger.Info("no migrations to apply, database is up to date")
			return nil
		}
		return ierr.WithError(err).
			WithHint("Migration failed").
			Mark(ierr.ErrDatabase)
	}

	version, dirty, _ := mg.m.Version()
	mg.logger.Infow("migrations completed", "version", version, "dirty", dirty)
	return nil
}

// Steps applies n migrations, rolling back when n is negative
func (mg *Migrator) Steps(n int) error {
	if err := mg.m.Steps(n); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return ierr.WithError(err).
			WithHintf("Failed to apply %d migration step(s)", n).
			Mark(ierr.ErrDatabase)
	}

	version, dirty, _ := mg.m.Version()
	mg.logger.Infow("migration steps applied", "steps", n, "version", version, "dirty", dirty)
	return nil
}

// Version returns the current schema version
func (mg *Migrator) Version() (uint, bool, error) {
	version, dirty, err := mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func (mg *Migrator) Close() {
	srcErr, dbErr := mg.m.Close()
	if srcErr != nil || dbErr != nil {
		mg.logger.Errorw("error closing migrator", "source_error", srcErr, "database_error", dbErr)
	}
}

// Migrate runs every pending migration once
func Migrate(cfg *config.Configuration, logger *logger.Logger) error {
	mg, err := NewMigrator(cfg, logger)
	if err != nil {
		return err
	}
	defer mg.Close()
	return mg.Up()
}
