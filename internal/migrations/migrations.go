// Package migrations applies the embedded PostgreSQL schema with golang-migrate.
package migrations

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // registers the postgres:// driver
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/aimd54/forum-progression/pkg/logger"
)

//go:embed sql/*.sql
var files embed.FS

// Source opens the embedded migration files.
func Source() (source.Driver, error) {
	return iofs.New(files, "sql")
}

// Runner applies migrations against one database.
type Runner struct {
	m   *migrate.Migrate
	log *logger.Logger
}

// NewRunner connects to databaseURL (postgres://...) using the embedded files.
func NewRunner(databaseURL string, log *logger.Logger) (*Runner, error) {
	src, err := Source()
	if err != nil {
		return nil, fmt.Errorf("failed to open migration source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize migrations: %w", err)
	}
	return &Runner{m: m, log: log}, nil
}

// Up applies all pending migrations.
func (r *Runner) Up() error {
	if err := r.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	r.logVersion("Migrations applied")
	return nil
}

// Down rolls back steps migrations.
func (r *Runner) Down(steps int) error {
	if steps <= 0 {
		return fmt.Errorf("steps must be positive, got %d", steps)
	}
	if err := r.m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to roll back migrations: %w", err)
	}
	r.logVersion("Migrations rolled back")
	return nil
}

// Version returns the current schema version.
func (r *Runner) Version() (uint, bool, error) {
	v, dirty, err := r.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

func (r *Runner) logVersion(msg string) {
	v, dirty, err := r.Version()
	if err != nil {
		r.log.Warn().Err(err).Msg("Failed to read schema version")
		return
	}
	r.log.Info().Uint("version", v).Bool("dirty", dirty).Msg(msg)
}

// Close releases the source and database connections.
func (r *Runner) Close() error {
	srcErr, dbErr := r.m.Close()
	return errors.Join(srcErr, dbErr)
}
