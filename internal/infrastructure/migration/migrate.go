package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

// engine is the part of *migrate.Migrate the Migrator drives
type engine interface {
	Up() error
	Down() error
	Steps(n int) error
	Migrate(version uint) error
	Version() (uint, bool, error)
	Force(version int) error
	Drop() error
	Close() (error, error)
}

// State is the schema version recorded in schema_migrations.
// Version 0 means no migration has been applied.
type State struct {
	Version uint
	Dirty   bool
}

// Migrator applies the schema migrations for stored documents, drafts,
// sequences, projects and the event outbox.
type Migrator struct {
	engine engine
	logger *zap.Logger
}

// New reads migration files from a directory
func New(db *sql.DB, migrationsPath string, logger *zap.Logger) (*Migrator, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return newMigrator(m, logger), nil
}

// NewFromFS reads migrations embedded in the binary
func NewFromFS(db *sql.DB, fsys fs.FS, logger *zap.Logger) (*Migrator, error) {
	source, err := iofs.New(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return newMigrator(m, logger), nil
}

func newMigrator(e engine, logger *zap.Logger) *Migrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Migrator{engine: e, logger: logger.Named("migrate")}
}

// Up applies every pending migration
func (m *Migrator) Up() error {
	return m.apply("up", m.engine.Up)
}

// Down rolls back every migration
func (m *Migrator) Down() error {
	return m.apply("down", m.engine.Down)
}

// Steps applies n migrations, rolling back when n is negative
func (m *Migrator) Steps(n int) error {
	return m.apply(fmt.Sprintf("step %d", n), func() error { return m.engine.Steps(n) })
}

// GoTo migrates up or down to version
func (m *Migrator) GoTo(version uint) error {
	return m.apply(fmt.Sprintf("goto %d", version), func() error { return m.engine.Migrate(version) })
}

// apply runs op and logs the resulting state. Having nothing to do is not an error.
func (m *Migrator) apply(op string, run func() error) error {
	m.logger.Info("Running migrations", zap.String("operation", op))

	if err := run(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Info("Schema already up to date", zap.String("operation", op))
			return nil
		}
		return fmt.Errorf("migration %s failed: %w", op, err)
	}

	state, err := m.State()
	if err != nil {
		return err
	}
	m.logger.Info("Migrations completed",
		zap.String("operation", op),
		zap.Uint("version", state.Version),
		zap.Bool("dirty", state.Dirty),
	)
	return nil
}

// State returns the applied version
func (m *Migrator) State() (State, error) {
	version, dirty, err := m.engine.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return State{}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("failed to get migration version: %w", err)
	}
	return State{Version: version, Dirty: dirty}, nil
}

// Force records version as applied and clean without running anything.
// It is the way out of a dirty state after a failed migration was fixed by hand.
func (m *Migrator) Force(version int) error {
	m.logger.Warn("Forcing migration version", zap.Int("version", version))
	if err := m.engine.Force(version); err != nil {
		return fmt.Errorf("failed to force version %d: %w", version, err)
	}
	return nil
}

// Drop removes every table, finalized documents included
func (m *Migrator) Drop() error {
	m.logger.Warn("Dropping all database objects")
	if err := m.engine.Drop(); err != nil {
		return fmt.Errorf("failed to drop database: %w", err)
	}
	return nil
}

func (m *Migrator) Close() error {
	sourceErr, dbErr := m.engine.Close()
	return errors.Join(sourceErr, dbErr)
}
