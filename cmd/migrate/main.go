package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/erp/salesdocs/internal/infrastructure/config"
	"github.com/erp/salesdocs/internal/infrastructure/logger"
	"github.com/erp/salesdocs/internal/infrastructure/migration"
	"github.com/erp/salesdocs/migrations"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const defaultMigrationsPath = "migrations"

// command is one migrate subcommand. Commands with a nil migrate function
// work on the migration files only and never open a database connection.
type command struct {
	files   func(log *zap.Logger, dir string, args []string) error
	migrate func(log *zap.Logger, m *migration.Migrator, args []string) error
}

var commands = map[string]command{
	"up": {migrate: func(_ *zap.Logger, m *migration.Migrator, _ []string) error {
		return m.Up()
	}},
	"down": {migrate: func(_ *zap.Logger, m *migration.Migrator, _ []string) error {
		return m.Down()
	}},
	"step": {migrate: func(_ *zap.Logger, m *migration.Migrator, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid step count %q", args[0])
		}
		return m.Steps(n)
	}},
	"goto": {migrate: func(_ *zap.Logger, m *migration.Migrator, args []string) error {
		v, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid version %q", args[0])
		}
		return m.GoTo(uint(v))
	}},
	"force": {migrate: func(_ *zap.Logger, m *migration.Migrator, args []string) error {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid version %q", args[0])
		}
		return m.Force(v)
	}},
	"drop": {migrate: func(_ *zap.Logger, m *migration.Migrator, args []string) error {
		if !slices.Contains(args, "-confirm") && !slices.Contains(args, "--confirm") {
			return errors.New("drop deletes every stored document; rerun with -confirm")
		}
		return m.Drop()
	}},
	"version": {migrate: func(log *zap.Logger, m *migration.Migrator, _ []string) error {
		state, err := m.State()
		if err != nil {
			return err
		}
		log.Info("Current migration version", zap.Uint("version", state.Version), zap.Bool("dirty", state.Dirty))
		return nil
	}},
	"create": {files: func(log *zap.Logger, dir string, args []string) error {
		description := ""
		if len(args) > 1 {
			description = args[1]
		}
		mf, err := migration.CreateMigration(dir, args[0], description)
		if err != nil {
			return err
		}
		log.Info("Migration created", zap.String("up_file", mf.UpPath), zap.String("down_file", mf.DownPath))
		return nil
	}},
	"list": {files: func(log *zap.Logger, dir string, _ []string) error {
		var (
			fsys  fs.FS = migrations.FS
			names []string
			err   error
		)
		if dir != "" {
			fsys = os.DirFS(dir)
			names, err = migration.ListMigrations(dir)
		} else {
			names, err = migration.ListMigrationsFS(fsys)
		}
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Println(name)
		}
		if err := migration.VerifyPairs(fsys); err != nil {
			log.Warn("Migration files are incomplete", zap.Error(err))
		}
		return nil
	}},
}

// requiredArgs is the number of positional arguments a command needs
var requiredArgs = map[string]int{"step": 1, "goto": 1, "force": 1, "create": 1}

func main() {
	var migrationsPath, logLevel string
	flag.StringVar(&migrationsPath, "path", "", "Migrations directory; defaults to the embedded set, and to ./migrations for create")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(2)
	}
	name, args := args[0], args[1:]
	cmd, ok := commands[name]
	if !ok || len(args) < requiredArgs[name] {
		printUsage()
		os.Exit(2)
	}

	logCfg := logger.DefaultConfig()
	logCfg.Level = logLevel
	logCfg.Service = "salesdocs-migrate"
	log, err := logger.New(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = log.Sync()
	}()

	if migrationsPath == "" && name == "create" {
		migrationsPath = defaultMigrationsPath
	}
	if migrationsPath != "" {
		if migrationsPath, err = filepath.Abs(migrationsPath); err != nil {
			log.Fatal("Failed to resolve migrations path", zap.Error(err))
		}
	}
	log = log.With(zap.String("command", name))

	if cmd.files != nil {
		if err := cmd.files(log, migrationsPath, args); err != nil {
			log.Fatal("Command failed", zap.Error(err))
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}
	m, err := openMigrator(cfg, migrationsPath, log)
	if err != nil {
		log.Fatal("Failed to create migrator", zap.Error(err))
	}
	defer func() {
		_ = m.Close()
	}()

	if err := cmd.migrate(log, m, args); err != nil {
		log.Fatal("Command failed", zap.Error(err))
	}
}

// openMigrator connects to the configured database. Closing the migrator
// closes the connection.
func openMigrator(cfg *config.Config, dir string, log *zap.Logger) (*migration.Migrator, error) {
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	var m *migration.Migrator
	if dir == "" {
		m, err = migration.NewFromFS(db, migrations.FS, log)
	} else {
		m, err = migration.New(db, dir, log)
	}
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return m, nil
}

func printUsage() {
	fmt.Fprint(os.Stderr, `Sales document schema migrations

Usage:
  migrate [-path dir] [-log-level level] <command> [arguments]

Commands:
  up                    Apply all pending migrations
  down                  Roll back all migrations
  step <n>              Apply n migrations, negative n rolls back
  goto <version>        Migrate to a specific version
  version               Show the applied version
  force <version>       Record a version as applied without running it
  drop -confirm         Drop every table, stored documents included
  create <name> [desc]  Write a new up/down migration pair
  list                  List migrations

The database is configured through SALESDOCS_DATABASE_HOST, _PORT, _USER,
_PASSWORD, _DBNAME and _SSLMODE or the config file.
`)
}
