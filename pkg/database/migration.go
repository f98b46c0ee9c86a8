package database

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// migrationLogger adapts ectologger to migrate.Logger.
type migrationLogger struct {
	ectologger.Logger
}

func (l migrationLogger) Verbose() bool {
	return false
}

func (l migrationLogger) Printf(format string, v ...any) {
	l.Infof(format, v...)
}

type MigrationConfig struct {
	// FolderPath overrides the embedded migrations with a directory on disk.
	FolderPath string
	// Version migrates to an exact version; 0 means latest.
	Version uint
	// Force marks the schema clean at this version before migrating; 0 skips.
	Force int
}

// Migrator applies SQL migrations to the metadata database.
type Migrator struct {
	config   MigrationConfig
	embedded fs.FS
	dir      string
	logger   ectologger.Logger
}

// NewMigrator reads migrations from dir inside embedded unless config.FolderPath is set.
func NewMigrator(config MigrationConfig, embedded fs.FS, dir string, logger ectologger.Logger) *Migrator {
	return &Migrator{
		config:   config,
		embedded: embedded,
		dir:      dir,
		logger:   logger,
	}
}

func (m *Migrator) migrations() (fs.FS, string) {
	if m.config.FolderPath != "" {
		return os.DirFS(m.config.FolderPath), "."
	}
	return m.embedded, m.dir
}

// Migrate brings db up to the configured version.
func (m *Migrator) Migrate(db *sql.DB, databaseName string) error {
	fsys, dir := m.migrations()

	src, err := iofs.New(fsys, dir)
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{DatabaseName: databaseName})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	mg, err := migrate.NewWithInstance("iofs", src, databaseName, driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	mg.Log = migrationLogger{Logger: m.logger}

	return m.run(mg)
}

func (m *Migrator) run(mg *migrate.Migrate) error {
	if m.config.Force != 0 {
		if err := mg.Force(m.config.Force); err != nil {
			return fmt.Errorf("failed to force version %d: %w", m.config.Force, err)
		}
	}

	before, dirty, err := mg.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	if dirty {
		return fmt.Errorf("database is dirty at version %d, set DB_MIGRATION_FORCE to recover", before)
	}

	start := time.Now()
	if m.config.Version != 0 {
		err = mg.Migrate(m.config.Version)
	} else {
		err = mg.Up()
	}

	log := m.logger.WithFields(map[string]any{
		"from":     before,
		"duration": time.Since(start).String(),
	})
	switch {
	case err == nil:
		after, _, _ := mg.Version()
		log.WithField("to", after).Info("Applied database migrations")
		return nil
	case errors.Is(err, migrate.ErrNoChange):
		log.Info("No new migrations to apply")
		return nil
	}

	latest, latestErr := LatestVersion(m.migrations())
	if latestErr == nil && before > latest {
		log.Warnf("Database version %d is ahead of the newest migration %d", before, latest)
	}
	return fmt.Errorf("failed to apply migrations: %w", err)
}

var upMigration = regexp.MustCompile(`^(\d+)_.*\.up\.sql$`)

// LatestVersion returns the highest up migration version in dir.
func LatestVersion(fsys fs.FS, dir string) (uint, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return 0, err
	}

	var versions []uint
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		match := upMigration.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}
		v, err := strconv.ParseUint(match[1], 10, 64)
		if err != nil {
			return 0, err
		}
		versions = append(versions, uint(v))
	}
	if len(versions) == 0 {
		return 0, fmt.Errorf("no migration files found in %s", dir)
	}

	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	return versions[len(versions)-1], nil
}
