package database

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/pkg/errors"
)

// migrateLogger adapts ectologger to the verbose logger golang-migrate
// expects.
type migrateLogger struct {
	ectologger.Logger
}

func (l migrateLogger) Verbose() bool {
	return true
}

func (l migrateLogger) Printf(format string, v ...any) {
	l.Infof(format, v...)
}

// MigratorConfig controls how the schema is brought up at boot.
type MigratorConfig struct {
	// FolderPath holds the numbered up/down SQL pairs, relative to the
	// working directory or absolute.
	FolderPath string
	// Version pins the schema to a specific migration; zero means latest.
	Version uint
	// Force stamps the schema version without running migrations.
	// Recovery hatch for a dirty database.
	Force int
	// AutoRollback reverts a dirty database to the previous version when
	// a migration fails, then still fails the boot.
	AutoRollback bool
}

// Migrator applies the pipeline schema before the repositories come up.
type Migrator struct {
	config *MigratorConfig
	logger ectologger.Logger
}

func NewMigrator(logger ectologger.Logger, config *MigratorConfig) *Migrator {
	return &Migrator{
		config: config,
		logger: logger,
	}
}

// locateFolder resolves the migration folder against the working
// directory so `db/pg` works both in containers and local runs.
func (m *Migrator) locateFolder() string {
	folder := m.config.FolderPath
	if _, err := os.Stat(folder); err == nil {
		return folder
	}
	wd, _ := os.Getwd()
	if wd != "/" {
		wd += "/"
	}
	return wd + folder
}

// Run applies migrations using the given driver. It blocks until the
// schema is at the requested version or fails.
func (m *Migrator) Run(databaseName string, driver database.Driver) error {
	folder := m.locateFolder()
	if _, err := os.Stat(folder); err != nil {
		return errors.Wrap(err, fmt.Sprintf("migration folder %s does not exist", folder))
	}

	mg, err := migrate.NewWithDatabaseInstance("file://"+folder, databaseName, driver)
	if err != nil {
		m.logger.WithError(err).Error("Failed to create migrate instance")
		return err
	}
	mg.Log = migrateLogger{Logger: m.logger}

	if m.config.Force != 0 {
		if err := mg.Force(m.config.Force); err != nil {
			m.logger.WithError(err).Errorf("Failed to force schema to version %d", m.config.Force)
			return err
		}
	}

	previous, _, versionErr := mg.Version()
	if versionErr != nil {
		previous = 0
	}

	start := time.Now()
	var runErr error
	if m.config.Version != 0 {
		runErr = mg.Migrate(m.config.Version)
	} else {
		runErr = mg.Up()
	}
	m.logger.Infof("Schema migrations finished in %v", time.Since(start))

	return m.resolve(mg, runErr, previous)
}

// resolve turns the migrate result into a boot decision: tolerate
// no-change and rolled-back version gaps, optionally revert a dirty
// schema, and fail the boot on anything else.
func (m *Migrator) resolve(mg *migrate.Migrate, err error, previous uint) error {
	if err == nil {
		m.logger.Info("Schema is up to date")
		return nil
	}
	if err == migrate.ErrNoChange {
		m.logger.Info("No new migrations to apply")
		return nil
	}

	// A schema stamped past the newest file means a migration was rolled
	// back in source. Stamp back to the newest file and carry on.
	if strings.Contains(err.Error(), "no migration found for version") {
		latest, latestErr := newestVersion(m.locateFolder())
		if latestErr != nil {
			m.logger.WithError(latestErr).Error("Failed to determine newest migration version")
		}
		m.logger.Warnf("Schema version %d has no migration file, stamping version %d", previous, latest)
		if forceErr := mg.Force(latest); forceErr != nil {
			m.logger.WithError(forceErr).Errorf("Failed to force schema to version %d", latest)
			return forceErr
		}
		return nil
	}

	m.logger.WithError(err).Errorf("Migration failed: %v", err)

	version, dirty, versionErr := mg.Version()
	if versionErr != nil && versionErr != migrate.ErrNilVersion {
		m.logger.WithError(versionErr).Error("Failed to read schema version after failure")
	} else if m.config.AutoRollback {
		if previous == 0 {
			previous = version - 1
		}
		if dirty {
			m.logger.Warnf("Schema is dirty at version %d, reverting to version %d", version, previous)
			if forceErr := mg.Force(int(previous)); forceErr != nil {
				m.logger.WithError(forceErr).Errorf("Failed to revert schema to version %d", previous)
				return forceErr
			}
		}
		// The revert cleans the schema but the boot still fails so the
		// bad migration gets looked at.
		return err
	}

	m.logger.WithError(err).Errorf("Schema left dirty=%t at version %d", dirty, version)
	return err
}

// newestVersion returns the highest version number among the up
// migration files in the folder.
func newestVersion(folder string) (int, error) {
	files, err := os.ReadDir(folder)
	if err != nil {
		return 0, err
	}

	re := regexp.MustCompile(`^(\d+)_.*\.up\.sql$`)
	var versions []int
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		matches := re.FindStringSubmatch(file.Name())
		if len(matches) > 1 {
			version, err := strconv.Atoi(matches[1])
			if err != nil {
				return 0, err
			}
			versions = append(versions, version)
		}
	}

	if len(versions) == 0 {
		return 0, fmt.Errorf("no migration files found")
	}
	sort.Ints(versions)
	return versions[len(versions)-1], nil
}
