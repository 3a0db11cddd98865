// Package db provides database schema management and migrations.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	apperr "github.com/ovelia/keepsake/internal/errors"
	"github.com/ovelia/keepsake/internal/logging"
	"github.com/ovelia/keepsake/internal/models"
)

// CurrentSchemaVersion is the version a fresh or fully migrated store
// reports in db_version.
const CurrentSchemaVersion = 2

// requiredTables are the tables VerifyHealth demands.
var requiredTables = []string{
	"categories",
	"videos",
	"core_memories",
	"custom_memory_types",
	"db_version",
}

// initialSchema creates the full current schema. New installs get this
// directly and are stamped with CurrentSchemaVersion; migrations only
// run for stores created by older builds.
const initialSchema = `
CREATE TABLE db_version (
	version INTEGER NOT NULL
);

CREATE TABLE categories (
	id TEXT PRIMARY KEY,
	key TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	icon TEXT NOT NULL,
	color TEXT NOT NULL
);

CREATE TABLE videos (
	id TEXT PRIMARY KEY,
	uri TEXT NOT NULL,
	thumbnail TEXT NOT NULL,
	duration REAL NOT NULL,
	created_at INTEGER NOT NULL,
	title TEXT NOT NULL,
	description TEXT,
	start_time REAL NOT NULL,
	end_time REAL NOT NULL,
	category_id TEXT REFERENCES categories(id) ON DELETE SET NULL
);
CREATE INDEX idx_videos_category ON videos(category_id);
CREATE INDEX idx_videos_created ON videos(created_at DESC);

CREATE TABLE core_memories (
	video_id TEXT PRIMARY KEY REFERENCES videos(id) ON DELETE CASCADE,
	note TEXT NOT NULL,
	color TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	type_id TEXT NOT NULL
);

CREATE TABLE custom_memory_types (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	icon TEXT NOT NULL,
	color TEXT NOT NULL
);
`

// migration is a single schema upgrade step, applied in its own
// transaction with the version marker advanced atomically.
type migration struct {
	version     int
	description string
	apply       func(tx *sql.Tx) error
}

// migrations upgrade stores created before CurrentSchemaVersion,
// ordered ascending by version.
var migrations = []migration{
	{
		version:     2,
		description: "add videos.description",
		apply: func(tx *sql.Tx) error {
			_, err := tx.Exec(`ALTER TABLE videos ADD COLUMN description TEXT`)
			return err
		},
	},
}

// SchemaManager brings the on-disk schema to CurrentSchemaVersion and
// proves it structurally sound before any other component touches the
// store.
type SchemaManager struct {
	db *sql.DB

	mu          sync.Mutex
	initialized bool
}

// NewSchemaManager creates a new SchemaManager over an open database.
func NewSchemaManager(db *sql.DB) *SchemaManager {
	return &SchemaManager{db: db}
}

// Initialize is idempotent and safe to call concurrently: the mutex
// serializes callers, so a single in-flight initialization is shared
// rather than re-run. On any failure the cached state is cleared and
// the next call starts clean.
func (m *SchemaManager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return nil
	}

	if _, err := m.db.ExecContext(ctx, "PRAGMA foreign_keys=ON;"); err != nil {
		return apperr.Wrap(apperr.ErrDatabase, "Initialize", "schema", err)
	}

	version, err := m.version(ctx)
	if err != nil {
		return apperr.Wrap(apperr.ErrDatabase, "Initialize", "schema", err)
	}

	switch {
	case version == 0:
		if err := m.createInitialSchema(ctx); err != nil {
			return apperr.Wrap(apperr.ErrMigration, "Initialize", "schema", err)
		}
	case version < CurrentSchemaVersion:
		if err := m.applyMigrations(ctx, version); err != nil {
			return apperr.Wrap(apperr.ErrMigration, "Initialize", "schema", err)
		}
	}

	healthy, err := m.VerifyHealth(ctx)
	if err != nil {
		return apperr.Wrap(apperr.ErrDatabase, "Initialize", "schema", err)
	}
	if !healthy {
		return apperr.New(apperr.ErrSchemaInconsistent, "Initialize", "schema")
	}

	m.initialized = true
	return nil
}

// Version returns the installed schema version, 0 when the version
// marker is absent.
func (m *SchemaManager) Version(ctx context.Context) (int, error) {
	return m.version(ctx)
}

func (m *SchemaManager) version(ctx context.Context) (int, error) {
	var exists bool
	err := m.db.QueryRowContext(ctx,
		`SELECT COUNT(*) > 0 FROM sqlite_master WHERE type='table' AND name='db_version'`).Scan(&exists)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, nil
	}

	var version int
	err = m.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM db_version`).Scan(&version)
	return version, err
}

// createInitialSchema creates all tables, seeds the default categories
// and writes the version marker inside one transaction.
func (m *SchemaManager) createInitialSchema(ctx context.Context) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(initialSchema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	for _, c := range models.DefaultCategories() {
		_, err := tx.Exec(`INSERT INTO categories (id, key, name, icon, color) VALUES (?, ?, ?, ?, ?)`,
			c.ID, c.Key, c.Name, c.Icon, c.Color)
		if err != nil {
			return fmt.Errorf("failed to seed category %s: %w", c.ID, err)
		}
	}

	if _, err := tx.Exec(`INSERT INTO db_version (version) VALUES (?)`, CurrentSchemaVersion); err != nil {
		return fmt.Errorf("failed to write version marker: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	logging.Info("schema created", logging.Fields{"version": CurrentSchemaVersion})
	return nil
}

// applyMigrations applies all pending migrations in ascending version
// order, each in its own transaction.
func (m *SchemaManager) applyMigrations(ctx context.Context, from int) error {
	for _, mig := range migrations {
		if mig.version <= from {
			continue
		}

		tx, err := m.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}

		if err := mig.apply(tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", mig.version, mig.description, err)
		}
		if _, err := tx.Exec(`UPDATE db_version SET version = ?`, mig.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to advance version marker to %d: %w", mig.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", mig.version, err)
		}

		logging.Info("migration applied", logging.Fields{
			"version":     mig.version,
			"description": mig.description,
		})
	}
	return nil
}

// VerifyHealth returns true only if all required tables exist.
func (m *SchemaManager) VerifyHealth(ctx context.Context) (bool, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type='table'`)
	if err != nil {
		return false, err
	}
	defer rows.Close()

	present := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return false, err
		}
		present[name] = true
	}
	if err := rows.Err(); err != nil {
		return false, err
	}

	for _, table := range requiredTables {
		if !present[table] {
			return false, nil
		}
	}
	return true, nil
}

// Reset drops all tables inside one transaction and clears the cached
// initialization state. Used to recover from a corrupted half-created
// schema and by the destructive clear-all operation.
func (m *SchemaManager) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Wrap(apperr.ErrDatabase, "Reset", "schema", err)
	}
	defer tx.Rollback()

	// Children before parents so foreign keys never dangle mid-drop.
	drops := []string{"core_memories", "videos", "categories", "custom_memory_types", "db_version"}
	for _, table := range drops {
		if _, err := tx.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", table)); err != nil {
			return apperr.Wrap(apperr.ErrDatabase, "Reset", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperr.Wrap(apperr.ErrDatabase, "Reset", "schema", err)
	}

	m.initialized = false
	logging.Warn("schema dropped")
	return nil
}
