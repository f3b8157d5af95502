package database

import (
	"database/sql"
	"fmt"
)

// Migration is one versioned schema step.
type Migration struct {
	Version     string
	Description string
	SQL         string
}

// Built-in migrations, applied in order. Versions already recorded in
// schema_migrations are skipped, so applying is idempotent.
var migrations = []Migration{
	{
		Version:     "001",
		Description: "accounts, courses and registrations",
		SQL: `
			CREATE TABLE accounts (
				username      TEXT PRIMARY KEY,
				name          TEXT NOT NULL,
				password_hash TEXT NOT NULL,
				role          TEXT NOT NULL CHECK (role IN ('student', 'admin'))
			);

			CREATE TABLE courses (
				name     TEXT PRIMARY KEY,
				schedule TEXT NOT NULL,
				capacity INTEGER NOT NULL CHECK (capacity > 0)
			);

			CREATE TABLE registrations (
				student_username TEXT NOT NULL REFERENCES accounts(username),
				course_name      TEXT NOT NULL REFERENCES courses(name),
				created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				PRIMARY KEY (student_username, course_name)
			);

			CREATE INDEX idx_registrations_course ON registrations(course_name);
			CREATE INDEX idx_accounts_role ON accounts(role);
		`,
	},
}

// MigrationManager applies schema migrations and validates the result.
type MigrationManager struct {
	db *sql.DB
}

// NewMigrationManager creates a migration manager for the given database.
func NewMigrationManager(db *sql.DB) *MigrationManager {
	return &MigrationManager{db: db}
}

// ApplyMigrations applies all pending migrations. Each migration runs
// in its own transaction together with its version record, so a failed
// step leaves the schema at the previous version.
func (m *MigrationManager) ApplyMigrations() error {
	if err := m.createMigrationTable(); err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}

	applied, err := m.appliedVersions()
	if err != nil {
		return fmt.Errorf("failed to read applied migrations: %w", err)
	}

	for _, migration := range migrations {
		if applied[migration.Version] {
			continue
		}
		if err := m.applyMigration(migration); err != nil {
			return fmt.Errorf("failed to apply migration %s (%s): %w",
				migration.Version, migration.Description, err)
		}
	}

	return nil
}

// ValidateSchema verifies that every table the store depends on exists.
func (m *MigrationManager) ValidateSchema() error {
	required := []string{"accounts", "courses", "registrations", "schema_migrations"}
	for _, table := range required {
		exists, err := m.tableExists(table)
		if err != nil {
			return fmt.Errorf("failed to check table %s: %w", table, err)
		}
		if !exists {
			return fmt.Errorf("required table %s does not exist", table)
		}
	}
	return nil
}

func (m *MigrationManager) createMigrationTable() error {
	_, err := m.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version     TEXT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

func (m *MigrationManager) appliedVersions() (map[string]bool, error) {
	rows, err := m.db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func (m *MigrationManager) applyMigration(migration Migration) error {
	tx, err := m.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(migration.SQL); err != nil {
		return err
	}
	if _, err := tx.Exec(
		"INSERT INTO schema_migrations (version, description) VALUES (?, ?)",
		migration.Version, migration.Description,
	); err != nil {
		return err
	}

	return tx.Commit()
}

func (m *MigrationManager) tableExists(name string) (bool, error) {
	var count int
	err := m.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
