package database

import (
	"embed"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/logging"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migration represents a database migration
type Migration struct {
	ID   int
	Name string
	SQL  string
}

// MigrationRecord represents a migration that has been applied
type MigrationRecord struct {
	ID        int
	Name      string
	AppliedAt time.Time
}

// initMigrations creates the bookkeeping table if it doesn't exist
func (d *Database) initMigrations() error {
	query := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := d.db.Exec(query)
	return err
}

// loadMigrations reads the embedded migration files.
// Expected filename format: 001_create_tables.sql
func loadMigrations() ([]Migration, error) {
	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded migrations: %v", err)
	}

	var migrations []Migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		parts := strings.SplitN(entry.Name(), "_", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("migration file has invalid name format: %s", entry.Name())
		}

		id := 0
		if _, err := fmt.Sscanf(parts[0], "%d", &id); err != nil {
			return nil, fmt.Errorf("migration file has invalid ID: %s", entry.Name())
		}

		content, err := migrationFiles.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %v", entry.Name(), err)
		}

		migrations = append(migrations, Migration{
			ID:   id,
			Name: strings.TrimSuffix(parts[1], ".sql"),
			SQL:  string(content),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].ID < migrations[j].ID
	})

	return migrations, nil
}

// appliedMigrations returns the migrations already recorded
func (d *Database) appliedMigrations() ([]MigrationRecord, error) {
	rows, err := d.db.Query("SELECT id, name, applied_at FROM schema_migrations ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %v", err)
	}
	defer rows.Close()

	var records []MigrationRecord
	for rows.Next() {
		var rec MigrationRecord
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %v", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// applyMigration applies and records a single migration in one transaction
func (d *Database) applyMigration(migration Migration) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}

	if _, err := tx.Exec(migration.SQL); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to apply migration %d_%s: %v", migration.ID, migration.Name, err)
	}

	if _, err := tx.Exec("INSERT INTO schema_migrations (id, name) VALUES (?, ?)", migration.ID, migration.Name); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to record migration %d_%s: %v", migration.ID, migration.Name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}

	return nil
}

// RunMigrations applies all pending embedded migrations in order
func (d *Database) RunMigrations() error {
	if err := d.initMigrations(); err != nil {
		return fmt.Errorf("failed to initialize migrations table: %v", err)
	}

	migrations, err := loadMigrations()
	if err != nil {
		return err
	}

	applied, err := d.appliedMigrations()
	if err != nil {
		return err
	}

	appliedMap := make(map[int]bool, len(applied))
	for _, rec := range applied {
		appliedMap[rec.ID] = true
	}

	for _, migration := range migrations {
		if appliedMap[migration.ID] {
			continue
		}
		if err := d.applyMigration(migration); err != nil {
			return err
		}
		logging.LogDatabaseEvent("migration_applied", "schema_migrations", map[string]interface{}{
			"id":   migration.ID,
			"name": migration.Name,
		})
	}

	return nil
}
