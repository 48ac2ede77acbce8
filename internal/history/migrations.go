package history

import (
	"database/sql"
	"fmt"
)

// Migration is one schema change.
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.Tx) error
}

// allMigrations defines all migrations in order.
var allMigrations = []Migration{
	{Version: 1, Name: "initial_schema", Up: migration001InitialSchema},
	{Version: 2, Name: "add_outcomes_table", Up: migration002AddOutcomesTable},
}

// runMigrations applies pending migrations, each in its own transaction.
func (s *Store) runMigrations() error {
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	applied, err := s.appliedMigrations()
	if err != nil {
		return fmt.Errorf("reading applied migrations: %w", err)
	}

	for _, m := range allMigrations {
		if applied[m.Version] {
			continue
		}
		s.logger.Debug().Int("version", m.Version).Str("name", m.Name).Msg("running migration")

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration %d: %w", m.Version, err)
		}
		if err := m.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (version, name) VALUES (?, ?)`, m.Version, m.Name); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", m.Version, err)
		}
	}
	return nil
}

func (s *Store) ensureMigrationsTable() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`)
	return err
}

func (s *Store) appliedMigrations() (map[int]bool, error) {
	applied := make(map[int]bool)
	rows, err := s.db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

func execAll(tx *sql.Tx, queries []string) error {
	for _, q := range queries {
		if _, err := tx.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

func migration001InitialSchema(tx *sql.Tx) error {
	return execAll(tx, []string{
		`CREATE TABLE runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			wayex_file TEXT NOT NULL,
			ledger_file TEXT NOT NULL,
			revision TEXT NOT NULL,
			asset TEXT NOT NULL,
			account TEXT NOT NULL,
			min_days INTEGER NOT NULL,
			max_days INTEGER NOT NULL,
			tie_break TEXT NOT NULL,
			status TEXT NOT NULL,
			pool_size INTEGER NOT NULL,
			matched INTEGER NOT NULL DEFAULT 0,
			zero_amount INTEGER NOT NULL DEFAULT 0,
			date_mismatches INTEGER NOT NULL DEFAULT 0,
			unmatched INTEGER NOT NULL DEFAULT 0,
			unaccounted INTEGER NOT NULL DEFAULT 0,
			total TEXT NOT NULL,
			inflow TEXT NOT NULL,
			outflow TEXT NOT NULL
		)`,
		`CREATE INDEX idx_runs_started ON runs(started_at DESC)`,
	})
}

func migration002AddOutcomesTable(tx *sql.Tx) error {
	return execAll(tx, []string{
		`CREATE TABLE run_outcomes (
			run_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			kind TEXT NOT NULL,
			source_row INTEGER,
			occurred_at TEXT,
			description TEXT,
			amount TEXT,
			ledger_line INTEGER,
			ledger_date TEXT,
			ledger_description TEXT,
			ledger_amount TEXT,
			day_diff INTEGER,
			PRIMARY KEY (run_id, position),
			FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX idx_run_outcomes_kind ON run_outcomes(run_id, kind)`,
	})
}
