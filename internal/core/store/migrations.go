package store

import (
	"fmt"
)

// runMigrations applies database migrations for existing databases
func (s *SQLite) runMigrations() error {
	// Migration 1: kv tables created by early builds lack updated_at
	if err := s.migration001AddUpdatedAt(); err != nil {
		return fmt.Errorf("migration 001: %w", err)
	}

	// Migration 2: index for listing keys by recency
	if err := s.migration002IndexUpdatedAt(); err != nil {
		return fmt.Errorf("migration 002: %w", err)
	}

	return nil
}

func (s *SQLite) applied(version int) (bool, error) {
	var count int
	err := s.conn.QueryRow(`SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&count)
	return count > 0, err
}

func (s *SQLite) markApplied(version int) error {
	_, err := s.conn.Exec(`INSERT OR IGNORE INTO schema_migrations (version) VALUES (?)`, version)
	return err
}

// migration001AddUpdatedAt adds the updated_at column if missing
func (s *SQLite) migration001AddUpdatedAt() error {
	done, err := s.applied(1)
	if err != nil || done {
		return err
	}

	var hasUpdatedAt bool
	err = s.conn.QueryRow(`
		SELECT COUNT(*) FROM pragma_table_info('kv')
		WHERE name='updated_at'
	`).Scan(&hasUpdatedAt)
	if err != nil {
		return err
	}

	if !hasUpdatedAt {
		// SQLite rejects non-constant defaults in ALTER TABLE
		if _, err := s.conn.Exec(`ALTER TABLE kv ADD COLUMN updated_at DATETIME`); err != nil {
			return fmt.Errorf("add updated_at column: %w", err)
		}
		if _, err := s.conn.Exec(`UPDATE kv SET updated_at = CURRENT_TIMESTAMP WHERE updated_at IS NULL`); err != nil {
			return fmt.Errorf("populate updated_at: %w", err)
		}
	}

	return s.markApplied(1)
}

// migration002IndexUpdatedAt creates the updated_at index
func (s *SQLite) migration002IndexUpdatedAt() error {
	done, err := s.applied(2)
	if err != nil || done {
		return err
	}

	if _, err := s.conn.Exec(`CREATE INDEX IF NOT EXISTS idx_kv_updated_at ON kv(updated_at)`); err != nil {
		return fmt.Errorf("create index: %w", err)
	}

	return s.markApplied(2)
}
