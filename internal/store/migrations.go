package store

// runMigrations creates the schema. Every statement is idempotent.
func (s *Store) runMigrations() error {
	migrations := []string{
		// One row per key-down that reached a decision.
		`CREATE TABLE IF NOT EXISTS outcomes (
			id TEXT PRIMARY KEY,
			key TEXT NOT NULL,
			mode TEXT NOT NULL CHECK(mode IN ('infer', 'calibrate')),
			kind TEXT NOT NULL,
			expected TEXT NOT NULL DEFAULT '',
			detected TEXT NOT NULL DEFAULT '',
			distance REAL,
			latency_ms INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		)`,

		// Calibrated pixel position of each key, used by the local classifier.
		`CREATE TABLE IF NOT EXISTS key_positions (
			key TEXT PRIMARY KEY,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			updated_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_outcomes_key ON outcomes(key)`,
		`CREATE INDEX IF NOT EXISTS idx_outcomes_created_at ON outcomes(created_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}
	return nil
}
