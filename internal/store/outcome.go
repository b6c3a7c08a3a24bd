package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Outcome kinds that count toward accuracy.
const (
	KindCorrect   = "correct"
	KindIncorrect = "incorrect"
)

// Outcome is the recorded result of one keystroke.
type Outcome struct {
	ID        string        `json:"id"`
	Key       string        `json:"key"`
	Mode      string        `json:"mode"`
	Kind      string        `json:"kind"`
	Expected  string        `json:"expected,omitempty"`
	Detected  string        `json:"detected,omitempty"`
	Distance  *float64      `json:"distance,omitempty"`
	Latency   time.Duration `json:"latency"`
	CreatedAt time.Time     `json:"created_at"`
}

// KeyStat aggregates the outcomes of one key.
type KeyStat struct {
	Key       string `json:"key"`
	Total     int    `json:"total"`
	Correct   int    `json:"correct"`
	Incorrect int    `json:"incorrect"`
}

// Accuracy is the share of judged keystrokes that used the right finger,
// or 0 when none were judged.
func (k KeyStat) Accuracy() float64 {
	judged := k.Correct + k.Incorrect
	if judged == 0 {
		return 0
	}
	return float64(k.Correct) / float64(judged)
}

// OutcomeRepository records and summarises keystroke outcomes.
type OutcomeRepository struct {
	db *sql.DB
}

// Outcomes returns the outcome repository for this store.
func (s *Store) Outcomes() *OutcomeRepository {
	return &OutcomeRepository{db: s.db}
}

// Create inserts o, assigning an id and timestamp when they are unset.
func (r *OutcomeRepository) Create(ctx context.Context, o *Outcome) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}

	var distance sql.NullFloat64
	if o.Distance != nil {
		distance = sql.NullFloat64{Float64: *o.Distance, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO outcomes (id, key, mode, kind, expected, detected, distance, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.Key, o.Mode, o.Kind, o.Expected, o.Detected, distance, o.Latency.Milliseconds(), o.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert outcome: %w", err)
	}
	return nil
}

// Recent returns up to limit outcomes, newest first. An empty key matches all keys.
func (r *OutcomeRepository) Recent(ctx context.Context, key string, limit int) ([]*Outcome, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, key, mode, kind, expected, detected, distance, latency_ms, created_at
		 FROM outcomes`
	args := []any{}
	if key != "" {
		query += ` WHERE key = ?`
		args = append(args, key)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var outcomes []*Outcome
	for rows.Next() {
		o := &Outcome{}
		var (
			distance  sql.NullFloat64
			latencyMS int64
		)
		if err := rows.Scan(&o.ID, &o.Key, &o.Mode, &o.Kind, &o.Expected, &o.Detected, &distance, &latencyMS, &o.CreatedAt); err != nil {
			return nil, err
		}
		if distance.Valid {
			d := distance.Float64
			o.Distance = &d
		}
		o.Latency = time.Duration(latencyMS) * time.Millisecond
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

// Summary returns per-key counts of inference outcomes since the given time,
// ordered by key. A zero since covers all history.
func (r *OutcomeRepository) Summary(ctx context.Context, since time.Time) ([]KeyStat, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT key,
			COUNT(*),
			SUM(CASE WHEN kind = ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN kind = ? THEN 1 ELSE 0 END)
		 FROM outcomes
		 WHERE mode = 'infer' AND created_at >= ?
		 GROUP BY key
		 ORDER BY key`,
		KindCorrect, KindIncorrect, since.UTC(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []KeyStat
	for rows.Next() {
		var k KeyStat
		if err := rows.Scan(&k.Key, &k.Total, &k.Correct, &k.Incorrect); err != nil {
			return nil, err
		}
		stats = append(stats, k)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return stats, nil
}

// Count returns the number of recorded outcomes.
func (r *OutcomeRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM outcomes`).Scan(&n)
	return n, err
}

// Prune deletes outcomes older than before and returns how many were removed.
func (r *OutcomeRepository) Prune(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM outcomes WHERE created_at < ?`, before.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
