package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// KeyPosition is where a key sits in the camera image, in pixels.
type KeyPosition struct {
	Key       string    `json:"key"`
	X         int       `json:"x"`
	Y         int       `json:"y"`
	UpdatedAt time.Time `json:"updated_at"`
}

// KeyPositionRepository stores calibrated key positions.
type KeyPositionRepository struct {
	db *sql.DB
}

// KeyPositions returns the key position repository for this store.
func (s *Store) KeyPositions() *KeyPositionRepository {
	return &KeyPositionRepository{db: s.db}
}

// Set records the position of key, replacing any previous calibration.
func (r *KeyPositionRepository) Set(ctx context.Context, key string, x, y int) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO key_positions (key, x, y, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET x = excluded.x, y = excluded.y, updated_at = excluded.updated_at`,
		key, x, y, time.Now().UTC(),
	)
	return err
}

// Get returns the calibrated position of key, or ErrNotFound.
func (r *KeyPositionRepository) Get(ctx context.Context, key string) (*KeyPosition, error) {
	p := &KeyPosition{}
	err := r.db.QueryRowContext(ctx,
		`SELECT key, x, y, updated_at FROM key_positions WHERE key = ?`, key,
	).Scan(&p.Key, &p.X, &p.Y, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// List returns every calibrated key ordered by key.
func (r *KeyPositionRepository) List(ctx context.Context) ([]*KeyPosition, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, x, y, updated_at FROM key_positions ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []*KeyPosition
	for rows.Next() {
		p := &KeyPosition{}
		if err := rows.Scan(&p.Key, &p.X, &p.Y, &p.UpdatedAt); err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return positions, nil
}

// ReplaceAll swaps the whole calibration for positions in one transaction.
func (r *KeyPositionRepository) ReplaceAll(ctx context.Context, positions []KeyPosition) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM key_positions`); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO key_positions (key, x, y, updated_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, p := range positions {
		if _, err := stmt.ExecContext(ctx, p.Key, p.X, p.Y, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Delete removes the calibration of key.
func (r *KeyPositionRepository) Delete(ctx context.Context, key string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM key_positions WHERE key = ?`, key)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
