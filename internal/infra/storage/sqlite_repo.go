package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLiteSaveStore implements SaveStore for SQLite.
type SQLiteSaveStore struct {
	db *sql.DB
}

func NewSQLiteSaveStore(db *sql.DB) *SQLiteSaveStore {
	return &SQLiteSaveStore{db: db}
}

func (r *SQLiteSaveStore) Load(ctx context.Context, key string) ([]byte, error) {
	var blob string
	err := r.db.QueryRowContext(ctx, `SELECT blob FROM saves WHERE save_key = ?`, key).Scan(&blob)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load save: %w", err)
	}
	return []byte(blob), nil
}

func (r *SQLiteSaveStore) Save(ctx context.Context, key string, blob []byte) error {
	query := `
		INSERT INTO saves (save_key, blob, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(save_key) DO UPDATE SET
			blob=excluded.blob,
			updated_at=excluded.updated_at
	`
	if _, err := r.db.ExecContext(ctx, query, key, string(blob), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save: %w", err)
	}
	return nil
}

func (r *SQLiteSaveStore) Clear(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM saves WHERE save_key = ?`, key); err != nil {
		return fmt.Errorf("failed to clear save: %w", err)
	}
	return nil
}

var _ SaveStore = (*SQLiteSaveStore)(nil)
