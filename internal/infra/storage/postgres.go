// Package storage - postgres.go
// PostgreSQL implementation of SaveStore for shared deployments.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// OpenPostgres connects to databaseURL and creates the saves table.
func OpenPostgres(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	if err := createSchemas(db, postgresSchemas); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schemas: %w", err)
	}
	return db, nil
}

var postgresSchemas = []string{
	`CREATE TABLE IF NOT EXISTS saves (
		save_key TEXT PRIMARY KEY,
		blob JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
}

// PostgresSaveStore implements SaveStore using PostgreSQL.
type PostgresSaveStore struct {
	db *sql.DB
}

// NewPostgresSaveStore creates a new PostgreSQL save store.
func NewPostgresSaveStore(db *sql.DB) *PostgresSaveStore {
	return &PostgresSaveStore{db: db}
}

// Load retrieves the blob under key.
func (r *PostgresSaveStore) Load(ctx context.Context, key string) ([]byte, error) {
	var blob []byte
	err := r.db.QueryRowContext(ctx, `SELECT blob FROM saves WHERE save_key = $1`, key).Scan(&blob)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load save: %w", err)
	}
	return blob, nil
}

// Save upserts the blob under key.
func (r *PostgresSaveStore) Save(ctx context.Context, key string, blob []byte) error {
	query := `
		INSERT INTO saves (save_key, blob, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (save_key) DO UPDATE SET
			blob = EXCLUDED.blob,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := r.db.ExecContext(ctx, query, key, string(blob), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save: %w", err)
	}
	return nil
}

// Clear deletes the blob under key.
func (r *PostgresSaveStore) Clear(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM saves WHERE save_key = $1`, key)
	return err
}

// Ensure PostgresSaveStore implements SaveStore
var _ SaveStore = (*PostgresSaveStore)(nil)
