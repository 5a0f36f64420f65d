package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// KVRepository implements storage.Backend for SQLite
type KVRepository struct {
	db *DB
}

// NewKVRepository creates a new KVRepository
func NewKVRepository(db *DB) *KVRepository {
	return &KVRepository{db: db}
}

// Get returns the value stored under namespace/key
func (r *KVRepository) Get(ctx context.Context, namespace, key string) (string, bool, error) {
	query := `SELECT value FROM kv_store WHERE namespace = ? AND key = ?`

	var value string
	err := r.db.QueryRowContext(ctx, query, namespace, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get value: %w", err)
	}
	return value, true, nil
}

// Set inserts or replaces the value under namespace/key
func (r *KVRepository) Set(ctx context.Context, namespace, key, value string) error {
	query := `
		INSERT INTO kv_store (namespace, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(namespace, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, query, namespace, key, value, time.Now())
	if err != nil {
		if isBusy(err) {
			return fmt.Errorf("database busy: %w", err)
		}
		return fmt.Errorf("failed to set value: %w", err)
	}
	return nil
}

// Remove deletes namespace/key; removing an absent key is not an error
func (r *KVRepository) Remove(ctx context.Context, namespace, key string) error {
	query := `DELETE FROM kv_store WHERE namespace = ? AND key = ?`

	if _, err := r.db.ExecContext(ctx, query, namespace, key); err != nil {
		return fmt.Errorf("failed to remove value: %w", err)
	}
	return nil
}
