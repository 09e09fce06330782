package respcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/transfercache/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Get(ctx context.Context, userID, key string) ([]byte, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM response_cache WHERE user_id = ? AND cache_key = ?`, userID, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get response_cache[%s/%s]: %w", userID, key, err)
	}
	if value == nil {
		value = []byte{}
	}
	return value, nil
}

func (r *SQLiteRepository) Set(ctx context.Context, userID, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO response_cache (user_id, cache_key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, cache_key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, userID, key, value, time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to set response_cache[%s/%s]: %w", userID, key, err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, userID, key string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM response_cache WHERE user_id = ? AND cache_key = ?`, userID, key)
	if err != nil {
		return fmt.Errorf("failed to delete response_cache[%s/%s]: %w", userID, key, err)
	}
	return nil
}

func (r *SQLiteRepository) Clear(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM response_cache WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("failed to clear response_cache[%s]: %w", userID, err)
	}
	return nil
}

func (r *SQLiteRepository) Keys(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT cache_key FROM response_cache WHERE user_id = ? ORDER BY cache_key`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list response_cache[%s]: %w", userID, err)
	}
	defer rows.Close()

	keys := make([]string, 0)
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("failed to scan response_cache row: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate response_cache rows: %w", err)
	}
	return keys, nil
}
