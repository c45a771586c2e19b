package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/weastcoast/weastcoastbot/internal/apperrors"
	"github.com/weastcoast/weastcoastbot/internal/models"
)

// SetCacheEntry creates or replaces a cached payload that expires after ttl
func (db *DB) SetCacheEntry(ctx context.Context, cacheType models.CacheType, key string, payload json.RawMessage, ttl time.Duration) error {
	now := time.Now().UTC()

	query := `
		INSERT INTO api_cache (cache_type, cache_key, payload, fetched_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (cache_type, cache_key) DO UPDATE
		SET payload = EXCLUDED.payload,
		    fetched_at = EXCLUDED.fetched_at,
		    expires_at = EXCLUDED.expires_at
	`

	_, err := db.ExecContext(ctx, query, cacheType, key, []byte(payload), now, now.Add(ttl))
	if err != nil {
		return fmt.Errorf("failed to set cache entry: %w", err)
	}

	return nil
}

// GetCacheEntry retrieves a cached payload, expired or not
func (db *DB) GetCacheEntry(ctx context.Context, cacheType models.CacheType, key string) (*models.APICacheEntry, error) {
	query := `
		SELECT cache_type, cache_key, payload, fetched_at, expires_at
		FROM api_cache
		WHERE cache_type = $1 AND cache_key = $2
	`

	entry := &models.APICacheEntry{}
	var payload []byte
	err := db.QueryRowContext(ctx, query, cacheType, key).Scan(
		&entry.CacheType,
		&entry.Key,
		&payload,
		&entry.FetchedAt,
		&entry.ExpiresAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("cache entry", "")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}

	entry.Payload = json.RawMessage(payload)
	return entry, nil
}

// InvalidateCache removes a cached payload
func (db *DB) InvalidateCache(ctx context.Context, cacheType models.CacheType, key string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM api_cache WHERE cache_type = $1 AND cache_key = $2`, cacheType, key)
	if err != nil {
		return fmt.Errorf("failed to invalidate cache: %w", err)
	}

	return nil
}

// CleanupExpiredCache removes expired cache entries
func (db *DB) CleanupExpiredCache(ctx context.Context) (int64, error) {
	result, err := db.ExecContext(ctx, `DELETE FROM api_cache WHERE expires_at < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired cache: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}
