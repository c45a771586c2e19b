// Package cache is a read-through cache for third-party API responses,
// persisted in the api_cache table so it survives restarts.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/weastcoast/weastcoastbot/internal/apperrors"
	"github.com/weastcoast/weastcoastbot/internal/models"
)

// Store is the persistence the manager needs; *database.DB implements it
type Store interface {
	GetCacheEntry(ctx context.Context, cacheType models.CacheType, key string) (*models.APICacheEntry, error)
	SetCacheEntry(ctx context.Context, cacheType models.CacheType, key string, payload json.RawMessage, ttl time.Duration) error
	InvalidateCache(ctx context.Context, cacheType models.CacheType, key string) error
}

// Default TTLs per cache type
var DefaultTTLs = map[models.CacheType]time.Duration{
	models.CacheTypeNBATeams:  24 * time.Hour,
	models.CacheTypeCoinList:  6 * time.Hour,
	models.CacheTypeOMDbTitle: 7 * 24 * time.Hour,
}

// Manager handles cache reads and writes
type Manager struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

// NewManager creates a new cache manager
func NewManager(store Store, logger *zap.Logger) *Manager {
	return &Manager{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Get decodes a valid cached payload into dst. It returns false on a miss,
// an expired entry, or a cache read failure. An entry that no longer decodes
// into dst is dropped.
func (m *Manager) Get(ctx context.Context, cacheType models.CacheType, key string, dst interface{}) bool {
	entry, err := m.store.GetCacheEntry(ctx, cacheType, key)
	if err != nil {
		if !apperrors.IsNotFound(err) {
			m.logger.Debug("cache check failed", zap.String("cache_type", string(cacheType)), zap.Error(err))
		}
		m.logger.Debug("cache miss", zap.String("cache_type", string(cacheType)), zap.String("key", key))
		return false
	}

	if !entry.ExpiresAt.After(m.now()) {
		m.logger.Debug("cache expired", zap.String("cache_type", string(cacheType)), zap.String("key", key))
		return false
	}

	if err := json.Unmarshal(entry.Payload, dst); err != nil {
		m.logger.Warn("cache payload undecodable", zap.String("cache_type", string(cacheType)), zap.Error(err))
		if err := m.Invalidate(ctx, cacheType, key); err != nil {
			m.logger.Warn("failed to invalidate cache", zap.String("cache_type", string(cacheType)), zap.Error(err))
		}
		return false
	}

	m.logger.Debug("cache hit", zap.String("cache_type", string(cacheType)), zap.String("key", key))
	return true
}

// Set stores value under the default TTL for cacheType
func (m *Manager) Set(ctx context.Context, cacheType models.CacheType, key string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache payload: %w", err)
	}

	ttl, ok := DefaultTTLs[cacheType]
	if !ok {
		ttl = time.Hour
	}

	if err := m.store.SetCacheEntry(ctx, cacheType, key, payload, ttl); err != nil {
		return err
	}

	m.logger.Debug("cache set",
		zap.String("cache_type", string(cacheType)),
		zap.String("key", key),
		zap.Duration("ttl", ttl),
	)
	return nil
}

// Invalidate drops a cached entry
func (m *Manager) Invalidate(ctx context.Context, cacheType models.CacheType, key string) error {
	if err := m.store.InvalidateCache(ctx, cacheType, key); err != nil {
		return err
	}
	m.logger.Debug("cache invalidated", zap.String("cache_type", string(cacheType)), zap.String("key", key))
	return nil
}

// Fetch returns the cached value for key or calls fetch and caches its
// result. A cache write failure is logged, not returned.
func Fetch[T any](ctx context.Context, m *Manager, cacheType models.CacheType, key string, fetch func(context.Context) (T, error)) (T, error) {
	var value T
	if m != nil && m.Get(ctx, cacheType, key, &value) {
		return value, nil
	}

	value, err := fetch(ctx)
	if err != nil {
		return value, err
	}

	if m != nil {
		if err := m.Set(ctx, cacheType, key, value); err != nil {
			m.logger.Warn("failed to write cache", zap.String("cache_type", string(cacheType)), zap.Error(err))
		}
	}
	return value, nil
}
