package models

import (
	"encoding/json"
	"time"
)

// CacheType namespaces cached third-party API responses
type CacheType string

const (
	CacheTypeNBATeams  CacheType = "nba_teams"
	CacheTypeCoinList  CacheType = "coin_list"
	CacheTypeOMDbTitle CacheType = "omdb_title"
)

// APICacheEntry is a cached JSON payload with a TTL
type APICacheEntry struct {
	CacheType CacheType       `json:"cache_type"`
	Key       string          `json:"key"`
	Payload   json.RawMessage `json:"payload"`
	FetchedAt time.Time       `json:"fetched_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// IsExpired checks if the cache entry has expired
func (c *APICacheEntry) IsExpired() bool {
	return time.Now().After(c.ExpiresAt)
}

// IsValid checks if the cache entry is still valid
func (c *APICacheEntry) IsValid() bool {
	return !c.IsExpired()
}
