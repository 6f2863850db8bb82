// Package cache is the layered page store behind the calendar and document
// loaders. Federation pages barely change once a meet is over, so re-runs
// can stay off the source servers.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache is a byte store with per-entry TTL.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key derives the cache key for a URL. The version segment invalidates
// everything at once when the cached representation changes.
func Key(url string) string {
	hash := sha256.Sum256([]byte(url))
	return "heatsheet:v1:" + hex.EncodeToString(hash[:])
}
