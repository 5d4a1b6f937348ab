package domain

import (
	"context"
	"time"
)

// CacheError represents an error originating from the cache.
type CacheError string

func (e CacheError) Error() string {
	return string(e)
}

// ErrCacheMiss is returned by Cache.Get for an absent key.
const ErrCacheMiss = CacheError("cache: key not found")

// Cache is the port for the optional skill read cache. Values are opaque strings;
// callers own encoding. The engine treats every failure as a miss.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	// Set stores value; a zero expiration keeps it until deleted.
	Set(ctx context.Context, key string, value string, expiration time.Duration) error
	// Delete is a no-op for absent keys.
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}
