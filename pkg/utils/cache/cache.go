package cache

import (
	"context"
	"errors"
)

// based on github.com/kittpat1413/go-common/framework/cache/cache.go

var ErrCacheMiss = errors.New("cache miss")

// Cache is a keyed read-through cache. Get returns a loaded value or the error
// of the load. Errors are only kept if the implementation is told to do so.
type Cache[K comparable, V any] interface {
	Get(ctx context.Context, key K) (*V, error)
	// Set stores value for key, replacing a cached value or cached error
	Set(ctx context.Context, key K, value *V)
	Invalidate(ctx context.Context, key K)
	InvalidateAll(ctx context.Context)
}
