package cache

import "context"

// Cache defines the port interface for snapshot extraction caching.
// This interface follows the port-adapter pattern, allowing different
// cache implementations to be swapped without changing the extractor logic.
//
// The cache uses simple key-value storage (strings only) to ensure
// flexibility and avoid tight coupling to specific data structures.
// Implementations are responsible for serialization/deserialization.
//
// Archived captures never change, so a cached value stays valid for as
// long as the adapter keeps it.
type Cache interface {
	// Get retrieves a value from the cache by key.
	// Returns the cached value and true if found, or empty string and false if not found.
	// Adapter failures are reported as misses.
	Get(ctx context.Context, key string) (string, bool)

	// Put stores a key-value pair in the cache.
	// If the key already exists, the value is overwritten.
	Put(ctx context.Context, key string, value string)
}
