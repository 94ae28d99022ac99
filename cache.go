package permit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto"
)

// ============================================================================
// DECISION CACHE
// ============================================================================
//
// Decisions and aggregated permission sets are memoized under composite
// keys. Invalidation is epoch-based: every key embeds a global and a
// per-user version counter, so bumping a counter orphans all affected
// entries in O(1) without enumerating keys. Orphaned entries age out via
// TTL inside the backing cache.

// Cache is the storage backend for memoized results. Implementations must
// be safe for unlimited concurrent readers and writers; last-write-wins on
// racing Sets is acceptable because results are idempotent for the same
// inputs.
type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any, ttl time.Duration)
	Close()
}

// RistrettoCache backs Cache with dgraph's ristretto.
type RistrettoCache struct {
	c *ristretto.Cache
}

// NewRistrettoCache builds a ristretto-backed cache. Zero arguments select
// defaults sized for a mid-size deployment.
func NewRistrettoCache(numCounters, maxCost, bufferItems int64) (*RistrettoCache, error) {
	if numCounters <= 0 {
		numCounters = 1e6
	}
	if maxCost <= 0 {
		maxCost = 1 << 26
	}
	if bufferItems <= 0 {
		bufferItems = 64
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: numCounters,
		MaxCost:     maxCost,
		BufferItems: bufferItems,
	})
	if err != nil {
		return nil, fmt.Errorf("ristretto cache: %w", err)
	}
	return &RistrettoCache{c: c}, nil
}

func (r *RistrettoCache) Get(key string) (any, bool) {
	return r.c.Get(key)
}

func (r *RistrettoCache) Set(key string, value any, ttl time.Duration) {
	r.c.SetWithTTL(key, value, 1, ttl)
}

func (r *RistrettoCache) Close() {
	r.c.Close()
}

// MapCache is a plain mutex-guarded map cache with per-entry expiry. It
// exists for tests and tiny deployments where ristretto's admission
// sampling gets in the way of determinism.
type MapCache struct {
	mu      sync.RWMutex
	entries map[string]mapEntry
}

type mapEntry struct {
	value     any
	expiresAt time.Time
}

func NewMapCache() *MapCache {
	return &MapCache{entries: make(map[string]mapEntry)}
}

func (m *MapCache) Get(key string) (any, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

func (m *MapCache) Set(key string, value any, ttl time.Duration) {
	m.mu.Lock()
	m.entries[key] = mapEntry{value: value, expiresAt: time.Now().Add(ttl)}
	m.mu.Unlock()
}

func (m *MapCache) Close() {}

// EpochSource hands out the version counters embedded in cache keys.
// Bumping a counter is the invalidation primitive: entries built under an
// older epoch can never be looked up again.
type EpochSource interface {
	Global(ctx context.Context) (uint64, error)
	User(ctx context.Context, userID string) (uint64, error)
	BumpGlobal(ctx context.Context) error
	BumpUser(ctx context.Context, userID string) error
}

// MemoryEpochSource keeps epochs in-process. Multi-instance deployments
// should use the Redis-backed source in the stores package so an epoch
// bump on one node invalidates every node's cache.
type MemoryEpochSource struct {
	global atomic.Uint64
	users  sync.Map // userID -> *atomic.Uint64
}

func NewMemoryEpochSource() *MemoryEpochSource {
	return &MemoryEpochSource{}
}

func (m *MemoryEpochSource) Global(context.Context) (uint64, error) {
	return m.global.Load(), nil
}

func (m *MemoryEpochSource) User(_ context.Context, userID string) (uint64, error) {
	return m.userCounter(userID).Load(), nil
}

func (m *MemoryEpochSource) BumpGlobal(context.Context) error {
	m.global.Add(1)
	return nil
}

func (m *MemoryEpochSource) BumpUser(_ context.Context, userID string) error {
	m.userCounter(userID).Add(1)
	return nil
}

func (m *MemoryEpochSource) userCounter(userID string) *atomic.Uint64 {
	if v, ok := m.users.Load(userID); ok {
		return v.(*atomic.Uint64)
	}
	v, _ := m.users.LoadOrStore(userID, &atomic.Uint64{})
	return v.(*atomic.Uint64)
}

// decisionKey builds the composite cache key for a final decision.
func decisionKey(global, user uint64, rc *Context) string {
	return fmt.Sprintf("d|%d|%d|%s|%s|%s|%s", global, user, rc.UserID, rc.ResourceType, rc.ResourceID, rc.Kind)
}

// aggregationKey builds the cache key for a user's aggregated permissions.
func aggregationKey(global, user uint64, userID string) string {
	return fmt.Sprintf("a|%d|%d|%s", global, user, userID)
}
