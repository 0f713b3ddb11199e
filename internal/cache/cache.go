package cache

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// Store is the key-value expiring store the resolver caches into.
// Get returns (nil, false, nil) on a miss. Put stores value with a native
// expiration (ttl <= 0 means no expiration). List returns live keys with the
// given prefix in lexical order.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	GetWithMetadata(ctx context.Context, key string) (Item, bool, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// Metadata is recorded alongside every value written through a Store.
type Metadata struct {
	ExpirationTTL int64 `json:"expirationTtl,omitempty"` // seconds
	WrittenAt     int64 `json:"writtenAt"`               // unix millis
}

// Item is a stored value together with its metadata.
type Item struct {
	Key      string
	Value    []byte
	Metadata Metadata
}

// ttlSeconds converts ttl to whole seconds, rounding up. Stores expire at
// second granularity; zero means no expiration.
func ttlSeconds(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return int64((ttl + time.Second - 1) / time.Second)
}

// InMemoryStore implements Store using an in-memory map with TTL-based expiration.
// Expired entries are removed on access. Safe for concurrent use.
type InMemoryStore struct {
	mu   sync.RWMutex
	data map[string]memoryEntry
}

type memoryEntry struct {
	value     []byte
	metadata  Metadata
	expiresAt time.Time // zero = never
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// NewInMemoryStore creates a new in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		data: make(map[string]memoryEntry),
	}
}

// Get returns a copy of the value for key if present and not expired.
func (s *InMemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	item, ok, err := s.GetWithMetadata(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	return item.Value, true, nil
}

// GetWithMetadata implements Store.GetWithMetadata.
func (s *InMemoryStore) GetWithMetadata(ctx context.Context, key string) (Item, bool, error) {
	if err := ctx.Err(); err != nil {
		return Item{}, false, err
	}
	s.mu.RLock()
	entry, ok := s.data[key]
	s.mu.RUnlock()
	if !ok {
		return Item{}, false, nil
	}
	if entry.expired(time.Now()) {
		s.mu.Lock()
		if cur, ok := s.data[key]; ok && cur.expired(time.Now()) {
			delete(s.data, key)
		}
		s.mu.Unlock()
		return Item{}, false, nil
	}
	return Item{Key: key, Value: append([]byte(nil), entry.value...), Metadata: entry.metadata}, true, nil
}

// Put stores value under key. The entry expires after ttl.
func (s *InMemoryStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := time.Now()
	entry := memoryEntry{
		value:    append([]byte(nil), value...),
		metadata: Metadata{ExpirationTTL: ttlSeconds(ttl), WrittenAt: now.UnixMilli()},
	}
	if ttl > 0 {
		entry.expiresAt = now.Add(ttl)
	}
	s.mu.Lock()
	s.data[key] = entry
	s.mu.Unlock()
	return nil
}

// List returns the live keys starting with prefix, sorted.
func (s *InMemoryStore) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := time.Now()
	s.mu.RLock()
	keys := make([]string, 0, len(s.data))
	for k, e := range s.data {
		if strings.HasPrefix(k, prefix) && !e.expired(now) {
			keys = append(keys, k)
		}
	}
	s.mu.RUnlock()
	sort.Strings(keys)
	return keys, nil
}

var _ Store = (*InMemoryStore)(nil)
