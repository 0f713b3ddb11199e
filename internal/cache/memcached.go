package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"go.uber.org/zap"

	"github.com/kjstillabower/city-weather-service/internal/observability"
)

const (
	keyPrefix = "cw:"
	indexKey  = "cw:__index"

	// maxRelativeExp is the largest relative expiration memcached accepts (30 days).
	maxRelativeExp = 30 * 24 * 60 * 60

	maxIndexAttempts = 5
	indexBackoff     = 2 * time.Millisecond
)

var errIndexContention = errors.New("memcached: key index update contention")

// memcacheClient is the subset of *memcache.Client the store uses.
type memcacheClient interface {
	Get(key string) (*memcache.Item, error)
	Set(item *memcache.Item) error
	Add(item *memcache.Item) error
	CompareAndSwap(item *memcache.Item) error
	Ping() error
	Close() error
}

// MemcachedStore implements Store using memcached. Memcached cannot enumerate
// keys, so every Put also records the key in a CAS-maintained index item
// that List reads back. The index is best-effort: a Put whose value was stored
// succeeds even when the index update loses every CAS round, and the key is
// simply absent from List until a later Put re-indexes it.
type MemcachedStore struct {
	client memcacheClient
	logger *zap.Logger
}

// NewMemcachedStore creates a MemcachedStore. addrs is a comma-separated list
// (e.g. "localhost:11211" or "host1:11211,host2:11211"). timeout and maxIdleConns
// configure the client; both use package defaults if zero.
func NewMemcachedStore(addrs string, timeout time.Duration, maxIdleConns int, logger *zap.Logger) (*MemcachedStore, error) {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	return newMemcachedStore(client, logger), nil
}

func newMemcachedStore(client memcacheClient, logger *zap.Logger) *MemcachedStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemcachedStore{client: client, logger: logger}
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

// key maps a logical key onto a memcached-safe key. City names may contain
// spaces and exceed memcached's 250 byte limit.
func (c *MemcachedStore) key(k string) string {
	sum := sha1.Sum([]byte(k))
	return keyPrefix + hex.EncodeToString(sum[:])
}

// Get implements Store.Get.
func (c *MemcachedStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	item, ok, err := c.GetWithMetadata(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	return item.Value, true, nil
}

// GetWithMetadata implements Store.GetWithMetadata. Returns false, nil on cache miss.
func (c *MemcachedStore) GetWithMetadata(ctx context.Context, key string) (Item, bool, error) {
	if ctx.Err() != nil {
		return Item{}, false, ctx.Err()
	}
	mi, err := c.client.Get(c.key(key))
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return Item{}, false, nil
		}
		return Item{}, false, err
	}
	rec, err := decodeRecord(mi.Value)
	if err != nil {
		return Item{}, false, err
	}
	if rec.expired(time.Now()) {
		return Item{}, false, nil
	}
	return Item{Key: key, Value: rec.Value, Metadata: rec.Metadata}, true, nil
}

// Put implements Store.Put.
func (c *MemcachedStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	rec := newRecord(value, ttl, time.Now())
	raw, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	expSec := int32(rec.Metadata.ExpirationTTL)
	if expSec < 0 || expSec > maxRelativeExp {
		expSec = maxRelativeExp
	}
	if err := c.client.Set(&memcache.Item{
		Key:        c.key(key),
		Value:      raw,
		Expiration: expSec,
	}); err != nil {
		return err
	}
	if err := c.addToIndex(key, rec.ExpiresAt); err != nil {
		category := "unknown"
		if errors.Is(err, errIndexContention) {
			category = "contention"
		}
		observability.CacheErrorsTotal.WithLabelValues("index", category).Inc()
		c.logger.Warn("memcached key index update failed", zap.String("key", key), zap.Error(err))
	}
	return nil
}

// List implements Store.List using the key index.
func (c *MemcachedStore) List(ctx context.Context, prefix string) ([]string, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	idx, _, err := c.loadIndex()
	if err != nil {
		return nil, err
	}
	now := time.Now().UnixMilli()
	var keys []string
	for k, exp := range idx {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if exp != 0 && now > exp {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// keyIndex maps logical keys to their unix-millis expiry (0 = never).
type keyIndex map[string]int64

func (c *MemcachedStore) loadIndex() (keyIndex, *memcache.Item, error) {
	item, err := c.client.Get(indexKey)
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return keyIndex{}, nil, nil
		}
		return nil, nil, err
	}
	idx := keyIndex{}
	if err := json.Unmarshal(item.Value, &idx); err != nil {
		return nil, nil, err
	}
	return idx, item, nil
}

// merge prunes keys expired at now (unix millis) and records key.
func (idx keyIndex) merge(key string, expiresAt, now int64) {
	for k, exp := range idx {
		if exp != 0 && now > exp {
			delete(idx, k)
		}
	}
	idx[key] = expiresAt
}

// addToIndex records key with optimistic concurrency. Lost CAS rounds back off
// with jitter before retrying.
func (c *MemcachedStore) addToIndex(key string, expiresAt int64) error {
	for attempt := 0; attempt < maxIndexAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(rand.Int63n(int64(indexBackoff << attempt))))
		}
		idx, item, err := c.loadIndex()
		if err != nil {
			return err
		}
		idx.merge(key, expiresAt, time.Now().UnixMilli())
		raw, err := json.Marshal(idx)
		if err != nil {
			return err
		}
		if item == nil {
			err = c.client.Add(&memcache.Item{Key: indexKey, Value: raw})
		} else {
			item.Value = raw
			item.Expiration = 0
			err = c.client.CompareAndSwap(item)
		}
		if errors.Is(err, memcache.ErrNotStored) || errors.Is(err, memcache.ErrCASConflict) {
			continue
		}
		return err
	}
	return errIndexContention
}

// Ping checks if memcached is reachable.
func (c *MemcachedStore) Ping() error {
	return c.client.Ping()
}

// Close closes the memcached client connections. Call during shutdown.
func (c *MemcachedStore) Close() error {
	return c.client.Close()
}

var _ Store = (*MemcachedStore)(nil)
