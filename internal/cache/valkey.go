package cache

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/valkey-io/valkey-go"
)

const scanBatch = 100

// ValkeyStore implements Store on a Valkey/Redis-compatible server. Values
// expire natively (SET EX); List walks the keyspace with SCAN MATCH.
type ValkeyStore struct {
	client valkey.Client
}

// NewValkeyClient dials addr, which is either host:port or a redis:// URL.
func NewValkeyClient(addr string) (valkey.Client, error) {
	var opt valkey.ClientOption
	if strings.Contains(addr, "://") {
		parsed, err := valkey.ParseURL(addr)
		if err != nil {
			return nil, err
		}
		opt = parsed
	} else {
		opt = valkey.ClientOption{InitAddress: []string{addr}}
	}
	return valkey.NewClient(opt)
}

// NewValkeyStore constructs a new store backed by Valkey.
func NewValkeyStore(client valkey.Client) *ValkeyStore {
	return &ValkeyStore{client: client}
}

// Get implements Store.Get.
func (s *ValkeyStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	item, ok, err := s.GetWithMetadata(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	return item.Value, true, nil
}

// GetWithMetadata implements Store.GetWithMetadata.
func (s *ValkeyStore) GetWithMetadata(ctx context.Context, key string) (Item, bool, error) {
	raw, err := s.client.Do(ctx, s.client.B().Get().Key(key).Build()).AsBytes()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return Item{}, false, nil
		}
		return Item{}, false, err
	}
	rec, err := decodeRecord(raw)
	if err != nil {
		return Item{}, false, err
	}
	return Item{Key: key, Value: rec.Value, Metadata: rec.Metadata}, true, nil
}

// Put implements Store.Put.
func (s *ValkeyStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	rec := newRecord(value, ttl, time.Now())
	raw, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	builder := s.client.B().Set().Key(key).Value(string(raw))
	var cmd valkey.Completed
	if rec.Metadata.ExpirationTTL > 0 {
		cmd = builder.Ex(time.Duration(rec.Metadata.ExpirationTTL) * time.Second).Build()
	} else {
		cmd = builder.Build()
	}
	return s.client.Do(ctx, cmd).Error()
}

// List implements Store.List. SCAN may repeat keys, so results are de-duplicated.
func (s *ValkeyStore) List(ctx context.Context, prefix string) ([]string, error) {
	pattern := escapeGlob(prefix) + "*"
	seen := make(map[string]struct{})
	var cursor uint64
	for {
		cmd := s.client.B().Scan().Cursor(cursor).Match(pattern).Count(scanBatch).Build()
		entry, err := s.client.Do(ctx, cmd).AsScanEntry()
		if err != nil {
			return nil, err
		}
		for _, k := range entry.Elements {
			seen[k] = struct{}{}
		}
		cursor = entry.Cursor
		if cursor == 0 {
			break
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// escapeGlob escapes the characters SCAN MATCH treats as glob syntax.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Ping checks if the server is reachable.
func (s *ValkeyStore) Ping(ctx context.Context) error {
	return s.client.Do(ctx, s.client.B().Ping().Build()).Error()
}

// Close releases the client connections.
func (s *ValkeyStore) Close() error {
	s.client.Close()
	return nil
}

var _ Store = (*ValkeyStore)(nil)
