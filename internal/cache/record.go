package cache

import (
	"encoding/json"
	"fmt"
	"time"
)

// record is the on-wire form used by backends that persist bytes
// (memcached, valkey, leveldb).
type record struct {
	Value     []byte   `json:"value"`
	Metadata  Metadata `json:"metadata"`
	ExpiresAt int64    `json:"expiresAt,omitempty"` // unix millis, 0 = never
}

func newRecord(value []byte, ttl time.Duration, now time.Time) record {
	r := record{
		Value:    value,
		Metadata: Metadata{ExpirationTTL: ttlSeconds(ttl), WrittenAt: now.UnixMilli()},
	}
	if ttl > 0 {
		r.ExpiresAt = now.Add(ttl).UnixMilli()
	}
	return r
}

func (r record) expired(now time.Time) bool {
	return r.ExpiresAt != 0 && now.UnixMilli() > r.ExpiresAt
}

func encodeRecord(r record) ([]byte, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return raw, nil
}

func decodeRecord(raw []byte) (record, error) {
	var r record
	if err := json.Unmarshal(raw, &r); err != nil {
		return record{}, fmt.Errorf("decode record: %w", err)
	}
	return r, nil
}
