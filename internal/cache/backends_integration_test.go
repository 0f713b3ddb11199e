//go:build integration
// +build integration

package cache

import (
	"context"
	"os"
	"testing"
	"time"
)

func storeRoundTrip(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	key := "weather:integration-" + time.Now().Format("150405.000000")
	if err := s.Put(ctx, key, []byte(`{"data":{}}`), time.Minute); err != nil {
		t.Skipf("Put failed (backend may not be running): %v", err)
	}
	got, ok, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok || string(got) != `{"data":{}}` {
		t.Fatalf("Get() = %s, %v", got, ok)
	}
	keys, err := s.List(ctx, "weather:integration-")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	found := false
	for _, k := range keys {
		if k == key {
			found = true
		}
	}
	if !found {
		t.Errorf("List() = %v, missing %s", keys, key)
	}
}

// TestMemcachedStore_Integration requires memcached on localhost:11211.
func TestMemcachedStore_Integration(t *testing.T) {
	s, err := NewMemcachedStore("localhost:11211", 500*time.Millisecond, 2, nil)
	if err != nil {
		t.Fatalf("NewMemcachedStore() error = %v", err)
	}
	defer s.Close()
	storeRoundTrip(t, s)
}

// TestValkeyStore_Integration requires Valkey at VALKEY_ADDR (default localhost:6379).
func TestValkeyStore_Integration(t *testing.T) {
	addr := os.Getenv("VALKEY_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client, err := NewValkeyClient(addr)
	if err != nil {
		t.Skipf("Valkey not available: %v", err)
	}
	s := NewValkeyStore(client)
	defer s.Close()
	storeRoundTrip(t, s)
}
