//go:build integration
// +build integration

package testhelpers

import (
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kjstillabower/city-weather-service/internal/cache"
)

// FakeCity is one city the fake upstream knows.
type FakeCity struct {
	Latitude  float64
	Longitude float64
	Timezone  string
}

// FakeOpenMeteo serves the geocoding and forecast endpoints from a fixed city
// table and counts calls per endpoint. Unknown cities geocode to no results.
type FakeOpenMeteo struct {
	Server         *httptest.Server
	GeocodingCalls atomic.Int32
	ForecastCalls  atomic.Int32
}

// GeocodingURL is the search endpoint of the fake.
func (f *FakeOpenMeteo) GeocodingURL() string { return f.Server.URL + "/v1/search" }

// ForecastURL is the forecast endpoint of the fake.
func (f *FakeOpenMeteo) ForecastURL() string { return f.Server.URL + "/v1/forecast" }

// NewFakeOpenMeteo starts the fake and closes it when t ends.
func NewFakeOpenMeteo(t *testing.T, cities map[string]FakeCity) *FakeOpenMeteo {
	t.Helper()
	f := &FakeOpenMeteo{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		q := r.URL.Query()
		switch r.URL.Path {
		case "/v1/search":
			f.GeocodingCalls.Add(1)
			city, ok := cities[q.Get("name")]
			if !ok {
				_, _ = w.Write([]byte(`{"generationtime_ms":0.2}`))
				return
			}
			writeJSON(w, map[string]interface{}{
				"results": []map[string]interface{}{
					{"name": q.Get("name"), "latitude": city.Latitude, "longitude": city.Longitude},
				},
			})
		case "/v1/forecast":
			f.ForecastCalls.Add(1)
			lat, lon := parseCoord(q.Get("latitude")), parseCoord(q.Get("longitude"))
			tz := "GMT"
			for _, c := range cities {
				if c.Latitude == lat && c.Longitude == lon {
					tz = c.Timezone
				}
			}
			writeJSON(w, map[string]interface{}{
				"latitude":  lat,
				"longitude": lon,
				"timezone":  tz,
				"current": map[string]interface{}{
					"temperature_2m": 14.2,
					"precipitation":  0,
					"is_day":         1,
					"rain":           0,
				},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(f.Server.Close)
	return f
}

// SetupIntegrationStore returns the store named by INTEGRATION_CACHE_BACKEND
// ("memcached", "valkey", "leveldb"; default in-memory). An unreachable
// memcached or valkey falls back to in-memory so the suite still runs.
func SetupIntegrationStore(t *testing.T) cache.Store {
	t.Helper()
	switch os.Getenv("INTEGRATION_CACHE_BACKEND") {
	case "memcached":
		addrs := envOr("MEMCACHED_ADDRS", "localhost:11211")
		mc, err := cache.NewMemcachedStore(addrs, 500*time.Millisecond, 2, nil)
		if err == nil && mc.Ping() == nil {
			t.Cleanup(func() { _ = mc.Close() })
			t.Logf("using memcached store at %s", addrs)
			return mc
		}
		t.Logf("memcached not available at %s, using in-memory store", addrs)
	case "valkey":
		addr := envOr("VALKEY_ADDR", "localhost:6379")
		vc, err := cache.NewValkeyClient(addr)
		if err == nil {
			vs := cache.NewValkeyStore(vc)
			t.Cleanup(func() { _ = vs.Close() })
			t.Logf("using valkey store at %s", addr)
			return vs
		}
		t.Logf("valkey not available at %s (%v), using in-memory store", addr, err)
	case "leveldb":
		ls, err := cache.NewLevelDBStore(t.TempDir(), nil)
		if err != nil {
			t.Fatalf("NewLevelDBStore() error = %v", err)
		}
		t.Cleanup(func() { _ = ls.Close() })
		return ls
	}
	return cache.NewInMemoryStore()
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
