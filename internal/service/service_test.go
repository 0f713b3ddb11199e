package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kjstillabower/city-weather-service/internal/cache"
	"github.com/kjstillabower/city-weather-service/internal/client"
	"github.com/kjstillabower/city-weather-service/internal/models"
	"github.com/kjstillabower/city-weather-service/internal/validation"
)

// mockWeatherClient records every upstream call in order.
type mockWeatherClient struct {
	mu          sync.Mutex
	calls       []string
	geocoding   models.GeocodingResult
	geocodeErr  error
	snapshot    models.WeatherSnapshot
	forecastErr error
}

func (m *mockWeatherClient) Geocode(ctx context.Context, city string) (models.GeocodingResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, "geocode:"+city)
	m.mu.Unlock()
	return m.geocoding, m.geocodeErr
}

func (m *mockWeatherClient) Forecast(ctx context.Context, latitude, longitude float64) (models.WeatherSnapshot, error) {
	m.mu.Lock()
	m.calls = append(m.calls, "forecast")
	m.mu.Unlock()
	return m.snapshot, m.forecastErr
}

func (m *mockWeatherClient) callLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// recordingStore wraps an InMemoryStore, counting operations and optionally failing them.
type recordingStore struct {
	*cache.InMemoryStore
	mu      sync.Mutex
	gets    int
	puts    []string
	getErr  error
	putErr  error
	listErr error
}

func newRecordingStore() *recordingStore {
	return &recordingStore{InMemoryStore: cache.NewInMemoryStore()}
}

func (r *recordingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	r.mu.Lock()
	r.gets++
	r.mu.Unlock()
	if r.getErr != nil {
		return nil, false, r.getErr
	}
	return r.InMemoryStore.Get(ctx, key)
}

func (r *recordingStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	r.mu.Lock()
	r.puts = append(r.puts, key)
	r.mu.Unlock()
	if r.putErr != nil {
		return r.putErr
	}
	return r.InMemoryStore.Put(ctx, key, value, ttl)
}

func (r *recordingStore) List(ctx context.Context, prefix string) ([]string, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.InMemoryStore.List(ctx, prefix)
}

var (
	madridGeo = models.GeocodingResult{Results: []models.GeocodingLocation{
		{Latitude: 40.4165, Longitude: -3.70256, Name: "Madrid"},
		{Latitude: 34.0, Longitude: -118.0, Name: "Madrid (elsewhere)"},
	}}
	madridSnapshot = models.WeatherSnapshot{
		Latitude:  40.42,
		Longitude: -3.7,
		Timezone:  "Europe/Madrid",
		Current:   models.CurrentConditions{Temperature2m: 21.5, IsDay: 1},
	}
)

func putEntry[T any](t *testing.T, s cache.Store, key string, data T, timestamp int64) {
	t.Helper()
	raw, err := json.Marshal(models.CacheEntry[T]{Data: data, Timestamp: timestamp})
	if err != nil {
		t.Fatalf("marshal entry: %v", err)
	}
	if err := s.Put(context.Background(), key, raw, time.Hour); err != nil {
		t.Fatalf("put entry: %v", err)
	}
}

func readEntry[T any](t *testing.T, s cache.Store, key string) (models.CacheEntry[T], bool) {
	t.Helper()
	raw, ok, err := s.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("get %s: %v", key, err)
	}
	var entry models.CacheEntry[T]
	if ok {
		if err := json.Unmarshal(raw, &entry); err != nil {
			t.Fatalf("unmarshal %s: %v", key, err)
		}
	}
	return entry, ok
}

// TestWeatherService_ResolveWeather_CacheHitSkipsNetwork verifies that a fresh
// weather entry is returned with zero upstream calls and zero writes.
func TestWeatherService_ResolveWeather_CacheHitSkipsNetwork(t *testing.T) {
	store := newRecordingStore()
	putEntry(t, store.InMemoryStore, "weather:Madrid", madridSnapshot, time.Now().UnixMilli())
	mc := &mockWeatherClient{}
	svc := NewWeatherService(mc, store, time.Minute, 100, nil)

	got, err := svc.ResolveWeather(context.Background(), "Madrid")
	if err != nil {
		t.Fatalf("ResolveWeather() error = %v", err)
	}
	if got != madridSnapshot {
		t.Errorf("ResolveWeather() = %+v, want %+v", got, madridSnapshot)
	}
	if calls := mc.callLog(); len(calls) != 0 {
		t.Errorf("upstream calls = %v, want none", calls)
	}
	if len(store.puts) != 0 {
		t.Errorf("store writes = %v, want none", store.puts)
	}
}

// TestWeatherService_ResolveWeather_MissFetchesBothStages verifies the cold path:
// geocoding then forecast, one write per stage, first geocoding result used.
func TestWeatherService_ResolveWeather_MissFetchesBothStages(t *testing.T) {
	store := newRecordingStore()
	mc := &mockWeatherClient{geocoding: madridGeo, snapshot: madridSnapshot}
	svc := NewWeatherService(mc, store, time.Minute, 100, nil)

	before := time.Now().UnixMilli()
	got, err := svc.ResolveWeather(context.Background(), "Madrid")
	if err != nil {
		t.Fatalf("ResolveWeather() error = %v", err)
	}
	if got != madridSnapshot {
		t.Errorf("ResolveWeather() = %+v", got)
	}
	calls := mc.callLog()
	if len(calls) != 2 || calls[0] != "geocode:Madrid" || calls[1] != "forecast" {
		t.Errorf("upstream calls = %v, want [geocode:Madrid forecast]", calls)
	}
	if len(store.puts) != 2 || store.puts[0] != "geocoding:Madrid" || store.puts[1] != "weather:Madrid" {
		t.Errorf("store writes = %v, want [geocoding:Madrid weather:Madrid]", store.puts)
	}
	entry, ok := readEntry[models.WeatherSnapshot](t, store.InMemoryStore, "weather:Madrid")
	if !ok || entry.Data != madridSnapshot || entry.Timestamp < before {
		t.Errorf("weather entry = %+v, ok = %v", entry, ok)
	}
	geo, ok := readEntry[models.GeocodingResult](t, store.InMemoryStore, "geocoding:Madrid")
	if !ok || len(geo.Data.Results) != 2 {
		t.Errorf("geocoding entry = %+v, ok = %v", geo, ok)
	}
}

// TestWeatherService_ResolveWeather_ExpiryTriggersRefetch verifies that an entry
// one millisecond past the TTL is a miss and is overwritten.
func TestWeatherService_ResolveWeather_ExpiryTriggersRefetch(t *testing.T) {
	store := newRecordingStore()
	ttl := time.Minute
	stale := models.WeatherSnapshot{Timezone: "stale"}
	staleTS := time.Now().Add(-ttl - time.Millisecond).UnixMilli()
	putEntry(t, store.InMemoryStore, "weather:Madrid", stale, staleTS)
	putEntry(t, store.InMemoryStore, "geocoding:Madrid", madridGeo, staleTS)
	mc := &mockWeatherClient{geocoding: madridGeo, snapshot: madridSnapshot}
	svc := NewWeatherService(mc, store, ttl, 100, nil)

	got, err := svc.ResolveWeather(context.Background(), "Madrid")
	if err != nil {
		t.Fatalf("ResolveWeather() error = %v", err)
	}
	if got != madridSnapshot {
		t.Errorf("ResolveWeather() = %+v, want fresh snapshot", got)
	}
	if calls := mc.callLog(); len(calls) != 2 {
		t.Errorf("upstream calls = %v, want geocode and forecast", calls)
	}
	entry, _ := readEntry[models.WeatherSnapshot](t, store.InMemoryStore, "weather:Madrid")
	if entry.Data != madridSnapshot || entry.Timestamp <= staleTS {
		t.Errorf("weather entry not overwritten: %+v", entry)
	}
}

// TestWeatherService_Fresh_Boundary verifies the freshness boundary: exactly TTL
// old is fresh, one millisecond more is stale.
func TestWeatherService_Fresh_Boundary(t *testing.T) {
	svc := NewWeatherService(&mockWeatherClient{}, cache.NewInMemoryStore(), time.Minute, 0, nil)
	now := time.UnixMilli(1_700_000_000_000)
	if !svc.fresh(now.UnixMilli()-60000, now) {
		t.Error("entry exactly TTL old should be fresh")
	}
	if svc.fresh(now.UnixMilli()-60001, now) {
		t.Error("entry TTL+1ms old should be stale")
	}
}

// TestWeatherService_ResolveWeather_EmptyCityFailsFast verifies that blank input
// fails with ErrEmptyInput before any store or network access.
func TestWeatherService_ResolveWeather_EmptyCityFailsFast(t *testing.T) {
	for _, city := range []string{"", "   "} {
		store := newRecordingStore()
		mc := &mockWeatherClient{}
		svc := NewWeatherService(mc, store, time.Minute, 100, nil)

		_, err := svc.ResolveWeather(context.Background(), city)
		if !errors.Is(err, ErrEmptyInput) {
			t.Fatalf("ResolveWeather(%q) error = %v, want ErrEmptyInput", city, err)
		}
		if store.gets != 0 || len(store.puts) != 0 {
			t.Errorf("store accessed: gets=%d puts=%v", store.gets, store.puts)
		}
		if calls := mc.callLog(); len(calls) != 0 {
			t.Errorf("upstream calls = %v, want none", calls)
		}
	}
}

func TestWeatherService_ResolveWeather_CityTooLong(t *testing.T) {
	svc := NewWeatherService(&mockWeatherClient{}, newRecordingStore(), time.Minute, 5, nil)
	_, err := svc.ResolveWeather(context.Background(), "Llanfairpwllgwyngyll")
	if !errors.Is(err, validation.ErrCityTooLong) {
		t.Errorf("error = %v, want ErrCityTooLong", err)
	}
}

// TestWeatherService_ResolveWeather_DependentStaging verifies that a warm weather
// entry for another city does not let a cold city skip geocoding.
func TestWeatherService_ResolveWeather_DependentStaging(t *testing.T) {
	store := newRecordingStore()
	putEntry(t, store.InMemoryStore, "weather:Paris", madridSnapshot, time.Now().UnixMilli())
	mc := &mockWeatherClient{geocoding: madridGeo, snapshot: madridSnapshot}
	svc := NewWeatherService(mc, store, time.Minute, 100, nil)

	if _, err := svc.ResolveWeather(context.Background(), "Madrid"); err != nil {
		t.Fatalf("ResolveWeather() error = %v", err)
	}
	calls := mc.callLog()
	if len(calls) != 2 || calls[0] != "geocode:Madrid" || calls[1] != "forecast" {
		t.Errorf("upstream calls = %v, want geocoding before forecast", calls)
	}
}

// TestWeatherService_ResolveWeather_GeocodingCacheHit verifies that a fresh
// geocoding entry is used and only the forecast is fetched.
func TestWeatherService_ResolveWeather_GeocodingCacheHit(t *testing.T) {
	store := newRecordingStore()
	putEntry(t, store.InMemoryStore, "geocoding:Madrid", madridGeo, time.Now().UnixMilli())
	mc := &mockWeatherClient{snapshot: madridSnapshot}
	svc := NewWeatherService(mc, store, time.Minute, 100, nil)

	if _, err := svc.ResolveWeather(context.Background(), "Madrid"); err != nil {
		t.Fatalf("ResolveWeather() error = %v", err)
	}
	if calls := mc.callLog(); len(calls) != 1 || calls[0] != "forecast" {
		t.Errorf("upstream calls = %v, want [forecast]", calls)
	}
	if len(store.puts) != 1 || store.puts[0] != "weather:Madrid" {
		t.Errorf("store writes = %v, want [weather:Madrid]", store.puts)
	}
}

// TestWeatherService_ResolveWeather_NoGeocodingResults verifies that an empty
// result set fails with a 404 geocoding UpstreamError and no forecast call.
func TestWeatherService_ResolveWeather_NoGeocodingResults(t *testing.T) {
	store := newRecordingStore()
	mc := &mockWeatherClient{geocoding: models.GeocodingResult{Results: []models.GeocodingLocation{}}}
	svc := NewWeatherService(mc, store, time.Minute, 100, nil)

	_, err := svc.ResolveWeather(context.Background(), "Atlantis")
	var upErr *UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("error = %v, want *UpstreamError", err)
	}
	if upErr.Stage != client.StageGeocoding || upErr.HTTPStatus != http.StatusNotFound {
		t.Errorf("UpstreamError = %+v, want geocoding/404", upErr)
	}
	if !errors.Is(err, ErrNoResults) {
		t.Errorf("errors.Is(err, ErrNoResults) = false")
	}
	if calls := mc.callLog(); len(calls) != 1 || calls[0] != "geocode:Atlantis" {
		t.Errorf("upstream calls = %v, want geocode only", calls)
	}
	if len(store.puts) != 0 {
		t.Errorf("store writes = %v, want none", store.puts)
	}
}

func TestWeatherService_ResolveWeather_UpstreamErrors(t *testing.T) {
	tests := []struct {
		name         string
		client       *mockWeatherClient
		wantStage    client.Stage
		wantStatus   int
		wantCategory client.ErrorCategory
	}{
		{
			name:         "geocoding status",
			client:       &mockWeatherClient{geocodeErr: &client.HTTPStatusError{Stage: client.StageGeocoding, StatusCode: 500}},
			wantStage:    client.StageGeocoding,
			wantStatus:   500,
			wantCategory: client.ErrorCategoryUpstream5xx,
		},
		{
			name:         "geocoding transport",
			client:       &mockWeatherClient{geocodeErr: errors.New("geocoding http request failed: connection refused")},
			wantStage:    client.StageGeocoding,
			wantStatus:   http.StatusBadGateway,
			wantCategory: client.ErrorCategoryNetwork,
		},
		{
			name:         "forecast status",
			client:       &mockWeatherClient{geocoding: madridGeo, forecastErr: &client.HTTPStatusError{Stage: client.StageWeather, StatusCode: 400}},
			wantStage:    client.StageWeather,
			wantStatus:   400,
			wantCategory: client.ErrorCategoryUpstream4xx,
		},
		{
			name:         "forecast breaker open",
			client:       &mockWeatherClient{geocoding: madridGeo, forecastErr: client.ErrCircuitOpen},
			wantStage:    client.StageWeather,
			wantStatus:   http.StatusServiceUnavailable,
			wantCategory: client.ErrorCategoryCircuitOpen,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newRecordingStore()
			svc := NewWeatherService(tt.client, store, time.Minute, 100, nil)

			_, err := svc.ResolveWeather(context.Background(), "Madrid")
			var upErr *UpstreamError
			if !errors.As(err, &upErr) {
				t.Fatalf("error = %v, want *UpstreamError", err)
			}
			if upErr.Stage != tt.wantStage || upErr.HTTPStatus != tt.wantStatus {
				t.Errorf("UpstreamError = %+v, want %s/%d", upErr, tt.wantStage, tt.wantStatus)
			}
			if upErr.Category != tt.wantCategory {
				t.Errorf("Category = %q, want %q", upErr.Category, tt.wantCategory)
			}
			if _, ok, _ := store.InMemoryStore.Get(context.Background(), "weather:Madrid"); ok {
				t.Error("weather entry written despite failure")
			}
		})
	}
}

// TestWeatherService_ResolveWeather_LogsUpstreamCategory verifies upstream
// failures are logged with the client's error category.
func TestWeatherService_ResolveWeather_LogsUpstreamCategory(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	mc := &mockWeatherClient{geocodeErr: &client.HTTPStatusError{Stage: client.StageGeocoding, StatusCode: 429}}
	svc := NewWeatherService(mc, newRecordingStore(), time.Minute, 100, zap.New(core))

	_, _ = svc.ResolveWeather(context.Background(), "Madrid")

	entries := logs.FilterMessage("geocoding upstream failed").All()
	if len(entries) != 1 {
		t.Fatalf("geocoding upstream failed logs = %d, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["category"]; got != string(client.ErrorCategoryRateLimited) {
		t.Errorf("category = %v, want %s", got, client.ErrorCategoryRateLimited)
	}
}

// TestWeatherService_ResolveWeather_CaseSensitiveKeys verifies that keys are
// built from the raw city: repeated lookups reuse one key and case variants
// are distinct entries.
func TestWeatherService_ResolveWeather_CaseSensitiveKeys(t *testing.T) {
	store := newRecordingStore()
	mc := &mockWeatherClient{geocoding: madridGeo, snapshot: madridSnapshot}
	svc := NewWeatherService(mc, store, time.Minute, 100, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := svc.ResolveWeather(ctx, "Madrid"); err != nil {
			t.Fatalf("ResolveWeather(Madrid) error = %v", err)
		}
	}
	if _, err := svc.ResolveWeather(ctx, "madrid"); err != nil {
		t.Fatalf("ResolveWeather(madrid) error = %v", err)
	}

	weatherKeys, _ := store.List(ctx, WeatherKeyPrefix)
	geoKeys, _ := store.List(ctx, GeocodingKeyPrefix)
	if len(weatherKeys) != 2 || weatherKeys[0] != "weather:Madrid" || weatherKeys[1] != "weather:madrid" {
		t.Errorf("weather keys = %v", weatherKeys)
	}
	if len(geoKeys) != 2 || geoKeys[0] != "geocoding:Madrid" || geoKeys[1] != "geocoding:madrid" {
		t.Errorf("geocoding keys = %v", geoKeys)
	}
	if calls := mc.callLog(); len(calls) != 4 {
		t.Errorf("upstream calls = %v, want 4 (second Madrid lookup cached)", calls)
	}
}

func TestWeatherService_ResolveWeather_StoreErrors(t *testing.T) {
	t.Run("get", func(t *testing.T) {
		store := newRecordingStore()
		store.getErr = errors.New("connection reset")
		mc := &mockWeatherClient{}
		svc := NewWeatherService(mc, store, time.Minute, 100, nil)

		_, err := svc.ResolveWeather(context.Background(), "Madrid")
		var storeErr *StoreError
		if !errors.As(err, &storeErr) || storeErr.Op != "get" {
			t.Fatalf("error = %v, want get StoreError", err)
		}
		if calls := mc.callLog(); len(calls) != 0 {
			t.Errorf("upstream calls = %v, want none", calls)
		}
	})
	t.Run("put", func(t *testing.T) {
		store := newRecordingStore()
		store.putErr = errors.New("timeout")
		svc := NewWeatherService(&mockWeatherClient{geocoding: madridGeo, snapshot: madridSnapshot}, store, time.Minute, 100, nil)

		_, err := svc.ResolveWeather(context.Background(), "Madrid")
		var storeErr *StoreError
		if !errors.As(err, &storeErr) || storeErr.Op != "put" {
			t.Fatalf("error = %v, want put StoreError", err)
		}
	})
}

// TestWeatherService_ResolveWeather_UndecodableEntry verifies that garbage under
// a key is treated as a miss rather than a failure.
func TestWeatherService_ResolveWeather_UndecodableEntry(t *testing.T) {
	store := newRecordingStore()
	_ = store.InMemoryStore.Put(context.Background(), "weather:Madrid", []byte("not json"), time.Minute)
	mc := &mockWeatherClient{geocoding: madridGeo, snapshot: madridSnapshot}
	svc := NewWeatherService(mc, store, time.Minute, 100, nil)

	got, err := svc.ResolveWeather(context.Background(), "Madrid")
	if err != nil {
		t.Fatalf("ResolveWeather() error = %v", err)
	}
	if got != madridSnapshot {
		t.Errorf("ResolveWeather() = %+v", got)
	}
}

// TestWeatherService_ResolveWeather_LogsHitMissExpired verifies the log
// distinguishes a miss from an expired entry while behaving identically.
func TestWeatherService_ResolveWeather_LogsHitMissExpired(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	store := newRecordingStore()
	putEntry(t, store.InMemoryStore, "weather:Oslo", madridSnapshot, time.Now().Add(-2*time.Minute).UnixMilli())
	mc := &mockWeatherClient{geocoding: madridGeo, snapshot: madridSnapshot}
	svc := NewWeatherService(mc, store, time.Minute, 100, zap.New(core))
	ctx := context.Background()

	_, _ = svc.ResolveWeather(ctx, "Oslo")
	_, _ = svc.ResolveWeather(ctx, "Oslo")

	if n := logs.FilterMessage("cache expired").Len(); n != 1 {
		t.Errorf("cache expired logs = %d, want 1", n)
	}
	if n := logs.FilterMessage("cache miss").Len(); n != 1 {
		t.Errorf("cache miss logs = %d, want 1 (geocoding)", n)
	}
	if n := logs.FilterMessage("cache hit").Len(); n != 1 {
		t.Errorf("cache hit logs = %d, want 1", n)
	}
}

// TestWeatherService_ResolveWeather_ContextLogger verifies that a request-scoped
// logger in the context takes precedence over the injected logger.
func TestWeatherService_ResolveWeather_ContextLogger(t *testing.T) {
	injected, injectedLogs := observer.New(zapcore.InfoLevel)
	scoped, scopedLogs := observer.New(zapcore.InfoLevel)
	store := newRecordingStore()
	putEntry(t, store.InMemoryStore, "weather:Madrid", madridSnapshot, time.Now().UnixMilli())
	svc := NewWeatherService(&mockWeatherClient{}, store, time.Minute, 100, zap.New(injected))

	ctx := context.WithValue(context.Background(), "logger", zap.New(scoped))
	if _, err := svc.ResolveWeather(ctx, "Madrid"); err != nil {
		t.Fatalf("ResolveWeather() error = %v", err)
	}
	if scopedLogs.FilterMessage("cache hit").Len() != 1 {
		t.Error("request logger did not receive cache hit")
	}
	if injectedLogs.Len() != 0 {
		t.Errorf("injected logger received %d entries, want 0", injectedLogs.Len())
	}
}

// TestWeatherService_ResolveWeather_ConcurrentMisses verifies the accepted race:
// concurrent misses for one city all fetch and the key ends up populated.
func TestWeatherService_ResolveWeather_ConcurrentMisses(t *testing.T) {
	store := newRecordingStore()
	mc := &mockWeatherClient{geocoding: madridGeo, snapshot: madridSnapshot}
	svc := NewWeatherService(mc, store, time.Minute, 100, nil)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.ResolveWeather(context.Background(), "Madrid"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("ResolveWeather() error = %v", err)
	}
	if _, ok := readEntry[models.WeatherSnapshot](t, store.InMemoryStore, "weather:Madrid"); !ok {
		t.Error("weather:Madrid not populated")
	}
	if got := svc.stampedeTracker.InProgress("weather:Madrid"); got != 0 {
		t.Errorf("InProgress = %d, want 0 after all resolutions", got)
	}
}

func TestNewWeatherService_DefaultTTL(t *testing.T) {
	svc := NewWeatherService(&mockWeatherClient{}, cache.NewInMemoryStore(), 0, 0, nil)
	if svc.ttl != DefaultTTL {
		t.Errorf("ttl = %v, want %v", svc.ttl, DefaultTTL)
	}
	if svc.instanceID == "" {
		t.Error("instanceID is empty")
	}
}

func TestCategorizeCacheError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "unknown"},
		{context.DeadlineExceeded, "timeout"},
		{errors.New("i/o timeout"), "timeout"},
		{errors.New("connection refused"), "connection"},
		{errors.New("boom"), "unknown"},
	}
	for _, tt := range tests {
		if got := categorizeCacheError(tt.err); got != tt.want {
			t.Errorf("categorizeCacheError(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
