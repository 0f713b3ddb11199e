package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/city-weather-service/internal/cache"
)

const (
	storageTestKeyPrefix = "test-kv-"
	storageTestTTL       = 60 * time.Second

	statusErrorReason = "Error fetching KV data"
)

// InstanceInfo identifies the running resolver instance.
type InstanceInfo struct {
	ID           string  `json:"id"`
	CreatedAt    int64   `json:"createdAt"`
	CreatedAtISO string  `json:"createdAtISO"`
	Uptime       float64 `json:"uptime"` // seconds
}

// CacheInfo describes the freshness window and how many keys each stage holds.
type CacheInfo struct {
	TTLMs                 int64   `json:"ttlMs"`
	TTLMinutes            float64 `json:"ttlMinutes"`
	TTLSeconds            int64   `json:"ttlSeconds"`
	CachedCitiesCount     int     `json:"cachedCitiesCount"`
	CachedGeocodingsCount int     `json:"cachedGeocodingsCount"`
}

// CacheConfig is the reduced cache description carried by the error report.
type CacheConfig struct {
	TTLMs      int64   `json:"ttlMs"`
	TTLMinutes float64 `json:"ttlMinutes"`
}

// CacheKeys lists cached cities per stage, prefixes stripped.
type CacheKeys struct {
	Weather   []string `json:"weather"`
	Geocoding []string `json:"geocoding"`
}

// CacheDetail is one sampled weather entry.
type CacheDetail struct {
	Key           string          `json:"key"`
	Value         json.RawMessage `json:"value"`
	Metadata      cache.Metadata  `json:"metadata"`
	ExpirationTTL int64           `json:"expirationTtl,omitempty"`
}

// StorageTest is the result of the synthetic write/read round trip. Times are
// in milliseconds.
type StorageTest struct {
	Success   bool        `json:"success"`
	WriteTime int64       `json:"writeTime"`
	ReadTime  int64       `json:"readTime"`
	ReadValue interface{} `json:"readValue"`
	Error     string      `json:"error"`
}

// StatusReport is the diagnostic snapshot returned by Status. When Failed is
// set the report marshals to the error shape instead.
type StatusReport struct {
	InstanceInfo       InstanceInfo  `json:"instanceInfo"`
	CacheInfo          CacheInfo     `json:"cacheInfo"`
	CacheKeys          CacheKeys     `json:"cacheKeys"`
	CacheDetailsSample []CacheDetail `json:"cacheDetailsSample"`
	StorageTest        StorageTest   `json:"storageTest"`
	KVAvailable        bool          `json:"kvAvailable"`
	CurrentTime        int64         `json:"currentTime"`
	CurrentTimeISO     string        `json:"currentTimeISO"`

	Failed  bool   `json:"-"`
	Reason  string `json:"-"`
	Details string `json:"-"`
}

type statusErrorBody struct {
	Error        bool         `json:"error"`
	Reason       string       `json:"reason"`
	Details      string       `json:"details"`
	InstanceInfo InstanceInfo `json:"instanceInfo"`
	CacheConfig  CacheConfig  `json:"cacheConfig"`
	KVAvailable  bool         `json:"kvAvailable"`
}

// MarshalJSON writes either the full report or, when Failed, the error shape.
func (r StatusReport) MarshalJSON() ([]byte, error) {
	if r.Failed {
		return json.Marshal(statusErrorBody{
			Error:        true,
			Reason:       r.Reason,
			Details:      r.Details,
			InstanceInfo: r.InstanceInfo,
			CacheConfig:  CacheConfig{TTLMs: r.CacheInfo.TTLMs, TTLMinutes: r.CacheInfo.TTLMinutes},
			KVAvailable:  r.KVAvailable,
		})
	}
	type report StatusReport
	return json.Marshal(report(r))
}

// Status lists cached keys, samples the first weather entry and times a
// write/read of a throwaway key. It never returns an error: a failed listing or
// sample read yields a Failed report, and a failed storage test is recorded in
// StorageTest.Error. Cached weather and geocoding entries are only read.
func (s *WeatherService) Status(ctx context.Context) StatusReport {
	logger := s.loggerFor(ctx)
	now := time.Now()
	report := StatusReport{
		InstanceInfo: InstanceInfo{
			ID:           s.instanceID,
			CreatedAt:    s.createdAt.UnixMilli(),
			CreatedAtISO: isoMillis(s.createdAt),
			Uptime:       float64(now.UnixMilli()-s.createdAt.UnixMilli()) / 1000,
		},
		CacheInfo: CacheInfo{
			TTLMs:      s.ttl.Milliseconds(),
			TTLMinutes: float64(s.ttl.Milliseconds()) / 60000,
			TTLSeconds: int64(s.ttl / time.Second),
		},
		CacheKeys:          CacheKeys{Weather: []string{}, Geocoding: []string{}},
		CacheDetailsSample: []CacheDetail{},
		KVAvailable:        s.store != nil,
		CurrentTime:        now.UnixMilli(),
		CurrentTimeISO:     isoMillis(now),
	}

	if err := s.collectCacheState(ctx, &report, logger); err != nil {
		logger.Error("error fetching KV data", zap.Error(err))
		report.Failed = true
		report.Reason = statusErrorReason
		report.Details = err.Error()
		return report
	}
	report.StorageTest = s.storageTest(ctx, logger)
	return report
}

func (s *WeatherService) collectCacheState(ctx context.Context, report *StatusReport, logger *zap.Logger) error {
	weatherKeys, err := s.store.List(ctx, WeatherKeyPrefix)
	if err != nil {
		return fmt.Errorf("list %s: %w", WeatherKeyPrefix, err)
	}
	geocodingKeys, err := s.store.List(ctx, GeocodingKeyPrefix)
	if err != nil {
		return fmt.Errorf("list %s: %w", GeocodingKeyPrefix, err)
	}
	logger.Debug("KV keys listed", zap.Int("weatherKeys", len(weatherKeys)), zap.Int("geocodingKeys", len(geocodingKeys)))

	for _, k := range weatherKeys {
		report.CacheKeys.Weather = append(report.CacheKeys.Weather, strings.TrimPrefix(k, WeatherKeyPrefix))
	}
	for _, k := range geocodingKeys {
		report.CacheKeys.Geocoding = append(report.CacheKeys.Geocoding, strings.TrimPrefix(k, GeocodingKeyPrefix))
	}
	report.CacheInfo.CachedCitiesCount = len(weatherKeys)
	report.CacheInfo.CachedGeocodingsCount = len(geocodingKeys)

	if len(weatherKeys) == 0 {
		return nil
	}
	sampleKey := weatherKeys[0]
	value, _, err := s.store.Get(ctx, sampleKey)
	if err != nil {
		return fmt.Errorf("get %s: %w", sampleKey, err)
	}
	item, _, err := s.store.GetWithMetadata(ctx, sampleKey)
	if err != nil {
		return fmt.Errorf("get metadata %s: %w", sampleKey, err)
	}
	logger.Debug("sample cache data fetched", zap.String("sampleKey", sampleKey))
	report.CacheDetailsSample = append(report.CacheDetailsSample, CacheDetail{
		Key:           sampleKey,
		Value:         jsonValue(value),
		Metadata:      item.Metadata,
		ExpirationTTL: item.Metadata.ExpirationTTL,
	})
	return nil
}

func (s *WeatherService) storageTest(ctx context.Context, logger *zap.Logger) StorageTest {
	var result StorageTest
	stamp := time.Now().UnixMilli()
	testKey := fmt.Sprintf("%s%d", storageTestKeyPrefix, stamp)
	testValue := fmt.Sprintf("test-value-%d", stamp)

	writeStart := time.Now()
	if err := s.store.Put(ctx, testKey, []byte(testValue), storageTestTTL); err != nil {
		result.Error = err.Error()
		return result
	}
	result.WriteTime = time.Since(writeStart).Milliseconds()
	logger.Debug("test key written to KV", zap.String("testKey", testKey))

	readStart := time.Now()
	raw, ok, err := s.store.Get(ctx, testKey)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.ReadTime = time.Since(readStart).Milliseconds()
	logger.Debug("test key read from KV", zap.String("testKey", testKey))
	if ok {
		result.ReadValue = string(raw)
	}
	result.Success = ok && string(raw) == testValue
	return result
}

// jsonValue returns raw as-is when it is JSON, otherwise as a JSON string.
// A missing value (raced expiry) becomes null.
func jsonValue(raw []byte) json.RawMessage {
	if raw == nil {
		return json.RawMessage("null")
	}
	if json.Valid(raw) {
		return json.RawMessage(raw)
	}
	quoted, _ := json.Marshal(string(raw))
	return json.RawMessage(quoted)
}

func isoMillis(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
