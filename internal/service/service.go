package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kjstillabower/city-weather-service/internal/cache"
	"github.com/kjstillabower/city-weather-service/internal/client"
	"github.com/kjstillabower/city-weather-service/internal/models"
	"github.com/kjstillabower/city-weather-service/internal/observability"
	"github.com/kjstillabower/city-weather-service/internal/validation"
)

const (
	WeatherKeyPrefix   = "weather:"
	GeocodingKeyPrefix = "geocoding:"

	// DefaultTTL is the freshness window shared by both cache stages.
	DefaultTTL = 60 * time.Second
)

// WeatherService resolves a city to current weather through two cache-aside
// stages: city -> coordinates (geocoding) and coordinates -> snapshot (weather).
// Each stage has its own key and freshness check. Concurrent misses on the same
// city both fetch and both write; the last writer wins.
type WeatherService struct {
	client          client.WeatherClient
	store           cache.Store
	ttl             time.Duration
	maxCityLength   int
	logger          *zap.Logger
	stampedeTracker *stampedeTracker

	instanceID string
	createdAt  time.Time
}

// NewWeatherService creates a new WeatherService. ttl <= 0 uses DefaultTTL;
// maxCityLength <= 0 disables the length check.
func NewWeatherService(client client.WeatherClient, store cache.Store, ttl time.Duration, maxCityLength int, logger *zap.Logger) *WeatherService {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WeatherService{
		client:          client,
		store:           store,
		ttl:             ttl,
		maxCityLength:   maxCityLength,
		logger:          logger,
		stampedeTracker: newStampedeTracker(),
		instanceID:      uuid.New().String(),
		createdAt:       time.Now(),
	}
}

// loggerFor prefers the request-scoped logger (carrying the correlation id)
// over the injected one.
func (s *WeatherService) loggerFor(ctx context.Context) *zap.Logger {
	if v := ctx.Value("logger"); v != nil {
		if l, ok := v.(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return s.logger
}

// ResolveWeather returns current weather for city. The city is used verbatim
// in cache keys and in the geocoding query.
func (s *WeatherService) ResolveWeather(ctx context.Context, city string) (models.WeatherSnapshot, error) {
	city, err := validation.ValidateCity(city, s.maxCityLength)
	if err != nil {
		if errors.Is(err, validation.ErrCityEmpty) {
			return models.WeatherSnapshot{}, ErrEmptyInput
		}
		return models.WeatherSnapshot{}, err
	}
	start := time.Now()
	logger := s.loggerFor(ctx).With(zap.String("city", city))
	observability.RecordWeatherQuery(city)

	key := WeatherKeyPrefix + city
	cached, ok, err := readFresh[models.WeatherSnapshot](ctx, s, client.StageWeather, key, logger)
	if err != nil {
		return models.WeatherSnapshot{}, err
	}
	if ok {
		logger.Debug("weather served", zap.Bool("cached", true), zap.Duration("duration", time.Since(start)))
		return cached, nil
	}

	concurrentMisses := s.stampedeTracker.RecordMiss(key)
	defer s.stampedeTracker.RecordHit(key)
	if concurrentMisses > 1 {
		cityLabel := observability.MetricCityLabel(city)
		observability.CacheStampedeDetectedTotal.WithLabelValues(cityLabel).Inc()
		observability.CacheStampedeConcurrency.WithLabelValues(cityLabel).Observe(float64(concurrentMisses))
	}

	loc, err := s.resolveCoordinates(ctx, city, logger)
	if err != nil {
		return models.WeatherSnapshot{}, err
	}

	snapshot, err := s.client.Forecast(ctx, loc.Latitude, loc.Longitude)
	if err != nil {
		upErr := upstreamError(client.StageWeather, err)
		logger.Warn("weather upstream failed", zap.Int("status", upErr.HTTPStatus), zap.String("category", string(upErr.Category)), zap.Error(err))
		return models.WeatherSnapshot{}, upErr
	}
	if err := writeEntry(ctx, s, key, snapshot); err != nil {
		return models.WeatherSnapshot{}, err
	}
	logger.Info("weather data cached")
	logger.Debug("weather served", zap.Bool("cached", false), zap.Duration("duration", time.Since(start)))
	return snapshot, nil
}

// resolveCoordinates runs the geocoding stage. The first result is authoritative.
// An empty result set fails with a 404 UpstreamError and is not written.
func (s *WeatherService) resolveCoordinates(ctx context.Context, city string, logger *zap.Logger) (models.GeocodingLocation, error) {
	key := GeocodingKeyPrefix + city
	result, ok, err := readFresh[models.GeocodingResult](ctx, s, client.StageGeocoding, key, logger)
	if err != nil {
		return models.GeocodingLocation{}, err
	}
	if !ok {
		result, err = s.client.Geocode(ctx, city)
		if err != nil {
			upErr := upstreamError(client.StageGeocoding, err)
			logger.Warn("geocoding upstream failed", zap.Int("status", upErr.HTTPStatus), zap.String("category", string(upErr.Category)), zap.Error(err))
			return models.GeocodingLocation{}, upErr
		}
		if len(result.Results) > 0 {
			if err := writeEntry(ctx, s, key, result); err != nil {
				return models.GeocodingLocation{}, err
			}
			logger.Info("geocoding data cached")
		}
	}
	if len(result.Results) == 0 {
		logger.Warn("no geocoding results")
		return models.GeocodingLocation{}, &UpstreamError{Stage: client.StageGeocoding, HTTPStatus: http.StatusNotFound, Category: client.ErrorCategoryNotFound, Err: ErrNoResults}
	}
	return result.Results[0], nil
}

// readFresh returns the data cached under key when present and fresh. Stale and
// absent entries are both reported as a miss; only the log and metric differ.
// An entry that does not decode is treated as absent.
func readFresh[T any](ctx context.Context, s *WeatherService, stage client.Stage, key string, logger *zap.Logger) (T, bool, error) {
	var zero T
	label := string(stage)

	getStart := time.Now()
	raw, ok, err := s.store.Get(ctx, key)
	getDuration := time.Since(getStart).Seconds()
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("get", categorizeCacheError(err)).Inc()
		observability.CacheOperationDurationSeconds.WithLabelValues("get", "error").Observe(getDuration)
		logger.Error("cache get failed", zap.String("key", key), zap.Error(err))
		return zero, false, &StoreError{Op: "get", Key: key, Err: err}
	}
	observability.CacheOperationDurationSeconds.WithLabelValues("get", "success").Observe(getDuration)

	if !ok {
		observability.CacheMissesTotal.WithLabelValues(label, "miss").Inc()
		logger.Info("cache miss", zap.String("stage", label))
		logger.Debug("cache lookup", zap.String("key", key), zap.String("result", "miss"))
		return zero, false, nil
	}

	var entry models.CacheEntry[T]
	if err := json.Unmarshal(raw, &entry); err != nil || entry.Timestamp == 0 {
		observability.CacheMissesTotal.WithLabelValues(label, "miss").Inc()
		logger.Warn("discarding undecodable cache entry", zap.String("key", key), zap.Error(err))
		return zero, false, nil
	}

	if !s.fresh(entry.Timestamp, time.Now()) {
		observability.CacheMissesTotal.WithLabelValues(label, "expired").Inc()
		logger.Info("cache expired", zap.String("stage", label))
		logger.Debug("cache lookup", zap.String("key", key), zap.String("result", "expired"), zap.Int64("timestamp", entry.Timestamp))
		return zero, false, nil
	}

	observability.CacheHitsTotal.WithLabelValues(label).Inc()
	logger.Info("cache hit", zap.String("stage", label))
	logger.Debug("cache lookup", zap.String("key", key), zap.String("result", "hit"))
	return entry.Data, true, nil
}

// writeEntry stores data under key stamped with the current time. The store's
// own expiry is set to the TTL as a secondary eviction net.
func writeEntry[T any](ctx context.Context, s *WeatherService, key string, data T) error {
	raw, err := json.Marshal(models.CacheEntry[T]{Data: data, Timestamp: time.Now().UnixMilli()})
	if err != nil {
		return &StoreError{Op: "put", Key: key, Err: err}
	}
	setStart := time.Now()
	if err := s.store.Put(ctx, key, raw, s.ttl); err != nil {
		observability.CacheErrorsTotal.WithLabelValues("put", categorizeCacheError(err)).Inc()
		observability.CacheOperationDurationSeconds.WithLabelValues("put", "error").Observe(time.Since(setStart).Seconds())
		s.loggerFor(ctx).Error("cache put failed", zap.String("key", key), zap.Error(err))
		return &StoreError{Op: "put", Key: key, Err: err}
	}
	observability.CacheOperationDurationSeconds.WithLabelValues("put", "success").Observe(time.Since(setStart).Seconds())
	return nil
}

// fresh reports whether an entry written at timestamp (unix millis) is still
// within the TTL at now. The boundary itself is fresh.
func (s *WeatherService) fresh(timestamp int64, now time.Time) bool {
	return now.UnixMilli()-timestamp <= s.ttl.Milliseconds()
}

// categorizeCacheError returns a stable label for cache error metrics (timeout, connection, unknown).
func categorizeCacheError(err error) string {
	if err == nil {
		return "unknown"
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return "timeout"
	}
	errStr := err.Error()
	if strings.Contains(errStr, "timeout") {
		return "timeout"
	}
	if strings.Contains(errStr, "connection") || strings.Contains(errStr, "network") {
		return "connection"
	}
	return "unknown"
}
