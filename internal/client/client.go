package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/kjstillabower/city-weather-service/internal/models"
	"github.com/kjstillabower/city-weather-service/internal/observability"
)

// Stage names one of the two upstream lookups.
type Stage string

const (
	StageGeocoding Stage = "geocoding"
	StageWeather   Stage = "weather"
)

const (
	DefaultGeocodingURL = "https://geocoding-api.open-meteo.com/v1/search"
	DefaultForecastURL  = "https://api.open-meteo.com/v1/forecast"
)

// WeatherClient is the upstream contract the resolver depends on.
type WeatherClient interface {
	Geocode(ctx context.Context, city string) (models.GeocodingResult, error)
	Forecast(ctx context.Context, latitude, longitude float64) (models.WeatherSnapshot, error)
}

var (
	ErrNotFound        = errors.New("not found")
	ErrRateLimited     = errors.New("rate limited")
	ErrUpstreamFailure = errors.New("upstream failure")
	ErrCircuitOpen     = errors.New("circuit breaker open")
)

// HTTPStatusError is returned when an upstream answers with a non-2xx status.
// It unwraps to ErrNotFound, ErrRateLimited or ErrUpstreamFailure.
type HTTPStatusError struct {
	Stage      Stage
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("%s: HTTP %d", e.Stage, e.StatusCode)
}

func (e *HTTPStatusError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case e.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return ErrUpstreamFailure
	}
}

// BreakerConfig configures the optional per-stage circuit breaker.
type BreakerConfig struct {
	Enabled bool
	// FailureThreshold is the number of consecutive failures that opens the breaker.
	FailureThreshold uint32
	// MaxRequests allowed through while half-open.
	MaxRequests uint32
	// Interval clears the closed-state counts; 0 never clears.
	Interval time.Duration
	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration
}

// Config holds the OpenMeteoClient settings.
type Config struct {
	GeocodingURL string
	ForecastURL  string
	// Timeout bounds each upstream call; 0 means no client-side timeout.
	Timeout    time.Duration
	Breaker    BreakerConfig
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// OpenMeteoClient calls the Open-Meteo geocoding and forecast APIs. It never
// retries: a single failed call fails the lookup.
type OpenMeteoClient struct {
	geocodingURL string
	forecastURL  string
	timeout      time.Duration
	client       *http.Client
	breakers     map[Stage]*gobreaker.CircuitBreaker
	logger       *zap.Logger
}

// NewOpenMeteoClient validates cfg and builds a client. Empty URLs fall back
// to the public Open-Meteo endpoints.
func NewOpenMeteoClient(cfg Config) (*OpenMeteoClient, error) {
	if cfg.GeocodingURL == "" {
		cfg.GeocodingURL = DefaultGeocodingURL
	}
	if cfg.ForecastURL == "" {
		cfg.ForecastURL = DefaultForecastURL
	}
	for _, raw := range []string{cfg.GeocodingURL, cfg.ForecastURL} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid API URL %q", raw)
		}
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &OpenMeteoClient{
		geocodingURL: cfg.GeocodingURL,
		forecastURL:  cfg.ForecastURL,
		timeout:      cfg.Timeout,
		client:       httpClient,
		logger:       logger,
	}
	if cfg.Breaker.Enabled {
		c.breakers = map[Stage]*gobreaker.CircuitBreaker{
			StageGeocoding: newBreaker(StageGeocoding, cfg.Breaker, logger),
			StageWeather:   newBreaker(StageWeather, cfg.Breaker, logger),
		}
	}
	return c, nil
}

func newBreaker(stage Stage, cfg BreakerConfig, logger *zap.Logger) *gobreaker.CircuitBreaker {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	observability.CircuitBreakerState.WithLabelValues(string(stage)).Set(0)
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openmeteo-" + string(stage),
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			observability.CircuitBreakerState.WithLabelValues(string(stage)).Set(breakerStateValue(to))
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// Geocode looks up candidate coordinates for city. The name is sent as given.
func (c *OpenMeteoClient) Geocode(ctx context.Context, city string) (models.GeocodingResult, error) {
	params := url.Values{}
	params.Set("name", city)
	params.Set("count", "10")
	params.Set("language", "en")
	params.Set("format", "json")

	var result models.GeocodingResult
	if err := c.get(ctx, StageGeocoding, c.geocodingURL, params, &result); err != nil {
		return models.GeocodingResult{}, err
	}
	return result, nil
}

// Forecast fetches current conditions for the coordinates.
func (c *OpenMeteoClient) Forecast(ctx context.Context, latitude, longitude float64) (models.WeatherSnapshot, error) {
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(latitude, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(longitude, 'f', -1, 64))
	params.Set("hourly", "temperature_2m")
	params.Set("current", "temperature_2m,precipitation,is_day,rain")
	params.Set("timezone", "auto")
	params.Set("forecast_days", "1")

	var snapshot models.WeatherSnapshot
	if err := c.get(ctx, StageWeather, c.forecastURL, params, &snapshot); err != nil {
		return models.WeatherSnapshot{}, err
	}
	return snapshot, nil
}

func (c *OpenMeteoClient) get(ctx context.Context, stage Stage, endpoint string, params url.Values, out interface{}) error {
	start := time.Now()
	label := string(stage)

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := buildRequest(ctx, endpoint, params)
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues(label, "error").Inc()
		return fmt.Errorf("build %s request: %w", stage, err)
	}

	resp, err := c.execute(stage, req)
	if err != nil {
		status := "error"
		var statusErr *HTTPStatusError
		switch {
		case errors.Is(err, ErrCircuitOpen):
			status = "circuit_open"
		case errors.As(err, &statusErr):
			status = statusLabel(statusErr.StatusCode)
		}
		observability.UpstreamCallsTotal.WithLabelValues(label, status).Inc()
		observability.UpstreamDuration.WithLabelValues(label, status).Observe(time.Since(start).Seconds())

		if statusErr != nil || errors.Is(err, ErrCircuitOpen) {
			return err
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return fmt.Errorf("%s request timeout: %w", stage, err)
		}
		return fmt.Errorf("%s http request failed: %w", stage, err)
	}
	defer resp.Body.Close()

	status := statusLabel(resp.StatusCode)
	observability.UpstreamCallsTotal.WithLabelValues(label, status).Inc()
	observability.UpstreamDuration.WithLabelValues(label, status).Observe(time.Since(start).Seconds())

	if err := handleErrorResponse(stage, resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parse %s response: %w", stage, err)
	}
	return nil
}

// execute performs req through the stage's breaker when one is configured.
// Transport failures, 429 and 5xx count against the breaker; other statuses
// are returned to the caller as a response.
func (c *OpenMeteoClient) execute(stage Stage, req *http.Request) (*http.Response, error) {
	call := func() (interface{}, error) {
		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			return nil, &HTTPStatusError{Stage: stage, StatusCode: resp.StatusCode}
		}
		return resp, nil
	}

	cb := c.breakers[stage]
	if cb == nil {
		result, err := call()
		if err != nil {
			return nil, err
		}
		return result.(*http.Response), nil
	}

	result, err := cb.Execute(call)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %s: %v", ErrCircuitOpen, stage, err)
		}
		return nil, err
	}
	return result.(*http.Response), nil
}

func buildRequest(ctx context.Context, endpoint string, params url.Values) (*http.Request, error) {
	baseURL, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}
	baseURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if corrID := extractCorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}
	return req, nil
}

func handleErrorResponse(stage Stage, resp *http.Response) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPStatusError{Stage: stage, StatusCode: resp.StatusCode}
	}
	return nil
}

func extractCorrelationID(ctx context.Context) string {
	if corrIDVal := ctx.Value("correlation_id"); corrIDVal != nil {
		if corrID, ok := corrIDVal.(string); ok {
			return corrID
		}
	}
	return ""
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}

var _ WeatherClient = (*OpenMeteoClient)(nil)
