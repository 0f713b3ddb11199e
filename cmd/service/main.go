package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/city-weather-service/internal/agent"
	"github.com/kjstillabower/city-weather-service/internal/cache"
	"github.com/kjstillabower/city-weather-service/internal/client"
	"github.com/kjstillabower/city-weather-service/internal/config"
	httphandler "github.com/kjstillabower/city-weather-service/internal/http"
	"github.com/kjstillabower/city-weather-service/internal/observability"
	"github.com/kjstillabower/city-weather-service/internal/service"
)

const (
	initialWarmTimeout    = 30 * time.Second
	inFlightCheckInterval = 100 * time.Millisecond
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	weatherClient, err := client.NewOpenMeteoClient(client.Config{
		GeocodingURL: cfg.GeocodingAPIURL,
		ForecastURL:  cfg.ForecastAPIURL,
		Timeout:      cfg.UpstreamTimeout,
		Breaker: client.BreakerConfig{
			Enabled:          cfg.Breaker.Enabled,
			FailureThreshold: cfg.Breaker.FailureThreshold,
			MaxRequests:      cfg.Breaker.MaxRequests,
			Interval:         cfg.Breaker.Interval,
			Timeout:          cfg.Breaker.Timeout,
		},
		Logger: logger,
	})
	if err != nil {
		logger.Fatal("weather client", zap.Error(err))
	}
	if cfg.Breaker.Enabled {
		logger.Info("circuit breaker enabled", zap.Uint32("failure_threshold", cfg.Breaker.FailureThreshold), zap.Duration("timeout", cfg.Breaker.Timeout))
	}

	store, closer, err := openStore(cfg, logger)
	if err != nil {
		logger.Fatal("cache store", zap.String("backend", cfg.CacheBackend), zap.Error(err))
	}
	logger.Info("cache backend", zap.String("backend", cfg.CacheBackend))

	weatherService := service.NewWeatherService(weatherClient, store, cfg.CacheTTL, cfg.MaxCityLength, logger)
	endpoint := agent.NewEndpoint(agent.NewServer(weatherService, logger), logger)
	dispatcher := httphandler.NewDispatcher(httphandler.DefaultRoutes(), &httphandler.Env{
		Store:  store,
		Status: weatherService,
		Agent:  endpoint,
		Logger: logger,
	})

	if len(cfg.TrackedCities) > 0 {
		observability.SetTrackedCities(cfg.TrackedCities)
	}

	warmer := cache.NewCacheWarmer(weatherService, logger)
	if len(cfg.WarmCities) > 0 {
		warmCtx, warmCancel := context.WithTimeout(context.Background(), initialWarmTimeout)
		if err := warmer.Warm(warmCtx, cfg.WarmCities); err != nil {
			logger.Warn("cache warming failed", zap.Error(err))
		}
		warmCancel()
	}
	if err := warmer.Start(cfg.WarmCities, cfg.WarmInterval); err != nil {
		logger.Error("periodic cache warming not started", zap.Error(err))
	}

	tracker := httphandler.NewInFlightTracker()
	router := mux.NewRouter()
	router.Use(httphandler.CorrelationIDMiddleware(logger))
	router.Use(httphandler.MetricsMiddleware(tracker))
	router.Handle("/metrics", observability.MetricsHandler())
	routes := router.PathPrefix("/").Subrouter()
	routes.Use(httphandler.TimeoutMiddleware(cfg.RequestTimeout))
	routes.PathPrefix("/").Handler(dispatcher)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	warmer.Stop()

	logger.Info("waiting for in-flight requests", zap.Int64("count", tracker.Count()))
	if err := tracker.WaitForZero(shutdownCtx, inFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", tracker.Count()))
	}

	var closers []io.Closer
	if closer != nil {
		closers = append(closers, closer)
	}
	if err := observability.FlushTelemetry(context.Background(), logger, closers...); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// openStore builds the configured cache backend. The closer is nil for the
// in-memory store.
func openStore(cfg *config.Config, logger *zap.Logger) (cache.Store, io.Closer, error) {
	switch cfg.CacheBackend {
	case config.BackendMemcached:
		mc, err := cache.NewMemcachedStore(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns, logger)
		if err != nil {
			return nil, nil, err
		}
		return mc, mc, nil
	case config.BackendValkey:
		vc, err := cache.NewValkeyClient(cfg.ValkeyAddr)
		if err != nil {
			return nil, nil, err
		}
		vs := cache.NewValkeyStore(vc)
		return vs, vs, nil
	case config.BackendLevelDB:
		ls, err := cache.NewLevelDBStore(cfg.LevelDBPath, logger)
		if err != nil {
			return nil, nil, err
		}
		return ls, ls, nil
	case config.BackendInMemory:
		return cache.NewInMemoryStore(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}
