package http

import (
	"context"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/kjstillabower/city-weather-service/internal/cache"
	"github.com/kjstillabower/city-weather-service/internal/service"
)

// StatusReporter produces the cache diagnostic report.
type StatusReporter interface {
	Status(ctx context.Context) service.StatusReport
}

// ToolEndpoint serves tool-protocol requests over HTTP.
type ToolEndpoint interface {
	Serve(ctx context.Context, w http.ResponseWriter, r *http.Request) error
}

// Env holds the process-wide bindings handlers are constructed with.
// Store is nil when no cache backend is configured.
type Env struct {
	Store  cache.Store
	Status StatusReporter
	Agent  ToolEndpoint
	Logger *zap.Logger
}

// RequestContext is built once per inbound request and not modified afterwards.
type RequestContext struct {
	Method  string
	Path    string
	Query   url.Values
	Request *http.Request
	Writer  http.ResponseWriter
	Env     *Env
}

// NewRequestContext captures the request line and query of r.
func NewRequestContext(w http.ResponseWriter, r *http.Request, env *Env) *RequestContext {
	if env == nil {
		env = &Env{}
	}
	return &RequestContext{
		Method:  r.Method,
		Path:    r.URL.Path,
		Query:   r.URL.Query(),
		Request: r,
		Writer:  w,
		Env:     env,
	}
}

// Context returns the request's context.
func (rc *RequestContext) Context() context.Context {
	return rc.Request.Context()
}

// Logger returns the correlation-scoped logger when the middleware set one,
// otherwise the environment logger.
func (rc *RequestContext) Logger() *zap.Logger {
	return loggerFromRequest(rc.Request, rc.Env.Logger)
}

func loggerFromRequest(r *http.Request, fallback *zap.Logger) *zap.Logger {
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
		return logger
	}
	if fallback != nil {
		return fallback
	}
	return zap.NewNop()
}
