package service

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/kjstillabower/city-weather-service/internal/client"
)

// ErrEmptyInput is returned when the city is empty or blank. It is checked
// before any store or network access.
var ErrEmptyInput = errors.New("city is required")

// ErrNoResults is wrapped in the geocoding UpstreamError when the upstream
// answered successfully but matched nothing.
var ErrNoResults = errors.New("no geocoding results")

// UpstreamError reports a failed upstream stage. HTTPStatus is the upstream's
// own status when it answered, 404 when geocoding matched nothing, 502 when
// the call failed in transport and 503 when the stage breaker is open.
// Category is the client's classification of Err, used as a log and metric label.
type UpstreamError struct {
	Stage      client.Stage
	HTTPStatus int
	Category   client.ErrorCategory
	Err        error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("[%s] obtained an invalid response from the upstream, status: %d", e.Stage, e.HTTPStatus)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// StoreError reports a failed store read or write during resolution.
type StoreError struct {
	Op  string
	Key string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// upstreamError classifies a client failure for stage.
func upstreamError(stage client.Stage, err error) *UpstreamError {
	status := http.StatusBadGateway
	var statusErr *client.HTTPStatusError
	switch {
	case errors.As(err, &statusErr):
		status = statusErr.StatusCode
	case errors.Is(err, client.ErrCircuitOpen):
		status = http.StatusServiceUnavailable
	}
	return &UpstreamError{Stage: stage, HTTPStatus: status, Category: client.CategorizeError(err), Err: err}
}
