package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kjstillabower/city-weather-service/internal/observability"
	"github.com/kjstillabower/city-weather-service/internal/service"
	"github.com/kjstillabower/city-weather-service/internal/validation"
)

// ErrorResponse is the JSON body of every structured error.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Reason  string `json:"reason"`
	Details string `json:"details,omitempty"`
}

// writeErrorResponse maps err to a status and body. Route and method failures
// are plain text; everything else is an ErrorResponse. Unknown errors are 500.
func writeErrorResponse(w http.ResponseWriter, r *http.Request, err error, logger *zap.Logger) {
	var upErr *service.UpstreamError
	var storeErr *service.StoreError

	switch {
	case errors.Is(err, ErrRouteNotFound):
		observability.HTTPErrorsTotal.WithLabelValues("route_not_found").Inc()
		logger.Info("route not found", zap.String("method", r.Method), zap.String("path", r.URL.Path))
		writePlainText(w, http.StatusNotFound, ErrRouteNotFound.Error())
	case errors.Is(err, ErrMethodNotImplemented):
		observability.HTTPErrorsTotal.WithLabelValues("method_not_implemented").Inc()
		logger.Info("method not implemented", zap.String("method", r.Method), zap.String("path", r.URL.Path))
		writePlainText(w, http.StatusNotImplemented, ErrMethodNotImplemented.Error())
	case errors.Is(err, service.ErrEmptyInput), errors.Is(err, validation.ErrCityTooLong):
		observability.HTTPErrorsTotal.WithLabelValues("invalid_input").Inc()
		logger.Info("invalid input", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: true, Reason: err.Error()})
	case errors.As(err, &upErr):
		observability.HTTPErrorsTotal.WithLabelValues(upstreamCategory(upErr)).Inc()
		logger.Warn("upstream failure", zap.String("stage", string(upErr.Stage)), zap.Int("status", upErr.HTTPStatus), zap.String("category", string(upErr.Category)), zap.Error(err))
		resp := ErrorResponse{Error: true, Reason: upErr.Error()}
		if upErr.Err != nil {
			resp.Details = upErr.Err.Error()
		}
		writeJSON(w, upstreamStatus(upErr.HTTPStatus), resp)
	case errors.As(err, &storeErr):
		observability.HTTPErrorsTotal.WithLabelValues("store").Inc()
		logger.Error("store failure", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: true, Reason: "Store unavailable", Details: storeErr.Error()})
	default:
		observability.HTTPErrorsTotal.WithLabelValues("unknown").Inc()
		logger.Error("unhandled error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: true, Reason: "Internal server error", Details: err.Error()})
	}
}

func upstreamCategory(e *service.UpstreamError) string {
	if e.Category == "" {
		return "upstream"
	}
	return "upstream_" + string(e.Category)
}

// upstreamStatus keeps the upstream's own status when it is an error status.
func upstreamStatus(status int) int {
	if status < 400 || status > 599 {
		return http.StatusBadGateway
	}
	return status
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writePlainText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg))
}
