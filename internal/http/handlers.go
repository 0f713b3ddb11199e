package http

import (
	"errors"
	"net/http"
)

const (
	reasonStoreNotConfigured = "Weather cache KV namespace not configured"
	reasonCityRequired       = "City parameter is required"
)

var errAgentNotConfigured = errors.New("tool endpoint not configured")

// toolWeatherHandler hands the request to the tool-protocol endpoint.
type toolWeatherHandler struct {
	rc *RequestContext
}

func newToolWeatherHandler(rc *RequestContext) Handler {
	return &toolWeatherHandler{rc: rc}
}

func (h *toolWeatherHandler) Get() error  { return h.serve() }
func (h *toolWeatherHandler) Post() error { return h.serve() }

func (h *toolWeatherHandler) serve() error {
	return serveAgent(h.rc)
}

// statusHandler reports cache status.
type statusHandler struct {
	rc *RequestContext
}

func newStatusHandler(rc *RequestContext) Handler {
	return &statusHandler{rc: rc}
}

func (h *statusHandler) Get() error  { return h.serve() }
func (h *statusHandler) Post() error { return h.serve() }

func (h *statusHandler) serve() error {
	env := h.rc.Env
	if env.Store == nil || env.Status == nil {
		h.rc.Logger().Warn("status requested without a configured store")
		writeJSON(h.rc.Writer, http.StatusInternalServerError, ErrorResponse{Error: true, Reason: reasonStoreNotConfigured})
		return nil
	}
	report := env.Status.Status(h.rc.Context())
	status := http.StatusOK
	if report.Failed {
		status = http.StatusInternalServerError
	}
	writeJSON(h.rc.Writer, status, report)
	return nil
}

// cityWeatherHandler requires a city query parameter and then delegates to
// the tool-protocol endpoint. The parsed city is not forwarded: the endpoint
// reads the city from the tool call itself.
type cityWeatherHandler struct {
	rc *RequestContext
}

func newCityWeatherHandler(rc *RequestContext) Handler {
	return &cityWeatherHandler{rc: rc}
}

func (h *cityWeatherHandler) Get() error  { return h.serve() }
func (h *cityWeatherHandler) Post() error { return h.serve() }

func (h *cityWeatherHandler) serve() error {
	if h.rc.Env.Store == nil {
		writeJSON(h.rc.Writer, http.StatusInternalServerError, ErrorResponse{Error: true, Reason: reasonStoreNotConfigured})
		return nil
	}
	if h.rc.Query.Get("city") == "" {
		writeJSON(h.rc.Writer, http.StatusBadRequest, ErrorResponse{Error: true, Reason: reasonCityRequired})
		return nil
	}
	return serveAgent(h.rc)
}

func serveAgent(rc *RequestContext) error {
	if rc.Env.Agent == nil {
		return errAgentNotConfigured
	}
	return rc.Env.Agent.Serve(rc.Context(), rc.Writer, rc.Request)
}
