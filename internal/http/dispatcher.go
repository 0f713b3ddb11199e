package http

import (
	"errors"
	"net/http"
)

var (
	ErrRouteNotFound        = errors.New("Route not found")
	ErrMethodNotImplemented = errors.New("Method not implemented")
)

// Handler is any value built by a HandlerFactory. It supports a verb by
// implementing the matching capability interface; a Handler implementing none
// of them supports no verbs.
type Handler interface{}

type Getter interface {
	Get() error
}

type Poster interface {
	Post() error
}

type Putter interface {
	Put() error
}

type Deleter interface {
	Delete() error
}

// Dispatcher resolves path -> handler -> verb and invokes the operation.
type Dispatcher struct {
	routes Routes
	env    *Env
}

// NewDispatcher creates a Dispatcher over routes with env as handler bindings.
func NewDispatcher(routes Routes, env *Env) *Dispatcher {
	if env == nil {
		env = &Env{}
	}
	return &Dispatcher{routes: routes, env: env}
}

// Dispatch runs the request through the route table. It fails with
// ErrRouteNotFound or ErrMethodNotImplemented; errors returned by the
// operation itself are passed through unchanged.
func (d *Dispatcher) Dispatch(w http.ResponseWriter, r *http.Request) error {
	route, ok := d.routes.Lookup(r.URL.Path)
	if !ok {
		return ErrRouteNotFound
	}
	h := route.New(NewRequestContext(w, r, d.env))
	op, err := methodFor(h, r.Method)
	if err != nil {
		return err
	}
	return op()
}

// methodFor queries h for the capability matching method.
func methodFor(h Handler, method string) (func() error, error) {
	switch method {
	case http.MethodGet:
		if g, ok := h.(Getter); ok {
			return g.Get, nil
		}
	case http.MethodPost:
		if p, ok := h.(Poster); ok {
			return p.Post, nil
		}
	case http.MethodPut:
		if p, ok := h.(Putter); ok {
			return p.Put, nil
		}
	case http.MethodDelete:
		if d, ok := h.(Deleter); ok {
			return d.Delete, nil
		}
	}
	return nil, ErrMethodNotImplemented
}

// ServeHTTP dispatches and translates any failure into a response.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := d.Dispatch(w, r); err != nil {
		writeErrorResponse(w, r, err, loggerFromRequest(r, d.env.Logger))
	}
}
