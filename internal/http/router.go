package http

// HandlerFactory builds a Handler bound to one request.
type HandlerFactory func(rc *RequestContext) Handler

// Route binds an exact URL path to a handler factory.
type Route struct {
	Path string
	New  HandlerFactory
}

// Routes is an ordered route table. It is built at start and never modified.
type Routes []Route

// Lookup returns the first route whose path equals path exactly. There is no
// pattern matching and no trailing-slash handling.
func (rs Routes) Lookup(path string) (Route, bool) {
	for _, r := range rs {
		if r.Path == path {
			return r, true
		}
	}
	return Route{}, false
}

// DefaultRoutes returns the service route table.
func DefaultRoutes() Routes {
	return Routes{
		{Path: "/weather", New: newToolWeatherHandler},
		{Path: "/status", New: newStatusHandler},
		{Path: "/weather/message", New: newToolWeatherHandler},
		{Path: "/weather/city", New: newCityWeatherHandler},
	}
}
