package server

import (
	"net/http"
	"slices"
)

// Route is a method and path pair served by a [Handler].
type Route struct {
	Method string
	Path   string
}

// Pattern returns the [http.ServeMux] pattern for r. An empty method matches any method.
func (r Route) Pattern() string {
	if r.Method == "" {
		return r.Path
	}
	return r.Method + " " + r.Path
}

// CallbackRouter routes loopback requests through an [http.ServeMux] using method patterns, so a
// request for a known path with the wrong method gets a 405 and an Allow header from the mux.
type CallbackRouter struct {
	mux         *http.ServeMux
	middlewares []Middleware
	routes      []Route
}

// NewCallbackRouter creates an empty [CallbackRouter].
func NewCallbackRouter() *CallbackRouter {
	return &CallbackRouter{mux: http.NewServeMux()}
}

// Use appends middleware. Only handlers registered afterwards are wrapped.
func (r *CallbackRouter) Use(middleware ...Middleware) {
	r.middlewares = append(r.middlewares, middleware...)
}

// Handle registers handler for method and path, wrapped in the current middleware.
func (r *CallbackRouter) Handle(method, path string, handler http.Handler) {
	route := Route{Method: method, Path: path}
	r.mux.Handle(route.Pattern(), r.Apply(handler))
	r.routes = append(r.routes, route)
}

// Handler registers every route handler declares.
func (r *CallbackRouter) Handler(handler Handler) {
	for _, route := range handler.Routes() {
		r.Handle(route.Method, route.Path, handler)
	}
}

// Routes lists the registered routes in registration order.
func (r *CallbackRouter) Routes() []Route {
	return slices.Clone(r.routes)
}

func (r *CallbackRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Apply wraps handler so the first middleware added runs first.
func (r *CallbackRouter) Apply(handler http.Handler) http.Handler {
	wrapped := handler
	for _, mw := range slices.Backward(r.middlewares) {
		wrapped = mw(wrapped)
	}
	return wrapped
}
