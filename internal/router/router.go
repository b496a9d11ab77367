package router

import (
	"errors"
	"fmt"
	"regexp"
	"sync"

	"github.com/Brownie44l1/rawhttp/internal/request"
	"github.com/Brownie44l1/rawhttp/internal/response"
)

var ErrFrozen = errors.New("router: routes are frozen")

// Handler fills res for req. captures holds the pattern's submatches in
// order, without the full match.
type Handler func(captures []string, req *request.Request, res *response.Response) error

// Middleware wraps a Handler.
type Middleware func(Handler) Handler

// Route is a single (method, pattern, handler) entry.
type Route struct {
	Method  request.Method
	Pattern *regexp.Regexp
	Handler Handler

	source string
}

// Source returns the pattern as registered, before anchoring.
func (rt Route) Source() string {
	return rt.source
}

// Router holds routes in registration order. Routes are tested in that
// order and the first entry whose method and anchored pattern both match
// wins, so a catch-all registered early shadows everything after it.
type Router struct {
	mu         sync.RWMutex
	routes     []*Route
	middleware []Middleware
	frozen     bool
}

// New creates an empty router
func New() *Router {
	return &Router{}
}

// Use adds middleware applied to every handler registered afterwards. The
// first middleware added is the outermost.
func (r *Router) Use(mw ...Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middleware = append(r.middleware, mw...)
}

// Handle registers handler for method and pattern. The pattern must match
// the whole path.
func (r *Router) Handle(method request.Method, pattern string, handler Handler) error {
	if handler == nil {
		return fmt.Errorf("router: nil handler for %s %s", method, pattern)
	}
	if _, ok := request.ParseMethod(string(method)); !ok {
		return fmt.Errorf("router: unsupported method %q", method)
	}
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return fmt.Errorf("router: compile %q: %w", pattern, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return ErrFrozen
	}

	for i := len(r.middleware) - 1; i >= 0; i-- {
		handler = r.middleware[i](handler)
	}
	r.routes = append(r.routes, &Route{
		Method:  method,
		Pattern: re,
		Handler: handler,
		source:  pattern,
	})
	return nil
}

func (r *Router) mustHandle(method request.Method, pattern string, handler Handler) {
	if err := r.Handle(method, pattern, handler); err != nil {
		panic(err)
	}
}

// GET is a shortcut for Handle(GET, ...)
func (r *Router) GET(pattern string, handler Handler) {
	r.mustHandle(request.GET, pattern, handler)
}

// POST is a shortcut for Handle(POST, ...)
func (r *Router) POST(pattern string, handler Handler) {
	r.mustHandle(request.POST, pattern, handler)
}

// PUT is a shortcut for Handle(PUT, ...)
func (r *Router) PUT(pattern string, handler Handler) {
	r.mustHandle(request.PUT, pattern, handler)
}

// DELETE is a shortcut for Handle(DELETE, ...)
func (r *Router) DELETE(pattern string, handler Handler) {
	r.mustHandle(request.DELETE, pattern, handler)
}

// Freeze stops further registration. After Freeze the table is only read.
func (r *Router) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

func (r *Router) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

// Match finds the first route whose method equals method and whose pattern
// matches all of path. The method is compared before the pattern is run.
func (r *Router) Match(method request.Method, path string) (*Route, []string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, route := range r.routes {
		if route.Method != method {
			continue
		}
		m := route.Pattern.FindStringSubmatch(path)
		if m == nil {
			continue
		}
		return route, m[1:], true
	}
	return nil, nil, false
}

// Dispatch runs the matching handler. It reports false when no route
// matched; that is not an error.
func (r *Router) Dispatch(req *request.Request, res *response.Response) (bool, error) {
	route, captures, ok := r.Match(req.Method, req.Path())
	if !ok {
		return false, nil
	}
	return true, route.Handler(captures, req, res)
}

// Routes returns a copy of the table in registration order.
func (r *Router) Routes() []Route {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Route, len(r.routes))
	for i, route := range r.routes {
		out[i] = *route
	}
	return out
}
