package router

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/avelsk/routegate/internal/observability"
	"github.com/avelsk/routegate/internal/util"
)

// Context carries the traversal state of one dispatch over a snapshot of a
// Router's table: the current route, the per-route handler cursors, and the
// failure state. A Context is driven by exactly one logical flow at a time;
// handlers for the same request never run concurrently.
type Context struct {
	request  *http.Request
	response *ResponseWriter
	router   *Router

	mountPoint string
	routes     []*Route
	pos        int

	currentRoute   *Route
	nextHandlerIdx int
	nextFailureIdx int

	failed     bool
	failure    error
	statusCode int

	// matchFailure is the most specific rejection status seen while
	// scanning; it becomes the termination status when nothing matches.
	matchFailure int

	// match state of the current route, consumed by sub-dispatch
	matchRest       int
	matchNormalized bool

	normalizedPath string
	pathParams     map[string]string
	queryParams    url.Values
	data           map[string]any

	// parent is non-nil for sub-dispatch contexts; exhaustion and failure
	// transitions delegate to it.
	parent *Context
}

func newContext(router *Router, w http.ResponseWriter, r *http.Request) *Context {
	rw, ok := w.(*ResponseWriter)
	if !ok {
		rw = NewResponseWriter(w)
	}
	return &Context{
		request:        r,
		response:       rw,
		router:         router,
		routes:         router.table.snapshot(),
		statusCode:     -1,
		matchFailure:   http.StatusNotFound,
		matchRest:      -1,
		normalizedPath: util.NormalizePath(r.URL.Path),
	}
}

// Request returns the bound request.
func (c *Context) Request() *http.Request {
	return c.request
}

// SetRequest replaces the bound request, typically to propagate a derived
// context.Context.
func (c *Context) SetRequest(r *http.Request) {
	c.request = r
}

// Response returns the bound response writer.
func (c *Context) Response() *ResponseWriter {
	return c.response
}

// Router returns the Router that created this context.
func (c *Context) Router() *Router {
	return c.router
}

// MountPoint returns the path prefix this dispatch is scoped to, or "" at
// the top level.
func (c *Context) MountPoint() string {
	return c.mountPoint
}

// CurrentRoute returns the currently matched route, or nil before the
// first match.
func (c *Context) CurrentRoute() *Route {
	return c.currentRoute
}

// NormalizedPath returns the request path with dot segments and duplicate
// slashes removed.
func (c *Context) NormalizedPath() string {
	return c.normalizedPath
}

// Failed reports whether the dispatch is in failure mode.
func (c *Context) Failed() bool {
	return c.failed
}

// Failure returns the carried failure, or nil.
func (c *Context) Failure() error {
	return c.failure
}

// StatusCode returns the status set by Fail, or -1.
func (c *Context) StatusCode() int {
	return c.statusCode
}

// PathParam returns the named path parameter extracted by the current
// route, or "".
func (c *Context) PathParam(name string) string {
	return c.pathParams[name]
}

// PathParams returns all extracted path parameters.
func (c *Context) PathParams() map[string]string {
	return c.pathParams
}

// QueryParams returns the decoded query parameters. They are decoded at
// first route match.
func (c *Context) QueryParams() url.Values {
	return c.queryParams
}

// Put stores a value on the context for later handlers.
func (c *Context) Put(key string, value any) {
	if c.data == nil {
		c.data = make(map[string]any)
	}
	c.data[key] = value
}

// Get retrieves a value stored with Put.
func (c *Context) Get(key string) (any, bool) {
	v, ok := c.data[key]
	return v, ok
}

func (c *Context) setPathParam(name, value string) {
	if c.pathParams == nil {
		c.pathParams = make(map[string]string)
	}
	c.pathParams[name] = value
}

// Next advances the dispatch: it invokes the next applicable handler, or
// finalizes the response through the error-handler registry when the scan
// is exhausted.
func (c *Context) Next() {
	if !c.iterateNext() {
		if c.parent != nil {
			// sub-dispatch routed nothing: fall through to the parent scan
			c.parent.Next()
			return
		}
		c.checkHandleNoMatch()
	}
}

// Fail switches the dispatch into failure mode with an explicit status
// code and resumes scanning for failure handlers from the current route
// forward.
func (c *Context) Fail(statusCode int) {
	c.fail(statusCode, nil)
}

// FailWith switches the dispatch into failure mode carrying err. The
// eventual status is taken from the error if it carries one, else 500.
func (c *Context) FailWith(err error) {
	c.fail(-1, err)
}

func (c *Context) fail(statusCode int, err error) {
	if c.parent != nil {
		// failure handling belongs to the outermost dispatch so enclosing
		// failure handlers get their turn
		c.parent.fail(statusCode, err)
		return
	}
	c.failed = true
	c.failure = err
	c.statusCode = statusCode
	c.Next()
}

// Restart re-enters the route table from the beginning with a fresh
// snapshot and a cleared current route.
func (c *Context) Restart() {
	c.routes = c.router.table.snapshot()
	c.pos = 0
	c.currentRoute = nil
	c.nextHandlerIdx = 0
	c.nextFailureIdx = 0
	c.Next()
}

// Reroute replaces the effective request path and restarts the dispatch.
func (c *Context) Reroute(path string) {
	c.request.URL.Path = path
	c.normalizedPath = util.NormalizePath(path)
	c.matchFailure = http.StatusNotFound
	c.Restart()
}

// iterateNext performs one advance step: resume the current route's
// handler lists, else scan forward for the next matching route. It returns
// false only when the scan is exhausted without invoking anything.
func (c *Context) iterateNext() bool {
	failed := c.failed

	if c.currentRoute != nil {
		// handle multiple handlers on the current route first
		if !failed && c.currentRoute.hasNextContextHandler(c) {
			c.nextHandlerIdx++
			c.resetMatchFailure()
			if err := c.invoke(c.currentRoute, false); err != nil {
				c.handleHandlerFault(c.currentRoute, failed, err)
			}
			return true
		}
		if failed && c.currentRoute.hasNextFailureHandler(c) {
			c.nextFailureIdx++
			if err := c.invoke(c.currentRoute, true); err != nil {
				c.handleHandlerFault(c.currentRoute, failed, err)
			}
			return true
		}
	}

	for c.pos < len(c.routes) {
		route := c.routes[c.pos]
		c.pos++
		c.nextHandlerIdx = 0
		c.nextFailureIdx = 0

		matchResult, err := c.safeMatches(route, failed)
		if err != nil {
			// fault inside the match contract terminates the scan; only
			// recognizable client input defects surface as 400
			code := -1
			if errors.Is(err, util.ErrInvalidInput) {
				code = http.StatusBadRequest
			}
			if !c.response.Ended() {
				route.router.unhandledFailure(code, err, c)
			}
			return true
		}

		switch {
		case matchResult == 0:
			c.resetMatchFailure()
			c.currentRoute = route
			if failed && route.hasNextFailureHandler(c) {
				c.nextFailureIdx++
				if err := c.invoke(route, true); err != nil {
					c.handleHandlerFault(route, failed, err)
				}
			} else if route.hasNextContextHandler(c) {
				c.nextHandlerIdx++
				if err := c.invoke(route, false); err != nil {
					c.handleHandlerFault(route, failed, err)
				}
			} else {
				// matched route with no applicable handlers is transparent
				continue
			}
			return true

		case matchResult != http.StatusNotFound:
			// remember the most specific rejection for the final status
			c.matchFailure = matchResult
		}
	}
	return false
}

// invoke runs the handler the relevant cursor was just advanced past,
// containing panics and converting them to errors.
func (c *Context) invoke(route *Route, failing bool) (caught error) {
	defer func() {
		if r := recover(); r != nil {
			caught = recoveredError(r)
		}
	}()
	if failing {
		route.handleFailure(c)
	} else {
		route.handleContext(c)
	}
	return nil
}

// safeMatches evaluates a route's match criteria, containing panics so a
// broken matcher surfaces as a match-time fault instead of tearing down
// the dispatch.
func (c *Context) safeMatches(route *Route, failing bool) (result int, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = 0, recoveredError(r)
		}
	}()
	return route.matches(c, c.mountPoint, failing)
}

// handleHandlerFault contains a fault thrown by a handler: a first fault
// transitions the dispatch into failure mode, a fault while already
// failing escalates straight to unhandled-failure dispatch.
func (c *Context) handleHandlerFault(route *Route, wasFailing bool, err error) {
	dispatchMetricsInstance().handlerFaults.Inc()
	if !wasFailing {
		route.router.logger.Debug("handler fault, entering failure mode",
			observability.Error(err),
			observability.String("path", c.request.URL.Path),
		)
		c.fail(-1, err)
		return
	}
	route.router.logger.Warn("failure handler fault",
		observability.Error(err),
		observability.String("path", c.request.URL.Path),
	)
	route.router.unhandledFailure(-1, err, c)
}

// checkHandleNoMatch finalizes a dispatch whose scan is exhausted.
func (c *Context) checkHandleNoMatch() {
	if c.failed {
		c.router.unhandledFailure(c.statusCode, c.failure, c)
		return
	}
	dispatchMetricsInstance().matchFailures.WithLabelValues(fmt.Sprint(c.matchFailure)).Inc()
	c.router.unhandledFailure(c.matchFailure, nil, c)
}

func (c *Context) resetMatchFailure() {
	c.matchFailure = http.StatusNotFound
}

// recoveredError converts a recovered panic value into an error.
func recoveredError(v any) error {
	if err, ok := v.(error); ok {
		return err
	}
	return fmt.Errorf("handler panic: %v", v)
}
