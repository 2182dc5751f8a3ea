package router

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/avelsk/routegate/internal/observability"
	"github.com/avelsk/routegate/internal/util"
)

// statusCarrier is the optional contract of failures that carry an HTTP
// status code, e.g. util.StatusError.
type statusCarrier interface {
	StatusCode() int
}

// Router owns one route table, the order-sequence counter for routes
// created through it, a status-code-indexed error handler registry, and
// the table-change notification list. It is safe for concurrent use: new
// routes may be registered while requests are in flight.
type Router struct {
	table    *routeTable
	orderSeq atomic.Int64

	mu            sync.RWMutex
	errorHandlers map[int]Handler
	tableChanged  []func(*Router)

	logger observability.Logger
	tracer *observability.Tracer
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the logger used for dispatch diagnostics.
func WithLogger(logger observability.Logger) Option {
	return func(rt *Router) {
		rt.logger = logger
	}
}

// WithTracer enables a dispatch span per top-level request.
func WithTracer(tracer *observability.Tracer) Option {
	return func(rt *Router) {
		rt.tracer = tracer
	}
}

// New creates an empty Router.
func New(opts ...Option) *Router {
	rt := &Router{
		table:         newRouteTable(),
		errorHandlers: make(map[int]Handler),
		logger:        observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// Route creates and registers a new route with the next order value and no
// match criteria.
func (rt *Router) Route() *Route {
	route := newRoute(rt, rt.orderSeq.Add(1)-1)
	rt.add(route)
	return route
}

// RoutePath creates a route matching the given path.
func (rt *Router) RoutePath(path string) *Route {
	return rt.Route().Path(path)
}

// RouteMethod creates a route matching the given method and path.
func (rt *Router) RouteMethod(method, path string) *Route {
	return rt.Route().Method(method).Path(path)
}

// RouteRegex creates a route matching the given path regex.
func (rt *Router) RouteRegex(pattern string) (*Route, error) {
	return rt.Route().PathRegex(pattern)
}

// Get creates a route matching GET (and HEAD) requests on path.
func (rt *Router) Get(path string) *Route {
	return rt.RouteMethod(http.MethodGet, path)
}

// Head creates a route matching HEAD requests on path.
func (rt *Router) Head(path string) *Route {
	return rt.RouteMethod(http.MethodHead, path)
}

// Options creates a route matching OPTIONS requests on path.
func (rt *Router) Options(path string) *Route {
	return rt.RouteMethod(http.MethodOptions, path)
}

// Post creates a route matching POST requests on path.
func (rt *Router) Post(path string) *Route {
	return rt.RouteMethod(http.MethodPost, path)
}

// Put creates a route matching PUT requests on path.
func (rt *Router) Put(path string) *Route {
	return rt.RouteMethod(http.MethodPut, path)
}

// Delete creates a route matching DELETE requests on path.
func (rt *Router) Delete(path string) *Route {
	return rt.RouteMethod(http.MethodDelete, path)
}

// Patch creates a route matching PATCH requests on path.
func (rt *Router) Patch(path string) *Route {
	return rt.RouteMethod(http.MethodPatch, path)
}

// Routes returns a point-in-time copy of the route table.
func (rt *Router) Routes() []*Route {
	snapshot := rt.table.snapshot()
	routes := make([]*Route, len(snapshot))
	copy(routes, snapshot)
	return routes
}

// Clear removes all routes.
func (rt *Router) Clear() {
	snapshot := rt.table.snapshot()
	for _, route := range snapshot {
		route.Disable()
	}
	rt.table.clear()
	dispatchMetricsInstance().routes.Sub(float64(len(snapshot)))
	rt.notifyTableChanged()
}

// add registers a route and notifies table-change subscribers.
func (rt *Router) add(route *Route) {
	rt.table.add(route)
	dispatchMetricsInstance().routes.Inc()
	rt.logger.Debug("route added", observability.Int64("order", route.order))
	rt.notifyTableChanged()
}

// remove unregisters a route and notifies table-change subscribers.
func (rt *Router) remove(route *Route) {
	if rt.table.remove(route) {
		dispatchMetricsInstance().routes.Dec()
		rt.logger.Debug("route removed", observability.Int64("order", route.order))
		rt.notifyTableChanged()
	}
}

// OnTableChanged subscribes cb to route table mutations. Callbacks run
// synchronously after every add, remove, and clear, in subscription order;
// a fault in one callback is contained and never blocks the others or the
// mutation itself.
func (rt *Router) OnTableChanged(cb func(*Router)) {
	rt.mu.Lock()
	rt.tableChanged = append(rt.tableChanged, cb)
	rt.mu.Unlock()
}

func (rt *Router) notifyTableChanged() {
	rt.mu.RLock()
	callbacks := make([]func(*Router), len(rt.tableChanged))
	copy(callbacks, rt.tableChanged)
	rt.mu.RUnlock()

	for _, cb := range callbacks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					rt.logger.Error("route table change notification failed",
						observability.Any("panic", r),
					)
				}
			}()
			cb(rt)
		}()
	}
}

// ErrorHandler registers the handler invoked when a dispatch terminates
// with statusCode unhandled. One handler per code; the last registration
// wins.
func (rt *Router) ErrorHandler(statusCode int, handler Handler) error {
	if handler == nil {
		return util.NewConfigError("errorHandler", "handler must not be nil")
	}
	rt.mu.Lock()
	rt.errorHandlers[statusCode] = handler
	rt.mu.Unlock()
	return nil
}

// ErrorHandlerByStatusCode returns the registered handler for statusCode,
// or nil.
func (rt *Router) ErrorHandlerByStatusCode(statusCode int) Handler {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.errorHandlers[statusCode]
}

// MountSubRouter registers a route at mountPoint + "*" whose single
// context handler re-dispatches matching requests against sub's route
// table. The mount point must not itself end in the wildcard marker.
func (rt *Router) MountSubRouter(mountPoint string, sub *Router) (*Route, error) {
	if strings.HasSuffix(mountPoint, "*") {
		return nil, util.NewConfigError("mountPoint", "don't include * when mounting a sub router")
	}

	route := rt.RoutePath(mountPoint + "*").Handler(func(c *Context) {
		sub.HandleContext(c)
	})
	return route, nil
}

// ServeHTTP dispatches an inbound request through the route table.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	metrics := dispatchMetricsInstance()
	metrics.requestsTotal.WithLabelValues(r.Method).Inc()
	start := time.Now()

	ctx := newContext(rt, w, r)
	if rt.tracer != nil {
		spanCtx, span := rt.tracer.StartSpan(r.Context(), r.Method, r.URL.Path)
		ctx.request = r.WithContext(spanCtx)
		defer func() {
			span.SetAttributes(attribute.Int("http.response.status_code", ctx.response.Status()))
			span.End()
		}()
	}

	ctx.Next()
	metrics.requestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
}

// HandleContext re-dispatches an existing context against this router's
// table, scoped under the mount point derived from the parent's matched
// path. Used by sub-router delegation handlers.
func (rt *Router) HandleContext(parent *Context) {
	newSubContext(rt, parent).Next()
}

// HandleFailure re-dispatches a failing context against this router's
// table so the sub-router's own failure handlers get a chance to run.
func (rt *Router) HandleFailure(parent *Context) {
	ctx := newSubContext(rt, parent)
	ctx.failed = true
	ctx.failure = parent.failure
	ctx.statusCode = parent.statusCode
	ctx.Next()
}

// unhandledFailure terminates a dispatch: it resolves the effective status
// code, gives the registered error handler (if any) a chance to write the
// response, and finalizes the response itself if the handler left it
// unfinished. Faults inside the error handler are reported, never
// rethrown.
func (rt *Router) unhandledFailure(statusCode int, failure error, ctx *Context) {
	code := statusCode
	if code == -1 {
		code = http.StatusInternalServerError
		var carrier statusCarrier
		if failure != nil && errors.As(failure, &carrier) {
			code = carrier.StatusCode()
		}
	}

	if handler := rt.ErrorHandlerByStatusCode(code); handler != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					dispatchMetricsInstance().errorHandlerFaults.Inc()
					rt.logger.Error("error in error handler",
						observability.Any("panic", r),
						observability.Int("status", code),
					)
				}
			}()
			handler(ctx)
		}()
	}

	if !ctx.response.Ended() {
		body := http.StatusText(code)
		if body == "" {
			// non-standard code with no canonical reason phrase
			body = fmt.Sprintf("Unknown Status (%d)", code)
		}
		ctx.response.WriteHeader(code)
		_, _ = ctx.response.Write([]byte(body))
	}
}
