package router

import (
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/avelsk/routegate/internal/util"
)

// Handler processes a dispatch Context. A handler either terminates the
// response, calls Context.Next to pass control to the next matching route,
// or signals failure via Context.Fail / Context.FailWith. Handlers must not
// retain the Context beyond the request.
type Handler func(*Context)

// paramSegment matches a {name} path segment with a regexp-safe group name.
var paramSegment = regexp.MustCompile(`^\{[A-Za-z_][A-Za-z0-9_]*\}$`)

// Route is one registered entry in a Router's table: a unique order value,
// optional match criteria, and the ordered context and failure handler
// lists. Match criteria and handler lists may be mutated after creation;
// handler lists are append-only.
type Route struct {
	router *Router
	order  int64

	mu              sync.RWMutex
	method          string
	path            string // literal path, trailing "*" stripped; "" if none
	exactPath       bool   // literal path without trailing wildcard
	pattern         *regexp.Regexp
	isRegex         bool
	enabled         bool
	contextHandlers []Handler
	failureHandlers []Handler
}

func newRoute(router *Router, order int64) *Route {
	return &Route{
		router:  router,
		order:   order,
		enabled: true,
	}
}

// Order returns the route's creation-order value, unique per Router.
func (r *Route) Order() int64 {
	return r.order
}

// Router returns the Router the route is registered on.
func (r *Route) Router() *Router {
	return r.router
}

// Method restricts the route to the given HTTP method. An empty method
// matches every method. HEAD requests match GET routes.
func (r *Route) Method(method string) *Route {
	r.mu.Lock()
	r.method = strings.ToUpper(method)
	r.mu.Unlock()
	return r
}

// Path sets a literal path criterion. A trailing "*" turns the path into a
// prefix match; "{name}" segments capture path parameters. Paths are
// anchored at "/".
func (r *Route) Path(path string) *Route {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	exact := true
	if strings.HasSuffix(path, "*") {
		exact = false
		path = path[:len(path)-1]
	}

	var pattern *regexp.Regexp
	if strings.Contains(path, "{") {
		pattern = compileParamPattern(path, exact)
	}

	r.mu.Lock()
	r.path = path
	r.exactPath = exact
	r.pattern = pattern
	r.isRegex = false
	r.mu.Unlock()
	return r
}

// PathRegex sets a regular-expression path criterion. The pattern must
// match the whole of the path remaining after the mount point. Named
// capture groups become path parameters. Regex routes carry no matched
// prefix, so sub-routers cannot be mounted beneath them.
func (r *Route) PathRegex(pattern string) (*Route, error) {
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return nil, util.NewConfigErrorWithCause("path", "invalid route regex", err)
	}

	r.mu.Lock()
	r.path = ""
	r.pattern = re
	r.isRegex = true
	r.mu.Unlock()
	return r, nil
}

// Handler appends a context handler, invoked on the success path.
func (r *Route) Handler(h Handler) *Route {
	r.mu.Lock()
	r.contextHandlers = append(r.contextHandlers, h)
	r.mu.Unlock()
	return r
}

// FailureHandler appends a failure handler, invoked only once the dispatch
// has entered failure mode.
func (r *Route) FailureHandler(h Handler) *Route {
	r.mu.Lock()
	r.failureHandlers = append(r.failureHandlers, h)
	r.mu.Unlock()
	return r
}

// Enable re-enables a disabled route.
func (r *Route) Enable() *Route {
	r.mu.Lock()
	r.enabled = true
	r.mu.Unlock()
	return r
}

// Disable stops the route from matching. In-flight dispatches already past
// the route are unaffected.
func (r *Route) Disable() *Route {
	r.mu.Lock()
	r.enabled = false
	r.mu.Unlock()
	return r
}

// Remove takes the route out of its Router's table. A removed route never
// matches again, even for dispatches holding an older table snapshot.
func (r *Route) Remove() {
	r.Disable()
	r.router.remove(r)
}

// matches reports whether the route applies to the context's request, given
// the enclosing mount point and whether the dispatch is in failure mode.
// It returns 0 on a match, http.StatusNotFound when the route does not
// apply, or a more specific rejection status. A non-nil error is a
// match-time fault and aborts the scan. On a match the extracted path
// parameters, matched prefix length, and normalized-vs-raw choice are
// written into the context; on any other outcome the context is untouched.
func (r *Route) matches(ctx *Context, mountPoint string, failing bool) (int, error) {
	r.mu.RLock()
	enabled := r.enabled
	method := r.method
	path := r.path
	exact := r.exactPath
	pattern := r.pattern
	isRegex := r.isRegex
	hasContext := len(r.contextHandlers) > 0
	hasFailure := len(r.failureHandlers) > 0
	r.mu.RUnlock()

	if !enabled {
		return http.StatusNotFound, nil
	}
	if (failing && !hasFailure) || (!failing && !hasContext) {
		return http.StatusNotFound, nil
	}

	// Match against the normalized path first; fall back to the raw path
	// when they differ so routes registered on un-normalized shapes still
	// resolve.
	m := matchPath(ctx.normalizedPath, mountPoint, path, exact, pattern, isRegex)
	normalized := true
	if !m.ok && ctx.request.URL.Path != ctx.normalizedPath {
		m = matchPath(ctx.request.URL.Path, mountPoint, path, exact, pattern, isRegex)
		normalized = false
	}
	if !m.ok {
		return http.StatusNotFound, nil
	}

	if method != "" && !methodMatches(method, ctx.request.Method) {
		return http.StatusMethodNotAllowed, nil
	}

	// Query parameters are decoded once per dispatch, at first match. A
	// malformed query string is a match-time fault, not a no-match.
	if ctx.queryParams == nil {
		q, err := url.ParseQuery(ctx.request.URL.RawQuery)
		if err != nil {
			return 0, util.WrapError(util.ErrInvalidInput, err.Error())
		}
		ctx.queryParams = q
	}

	ctx.matchRest = m.rest
	ctx.matchNormalized = normalized
	for name, value := range m.params {
		ctx.setPathParam(name, value)
	}
	return 0, nil
}

// pathMatch is the outcome of matching a route's path criterion.
type pathMatch struct {
	ok     bool
	rest   int // absolute end index of the matched prefix, -1 if not path-anchored
	params map[string]string
}

// matchPath matches the full request path against the route criteria after
// stripping the mount point.
func matchPath(full, mountPoint, path string, exact bool, pattern *regexp.Regexp, isRegex bool) pathMatch {
	rel := full
	if mountPoint != "" {
		if !strings.HasPrefix(full, mountPoint) {
			return pathMatch{}
		}
		rel = full[len(mountPoint):]
		if rel == "" {
			rel = "/"
		}
	}

	switch {
	case isRegex:
		loc := pattern.FindStringSubmatch(rel)
		if loc == nil {
			return pathMatch{}
		}
		return pathMatch{ok: true, rest: -1, params: namedGroups(pattern, loc)}

	case pattern != nil:
		idx := pattern.FindStringSubmatchIndex(rel)
		if idx == nil || idx[0] != 0 {
			return pathMatch{}
		}
		end := idx[1]
		if !exact && end < len(rel) && rel[end] != '/' {
			// prefix parameter routes only match at segment boundaries
			return pathMatch{}
		}
		groups := pattern.FindStringSubmatch(rel)
		rest := mountEnd(full, mountPoint, end)
		return pathMatch{ok: true, rest: rest, params: namedGroups(pattern, groups)}

	case path != "":
		if exact {
			if rel == path || rel == path+"/" || rel+"/" == path {
				return pathMatch{ok: true, rest: len(full)}
			}
			return pathMatch{}
		}
		prefix := strings.TrimSuffix(path, "/")
		if prefix == "" {
			// "/*" matches everything
			return pathMatch{ok: true, rest: mountEnd(full, mountPoint, 0)}
		}
		if rel == prefix || (strings.HasPrefix(rel, prefix) && rel[len(prefix)] == '/') {
			return pathMatch{ok: true, rest: mountEnd(full, mountPoint, len(prefix))}
		}
		return pathMatch{}

	default:
		// no path criterion: matches any path but is never path-anchored
		return pathMatch{ok: true, rest: -1}
	}
}

// mountEnd converts an end index relative to the mount-stripped path into
// an absolute index into the full path, clamped to its length.
func mountEnd(full, mountPoint string, relEnd int) int {
	end := len(mountPoint) + relEnd
	if end > len(full) {
		end = len(full)
	}
	return end
}

// namedGroups extracts named capture groups from a regexp match.
func namedGroups(re *regexp.Regexp, match []string) map[string]string {
	var params map[string]string
	for i, name := range re.SubexpNames() {
		if i == 0 || name == "" || i >= len(match) {
			continue
		}
		if params == nil {
			params = make(map[string]string)
		}
		params[name] = match[i]
	}
	return params
}

// compileParamPattern compiles a literal path containing {name} segments.
// Segments that are not well-formed parameters are treated literally, so
// compilation cannot fail.
func compileParamPattern(path string, exact bool) *regexp.Regexp {
	var b strings.Builder
	b.WriteString("^")
	for _, seg := range strings.Split(strings.Trim(path, "/"), "/") {
		if seg == "" {
			continue
		}
		if paramSegment.MatchString(seg) {
			b.WriteString("/(?P<")
			b.WriteString(seg[1 : len(seg)-1])
			b.WriteString(">[^/]+)")
		} else {
			b.WriteString("/")
			b.WriteString(regexp.QuoteMeta(seg))
		}
	}
	if exact {
		b.WriteString("/?$")
	}
	return regexp.MustCompile(b.String())
}

// methodMatches applies the route's method constraint. HEAD requests fall
// back to GET routes.
func methodMatches(routeMethod, requestMethod string) bool {
	requestMethod = strings.ToUpper(requestMethod)
	if routeMethod == requestMethod {
		return true
	}
	return requestMethod == http.MethodHead && routeMethod == http.MethodGet
}

// literalMountPath returns the route's literal path when the route is a
// plain literal (no regex, no parameters), or "" otherwise. Used when
// computing a sub-dispatch mount point.
func (r *Route) literalMountPath() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.isRegex || r.pattern != nil || r.path == "" {
		return ""
	}
	return r.path
}

// hasNextContextHandler reports whether the context's handler cursor has
// not yet consumed all of the route's context handlers.
func (r *Route) hasNextContextHandler(ctx *Context) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return ctx.nextHandlerIdx < len(r.contextHandlers)
}

// hasNextFailureHandler reports whether the context's failure cursor has
// not yet consumed all of the route's failure handlers.
func (r *Route) hasNextFailureHandler(ctx *Context) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return ctx.nextFailureIdx < len(r.failureHandlers)
}

// handleContext invokes the context handler the cursor was just advanced
// past. The cursor is incremented before invocation so advancing is
// idempotent with respect to who drives the dispatch.
func (r *Route) handleContext(ctx *Context) {
	r.mu.RLock()
	h := r.contextHandlers[ctx.nextHandlerIdx-1]
	r.mu.RUnlock()
	h(ctx)
}

// handleFailure invokes the failure handler the cursor was just advanced
// past.
func (r *Route) handleFailure(ctx *Context) {
	r.mu.RLock()
	h := r.failureHandlers[ctx.nextFailureIdx-1]
	r.mu.RUnlock()
	h(ctx)
}
