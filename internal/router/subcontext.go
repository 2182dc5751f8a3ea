package router

import (
	"net/http"
	"strings"

	"github.com/avelsk/routegate/internal/util"
)

// newSubContext derives a Context for re-entrant dispatch against sub's
// route table: same request and response, mount point computed from the
// matched portion of the parent's path, and a back-link used only to fall
// through to the parent scan and to delegate failure transitions. The
// child never holds the parent's iteration state.
func newSubContext(sub *Router, parent *Context) *Context {
	// shared per-request state must exist before both contexts alias it
	if parent.data == nil {
		parent.data = make(map[string]any)
	}
	if parent.pathParams == nil {
		parent.pathParams = make(map[string]string)
	}

	return &Context{
		request:        parent.request,
		response:       parent.response,
		router:         sub,
		mountPoint:     parent.mountPointForChild(),
		routes:         sub.table.snapshot(),
		statusCode:     -1,
		matchFailure:   http.StatusNotFound,
		matchRest:      -1,
		normalizedPath: parent.normalizedPath,
		pathParams:     parent.pathParams,
		queryParams:    parent.queryParams,
		data:           parent.data,
		parent:         parent,
	}
}

// mountPointForChild resolves the path prefix a sub-dispatch is scoped to:
// the literal prefix when the current route used a plain literal path,
// otherwise the matched-length substring of whichever path form the route
// matched against. A route that was never path-anchored cannot host a
// sub-router; that is a configuration defect surfaced immediately.
func (c *Context) mountPointForChild() string {
	route := c.currentRoute
	if route == nil {
		panic(util.NewConfigError("subrouter", "re-dispatch requires a matched route"))
	}

	if p := route.literalMountPath(); p != "" {
		return c.mountPoint + strings.TrimSuffix(p, "/")
	}

	if c.matchRest != -1 {
		if c.matchNormalized {
			return c.normalizedPath[:c.matchRest]
		}
		return c.request.URL.Path[:c.matchRest]
	}

	panic(util.NewConfigError("subrouter",
		"sub routers must be mounted on paths (constant or parameterized)"))
}
