package router

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelsk/routegate/internal/util"
)

func TestMatchPathLiteral(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		full       string
		mountPoint string
		path       string
		exact      bool
		ok         bool
		rest       int
	}{
		{
			name: "exact match",
			full: "/api/v1/users",
			path: "/api/v1/users",
			exact: true,
			ok:   true,
			rest: 13,
		},
		{
			name: "exact tolerates trailing slash on request",
			full: "/users/",
			path: "/users",
			exact: true,
			ok:   true,
			rest: 7,
		},
		{
			name: "exact tolerates trailing slash on route",
			full: "/users",
			path: "/users/",
			exact: true,
			ok:   true,
			rest: 6,
		},
		{
			name: "exact rejects deeper path",
			full: "/users/42",
			path: "/users",
			exact: true,
			ok:   false,
		},
		{
			name: "prefix matches itself",
			full: "/api",
			path: "/api",
			ok:   true,
			rest: 4,
		},
		{
			name: "prefix matches subpath",
			full: "/api/users",
			path: "/api",
			ok:   true,
			rest: 4,
		},
		{
			name: "prefix stops at segment boundary",
			full: "/apikey",
			path: "/api",
			ok:   false,
		},
		{
			name: "root wildcard matches everything",
			full: "/anything/at/all",
			path: "/",
			ok:   true,
			rest: 0,
		},
		{
			name:       "mount point stripped before matching",
			full:       "/api/users",
			mountPoint: "/api",
			path:       "/users",
			exact:      true,
			ok:         true,
			rest:       10,
		},
		{
			name:       "mount point mismatch",
			full:       "/other/users",
			mountPoint: "/api",
			path:       "/users",
			exact:      true,
			ok:         false,
		},
		{
			name:       "bare mount point treated as root",
			full:       "/api",
			mountPoint: "/api",
			path:       "/",
			exact:      true,
			ok:         true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := matchPath(tt.full, tt.mountPoint, tt.path, tt.exact, nil, false)
			assert.Equal(t, tt.ok, m.ok)
			if tt.ok && tt.rest != 0 {
				assert.Equal(t, tt.rest, m.rest)
			}
		})
	}
}

func TestMatchPathParams(t *testing.T) {
	t.Parallel()

	t.Run("exact param route extracts value", func(t *testing.T) {
		t.Parallel()
		pattern := compileParamPattern("/users/{id}", true)
		m := matchPath("/users/42", "", "/users/{id}", true, pattern, false)
		require.True(t, m.ok)
		assert.Equal(t, "42", m.params["id"])
		assert.Equal(t, 9, m.rest)
	})

	t.Run("exact param route rejects deeper path", func(t *testing.T) {
		t.Parallel()
		pattern := compileParamPattern("/users/{id}", true)
		m := matchPath("/users/42/posts", "", "/users/{id}", true, pattern, false)
		assert.False(t, m.ok)
	})

	t.Run("prefix param route matches deeper path", func(t *testing.T) {
		t.Parallel()
		pattern := compileParamPattern("/users/{id}/", false)
		m := matchPath("/users/42/posts", "", "/users/{id}/", false, pattern, false)
		require.True(t, m.ok)
		assert.Equal(t, "42", m.params["id"])
		assert.Equal(t, len("/users/42"), m.rest)
	})

	t.Run("prefix param route needs segment boundary", func(t *testing.T) {
		t.Parallel()
		pattern := compileParamPattern("/v/{major}/x/", false)
		m := matchPath("/v/1/xy", "", "/v/{major}/x/", false, pattern, false)
		assert.False(t, m.ok)
	})

	t.Run("multiple params", func(t *testing.T) {
		t.Parallel()
		pattern := compileParamPattern("/orgs/{org}/repos/{repo}", true)
		m := matchPath("/orgs/acme/repos/widgets", "", "/orgs/{org}/repos/{repo}", true, pattern, false)
		require.True(t, m.ok)
		assert.Equal(t, "acme", m.params["org"])
		assert.Equal(t, "widgets", m.params["repo"])
	})

	t.Run("malformed param segment is literal", func(t *testing.T) {
		t.Parallel()
		pattern := compileParamPattern("/users/{1bad}", true)
		m := matchPath("/users/{1bad}", "", "/users/{1bad}", true, pattern, false)
		require.True(t, m.ok)
		assert.Empty(t, m.params)
		m = matchPath("/users/42", "", "/users/{1bad}", true, pattern, false)
		assert.False(t, m.ok)
	})
}

func TestMatchPathRegex(t *testing.T) {
	t.Parallel()

	rt := New()
	route, err := rt.Route().PathRegex(`/items/(?P<id>\d+)`)
	require.NoError(t, err)

	route.mu.RLock()
	pattern := route.pattern
	route.mu.RUnlock()

	m := matchPath("/items/7", "", "", false, pattern, true)
	require.True(t, m.ok)
	assert.Equal(t, "7", m.params["id"])
	// regex routes never expose a matched prefix
	assert.Equal(t, -1, m.rest)

	m = matchPath("/items/abc", "", "", false, pattern, true)
	assert.False(t, m.ok)
}

func TestPathRegexInvalid(t *testing.T) {
	t.Parallel()

	rt := New()
	_, err := rt.Route().PathRegex(`/items/(`)
	require.Error(t, err)

	var cfgErr *util.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestRouteBuilders(t *testing.T) {
	t.Parallel()

	t.Run("method is upper-cased", func(t *testing.T) {
		t.Parallel()
		rt := New()
		route := rt.Route().Method("post")
		route.mu.RLock()
		defer route.mu.RUnlock()
		assert.Equal(t, http.MethodPost, route.method)
	})

	t.Run("path is anchored at slash", func(t *testing.T) {
		t.Parallel()
		rt := New()
		route := rt.Route().Path("users")
		route.mu.RLock()
		defer route.mu.RUnlock()
		assert.Equal(t, "/users", route.path)
		assert.True(t, route.exactPath)
	})

	t.Run("trailing wildcard makes a prefix route", func(t *testing.T) {
		t.Parallel()
		rt := New()
		route := rt.Route().Path("/api/*")
		route.mu.RLock()
		defer route.mu.RUnlock()
		assert.Equal(t, "/api/", route.path)
		assert.False(t, route.exactPath)
	})
}

func TestMethodMatches(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		routeMethod   string
		requestMethod string
		expected      bool
	}{
		{"same method", http.MethodGet, http.MethodGet, true},
		{"different method", http.MethodGet, http.MethodPost, false},
		{"head falls back to get", http.MethodGet, http.MethodHead, true},
		{"get does not fall back to head", http.MethodHead, http.MethodGet, false},
		{"lower-case request method", http.MethodPut, "put", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, methodMatches(tt.routeMethod, tt.requestMethod))
		})
	}
}

func TestLiteralMountPath(t *testing.T) {
	t.Parallel()

	rt := New()

	assert.Equal(t, "/api/", rt.Route().Path("/api/*").literalMountPath())
	assert.Equal(t, "", rt.Route().Path("/users/{id}/*").literalMountPath())
	assert.Equal(t, "", rt.Route().literalMountPath())

	regexRoute, err := rt.Route().PathRegex(`/r/.*`)
	require.NoError(t, err)
	assert.Equal(t, "", regexRoute.literalMountPath())
}
