package router

import (
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelsk/routegate/internal/util"
)

func TestRouterOrderUnique(t *testing.T) {
	t.Parallel()

	rt := New()
	var wg sync.WaitGroup
	routes := make([][]*Route, 8)
	for i := range routes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				routes[i] = append(routes[i], rt.Route())
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[int64]bool)
	for _, batch := range routes {
		for _, route := range batch {
			assert.False(t, seen[route.Order()], "order %d assigned twice", route.Order())
			seen[route.Order()] = true
		}
	}
	assert.Len(t, seen, 800)
}

func TestRouterRoutesSnapshot(t *testing.T) {
	t.Parallel()

	rt := New()
	a := rt.Get("/a")
	b := rt.Post("/b")

	routes := rt.Routes()
	require.Len(t, routes, 2)
	assert.Same(t, a, routes[0])
	assert.Same(t, b, routes[1])

	rt.Clear()
	assert.Empty(t, rt.Routes())
	// the earlier copy is unaffected
	assert.Len(t, routes, 2)
}

func TestRouterErrorHandler(t *testing.T) {
	t.Parallel()

	t.Run("nil handler rejected", func(t *testing.T) {
		t.Parallel()
		rt := New()
		err := rt.ErrorHandler(http.StatusNotFound, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, util.ErrConfigInvalid)
	})

	t.Run("invoked on unhandled status", func(t *testing.T) {
		t.Parallel()
		rt := New()
		require.NoError(t, rt.ErrorHandler(http.StatusNotFound, func(c *Context) {
			c.Response().WriteHeader(http.StatusNotFound)
			_, _ = c.Response().Write([]byte("custom not found"))
		}))

		rec := serve(rt, http.MethodGet, "/missing")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "custom not found", rec.Body.String())
	})

	t.Run("last registration wins", func(t *testing.T) {
		t.Parallel()
		rt := New()
		require.NoError(t, rt.ErrorHandler(http.StatusInternalServerError, func(c *Context) {
			c.Response().WriteHeader(http.StatusInternalServerError)
			_, _ = c.Response().Write([]byte("first"))
		}))
		require.NoError(t, rt.ErrorHandler(http.StatusInternalServerError, func(c *Context) {
			c.Response().WriteHeader(http.StatusInternalServerError)
			_, _ = c.Response().Write([]byte("second"))
		}))

		rt.Get("/e").Handler(func(c *Context) {
			c.Fail(http.StatusInternalServerError)
		})

		rec := serve(rt, http.MethodGet, "/e")
		assert.Equal(t, "second", rec.Body.String())
	})

	t.Run("fallback finalizes when handler writes nothing", func(t *testing.T) {
		t.Parallel()
		rt := New()
		invoked := false
		require.NoError(t, rt.ErrorHandler(http.StatusNotFound, func(c *Context) {
			invoked = true
		}))

		rec := serve(rt, http.MethodGet, "/missing")
		assert.True(t, invoked)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, http.StatusText(http.StatusNotFound), rec.Body.String())
	})

	t.Run("panicking handler still finalizes", func(t *testing.T) {
		t.Parallel()
		rt := New()
		require.NoError(t, rt.ErrorHandler(http.StatusNotFound, func(c *Context) {
			panic("bad error handler")
		}))

		rec := serve(rt, http.MethodGet, "/missing")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("lookup by status code", func(t *testing.T) {
		t.Parallel()
		rt := New()
		assert.Nil(t, rt.ErrorHandlerByStatusCode(http.StatusBadGateway))
		require.NoError(t, rt.ErrorHandler(http.StatusBadGateway, func(c *Context) {}))
		assert.NotNil(t, rt.ErrorHandlerByStatusCode(http.StatusBadGateway))
	})
}

func TestRouterUnknownStatusBody(t *testing.T) {
	t.Parallel()

	rt := New()
	rt.Get("/u").Handler(func(c *Context) {
		c.Fail(799)
	})

	rec := serve(rt, http.MethodGet, "/u")
	assert.Equal(t, 799, rec.Code)
	assert.Equal(t, fmt.Sprintf("Unknown Status (%d)", 799), rec.Body.String())
}

func TestRouterOnTableChanged(t *testing.T) {
	t.Parallel()

	rt := New()
	var events int
	rt.OnTableChanged(func(r *Router) {
		assert.Same(t, rt, r)
		events++
	})

	route := rt.Get("/a")
	assert.Equal(t, 1, events)

	route.Remove()
	assert.Equal(t, 2, events)

	rt.Get("/b")
	rt.Clear()
	assert.Equal(t, 4, events)
}

func TestRouterOnTableChangedPanicContained(t *testing.T) {
	t.Parallel()

	rt := New()
	var second bool
	rt.OnTableChanged(func(*Router) {
		panic("broken subscriber")
	})
	rt.OnTableChanged(func(*Router) {
		second = true
	})

	assert.NotPanics(t, func() {
		rt.Get("/a")
	})
	assert.True(t, second, "later subscribers still run after a panic")
}

func TestMountSubRouter(t *testing.T) {
	t.Parallel()

	t.Run("wildcard mount point rejected", func(t *testing.T) {
		t.Parallel()
		rt := New()
		_, err := rt.MountSubRouter("/api/*", New())
		require.Error(t, err)
		assert.ErrorIs(t, err, util.ErrConfigInvalid)
	})

	t.Run("sub route dispatched with mount point", func(t *testing.T) {
		t.Parallel()
		parent := New()
		sub := New()
		sub.Get("/users").Handler(func(c *Context) {
			assert.Equal(t, "/api", c.MountPoint())
			c.Response().WriteHeader(http.StatusOK)
			_, _ = c.Response().Write([]byte("users"))
		})
		_, err := parent.MountSubRouter("/api", sub)
		require.NoError(t, err)

		rec := serve(parent, http.MethodGet, "/api/users")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "users", rec.Body.String())
	})

	t.Run("sub exhaustion falls through to parent", func(t *testing.T) {
		t.Parallel()
		parent := New()
		sub := New()
		sub.Get("/known").Handler(func(c *Context) {
			c.Response().WriteHeader(http.StatusOK)
		})
		_, err := parent.MountSubRouter("/api", sub)
		require.NoError(t, err)
		parent.RoutePath("/*").Handler(func(c *Context) {
			c.Response().WriteHeader(http.StatusServiceUnavailable)
		})

		rec := serve(parent, http.MethodGet, "/api/unknown")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("no fallback means match failure", func(t *testing.T) {
		t.Parallel()
		parent := New()
		_, err := parent.MountSubRouter("/api", New())
		require.NoError(t, err)

		rec := serve(parent, http.MethodGet, "/api/unknown")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("nested mounts accumulate mount points", func(t *testing.T) {
		t.Parallel()
		root := New()
		mid := New()
		leaf := New()
		leaf.Get("/deep").Handler(func(c *Context) {
			assert.Equal(t, "/api/v1", c.MountPoint())
			c.Response().WriteHeader(http.StatusOK)
		})
		_, err := mid.MountSubRouter("/v1", leaf)
		require.NoError(t, err)
		_, err = root.MountSubRouter("/api", mid)
		require.NoError(t, err)

		rec := serve(root, http.MethodGet, "/api/v1/deep")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("parameterized mount uses matched prefix", func(t *testing.T) {
		t.Parallel()
		parent := New()
		sub := New()
		sub.Get("/settings").Handler(func(c *Context) {
			assert.Equal(t, "/tenants/acme", c.MountPoint())
			assert.Equal(t, "acme", c.PathParam("tenant"))
			c.Response().WriteHeader(http.StatusOK)
		})
		parent.RoutePath("/tenants/{tenant}/*").Handler(func(c *Context) {
			sub.HandleContext(c)
		})

		rec := serve(parent, http.MethodGet, "/tenants/acme/settings")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("mounting under a pathless route is a defect", func(t *testing.T) {
		t.Parallel()
		parent := New()
		sub := New()
		parent.Route().Handler(func(c *Context) {
			sub.HandleContext(c)
		})

		// the configuration defect surfaces as an internal failure, not a
		// process crash
		rec := serve(parent, http.MethodGet, "/whatever")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("sub failure delegates to enclosing failure handlers", func(t *testing.T) {
		t.Parallel()
		parent := New()
		sub := New()
		sub.Get("/boom").Handler(func(c *Context) {
			c.Fail(http.StatusBadGateway)
		})
		_, err := parent.MountSubRouter("/api", sub)
		require.NoError(t, err)
		parent.RoutePath("/*").FailureHandler(func(c *Context) {
			assert.Equal(t, http.StatusBadGateway, c.StatusCode())
			c.Response().WriteHeader(http.StatusBadGateway)
			_, _ = c.Response().Write([]byte("handled upstream"))
		})

		rec := serve(parent, http.MethodGet, "/api/boom")
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Equal(t, "handled upstream", rec.Body.String())
	})
}

func TestRouterHandleFailure(t *testing.T) {
	t.Parallel()

	parent := New()
	sub := New()
	sub.RoutePath("/*").FailureHandler(func(c *Context) {
		c.Response().WriteHeader(http.StatusBadGateway)
		_, _ = c.Response().Write([]byte("sub failure"))
	})
	parent.RoutePath("/api/*").
		Handler(func(c *Context) {
			c.Fail(http.StatusBadGateway)
		}).
		FailureHandler(func(c *Context) {
			sub.HandleFailure(c)
		})

	rec := serve(parent, http.MethodGet, "/api/x")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "sub failure", rec.Body.String())
}

func TestRouterServeHTTPMethods(t *testing.T) {
	t.Parallel()

	rt := New()
	for _, register := range []func(string) *Route{
		rt.Get, rt.Post, rt.Put, rt.Delete, rt.Patch, rt.Options, rt.Head,
	} {
		register("/m").Handler(func(c *Context) {
			c.Response().WriteHeader(http.StatusOK)
			_, _ = c.Response().Write([]byte(c.Request().Method))
		})
	}

	for _, method := range []string{
		http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete,
		http.MethodPatch, http.MethodOptions, http.MethodHead,
	} {
		rec := serve(rt, method, "/m")
		assert.Equal(t, http.StatusOK, rec.Code, method)
	}
}
