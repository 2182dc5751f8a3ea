package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelsk/routegate/internal/config"
	"github.com/avelsk/routegate/internal/health"
	"github.com/avelsk/routegate/internal/observability"
)

func testServerConfig() config.ServerConfig {
	return config.ServerConfig{
		Address:         "127.0.0.1:0",
		ReadTimeout:     config.Duration(5 * time.Second),
		WriteTimeout:    config.Duration(5 * time.Second),
		IdleTimeout:     config.Duration(10 * time.Second),
		ShutdownTimeout: config.Duration(2 * time.Second),
	}
}

func TestServerServesHandler(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("brewing"))
	})

	srv := New(testServerConfig(), handler, observability.NopLogger())
	_, err := srv.Start()
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Stop(context.Background()) })

	require.True(t, srv.IsRunning())

	resp, err := http.Get(fmt.Sprintf("http://%s/anything", srv.Addr()))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	assert.Equal(t, "brewing", string(body))
}

func TestServerMetricsListener(t *testing.T) {
	t.Parallel()

	cfg := testServerConfig()
	cfg.MetricsAddress = "127.0.0.1:0"

	srv := New(cfg, http.NotFoundHandler(), observability.NopLogger())
	_, err := srv.Start()
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Stop(context.Background()) })

	resp, err := http.Get(fmt.Sprintf("http://%s/healthz", srv.MetricsAddr()))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	mresp, err := http.Get(fmt.Sprintf("http://%s/metrics", srv.MetricsAddr()))
	require.NoError(t, err)
	defer mresp.Body.Close()
	assert.Equal(t, http.StatusOK, mresp.StatusCode)
}

func TestServerHealthProbes(t *testing.T) {
	t.Parallel()

	cfg := testServerConfig()
	cfg.MetricsAddress = "127.0.0.1:0"

	checker := health.NewChecker("test")
	checker.Register("always-down", func() health.Check {
		return health.Check{Status: health.StatusDown, Message: "not ready"}
	})

	srv := New(cfg, http.NotFoundHandler(), observability.NopLogger(), WithHealthChecker(checker))
	_, err := srv.Start()
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Stop(context.Background()) })

	live, err := http.Get(fmt.Sprintf("http://%s/healthz", srv.MetricsAddr()))
	require.NoError(t, err)
	defer live.Body.Close()
	assert.Equal(t, http.StatusOK, live.StatusCode)

	ready, err := http.Get(fmt.Sprintf("http://%s/readyz", srv.MetricsAddr()))
	require.NoError(t, err)
	defer ready.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, ready.StatusCode)
}

func TestServerStartTwice(t *testing.T) {
	t.Parallel()

	srv := New(testServerConfig(), http.NotFoundHandler(), observability.NopLogger())
	_, err := srv.Start()
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Stop(context.Background()) })

	_, err = srv.Start()
	assert.Error(t, err)
}

func TestServerStopIdempotent(t *testing.T) {
	t.Parallel()

	srv := New(testServerConfig(), http.NotFoundHandler(), observability.NopLogger())
	_, err := srv.Start()
	require.NoError(t, err)

	require.NoError(t, srv.Stop(context.Background()))
	require.NoError(t, srv.Stop(context.Background()))
	assert.False(t, srv.IsRunning())
}

func TestServerBadAddress(t *testing.T) {
	t.Parallel()

	cfg := testServerConfig()
	cfg.Address = "256.256.256.256:99999"

	srv := New(cfg, http.NotFoundHandler(), observability.NopLogger())
	_, err := srv.Start()
	assert.Error(t, err)
	assert.False(t, srv.IsRunning())
}
