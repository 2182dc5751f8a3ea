package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelsk/routegate/internal/config"
	"github.com/avelsk/routegate/internal/observability"
)

func TestGetEnvOrDefault(t *testing.T) {
	t.Setenv("ROUTEGATE_TEST_KEY", "from-env")
	assert.Equal(t, "from-env", getEnvOrDefault("ROUTEGATE_TEST_KEY", "fallback"))
	assert.Equal(t, "fallback", getEnvOrDefault("ROUTEGATE_TEST_MISSING", "fallback"))
}

func TestReinitLoggerFallsBackOnBadLevel(t *testing.T) {
	t.Parallel()

	fallback := observability.NopLogger()
	cfg := config.DefaultConfig()
	cfg.Log.Level = "shouting"

	logger := reinitLogger(cfg, fallback)
	assert.Equal(t, fallback, logger)
}

func TestReinitLoggerUsesConfig(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Log.Level = "debug"
	cfg.Log.Format = "console"

	logger := reinitLogger(cfg, observability.NopLogger())
	require.NotNil(t, logger)
}

func TestInitTracerDisabled(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	tracer := initTracer(cfg, observability.NopLogger())
	require.NotNil(t, tracer)
}
