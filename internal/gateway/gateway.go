// Package gateway assembles the running gateway: it turns a configuration
// document into a populated route table with the middleware chain in
// front, and swaps routes in place on reload.
package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/avelsk/routegate/internal/config"
	"github.com/avelsk/routegate/internal/observability"
	"github.com/avelsk/routegate/internal/ratelimit"
	"github.com/avelsk/routegate/internal/router"
)

// Gateway owns the route table and the pieces wired in front of it.
type Gateway struct {
	logger observability.Logger
	tracer *observability.Tracer

	mu      sync.Mutex
	cfg     *config.GatewayConfig
	rt      *router.Router
	limiter ratelimit.Limiter
	redis   *redis.Client
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithTracer sets the tracer propagated into the route table.
func WithTracer(tracer *observability.Tracer) Option {
	return func(g *Gateway) {
		g.tracer = tracer
	}
}

// New builds a Gateway from cfg. The configuration must already be
// validated.
func New(cfg *config.GatewayConfig, opts ...Option) (*Gateway, error) {
	g := &Gateway{
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}

	rtOpts := []router.Option{router.WithLogger(g.logger)}
	if g.tracer != nil {
		rtOpts = append(rtOpts, router.WithTracer(g.tracer))
	}
	g.rt = router.New(rtOpts...)

	if err := g.applyLocked(cfg); err != nil {
		return nil, err
	}
	return g, nil
}

// Router returns the route table serving traffic. It is safe to hold
// across reloads: Apply mutates the table in place.
func (g *Gateway) Router() *router.Router {
	return g.rt
}

// Config returns the most recently applied configuration.
func (g *Gateway) Config() *config.GatewayConfig {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cfg
}

// Apply replaces the route table contents with the routes and middleware
// described by cfg. Requests in flight keep iterating the snapshot they
// started on.
func (g *Gateway) Apply(cfg *config.GatewayConfig) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.applyLocked(cfg)
}

func (g *Gateway) applyLocked(cfg *config.GatewayConfig) error {
	// prepare everything fallible before touching the live table so a
	// rejected configuration leaves the previous routes serving
	prepared, err := prepareRoutes(cfg.Routes, g.logger)
	if err != nil {
		return err
	}

	limiter, redisClient, err := g.buildLimiter(cfg)
	if err != nil {
		return err
	}

	g.rt.Clear()
	installMiddleware(g.rt, cfg, limiter, g.logger)
	installRoutes(g.rt, prepared)

	if g.limiter != nil {
		_ = g.limiter.Close()
	}
	if g.redis != nil {
		_ = g.redis.Close()
	}
	g.limiter = limiter
	g.redis = redisClient
	g.cfg = cfg

	g.logger.Info("configuration applied",
		observability.Int("routes", len(cfg.Routes)),
	)
	return nil
}

// buildLimiter constructs the rate limiter called for by cfg, plus the
// Redis client backing it when one is configured.
func (g *Gateway) buildLimiter(cfg *config.GatewayConfig) (ratelimit.Limiter, *redis.Client, error) {
	rl := cfg.RateLimit
	if rl == nil || !rl.Enabled {
		return nil, nil, nil
	}

	limiterCfg := ratelimit.Config{
		Requests: rl.Requests,
		Window:   rl.Window.Duration(),
		Burst:    rl.Burst,
	}

	if rl.Redis != nil {
		client := redis.NewClient(&redis.Options{
			Addr:     rl.Redis.Address,
			Password: rl.Redis.Password,
			DB:       rl.Redis.DB,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("connect to redis at %s: %w", rl.Redis.Address, err)
		}
		return ratelimit.NewRedisLimiter(client, limiterCfg, g.logger), client, nil
	}

	return ratelimit.NewMemoryLimiter(limiterCfg, g.logger), nil, nil
}

// Close releases the gateway's auxiliary resources. The route table itself
// needs no teardown.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.limiter != nil {
		_ = g.limiter.Close()
		g.limiter = nil
	}
	if g.redis != nil {
		err := g.redis.Close()
		g.redis = nil
		return err
	}
	return nil
}

// keyFunc resolves the configured rate-limit key extractor.
func keyFunc(keyBy string) ratelimit.KeyFunc {
	if keyBy == "" || keyBy == "ip" {
		return ratelimit.IPKey
	}
	return ratelimit.HeaderKey(keyBy)
}
