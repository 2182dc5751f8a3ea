package middleware

import (
	"math"
	"strconv"

	"github.com/avelsk/routegate/internal/observability"
	"github.com/avelsk/routegate/internal/ratelimit"
	"github.com/avelsk/routegate/internal/router"
	"github.com/avelsk/routegate/internal/util"
)

// Rate limit response headers.
const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRetryAfter         = "Retry-After"
)

// RateLimit returns a handler that checks each request against limiter,
// keyed by keyFn. Rejected requests fail the dispatch with a rate limit
// error, which resolves to 429 unless a failure handler intervenes. A
// limiter backend error fails open: the request proceeds.
func RateLimit(limiter ratelimit.Limiter, keyFn ratelimit.KeyFunc, logger observability.Logger) router.Handler {
	if logger == nil {
		logger = observability.NopLogger()
	}
	if keyFn == nil {
		keyFn = ratelimit.IPKey
	}

	return func(c *router.Context) {
		result, err := limiter.Allow(c.Request().Context(), keyFn(c.Request()))
		if err != nil {
			logger.Warn("rate limiter unavailable, allowing request",
				observability.Error(err),
				observability.String("path", c.Request().URL.Path),
			)
			c.Next()
			return
		}

		if result.Limit > 0 {
			header := c.Response().Header()
			header.Set(HeaderRateLimitLimit, strconv.Itoa(result.Limit))
			header.Set(HeaderRateLimitRemaining, strconv.Itoa(result.Remaining))
		}

		if !result.Allowed {
			GetMiddlewareMetrics().rateLimitRejections.WithLabelValues(c.Request().URL.Path).Inc()
			if result.RetryAfter > 0 {
				seconds := int(math.Ceil(result.RetryAfter.Seconds()))
				c.Response().Header().Set(HeaderRetryAfter, strconv.Itoa(seconds))
			}
			c.FailWith(util.NewRateLimitError(result.Limit))
			return
		}

		c.Next()
	}
}
