package echoapi

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/RidhwanAhamed/aqademiq-sync/core"
	ratelimitsvc "github.com/RidhwanAhamed/aqademiq-sync/services/ratelimit"
)

// rateLimitMiddleware throttles per authenticated user (per client IP when
// unauthenticated).
func rateLimitMiddleware(conf *core.Config, store ratelimitsvc.Store) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			key := ctx.RealIP()
			if claims, err := getContextClaims(ctx); err == nil {
				key = claims.Subject
			}

			ok, err := store.Allow(ctx.Request().Context(), key, conf.Server.RateLimitPerMinute, time.Minute)
			if err != nil {
				return errors.Wrap(err, "checking rate limit")
			}
			if !ok {
				return errTooManyRequests
			}
			return next(ctx)
		}
	}
}
