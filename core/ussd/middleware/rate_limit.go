package middleware

import (
	"sync"
	"time"

	"log/slog"

	"github.com/labstack/echo/v4"

	"github.com/connectcare/ussd/core/logger"
	"github.com/connectcare/ussd/core/metrics"
)

// RateLimitOptions configures behaviour of the rate limit middleware.
type RateLimitOptions struct {
	Interval  time.Duration
	OnLimited echo.HandlerFunc
}

// RateLimit returns a middleware that enforces a minimum interval
// between callbacks from the same subscriber number. Limited requests
// are answered by OnLimited so the gateway still receives a
// well-formed response.
func RateLimit(opts RateLimitOptions) echo.MiddlewareFunc {
	var (
		lastSeen   = make(map[string]time.Time)
		lastSeenMu sync.Mutex
	)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			msisdn := c.Request().FormValue("phoneNumber")
			if msisdn == "" || opts.Interval <= 0 {
				return next(c)
			}

			now := time.Now()

			lastSeenMu.Lock()
			if last, ok := lastSeen[msisdn]; ok && now.Sub(last) < opts.Interval {
				lastSeenMu.Unlock()
				metrics.RateLimited.Inc()
				logger.GW.Warn("rate limit",
					slog.String("event", "gw.rate_limit"),
					slog.String("msisdn", msisdn),
				)
				if opts.OnLimited != nil {
					return opts.OnLimited(c)
				}
				return nil
			}

			lastSeen[msisdn] = now
			lastSeenMu.Unlock()
			return next(c)
		}
	}
}
