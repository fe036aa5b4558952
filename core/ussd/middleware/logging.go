package middleware

import (
	"time"

	"log/slog"

	"github.com/labstack/echo/v4"

	"github.com/connectcare/ussd/core/logger"
)

// Logger assigns a request id, threads callback metadata through the
// request context and logs one receipt line per callback.
func Logger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		rid := logger.NewRID()

		sessionID := req.FormValue("sessionId")
		msisdn := req.FormValue("phoneNumber")

		ctx := logger.WithRID(req.Context(), rid)
		ctx = logger.WithCallbackMeta(ctx, sessionID, msisdn)
		ctx = logger.WithLogger(ctx, logger.GW)
		c.SetRequest(req.WithContext(ctx))
		c.Set("rid", rid)
		c.Set("callback_start", time.Now())

		if logger.ShouldSampleDebug() {
			logger.LogEvent(ctx, logger.GW, slog.LevelDebug, "callback.received",
				slog.String("status", "ok"),
				slog.String("service_code", logger.SanitizeLimit(req.FormValue("serviceCode"), 32)),
				slog.String("payload", logger.SanitizeLimit(req.FormValue("text"), 160)),
			)
		}

		return next(c)
	}
}
