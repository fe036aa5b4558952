package middleware

import (
	"net/http"
	"runtime/debug"

	"log/slog"

	"github.com/labstack/echo/v4"

	"github.com/connectcare/ussd/core/logger"
	"github.com/connectcare/ussd/core/ussd"
)

// Recover catches panics in handlers. The gateway still gets a
// well-formed terminal response, never a raw fault.
func Recover(failText string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.GW.Error("panic recovered",
						slog.String("event", "gw.panic"),
						slog.Any("err", r),
						slog.String("stack", string(debug.Stack())),
					)
					reply := ussd.Failure("panic", failText)
					err = c.String(http.StatusOK, reply.Render())
				}
			}()
			return next(c)
		}
	}
}
