package server

import (
	"net/http"
	"time"

	"log/slog"

	"github.com/labstack/echo/v4"

	"github.com/connectcare/ussd/core/logger"
	"github.com/connectcare/ussd/core/metrics"
	"github.com/connectcare/ussd/core/ussd"
	"github.com/connectcare/ussd/core/ussd/audit"
)

// limitedText answers callbacks rejected by the rate limiter.
const limitedText = "Tegereza gato hanyuma wongere ugerageze."

func (s *Server) handleCallback(c echo.Context) error {
	req := ussd.Request{
		SessionID:   c.FormValue("sessionId"),
		ServiceCode: c.FormValue("serviceCode"),
		PhoneNumber: c.FormValue("phoneNumber"),
		Text:        c.FormValue("text"),
	}
	ctx := c.Request().Context()
	start := time.Now()

	reply := s.machine.Handle(ctx, req)
	elapsed := time.Since(start)

	metrics.CallbacksTotal.WithLabelValues(reply.State, reply.ResponseType()).Inc()
	metrics.CallbackDuration.WithLabelValues(reply.State).Observe(elapsed.Seconds())

	logger.GW.InfoContext(ctx, "callback handled",
		slog.String("event", "callback.handled"),
		slog.String("status", logger.StatusOf(!reply.Failed)),
		slog.String("state", reply.State),
		slog.Int("depth", len(req.Path())),
		slog.String("response_type", reply.ResponseType()),
		slog.Duration("duration", elapsed),
	)

	s.recorder.Record(audit.Entry{
		SessionID:    req.SessionID,
		Msisdn:       req.PhoneNumber,
		ServiceCode:  req.ServiceCode,
		MenuState:    reply.State,
		UserInput:    lastToken(req),
		ResponseType: reply.ResponseType(),
		Succeeded:    !reply.Failed,
		DurationMS:   elapsed.Milliseconds(),
	})

	return c.String(http.StatusOK, reply.Render())
}

// lastToken extracts the most recent keystroke from the cumulative text.
func lastToken(req ussd.Request) string {
	path := req.Path()
	if len(path) == 0 {
		return ""
	}
	return logger.SanitizeLimit(path[len(path)-1], 100)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":       "ok",
		"session_mode": s.sessions.Mode(),
	})
}

// limited answers a rate-limited callback with a terminal reply so the
// gateway does not retry or surface a transport error.
func (s *Server) limited(c echo.Context) error {
	reply := ussd.Failure("rate_limited", limitedText)
	return c.String(http.StatusOK, reply.Render())
}
