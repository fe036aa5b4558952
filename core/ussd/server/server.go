// Package server exposes the gateway-facing HTTP surface: the /ussd
// callback, a health endpoint and Prometheus metrics.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	coreconfig "github.com/connectcare/ussd/core/config"
	"github.com/connectcare/ussd/core/ussd/audit"
	"github.com/connectcare/ussd/core/ussd/menu"
	"github.com/connectcare/ussd/core/ussd/middleware"
	"github.com/connectcare/ussd/core/ussd/session"
)

// Server wires the echo instance, the menu machine and the audit
// recorder behind the gateway callback route.
type Server struct {
	echo     *echo.Echo
	addr     string
	machine  *menu.Machine
	sessions session.Manager
	recorder *audit.Recorder
	failText string
}

// New assembles the HTTP surface. recorder may be nil.
func New(cfg *coreconfig.Config, machine *menu.Machine, sessions session.Manager, recorder *audit.Recorder) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:     e,
		addr:     fmt.Sprintf("%s:%d", cfg.Server.Listen, cfg.Server.Port),
		machine:  machine,
		sessions: sessions,
		recorder: recorder,
		failText: menu.VariantFor(cfg.USSD).Unknown,
	}

	callback := []echo.MiddlewareFunc{
		middleware.Recover(s.failText),
	}
	interval := time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond
	if interval > 0 {
		callback = append(callback, middleware.RateLimit(middleware.RateLimitOptions{
			Interval:  interval,
			OnLimited: s.limited,
		}))
	}
	callback = append(callback, middleware.Logger)

	e.POST("/ussd", s.handleCallback, callback...)
	e.GET("/healthz", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return s
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	if err := s.echo.Start(s.addr); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}
