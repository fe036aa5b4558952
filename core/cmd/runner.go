// Package cmd drives the service lifecycle: config resolution,
// bootstrap, serving and graceful shutdown.
package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/connectcare/ussd/core/bootstrap"
	coreconfig "github.com/connectcare/ussd/core/config"
	"github.com/connectcare/ussd/core/logger"
	"github.com/connectcare/ussd/core/metrics"
	"github.com/connectcare/ussd/core/ussd/audit"
	"github.com/connectcare/ussd/core/ussd/backend"
	"github.com/connectcare/ussd/core/ussd/menu"
	"github.com/connectcare/ussd/core/ussd/server"
)

// Options describe how to locate configuration.
type Options struct {
	ConfigEnvVar      string
	DefaultConfigPath string
}

// Run loads configuration, bootstraps infrastructure and serves until
// SIGINT or SIGTERM.
func Run(opts Options) error {
	env := opts.ConfigEnvVar
	if env == "" {
		env = "CONFIG_PATH"
	}
	cfgPath := os.Getenv(env)
	if cfgPath == "" {
		cfgPath = opts.DefaultConfigPath
	}
	if cfgPath == "" {
		return fmt.Errorf("cmd: config path not provided via %s or DefaultConfigPath", env)
	}

	log.Printf("loading config: %s", cfgPath)
	cfg, err := coreconfig.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("cmd: failed to load config: %w", err)
	}

	startedAt := time.Now()

	boot, err := bootstrap.Run(bootstrap.Options{Config: cfg})
	if err != nil {
		return fmt.Errorf("cmd: bootstrap failed: %w", err)
	}
	defer func() {
		if err := logger.Shutdown(); err != nil {
			log.Printf("logger shutdown error: %v", err)
		}
	}()
	if boot.DB != nil {
		defer boot.DB.Close()
	}

	metrics.Init()

	recorder := audit.NewRecorder(boot.DB, audit.Options{})
	defer recorder.Close()

	machine := menu.New(cfg, backend.New(cfg.Backend), boot.Sessions)
	srv := server.New(cfg, machine, boot.Sessions, recorder)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	logger.L.With("component", "app").Info("app ready",
		slog.String("event", "ready"),
		slog.String("addr", srv.Addr()),
		slog.String("variant", cfg.USSD.Variant),
		slog.String("session_mode", boot.Sessions.Mode()),
		slog.Duration("startup_duration", logger.RoundMS(time.Since(startedAt))),
	)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.L.With("component", "app").Info("shutting down...",
		slog.String("event", "shutdown"),
	)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("cmd: shutdown failed: %w", err)
	}
	return nil
}
