// Package bootstrap initializes shared infrastructure in dependency
// order: logger first, then the session store, then the optional audit
// database.
package bootstrap

import (
	"context"
	"fmt"

	"log/slog"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/connectcare/ussd/core/config"
	coredatabase "github.com/connectcare/ussd/core/database"
	"github.com/connectcare/ussd/core/logger"
	"github.com/connectcare/ussd/core/ussd/session"
)

// Options control the bootstrap pipeline. The function hooks exist for
// tests; zero values select the real implementations.
type Options struct {
	Config *coreconfig.Config

	LoggerInit func(*coreconfig.Config) error
	Sessions   func(context.Context, coreconfig.RedisConfig) (session.Manager, error)
	Connect    func(coreconfig.DatabaseConfig) (*sqlx.DB, error)
	Migrate    func(coreconfig.DatabaseConfig) error
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
// DB is nil when the audit database is not configured.
type Result struct {
	Sessions session.Manager
	DB       *sqlx.DB
}

// Run initializes the logger, the session store and, when configured,
// the audit database with its migrations. An unreachable Redis is not
// fatal: sessions degrade to the in-memory store and the degradation
// is logged and reported through /healthz.
func Run(opts Options) (*Result, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(cfg); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	res := &Result{
		Sessions: buildSessions(cfg, opts.Sessions),
	}

	if cfg.Database.Host == "" {
		logger.DB.Info("audit database not configured, audit log disabled",
			slog.String("event", "db.skip"),
		)
		return res, nil
	}

	connect := opts.Connect
	if connect == nil {
		connect = coredatabase.Connect
	}
	db, err := connect(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}

	migrate := opts.Migrate
	if migrate == nil {
		migrate = coredatabase.RunMigrations
	}
	if err := migrate(cfg.Database); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
	}

	res.DB = db
	return res, nil
}

// buildSessions picks the Redis store when configured and reachable,
// falling back to the always-empty in-memory store otherwise.
func buildSessions(cfg *coreconfig.Config, build func(context.Context, coreconfig.RedisConfig) (session.Manager, error)) session.Manager {
	if cfg.Redis.Addr == "" {
		logger.SESS.Warn("redis not configured, sessions degrade to memory store",
			slog.String("event", "session.mode"),
			slog.String("status", "degraded"),
			slog.String("mode", "memory"),
		)
		return session.NewMemoryManager()
	}

	if build == nil {
		build = session.NewRedisManager
	}
	mgr, err := build(context.Background(), cfg.Redis)
	if err != nil {
		logger.SESS.Warn("redis unreachable, sessions degrade to memory store",
			slog.String("event", "session.mode"),
			slog.String("status", "degraded"),
			slog.String("mode", "memory"),
			slog.String("addr", cfg.Redis.Addr),
			slog.String("err", err.Error()),
		)
		return session.NewMemoryManager()
	}

	logger.SESS.Info("session store ready",
		slog.String("event", "session.mode"),
		slog.String("status", "ok"),
		slog.String("mode", mgr.Mode()),
		slog.String("addr", cfg.Redis.Addr),
	)
	return mgr
}
