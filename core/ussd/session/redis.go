package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	coreconfig "github.com/connectcare/ussd/core/config"
	"github.com/connectcare/ussd/core/logger"
	"github.com/connectcare/ussd/core/metrics"
	"log/slog"
)

const keyPrefix = "ussd:session:"

type redisManager struct {
	client *redis.Client
}

// NewRedisManager connects to Redis and returns a Manager backed by it.
// The connection is verified eagerly so a misconfigured store fails at
// startup instead of degrading every request silently.
func NewRedisManager(ctx context.Context, cfg coreconfig.RedisConfig) (Manager, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		DB:           cfg.DB,
		Username:     cfg.User,
		Password:     cfg.Password,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &redisManager{client: client}, nil
}

// Load fetches the record for a session. Store errors degrade to the zero
// Record: the subscriber appears logged out rather than crashing the menu.
func (m *redisManager) Load(ctx context.Context, sessionID string) Record {
	raw, err := m.client.Get(ctx, keyPrefix+sessionID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.SessionOperations.WithLabelValues("load", "miss").Inc()
			return Record{}
		}
		metrics.SessionOperations.WithLabelValues("load", "fail").Inc()
		logger.SESS.WarnContext(ctx, "session load failed",
			slog.String("event", "session.load"),
			slog.String("status", "degraded"),
			slog.String("err", err.Error()),
		)
		return Record{}
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		metrics.SessionOperations.WithLabelValues("load", "fail").Inc()
		logger.SESS.WarnContext(ctx, "session record corrupt",
			slog.String("event", "session.load"),
			slog.String("err", err.Error()),
		)
		return Record{}
	}
	metrics.SessionOperations.WithLabelValues("load", "ok").Inc()
	return rec
}

func (m *redisManager) Save(ctx context.Context, sessionID string, rec Record, ttl time.Duration) error {
	const op = "session.Save"
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := m.client.Set(ctx, keyPrefix+sessionID, raw, ttl).Err(); err != nil {
		metrics.SessionOperations.WithLabelValues("save", "fail").Inc()
		return fmt.Errorf("%s: %w", op, err)
	}
	metrics.SessionOperations.WithLabelValues("save", "ok").Inc()
	return nil
}

func (m *redisManager) Clear(ctx context.Context, sessionID string) error {
	const op = "session.Clear"
	if err := m.client.Del(ctx, keyPrefix+sessionID).Err(); err != nil {
		metrics.SessionOperations.WithLabelValues("clear", "fail").Inc()
		return fmt.Errorf("%s: %w", op, err)
	}
	metrics.SessionOperations.WithLabelValues("clear", "ok").Inc()
	return nil
}

func (m *redisManager) Mode() string {
	return "redis"
}
