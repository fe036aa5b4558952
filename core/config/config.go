package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// ServerConfig holds settings for the inbound USSD gateway HTTP listener.
type ServerConfig struct {
	Listen string `yaml:"listen" envconfig:"SERVER_LISTEN"`
	Port   int    `yaml:"port" envconfig:"SERVER_PORT"`
	// ShutdownTimeoutSeconds bounds graceful shutdown; 0 -> default
	ShutdownTimeoutSeconds int `yaml:"shutdown_timeout_seconds" envconfig:"SERVER_SHUTDOWN_TIMEOUT_SECONDS"`
}

// BackendConfig specifies the remote ConnectCare API used for accounts,
// consultations and payments.
type BackendConfig struct {
	BaseURL        string `yaml:"base_url" envconfig:"BACKEND_BASE_URL"`
	TimeoutSeconds int    `yaml:"timeout_seconds" envconfig:"BACKEND_TIMEOUT_SECONDS"`
}

// USSDConfig controls menu behaviour of the session handler.
type USSDConfig struct {
	// Variant selects the menu tree served at the root. See config constants.
	Variant     string `yaml:"variant" envconfig:"USSD_VARIANT"`
	CountryCode string `yaml:"country_code" envconfig:"USSD_COUNTRY_CODE"`
	// SessionTTLSeconds is the inactivity window after which stored sessions expire.
	SessionTTLSeconds int `yaml:"session_ttl_seconds" envconfig:"USSD_SESSION_TTL_SECONDS"`
	// ConsultationFee is the flat booking fee in RWF charged on every consultation.
	ConsultationFee int64 `yaml:"consultation_fee" envconfig:"USSD_CONSULTATION_FEE"`
	// DefaultDoctorID is the doctor assigned to USSD bookings.
	DefaultDoctorID int64 `yaml:"default_doctor_id" envconfig:"USSD_DEFAULT_DOCTOR_ID"`
	// DoctorPhone is shown by the informational menu variant.
	DoctorPhone string `yaml:"doctor_phone" envconfig:"USSD_DOCTOR_PHONE"`
}

// RedisConfig holds connection settings for the session store.
// An empty Addr disables Redis and degrades sessions to the in-memory store.
type RedisConfig struct {
	Addr         string        `yaml:"addr" envconfig:"REDIS_ADDR"`
	DB           int           `yaml:"db" envconfig:"REDIS_DB"`
	User         string        `yaml:"user" envconfig:"REDIS_USER"`
	Password     string        `yaml:"password" envconfig:"REDIS_PASSWORD"`
	MaxRetries   int           `yaml:"max_retries" envconfig:"REDIS_MAX_RETRIES"`
	DialTimeout  time.Duration `yaml:"dial_timeout" envconfig:"REDIS_DIAL_TIMEOUT"`
	ReadTimeout  time.Duration `yaml:"read_timeout" envconfig:"REDIS_READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"REDIS_WRITE_TIMEOUT"`
}

// DatabaseConfig holds settings for the optional audit log database.
// An empty Host disables the audit log entirely.
type DatabaseConfig struct {
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir"`
	File        string `yaml:"file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile"`
}

// RateLimitConfig holds settings for per-subscriber rate limiting.
type RateLimitConfig struct {
	IntervalMS int `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
}

const (
	// VariantCare serves the authenticated telemedicine menu
	// (registration, login, booking, history, payments).
	VariantCare = "care"
	// VariantInfo serves the lightweight informational menu.
	VariantInfo = "info"
)

// Config aggregates the configuration of the USSD session handler.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Backend   BackendConfig   `yaml:"backend"`
	USSD      USSDConfig      `yaml:"ussd"`
	Redis     RedisConfig     `yaml:"redis"`
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize performs basic validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.ShutdownTimeoutSeconds <= 0 {
		cfg.Server.ShutdownTimeoutSeconds = 5
	}

	variant := strings.ToLower(strings.TrimSpace(cfg.USSD.Variant))
	if variant == "" {
		variant = VariantCare
	}
	switch variant {
	case VariantCare:
		if strings.TrimSpace(cfg.Backend.BaseURL) == "" {
			return fmt.Errorf("backend.base_url is required when ussd.variant is %q", VariantCare)
		}
	case VariantInfo:
	default:
		return fmt.Errorf("invalid ussd.variant %q; allowed: %s, %s", cfg.USSD.Variant, VariantCare, VariantInfo)
	}
	cfg.USSD.Variant = variant
	cfg.Backend.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Backend.BaseURL), "/")

	if cfg.Backend.TimeoutSeconds <= 0 {
		cfg.Backend.TimeoutSeconds = 10
	}

	cc := strings.TrimSpace(cfg.USSD.CountryCode)
	if cc == "" {
		cc = "+250"
	}
	if !strings.HasPrefix(cc, "+") {
		cc = "+" + cc
	}
	cfg.USSD.CountryCode = cc

	if cfg.USSD.SessionTTLSeconds <= 0 {
		cfg.USSD.SessionTTLSeconds = 3600
	}
	if cfg.USSD.ConsultationFee <= 0 {
		cfg.USSD.ConsultationFee = 5000
	}
	if cfg.USSD.DefaultDoctorID <= 0 {
		cfg.USSD.DefaultDoctorID = 1
	}
	if strings.TrimSpace(cfg.USSD.DoctorPhone) == "" {
		cfg.USSD.DoctorPhone = "+250 792041765"
	}

	if cfg.Redis.Addr != "" {
		if cfg.Redis.MaxRetries <= 0 {
			cfg.Redis.MaxRetries = 3
		}
		if cfg.Redis.DialTimeout <= 0 {
			cfg.Redis.DialTimeout = 5 * time.Second
		}
		if cfg.Redis.ReadTimeout <= 0 {
			cfg.Redis.ReadTimeout = 5 * time.Second
		}
		if cfg.Redis.WriteTimeout <= 0 {
			cfg.Redis.WriteTimeout = 5 * time.Second
		}
	}

	if cfg.Database.Host != "" {
		if cfg.Database.Port == "" {
			cfg.Database.Port = "5432"
		}
		if cfg.Database.SSLMode == "" {
			cfg.Database.SSLMode = "disable"
		}
		if cfg.Database.MaxConnections <= 0 {
			cfg.Database.MaxConnections = 5
		}
	}

	if cfg.RateLimit.IntervalMS < 0 {
		return fmt.Errorf("rate_limit.interval_ms must be >= 0")
	}

	return nil
}

// SessionTTL returns the configured session expiry as a duration.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.USSD.SessionTTLSeconds) * time.Second
}
