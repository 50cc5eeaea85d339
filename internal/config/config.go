package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "GYMDESK_"

type Config struct {
	Server    ServerConfig    `yaml:"server" envPrefix:"SERVER_"`
	Database  DatabaseConfig  `yaml:"database" envPrefix:"DB_"`
	Auth      AuthConfig      `yaml:"auth" envPrefix:"AUTH_"`
	Billing   BillingConfig   `yaml:"billing" envPrefix:"BILLING_"`
	Live      LiveConfig      `yaml:"live" envPrefix:"LIVE_"`
	Tailscale TailscaleConfig `yaml:"tailscale" envPrefix:"TAILSCALE_"`
	Log       LogConfig       `yaml:"log" envPrefix:"LOG_"`
	Telemetry TelemetryConfig `yaml:"telemetry" envPrefix:"TELEMETRY_"`
}

type ServerConfig struct {
	Host        string   `yaml:"host" env:"HOST"`
	Port        int      `yaml:"port" env:"PORT"`
	CORSOrigins []string `yaml:"cors_origins" env:"CORS_ORIGINS" envSeparator:","`
}

// DatabaseConfig selects the document store backend. Driver "postgres" uses
// the connection fields, "sqlite" uses Path.
type DatabaseConfig struct {
	Driver   string `yaml:"driver" env:"DRIVER"`
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	Name     string `yaml:"name" env:"NAME"`
	User     string `yaml:"user" env:"USER"`
	Password string `yaml:"password" env:"PASSWORD"`
	SSLMode  string `yaml:"sslmode" env:"SSLMODE"`
	Path     string `yaml:"path" env:"PATH"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
}

type BillingConfig struct {
	StripeWebhookSecret string `yaml:"stripe_webhook_secret" env:"STRIPE_WEBHOOK_SECRET"`
}

type LiveConfig struct {
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" env:"HEARTBEAT_INTERVAL"`
	Sweep             SweepConfig   `yaml:"sweep" envPrefix:"SWEEP_"`
}

// SweepConfig controls the stale live-session sweep. It is off unless enabled.
type SweepConfig struct {
	Enabled  bool          `yaml:"enabled" env:"ENABLED"`
	Schedule string        `yaml:"schedule" env:"SCHEDULE"`
	MaxAge   time.Duration `yaml:"max_age" env:"MAX_AGE"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled" env:"ENABLED"`
	Hostname string `yaml:"hostname" env:"HOSTNAME"`
	StateDir string `yaml:"state_dir" env:"STATE_DIR"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"LEVEL"`
	File  string `yaml:"file" env:"FILE"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// Load reads config from a YAML file, then applies environment variable overrides.
// Env vars use the prefix GYMDESK_ and underscore-separated paths:
//
//	GYMDESK_SERVER_HOST, GYMDESK_SERVER_PORT, GYMDESK_SERVER_CORS_ORIGINS,
//	GYMDESK_DB_DRIVER, GYMDESK_DB_HOST, GYMDESK_DB_PORT, GYMDESK_DB_NAME,
//	GYMDESK_DB_USER, GYMDESK_DB_PASSWORD, GYMDESK_DB_SSLMODE, GYMDESK_DB_PATH,
//	GYMDESK_AUTH_JWT_SECRET, GYMDESK_BILLING_STRIPE_WEBHOOK_SECRET,
//	GYMDESK_LIVE_HEARTBEAT_INTERVAL, GYMDESK_LIVE_SWEEP_ENABLED, ...
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parsing env overrides: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Live.HeartbeatInterval == 0 {
		c.Live.HeartbeatInterval = 15 * time.Second
	}
	if c.Live.Sweep.Schedule == "" {
		c.Live.Sweep.Schedule = "@every 1m"
	}
	if c.Live.Sweep.MaxAge == 0 {
		c.Live.Sweep.MaxAge = 10 * time.Minute
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Tailscale.Hostname == "" {
		c.Tailscale.Hostname = "gymdesk"
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	switch c.Database.Driver {
	case "postgres":
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required")
		}
		if c.Database.Port == 0 {
			return fmt.Errorf("database.port is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database.name is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required")
		}
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Live.HeartbeatInterval < 0 {
		return fmt.Errorf("live.heartbeat_interval must be positive")
	}
	if c.Live.Sweep.MaxAge < 0 {
		return fmt.Errorf("live.sweep.max_age must be positive")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	return nil
}
