package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variables forming the deployment contract. They apply both
// directly (no config file) and through ${VAR:default} expansion in the
// YAML file.
const (
	EnvAllowlist       = "WEBHOOK_ALLOWLIST"
	EnvDefaultWebhook  = "N8N_DEFAULT_WEBHOOK_URL"
	EnvMaxRequestBytes = "MAX_REQUEST_BYTES"
	EnvRequestTimeout  = "REQUEST_TIMEOUT_MS"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Relay     RelayConfig     `yaml:"relay"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Redis     RedisConfig     `yaml:"redis"`
	Database  DatabaseConfig  `yaml:"database"`
	History   HistoryConfig   `yaml:"history"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
}

type RelayConfig struct {
	// Allowlist is a comma-separated list of permitted upstream hosts.
	Allowlist        string `yaml:"allowlist"`
	DefaultWebhook   string `yaml:"default_webhook"`
	MaxRequestBytes  int64  `yaml:"max_request_bytes"`
	RequestTimeoutMs int    `yaml:"request_timeout_ms"`
}

// AllowedHosts splits the comma-separated allowlist into entries.
func (r RelayConfig) AllowedHosts() []string {
	if strings.TrimSpace(r.Allowlist) == "" {
		return nil
	}
	parts := strings.Split(r.Allowlist, ",")
	hosts := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			hosts = append(hosts, p)
		}
	}
	return hosts
}

// RequestTimeout returns the upstream dispatch timeout.
func (r RelayConfig) RequestTimeout() time.Duration {
	return time.Duration(r.RequestTimeoutMs) * time.Millisecond
}

type RateLimitConfig struct {
	Capacity int    `yaml:"capacity"`
	WindowMs int    `yaml:"window_ms"`
	Store    string `yaml:"store"` // memory or redis
}

func (r RateLimitConfig) Window() time.Duration {
	return time.Duration(r.WindowMs) * time.Millisecond
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
}

func (d DatabaseConfig) DSN() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" +
		strconv.Itoa(d.Port) + "/" + d.Name + "?sslmode=" + d.SSLMode
}

type HistoryConfig struct {
	// Driver selects the conversation store backend: memory, redis or
	// postgres.
	Driver string `yaml:"driver"`
	// TTLSeconds applies to the redis driver only; zero means no expiry.
	TTLSeconds int `yaml:"ttl_seconds"`
}

func (h HistoryConfig) TTL() time.Duration {
	return time.Duration(h.TTLSeconds) * time.Second
}

type TelemetryConfig struct {
	LogLevel    string `yaml:"log_level"`
	MetricsPort int    `yaml:"metrics_port"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8080,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     120 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 30 * time.Second,
		},
		Relay: RelayConfig{
			MaxRequestBytes:  5_000_000,
			RequestTimeoutMs: 30_000,
		},
		RateLimit: RateLimitConfig{
			Capacity: 60,
			WindowMs: 60_000,
			Store:    "memory",
		},
		Redis: RedisConfig{
			DB:       0,
			PoolSize: 50,
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			Name:    "relay",
			User:    "relay",
			SSLMode: "disable",
		},
		History: HistoryConfig{
			Driver: "memory",
		},
		Telemetry: TelemetryConfig{
			LogLevel:    "info",
			MetricsPort: 9090,
		},
	}
}

// applyEnv overlays the deployment env contract onto cfg. The YAML file,
// when present, is applied afterwards and wins.
func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv(EnvAllowlist); ok {
		c.Relay.Allowlist = v
	}
	if v, ok := os.LookupEnv(EnvDefaultWebhook); ok {
		c.Relay.DefaultWebhook = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv(EnvMaxRequestBytes); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			c.Relay.MaxRequestBytes = n
		}
	}
	if v, ok := os.LookupEnv(EnvRequestTimeout); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Relay.RequestTimeoutMs = n
		}
	}
}
