// Package config provides hierarchical configuration loading for GridSage.
// Precedence: defaults < YAML file < environment variables.
package config

import "time"

// Config holds all runtime configuration for the GridSage service.
type Config struct {
	Server   Server   `yaml:"server"`
	Storage  Storage  `yaml:"storage"`
	Reasoner Reasoner `yaml:"reasoner"`
	Agent    Agent    `yaml:"agent"`
	Session  Session  `yaml:"session"`
	Postgres Postgres `yaml:"postgres"`
	NATS     NATS     `yaml:"nats"`
	MCP      MCP      `yaml:"mcp"`
	Cache    Cache    `yaml:"cache"`
	Logging  Logging  `yaml:"logging"`
	Breaker  Breaker  `yaml:"breaker"`
	Telemetry Telemetry `yaml:"telemetry"`
}

// Server holds HTTP server configuration.
type Server struct {
	Port       string `yaml:"port"`
	CORSOrigin string `yaml:"cors_origin"`
	APIKey     string `yaml:"api_key"` // empty disables bearer auth
}

// Storage maps the two record sets to their CSV directories.
//
// The mapping is an explicit contract the integrator must confirm: the
// upstream exporter historically wrote interval-shaped rows under a
// directory named "billing_data" and bill-shaped rows under "interval_data".
// The defaults preserve that layout; they are not a statement that the
// layout is sensible.
type Storage struct {
	IntervalDir string        `yaml:"interval_dir"` // directory of interval-reading CSVs
	BillingDir  string        `yaml:"billing_dir"`  // directory of billing-period CSVs
	CacheTTL    time.Duration `yaml:"cache_ttl"`    // 0 disables snapshot caching
}

// Reasoner holds the OpenAI-compatible chat completions endpoint configuration.
type Reasoner struct {
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Agent holds conversation controller configuration.
type Agent struct {
	MaxRoundTrips int           `yaml:"max_round_trips"`
	MaxRetries    int           `yaml:"max_retries"`
	RetryBackoff  time.Duration `yaml:"retry_backoff"`
}

// Session holds session store configuration.
type Session struct {
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// Postgres holds optional conversation persistence configuration.
// An empty DSN runs the service memory-only.
type Postgres struct {
	DSN             string        `yaml:"dsn"`
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
	HealthCheck     time.Duration `yaml:"health_check"`
}

// NATS holds optional JetStream event publishing configuration.
// An empty URL disables event publishing.
type NATS struct {
	URL string `yaml:"url"`
}

// MCP holds the MCP tool server configuration.
// An empty addr disables the server.
type MCP struct {
	Addr string `yaml:"addr"`
}

// Cache holds the in-process snapshot cache configuration.
type Cache struct {
	MaxSizeMB int64 `yaml:"max_size_mb"`
}

// Logging holds structured logging configuration.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
	Async   bool   `yaml:"async"`
}

// Breaker holds circuit breaker configuration for the reasoning client.
type Breaker struct {
	MaxFailures int           `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Telemetry holds OpenTelemetry exporter configuration.
// An empty endpoint disables export.
type Telemetry struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

// Defaults returns a Config with sensible default values for local development.
func Defaults() Config {
	return Config{
		Server: Server{
			Port:       "8080",
			CORSOrigin: "http://localhost:3000",
		},
		Storage: Storage{
			IntervalDir: "data/billing_data",
			BillingDir:  "data/interval_data",
			CacheTTL:    time.Minute,
		},
		Reasoner: Reasoner{
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o",
			Temperature: 0.3,
			Timeout:     60 * time.Second,
		},
		Agent: Agent{
			MaxRoundTrips: 8,
			MaxRetries:    2,
			RetryBackoff:  250 * time.Millisecond,
		},
		Session: Session{
			TTL:           30 * time.Minute,
			SweepInterval: 5 * time.Minute,
		},
		Postgres: Postgres{
			MaxConns:        10,
			MinConns:        1,
			MaxConnLifetime: time.Hour,
			MaxConnIdleTime: 10 * time.Minute,
			HealthCheck:     time.Minute,
		},
		MCP: MCP{
			Addr: ":8081",
		},
		Cache: Cache{
			MaxSizeMB: 64,
		},
		Logging: Logging{
			Level:   "info",
			Service: "gridsage",
		},
		Breaker: Breaker{
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		},
	}
}
