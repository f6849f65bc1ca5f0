package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "gridsage.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "GRIDSAGE_PORT")
	setString(&cfg.Server.CORSOrigin, "GRIDSAGE_CORS_ORIGIN")
	setString(&cfg.Server.APIKey, "GRIDSAGE_API_KEY")
	setString(&cfg.Storage.IntervalDir, "GRIDSAGE_INTERVAL_DIR")
	setString(&cfg.Storage.BillingDir, "GRIDSAGE_BILLING_DIR")
	setDuration(&cfg.Storage.CacheTTL, "GRIDSAGE_STORAGE_CACHE_TTL")
	setString(&cfg.Reasoner.BaseURL, "GRIDSAGE_REASONER_URL")
	setString(&cfg.Reasoner.APIKey, "OPENAI_API_KEY")
	setString(&cfg.Reasoner.Model, "GRIDSAGE_REASONER_MODEL")
	setFloat64(&cfg.Reasoner.Temperature, "GRIDSAGE_REASONER_TEMPERATURE")
	setDuration(&cfg.Reasoner.Timeout, "GRIDSAGE_REASONER_TIMEOUT")
	setInt(&cfg.Agent.MaxRoundTrips, "GRIDSAGE_MAX_ROUND_TRIPS")
	setInt(&cfg.Agent.MaxRetries, "GRIDSAGE_MAX_RETRIES")
	setDuration(&cfg.Agent.RetryBackoff, "GRIDSAGE_RETRY_BACKOFF")
	setDuration(&cfg.Session.TTL, "GRIDSAGE_SESSION_TTL")
	setDuration(&cfg.Session.SweepInterval, "GRIDSAGE_SESSION_SWEEP_INTERVAL")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "GRIDSAGE_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "GRIDSAGE_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "GRIDSAGE_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "GRIDSAGE_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "GRIDSAGE_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.MCP.Addr, "GRIDSAGE_MCP_ADDR")
	setInt64(&cfg.Cache.MaxSizeMB, "GRIDSAGE_CACHE_SIZE_MB")
	setString(&cfg.Logging.Level, "GRIDSAGE_LOG_LEVEL")
	setString(&cfg.Logging.Service, "GRIDSAGE_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "GRIDSAGE_LOG_ASYNC")
	setInt(&cfg.Breaker.MaxFailures, "GRIDSAGE_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "GRIDSAGE_BREAKER_TIMEOUT")
	setString(&cfg.Telemetry.OTLPEndpoint, "GRIDSAGE_OTLP_ENDPOINT")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Storage.IntervalDir == "" {
		return errors.New("storage.interval_dir is required")
	}
	if cfg.Storage.BillingDir == "" {
		return errors.New("storage.billing_dir is required")
	}
	if cfg.Reasoner.BaseURL == "" {
		return errors.New("reasoner.base_url is required")
	}
	if cfg.Agent.MaxRoundTrips < 1 {
		return errors.New("agent.max_round_trips must be >= 1")
	}
	if cfg.Agent.MaxRetries < 0 {
		return errors.New("agent.max_retries must be >= 0")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
