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
const DefaultConfigFile = "fraudwatch.yaml"

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
	data, err := os.ReadFile(path)
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
	setString(&cfg.Server.Port, "FRAUDWATCH_PORT")
	setString(&cfg.Server.CORSOrigin, "FRAUDWATCH_CORS_ORIGIN")
	setString(&cfg.Temporal.HostPort, "TEMPORAL_HOST_PORT")
	setString(&cfg.Temporal.Namespace, "TEMPORAL_NAMESPACE")
	setString(&cfg.LiteLLM.URL, "LITELLM_URL")
	setString(&cfg.LiteLLM.MasterKey, "LITELLM_MASTER_KEY")
	setString(&cfg.LiteLLM.Model, "FRAUDWATCH_LLM_MODEL")
	setString(&cfg.LiteLLM.AggregatorModel, "FRAUDWATCH_AGGREGATOR_MODEL")
	setString(&cfg.Tools.URL, "MCP_SERVER_URI")
	setString(&cfg.Tools.Name, "FRAUDWATCH_TOOLS_NAME")
	setString(&cfg.CRM.Listen, "FRAUDWATCH_CRM_LISTEN")
	setString(&cfg.CRM.DBPath, "FRAUDWATCH_CRM_DB")
	setFloat64(&cfg.Review.ApprovalTimeoutHours, "FRAUDWATCH_APPROVAL_TIMEOUT_HOURS")
	setString(&cfg.Logging.Level, "FRAUDWATCH_LOG_LEVEL")
	setString(&cfg.Logging.Service, "FRAUDWATCH_LOG_SERVICE")
	setInt(&cfg.Breaker.MaxFailures, "FRAUDWATCH_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "FRAUDWATCH_BREAKER_TIMEOUT")
	setDuration(&cfg.Cache.StatusTTL, "FRAUDWATCH_CACHE_STATUS_TTL")
	setInt64(&cfg.Cache.MaxSizeMB, "FRAUDWATCH_CACHE_SIZE_MB")
	setString(&cfg.OTel.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
}

// validate checks that required fields are set. A failure here is fatal at
// startup and never retried.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Temporal.HostPort == "" {
		return errors.New("temporal.host_port is required")
	}
	if cfg.Temporal.Namespace == "" {
		return errors.New("temporal.namespace is required")
	}
	if cfg.LiteLLM.URL == "" {
		return errors.New("litellm.url is required")
	}
	if cfg.LiteLLM.Model == "" {
		return errors.New("litellm.model is required")
	}
	if cfg.Tools.URL == "" {
		return errors.New("tools.url is required")
	}
	if cfg.Review.ApprovalTimeoutHours <= 0 {
		return errors.New("review.approval_timeout_hours must be > 0")
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

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
