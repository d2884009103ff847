// Package config provides hierarchical configuration loading for fraudwatch.
// Precedence: defaults < YAML file < environment variables.
package config

import "time"

// Config holds all runtime configuration shared by the api, worker,
// toolserver and starter binaries.
type Config struct {
	Server   Server   `yaml:"server"`
	Temporal Temporal `yaml:"temporal"`
	LiteLLM  LiteLLM  `yaml:"litellm"`
	Tools    Tools    `yaml:"tools"`
	CRM      CRM      `yaml:"crm"`
	Review   Review   `yaml:"review"`
	Logging  Logging  `yaml:"logging"`
	Breaker  Breaker  `yaml:"breaker"`
	Cache    Cache    `yaml:"cache"`
	OTel     OTel     `yaml:"otel"`
}

// Server holds HTTP server configuration for the api binary.
type Server struct {
	Port       string `yaml:"port"`
	CORSOrigin string `yaml:"cors_origin"`
}

// Temporal holds connection settings for the durable-execution service.
type Temporal struct {
	HostPort  string `yaml:"host_port"`
	Namespace string `yaml:"namespace"`
}

// LiteLLM holds LLM proxy configuration.
type LiteLLM struct {
	URL             string `yaml:"url"`
	MasterKey       string `yaml:"master_key"`
	Model           string `yaml:"model"`
	AggregatorModel string `yaml:"aggregator_model"`
}

// Tools holds the MCP lookup-tool backend the specialists consult.
type Tools struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

// CRM holds settings for the toolserver binary.
type CRM struct {
	Listen string `yaml:"listen"`
	DBPath string `yaml:"db_path"`
}

// Review holds fraud-review workflow defaults.
type Review struct {
	ApprovalTimeoutHours float64 `yaml:"approval_timeout_hours"`
}

// Logging holds structured logging configuration.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
}

// Breaker holds circuit breaker configuration for LLM calls.
type Breaker struct {
	MaxFailures int           `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Cache holds the api status-cache configuration.
type Cache struct {
	StatusTTL time.Duration `yaml:"status_ttl"`
	MaxSizeMB int64         `yaml:"max_size_mb"`
}

// OTel holds OpenTelemetry exporter configuration. An empty endpoint
// disables export.
type OTel struct {
	Endpoint string `yaml:"endpoint"`
}

// Defaults returns a Config with sensible default values for local development.
func Defaults() Config {
	return Config{
		Server: Server{
			Port:       "8090",
			CORSOrigin: "http://localhost:3000",
		},
		Temporal: Temporal{
			HostPort:  "localhost:7233",
			Namespace: "default",
		},
		LiteLLM: LiteLLM{
			URL:             "http://localhost:4000",
			Model:           "openai/gpt-4o",
			AggregatorModel: "openai/gpt-4o",
		},
		Tools: Tools{
			URL:  "http://localhost:8000/mcp",
			Name: "fraudwatch-crm",
		},
		CRM: CRM{
			Listen: ":8000",
			DBPath: "fraudwatch.db",
		},
		Review: Review{
			ApprovalTimeoutHours: 72,
		},
		Logging: Logging{
			Level:   "info",
			Service: "fraudwatch",
		},
		Breaker: Breaker{
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		},
		Cache: Cache{
			StatusTTL: time.Second,
			MaxSizeMB: 16,
		},
	}
}
