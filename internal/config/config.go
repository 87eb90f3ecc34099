// Package config provides environment variable-based configuration loading.
//
// Purpose:
//
//	This package defines the service configuration structure and provides
//	functions to load configuration from environment variables using
//	envconfig. Both binaries (authproxy, console) share this structure.
//
// Key Responsibilities:
//   - Config struct defines all configuration fields
//   - Load reads and validates environment variables
//   - MustLoad exits the process if configuration is invalid
//
// Debugging Notes:
//   - Required fields: BACKEND_URL, BACKEND_ANON_KEY
//   - Defaults provided for optional fields (port, timeouts, log level)
//   - Redis is optional (no-op identity cache used if not configured)
//   - Kafka is optional (audit events logged if brokers unset)
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config represents shared runtime configuration for the CallCenterX
// binaries. All fields are populated from environment variables with
// defaults where specified. Required fields must be set or Load/MustLoad
// will return an error.
type Config struct {
	// ServiceName is emitted in logs and metrics.
	ServiceName string `envconfig:"SERVICE_NAME" default:"callcenterx"`
	// HTTPPort is the port the authproxy listens on.
	HTTPPort int `envconfig:"HTTP_PORT" default:"8090"`
	// BackendURL is the hosted auth/data backend's project URL.
	BackendURL string `envconfig:"BACKEND_URL" required:"true"`
	// BackendAnonKey is the public API key identifying this application to
	// the backend.
	BackendAnonKey string `envconfig:"BACKEND_ANON_KEY" required:"true"`
	// BackendServiceKey is the privileged key the authproxy uses for table
	// access performed without a subject session. Optional; the anon key is
	// used when unset.
	BackendServiceKey string `envconfig:"BACKEND_SERVICE_KEY" default:""`
	// CallTimeout bounds each external backend call during identity
	// resolution.
	CallTimeout time.Duration `envconfig:"CALL_TIMEOUT" default:"5s"`
	// RedisAddr is the host:port of the Redis instance used for identity
	// caching. Empty disables the cache.
	RedisAddr string `envconfig:"REDIS_ADDR" default:""`
	// RedisPassword is the optional password for Redis authentication.
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	// RedisDB selects the logical Redis database index.
	RedisDB int `envconfig:"REDIS_DB" default:"0"`
	// IdentityCacheTTL caps how long an assembled identity may be served
	// from the cache. The access token's own expiry caps it further.
	IdentityCacheTTL time.Duration `envconfig:"IDENTITY_CACHE_TTL" default:"60s"`
	// KafkaBrokers is a comma-separated list of Kafka broker addresses. If
	// empty, audit events are logged instead of produced to Kafka.
	KafkaBrokers string `envconfig:"KAFKA_BROKERS" default:""`
	// KafkaTopic is the Kafka topic for audit events.
	KafkaTopic string `envconfig:"KAFKA_TOPIC" default:"audit.identity"`
	// KafkaClientID is the client ID used when connecting to Kafka.
	KafkaClientID string `envconfig:"KAFKA_CLIENT_ID" default:"callcenterx"`
	// SynthesizeURL is the speech-synthesis provider's text-to-speech base
	// URL. Empty disables the /synthesize endpoint.
	SynthesizeURL string `envconfig:"SYNTHESIZE_URL" default:"https://api.elevenlabs.io/v1/text-to-speech"`
	// SynthesizeAPIKey authenticates against the speech provider.
	SynthesizeAPIKey string `envconfig:"SYNTHESIZE_API_KEY" default:""`
	// LogLevel controls zerolog global level (debug, info, warn, error).
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	// Environment describes the current deployment environment.
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
}

// Load reads environment variables into Config, applying defaults where
// necessary.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: process env: %w", err)
	}
	return &cfg, nil
}

// MustLoad returns Config or exits the process.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}
