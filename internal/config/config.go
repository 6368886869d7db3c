// Package config loads the gateway's YAML configuration: a
// Load(filename) entry point, post-unmarshal defaulting, and
// validation errors aggregated into one message instead of failing on
// the first mismatch.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level gateway configuration.
type Config struct {
	Component   string `yaml:"component"`
	ServiceName string `yaml:"service_name"`
	Mode        string `yaml:"mode"`
	LogLevel    int    `yaml:"log_level"`
	Debug       bool   `yaml:"debug"`

	Cache CacheConfig `yaml:"cache"`
	Txn   TxnConfig   `yaml:"transaction"`
	Authz AuthzConfig `yaml:"authorization"`
	Event EventConfig `yaml:"event_pipeline"`

	AwaitTimeoutSeconds int `yaml:"await_timeout_seconds"`
}

// CacheConfig tunes the Parameter Cache.
type CacheConfig struct {
	MaxEntries             int  `yaml:"max_entries"`
	DefaultTTLSeconds      int  `yaml:"default_ttl_seconds"`
	CleanupIntervalSeconds int  `yaml:"cleanup_interval_seconds"`
	EnableStats            bool `yaml:"enable_stats"`
}

// TxnConfig tunes the Transaction Engine.
type TxnConfig struct {
	MaxTransactionSize        int  `yaml:"max_transaction_size"`
	TransactionTimeoutSeconds int  `yaml:"transaction_timeout_seconds"`
	EnableRollback            bool `yaml:"enable_rollback"`
	EnableValidation          bool `yaml:"enable_validation"`
}

// AuthzConfig configures the Authorization Hook: an ACL rule list plus
// optional JWKS/Redis wiring for the default JWT-backed implementation.
type AuthzConfig struct {
	Rules           []ACLRule `yaml:"rules"`
	JWKSURL         string    `yaml:"jwks_url"`
	RedisAddr       string    `yaml:"redis_addr"`
	CacheTTLSeconds int       `yaml:"cache_ttl_seconds"`
}

// ACLRule is one (pattern, required permission, minimum role,
// require-auth) entry, matched first-match-wins.
type ACLRule struct {
	Pattern            string `yaml:"pattern"`
	RequiredPermission int    `yaml:"required_permission"`
	MinimumRole        string `yaml:"minimum_role"`
	RequireAuth        bool   `yaml:"require_auth"`
}

// EventConfig configures the Event Pipeline. FillOldValueFromCache is a
// *bool so applyDefaults can distinguish an omitted field (defaults to
// true) from an explicit "fill_old_value_from_cache: false".
type EventConfig struct {
	SubscribedEvents      []string `yaml:"subscribed_events"`
	EventsEndpoint        string   `yaml:"events_endpoint"`
	FillOldValueFromCache *bool    `yaml:"fill_old_value_from_cache"`
}

// FillOldValue reports the effective fill-from-cache setting, applying
// the default of true when the config omitted the field.
func (e EventConfig) FillOldValue() bool {
	if e.FillOldValueFromCache == nil {
		return true
	}
	return *e.FillOldValueFromCache
}

// Load reads and parses the gateway configuration file, applying
// defaults post-unmarshal and collecting all validation failures into
// a single error.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Component == "" {
		cfg.Component = "parodus2rbus.client"
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "config"
	}
	if cfg.Mode == "" {
		cfg.Mode = "real"
	}
	if cfg.AwaitTimeoutSeconds == 0 {
		cfg.AwaitTimeoutSeconds = 300
	}

	if cfg.Cache.MaxEntries == 0 {
		cfg.Cache.MaxEntries = 10000
	}
	if cfg.Cache.DefaultTTLSeconds == 0 {
		cfg.Cache.DefaultTTLSeconds = 300
	}
	if cfg.Cache.CleanupIntervalSeconds == 0 {
		cfg.Cache.CleanupIntervalSeconds = 60
	}

	if cfg.Txn.MaxTransactionSize == 0 {
		cfg.Txn.MaxTransactionSize = 100
	}
	if cfg.Txn.TransactionTimeoutSeconds == 0 {
		cfg.Txn.TransactionTimeoutSeconds = 30
	}

	if cfg.Authz.CacheTTLSeconds == 0 {
		cfg.Authz.CacheTTLSeconds = 300
	}

	if cfg.Event.EventsEndpoint == "" {
		cfg.Event.EventsEndpoint = "events"
	}
}

// validate aggregates every config problem into one multi-line error
// instead of failing fast on the first error.
func validate(cfg *Config) error {
	var errs []string

	if cfg.Mode != "real" && cfg.Mode != "mock" {
		errs = append(errs, fmt.Sprintf("mode must be 'real' or 'mock', got %q", cfg.Mode))
	}
	if cfg.LogLevel < 0 || cfg.LogLevel > 3 {
		errs = append(errs, fmt.Sprintf("log_level must be 0..3, got %d", cfg.LogLevel))
	}
	if cfg.AwaitTimeoutSeconds < 0 {
		errs = append(errs, fmt.Sprintf("await_timeout_seconds cannot be negative: %d", cfg.AwaitTimeoutSeconds))
	}
	if cfg.Cache.MaxEntries < 0 {
		errs = append(errs, fmt.Sprintf("cache.max_entries cannot be negative: %d", cfg.Cache.MaxEntries))
	}
	if cfg.Txn.MaxTransactionSize < 0 {
		errs = append(errs, fmt.Sprintf("transaction.max_transaction_size cannot be negative: %d", cfg.Txn.MaxTransactionSize))
	}
	for i, rule := range cfg.Authz.Rules {
		if rule.Pattern == "" {
			errs = append(errs, fmt.Sprintf("authorization.rules[%d]: pattern is required", i))
		}
	}

	if len(errs) > 0 {
		msg := "configuration validation failed:\n"
		for _, e := range errs {
			msg += "  - " + e + "\n"
		}
		return fmt.Errorf("%s", msg)
	}
	return nil
}

// Default returns the hardcoded fallback configuration, used by
// cmd/paramgw when no config file resolves.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}
