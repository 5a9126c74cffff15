package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Cache stores supported by provider definitions.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// ProvidersConfig is the provider section of the geocoder configuration file.
type ProvidersConfig struct {
	Default   string                        `yaml:"default"`
	Providers map[string]ProviderDefinition `yaml:"providers"`
}

// ProviderDefinition declares one named provider: the factory building it,
// the options handed to the factory, and the plugins wrapped around it.
type ProviderDefinition struct {
	Factory string         `yaml:"factory"`
	Options map[string]any `yaml:"options"`

	Cache         string        `yaml:"cache"`
	CacheLifetime time.Duration `yaml:"cache_lifetime"`
	CacheSize     int           `yaml:"cache_size"`

	Limit     int        `yaml:"limit"`
	Locale    string     `yaml:"locale"`
	RateLimit *RateLimit `yaml:"rate_limit"`
	Logging   bool       `yaml:"logging"`
	Profiling bool       `yaml:"profiling"`
}

// RateLimit caps the requests per second sent to a provider.
type RateLimit struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// LoadProviders reads path, expands ${VAR} references from the environment,
// and validates the result.
func LoadProviders(path string) (*ProvidersConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read providers file: %w", err)
	}
	return ParseProviders(data)
}

// ParseProviders decodes and validates a providers document.
func ParseProviders(data []byte) (*ProvidersConfig, error) {
	var cfg ProvidersConfig
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("decode providers: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the definitions and fills the default provider when only
// one is declared.
func (c *ProvidersConfig) Validate() error {
	if len(c.Providers) == 0 {
		return errors.New("no providers configured")
	}
	for name, def := range c.Providers {
		if def.Factory == "" {
			return fmt.Errorf("provider %q: factory is required", name)
		}
		if def.Cache != "" && def.Cache != CacheMemory && def.Cache != CacheRedis {
			return fmt.Errorf("provider %q: unknown cache %q", name, def.Cache)
		}
		if def.CacheLifetime < 0 || def.CacheSize < 0 || def.Limit < 0 {
			return fmt.Errorf("provider %q: cache_lifetime, cache_size and limit must not be negative", name)
		}
		if def.RateLimit != nil && def.RateLimit.RPS <= 0 {
			return fmt.Errorf("provider %q: rate_limit.rps must be positive", name)
		}
	}
	if c.Default == "" && len(c.Providers) == 1 {
		for name := range c.Providers {
			c.Default = name
		}
	}
	if c.Default == "" {
		return errors.New("default provider is required when several providers are configured")
	}
	if _, ok := c.Providers[c.Default]; !ok {
		return fmt.Errorf("default provider %q is not configured", c.Default)
	}
	return nil
}

// Names returns the configured provider names in sorted order.
func (c *ProvidersConfig) Names() []string {
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
