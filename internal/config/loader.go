package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfig reads a YAML file and parses it into a Config struct.
func LoadConfig(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Defaults
	if config.Port == 0 {
		config.Port = 8080
	}
	if len(config.Origins) == 0 {
		return nil, fmt.Errorf("no origins configured")
	}
	if config.Strategy == "" {
		config.Strategy = "round-robin"
	}
	if config.RequestTimeout == 0 {
		config.RequestTimeout = 30
	}

	// Failover defaults
	if config.Failover.MaxHops == 0 {
		config.Failover.MaxHops = 3
	}
	if config.Failover.BudgetPercent == 0 {
		config.Failover.BudgetPercent = 20
	}

	// Health check defaults
	if config.HealthCheck.Interval == 0 {
		config.HealthCheck.Interval = 30
	}
	if config.HealthCheck.Timeout == 0 {
		config.HealthCheck.Timeout = 5
	}
	if config.HealthCheck.ResponseThresholdMS == 0 {
		config.HealthCheck.ResponseThresholdMS = 1000
	}
	if config.HealthCheck.Path == "" {
		config.HealthCheck.Path = "/health"
	}

	// Cache defaults
	if config.Cache.Dir == "" {
		config.Cache.Dir = "data/cache"
	}
	if config.Cache.MaxTTL == 0 {
		config.Cache.MaxTTL = 86400
	}
	if config.Cache.MaxBodyBytes == 0 {
		config.Cache.MaxBodyBytes = 10 << 20
	}

	return &config, nil
}
