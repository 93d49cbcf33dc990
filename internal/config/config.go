package config

import (
	"net/url"
)

// Config is the top-level edgegate configuration.
type Config struct {
	Port           int               `yaml:"port"`            // listen port
	Origins        []OriginConfig    `yaml:"origins"`         // upstream origins
	Strategy       string            `yaml:"strategy"`        // selection algorithm
	FailOpen       *bool             `yaml:"fail_open"`       // degraded mode: route to first origin when none are healthy
	RequestTimeout int               `yaml:"request_timeout"` // seconds per forwarded request
	Failover       FailoverConfig    `yaml:"failover"`
	HealthCheck    HealthCheckConfig `yaml:"health_check"`
	Cache          CacheConfig       `yaml:"cache"`
	Geo            GeoConfig         `yaml:"geo"`
}

// OriginConfig describes a single upstream origin.
type OriginConfig struct {
	URL    string `yaml:"url"`
	Weight int    `yaml:"weight,omitempty"`
}

// FailoverConfig bounds re-routing after origin failures.
type FailoverConfig struct {
	MaxHops       int `yaml:"max_hops"`       // maximum failover re-routes per request
	BudgetPercent int `yaml:"budget_percent"` // share of traffic allowed to be failover attempts
}

// HealthCheckConfig defines health probing parameters.
type HealthCheckConfig struct {
	Enabled             bool   `yaml:"enabled"`
	Interval            int    `yaml:"interval"`              // seconds between probe rounds
	Timeout             int    `yaml:"timeout"`               // per sub-check timeout in seconds
	ResponseThresholdMS int    `yaml:"response_threshold_ms"` // response-time check limit
	Path                string `yaml:"path"`                  // probe endpoint path
}

// CacheConfig defines the response cache parameters.
type CacheConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Dir          string `yaml:"dir"`            // leveldb directory
	MaxTTL       int    `yaml:"max_ttl"`        // global TTL cap in seconds
	MaxBodyBytes int64  `yaml:"max_body_bytes"` // per-entry body size limit
}

// GeoConfig carries explicit geographic routing tables.
type GeoConfig struct {
	Colos      map[string]string `yaml:"colos"`      // colo id -> origin URL
	Continents map[string]string `yaml:"continents"` // continent code -> origin URL
}

// ParsedOrigin is an origin with its URL parsed and weight defaulted.
type ParsedOrigin struct {
	URL    *url.URL
	Weight int
}

// ParseOrigins converts OriginConfig entries into ParsedOrigin values.
func (c *Config) ParseOrigins() ([]*ParsedOrigin, error) {
	var origins []*ParsedOrigin
	for _, oc := range c.Origins {
		u, err := url.Parse(oc.URL)
		if err != nil {
			return nil, err
		}

		weight := oc.Weight
		if weight == 0 {
			weight = 1
		}

		origins = append(origins, &ParsedOrigin{
			URL:    u,
			Weight: weight,
		})
	}
	return origins, nil
}

// FailOpenEnabled reports the degraded-mode policy, defaulting to fail-open.
func (c *Config) FailOpenEnabled() bool {
	if c.FailOpen == nil {
		return true
	}
	return *c.FailOpen
}
