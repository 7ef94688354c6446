// Package telemetry provides OpenTelemetry instrumentation for boostsync.
// Metrics are exposed through a Prometheus reader scraped at /metrics;
// traces are pushed to an OTLP collector when enabled.
package telemetry

import "fmt"

const (
	// DefaultServiceName is the default service name for telemetry
	DefaultServiceName = "boostsync"

	// DefaultEndpoint is the default OTLP HTTP endpoint for traces
	DefaultEndpoint = "localhost:4318"

	// DefaultSampling is the default trace sampling ratio
	DefaultSampling = 0.05
)

// Config represents the telemetry configuration
type Config struct {
	// Enabled controls whether metrics are collected
	// When false, a no-op meter provider is used
	Enabled bool `yaml:"enabled"`

	// ServiceName is the name of the service for telemetry identification
	// Defaults to "boostsync" if not specified
	ServiceName string `yaml:"serviceName,omitempty"`

	// ServiceVersion is the version of the service for telemetry identification
	ServiceVersion string `yaml:"serviceVersion,omitempty"`

	// Endpoint is the OTLP collector "host:port" for traces
	Endpoint string `yaml:"endpoint,omitempty"`

	// Insecure allows plain HTTP to the collector
	Insecure bool `yaml:"insecure,omitempty"`

	// Tracing contains tracing-specific configuration
	Tracing *TracingConfig `yaml:"tracing,omitempty"`
}

// TracingConfig defines tracing-specific configuration
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`

	// Sampling is the trace sampling ratio (0.0 to 1.0). 0 means the default.
	Sampling float64 `yaml:"sampling,omitempty"`
}

// GetServiceName returns the service name, using the default if unset
func (c *Config) GetServiceName() string {
	if c == nil || c.ServiceName == "" {
		return DefaultServiceName
	}
	return c.ServiceName
}

// GetServiceVersion returns the service version, using "unknown" if unset
func (c *Config) GetServiceVersion() string {
	if c == nil || c.ServiceVersion == "" {
		return "unknown"
	}
	return c.ServiceVersion
}

// GetEndpoint returns the collector endpoint, using the default if unset
func (c *Config) GetEndpoint() string {
	if c == nil || c.Endpoint == "" {
		return DefaultEndpoint
	}
	return c.Endpoint
}

// TracingEnabled reports whether traces should be exported
func (c *Config) TracingEnabled() bool {
	return c != nil && c.Enabled && c.Tracing != nil && c.Tracing.Enabled
}

// GetSampling returns the sampling ratio, using the default if unset
func (c *TracingConfig) GetSampling() float64 {
	if c == nil || c.Sampling == 0 {
		return DefaultSampling
	}
	return c.Sampling
}

// Validate validates the telemetry configuration
func (c *Config) Validate() error {
	if c == nil || !c.Enabled || c.Tracing == nil || !c.Tracing.Enabled {
		return nil
	}
	if c.Tracing.Sampling < 0 || c.Tracing.Sampling > 1.0 {
		return fmt.Errorf("tracing: sampling must be between 0.0 and 1.0, got %f", c.Tracing.Sampling)
	}
	return nil
}
