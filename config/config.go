// Package config loads the gateway configuration from a YAML file, a .env
// file and the environment, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Svandze/Spring-Graphql/upstream"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config represents the complete gateway configuration.
type Config struct {
	Address         string                    `yaml:"address"`
	GraphQLPath     string                    `yaml:"graphql_path"`
	SocketPath      string                    `yaml:"socket_path"`
	Playground      bool                      `yaml:"playground"`
	VerifyUpstreams bool                      `yaml:"verify_upstreams"`
	ShutdownTimeout string                    `yaml:"shutdown_timeout,omitempty"`
	Upstreams       map[string]UpstreamConfig `yaml:"upstreams"`
	Log             LogConfig                 `yaml:"log"`
	Metrics         MetricsConfig             `yaml:"metrics"`
	Tracing         TracingConfig             `yaml:"tracing,omitempty"`
}

// UpstreamConfig defines one upstream GraphQL service.
type UpstreamConfig struct {
	URL     string `yaml:"url"`
	Timeout string `yaml:"timeout,omitempty"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	SampleRate  float64 `yaml:"sample_rate"`
}

// Default returns the configuration used when nothing else is set. The
// upstream addresses are the services' local development ports.
func Default() *Config {
	return &Config{
		Address:         ":4000",
		GraphQLPath:     "/graphql",
		SocketPath:      "/socket",
		Playground:      true,
		ShutdownTimeout: "15s",
		Upstreams: map[string]UpstreamConfig{
			upstream.Trainers: {URL: "http://localhost:8087/apis/graphql", Timeout: "10s"},
			upstream.Battles:  {URL: "http://localhost:8088/apis/graphql", Timeout: "10s"},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Tracing: TracingConfig{
			Endpoint:    "localhost:4317",
			ServiceName: "pokemon-gateway",
			SampleRate:  1.0,
		},
	}
}

// Load builds the configuration. path may be empty, in which case only the
// defaults and the environment apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	// A missing .env file is fine.
	_ = godotenv.Load()

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if port, ok := lookup("PORT"); ok && port != "" {
		c.Address = ":" + port
	}
	if address, ok := lookup("GATEWAY_ADDRESS"); ok && address != "" {
		c.Address = address
	}

	if c.Upstreams == nil {
		c.Upstreams = make(map[string]UpstreamConfig)
	}
	for name, variable := range map[string]string{upstream.Trainers: "TRAINERS_URL", upstream.Battles: "BATTLES_URL"} {
		if url, ok := lookup(variable); ok && url != "" {
			u := c.Upstreams[name]
			u.URL = url
			c.Upstreams[name] = u
		}
	}
	if timeout, ok := lookup("UPSTREAM_TIMEOUT"); ok && timeout != "" {
		for name, u := range c.Upstreams {
			u.Timeout = timeout
			c.Upstreams[name] = u
		}
	}

	if level, ok := lookup("LOG_LEVEL"); ok && level != "" {
		c.Log.Level = level
	}
	if format, ok := lookup("LOG_FORMAT"); ok && format != "" {
		c.Log.Format = format
	}

	if endpoint, ok := lookup("TRACING_ENDPOINT"); ok && endpoint != "" {
		c.Tracing.Enabled = true
		c.Tracing.Endpoint = endpoint
	}

	if verify, ok := lookup("VERIFY_UPSTREAMS"); ok && verify != "" {
		enabled, err := strconv.ParseBool(verify)
		if err != nil {
			return fmt.Errorf("%w: VERIFY_UPSTREAMS: %v", ErrInvalidConfig, err)
		}
		c.VerifyUpstreams = enabled
	}

	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("%w: address is required", ErrInvalidConfig)
	}

	for _, path := range []string{c.GraphQLPath, c.SocketPath, c.Metrics.Path} {
		if path != "" && !strings.HasPrefix(path, "/") {
			return fmt.Errorf("%w: path %q must start with /", ErrInvalidConfig, path)
		}
	}
	if c.GraphQLPath == "" {
		return fmt.Errorf("%w: graphql_path is required", ErrInvalidConfig)
	}

	for _, name := range []string{upstream.Trainers, upstream.Battles} {
		if _, ok := c.Upstreams[name]; !ok {
			return fmt.Errorf("%w: upstream %q is not configured", ErrInvalidConfig, name)
		}
	}

	for name, u := range c.Upstreams {
		if u.URL == "" {
			return fmt.Errorf("%w: upstream %q has no url", ErrInvalidConfig, name)
		}
		if !strings.HasPrefix(u.URL, "http://") && !strings.HasPrefix(u.URL, "https://") {
			return fmt.Errorf("%w: upstream %q url must be http(s): %s", ErrInvalidConfig, name, u.URL)
		}
		if u.Timeout != "" {
			if _, err := time.ParseDuration(u.Timeout); err != nil {
				return fmt.Errorf("%w: upstream %q timeout: %v", ErrInvalidConfig, name, err)
			}
		}
	}

	switch c.Log.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, c.Log.Format)
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("%w: tracing sample_rate must be between 0 and 1", ErrInvalidConfig)
	}

	return nil
}

// Endpoints converts the upstream section into client endpoints.
func (c *Config) Endpoints() map[string]upstream.Endpoint {
	endpoints := make(map[string]upstream.Endpoint, len(c.Upstreams))
	for name, u := range c.Upstreams {
		endpoints[name] = upstream.Endpoint{
			URL:     u.URL,
			Timeout: ParseDuration(u.Timeout, upstream.DefaultTimeout),
		}
	}
	return endpoints
}

// ParseDuration parses a duration string with a default value.
func ParseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}
