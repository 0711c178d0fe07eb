package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"gopkg.in/yaml.v3"
)

const (
	DefaultIngestionEndpoint = "https://dc.services.visualstudio.com"

	connectionStringEnv = "APPLICATIONINSIGHTS_CONNECTION_STRING"
	envPrefix           = "SPANBRIDGE_"
)

type Config struct {
	ConnectionString   string        `mapstructure:"connection_string"`
	InstrumentationKey string        `mapstructure:"instrumentation_key"`
	IngestionEndpoint  string        `mapstructure:"ingestion_endpoint"`
	DatabaseFile       string        `mapstructure:"database_file"`
	Timeout            time.Duration `mapstructure:"timeout"`
	MaxElapsedTime     time.Duration `mapstructure:"max_elapsed_time"`
	Workers            int           `mapstructure:"workers"`
	BatchSize          int           `mapstructure:"batch_size"`
}

func defaults() map[string]any {
	return map[string]any{
		"ingestion_endpoint": DefaultIngestionEndpoint,
		"database_file":      "spanbridge.sqlite",
		"timeout":            "10s",
		"max_elapsed_time":   "1m",
		"workers":            4,
		"batch_size":         512,
	}
}

// CreateConfig layers the defaults, the optional yaml file at path and the
// environment, in that order.
func CreateConfig(ctx context.Context, path string) (*Config, error) {
	values := defaults()

	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading config %s: %w", path, err)
		}

		fromFile := map[string]any{}
		if err := yaml.Unmarshal(content, &fromFile); err != nil {
			return nil, fmt.Errorf("error parsing config %s: %w", path, err)
		}

		for k, v := range fromFile {
			values[k] = v
		}
	}

	for k, v := range fromEnv(os.Environ()) {
		values[k] = v
	}

	cfg, err := decode(values)
	if err != nil {
		return nil, err
	}

	if err := cfg.applyConnectionString(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

var keys = map[string]struct{}{
	"connection_string":   {},
	"instrumentation_key": {},
	"ingestion_endpoint":  {},
	"database_file":       {},
	"timeout":             {},
	"max_elapsed_time":    {},
	"workers":             {},
	"batch_size":          {},
}

func fromEnv(environ []string) map[string]any {
	values := map[string]any{}

	for _, kv := range environ {
		key, value, found := strings.Cut(kv, "=")
		if !found || value == "" {
			continue
		}

		switch {
		case key == connectionStringEnv:
			values["connection_string"] = value
		case strings.HasPrefix(key, envPrefix):
			name := strings.ToLower(strings.TrimPrefix(key, envPrefix))
			if _, known := keys[name]; known {
				values[name] = value
			}
		}
	}

	return values
}

func decode(values map[string]any) (*Config, error) {
	cfg := &Config{}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           cfg,
	})
	if err != nil {
		return nil, err
	}

	if err := dec.Decode(values); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}

	return cfg, nil
}

// applyConnectionString fills the key and endpoint from the connection
// string. Explicitly configured values win.
func (c *Config) applyConnectionString() error {
	if c.ConnectionString == "" {
		return nil
	}

	parts, err := ParseConnectionString(c.ConnectionString)
	if err != nil {
		return err
	}

	if c.InstrumentationKey == "" {
		c.InstrumentationKey = parts.InstrumentationKey
	}
	if parts.IngestionEndpoint != "" {
		c.IngestionEndpoint = parts.IngestionEndpoint
	}

	return nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.InstrumentationKey == "" {
		errs = append(errs, errors.New("instrumentation key is required"))
	}
	if c.IngestionEndpoint == "" {
		errs = append(errs, errors.New("ingestion endpoint is required"))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if c.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("batch size must be at least 1, got %d", c.BatchSize))
	}

	return errors.Join(errs...)
}
