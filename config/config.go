// Package config loads REST client configuration from defaults, YAML and
// environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment variables read by Load.
// RESTBRICKS_CLIENT_BASEURL sets client.baseurl.
const EnvPrefix = "RESTBRICKS_"

type loadOptions struct {
	files []string
	raw   [][]byte
}

// LoadOption customises the sources read by Load
type LoadOption func(*loadOptions)

// WithFile adds a YAML file. Missing files are skipped.
func WithFile(path string) LoadOption {
	return func(o *loadOptions) {
		o.files = append(o.files, path)
	}
}

// WithYAML adds an in-memory YAML document
func WithYAML(data []byte) LoadOption {
	return func(o *loadOptions) {
		o.raw = append(o.raw, data)
	}
}

// Load loads configuration from multiple sources with priority:
// 1. Environment variables (highest priority)
// 2. YAML files, then in-memory YAML documents, later sources winning
// 3. Default values (lowest priority)
func Load(opts ...LoadOption) (*Config, error) {
	o := &loadOptions{}
	for _, opt := range opts {
		opt(o)
	}

	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	for _, path := range o.files {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, &ConfigError{Category: "load", Field: path, Message: "could not read yaml file", Details: []string{err.Error()}}
		}
	}

	for _, data := range o.raw {
		if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
			return nil, &ConfigError{Category: "load", Message: "invalid yaml document", Details: []string{err.Error()}}
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			// Convert RESTBRICKS_UPPER_CASE to upper.case for koanf
			key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
			return strings.ReplaceAll(key, "_", "."), value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":    "restbricks",
		"app.version": "1.0.0",

		"log.level":  "info",
		"log.pretty": false,

		// client.baseurl has no default and must be configured
		"client.verifytls":             true,
		"client.timeout.total":         "2m",
		"client.timeout.lowspeedlimit": 0,
		"client.timeout.lowspeedtime":  "0s",

		"client.retry.policy":               RetryPolicyNone,
		"client.retry.basedelay":            "1s",
		"client.retry.multiplier":           2.0,
		"client.retry.maxdelay":             "30s",
		"client.retry.retryongenericerrors": true,

		"client.rate.limit": 0,
		"client.rate.burst": 1,

		"observability.enabled":          false,
		"observability.environment":      "development",
		"observability.trace.enabled":    true,
		"observability.trace.endpoint":   EndpointStdout,
		"observability.trace.protocol":   ProtocolHTTP,
		"observability.trace.samplerate": 1.0,
		"observability.metrics.enabled":  true,
		"observability.metrics.endpoint": EndpointStdout,
		"observability.metrics.protocol": ProtocolHTTP,
		"observability.metrics.interval": "30s",
	}

	return k.Load(confmap.Provider(defaults, "."), nil)
}
