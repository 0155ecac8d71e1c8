package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App: AppConfig{Name: "svc", Version: "1.0.0"},
		Log: LogConfig{Level: "info"},
		Client: ClientConfig{
			BaseURL: "http://localhost:1234",
			Retry:   RetryConfig{Policy: RetryPolicyFixed, BaseDelay: time.Second, MaxAttempts: 3},
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		field    string
		category string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:     "missing app name",
			mutate:   func(c *Config) { c.App.Name = "" },
			field:    "app.name",
			category: "missing",
		},
		{
			name:     "bad log level",
			mutate:   func(c *Config) { c.Log.Level = "loud" },
			field:    "log.level",
			category: "invalid",
		},
		{
			name:     "malformed base url",
			mutate:   func(c *Config) { c.Client.BaseURL = "not a url" },
			field:    "client.baseurl",
			category: "invalid",
		},
		{
			name:     "negative max attempts",
			mutate:   func(c *Config) { c.Client.Retry.MaxAttempts = -1 },
			field:    "client.retry.maxattempts",
			category: "invalid",
		},
		{
			name:     "status out of range",
			mutate:   func(c *Config) { c.Client.Retry.Statuses = []int{503, 700} },
			field:    "client.retry.statuses[1]",
			category: "invalid",
		},
		{
			name:     "unknown telemetry protocol",
			mutate:   func(c *Config) { c.Observability.Trace.Protocol = "udp" },
			field:    "observability.trace.protocol",
			category: "invalid",
		},
		{
			name:     "sample rate above one",
			mutate:   func(c *Config) { c.Observability.Trace.SampleRate = 1.5 },
			field:    "observability.trace.samplerate",
			category: "invalid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}

			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
			assert.Equal(t, tt.category, cfgErr.Category)
		})
	}
}

func TestValidateNil(t *testing.T) {
	err := Validate(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config_missing")
}

func TestConfigErrorFormat(t *testing.T) {
	err := NewInvalidFieldError("client.retry.policy", "unsupported value \"x\"", []string{"none", "fixed"})
	assert.Equal(t, `config_invalid: client.retry.policy unsupported value "x" must be one of: none, fixed`, err.Error())

	missing := NewMissingFieldError("client.baseurl")
	assert.Equal(t, "config_missing: client.baseurl required set RESTBRICKS_CLIENT_BASEURL env var or add client.baseurl to config.yaml", missing.Error())
}
