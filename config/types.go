package config

import "time"

// Config represents the overall configuration of a REST-consuming tool:
// identity used in the User-Agent, logging preferences and the REST client.
type Config struct {
	App    AppConfig    `koanf:"app" json:"app" yaml:"app"`
	Log    LogConfig    `koanf:"log" json:"log" yaml:"log"`
	Client ClientConfig `koanf:"client" json:"client" yaml:"client"`

	Observability ObservabilityConfig `koanf:"observability" json:"observability" yaml:"observability"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name    string `koanf:"name" json:"name" yaml:"name" validate:"required"`
	Version string `koanf:"version" json:"version" yaml:"version" validate:"required"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `koanf:"level" json:"level" yaml:"level" validate:"oneof=trace debug info warn error"`
	Pretty bool   `koanf:"pretty" json:"pretty" yaml:"pretty"`
}

// ClientConfig describes one REST service endpoint and how requests to it
// are executed.
type ClientConfig struct {
	BaseURL   string            `koanf:"baseurl" json:"baseurl" yaml:"baseurl" validate:"required,url"`
	VerifyTLS bool              `koanf:"verifytls" json:"verifytls" yaml:"verifytls"`
	Headers   map[string]string `koanf:"headers" json:"headers" yaml:"headers"`
	Auth      AuthConfig        `koanf:"auth" json:"auth" yaml:"auth"`
	Timeout   TimeoutConfig     `koanf:"timeout" json:"timeout" yaml:"timeout"`
	Retry     RetryConfig       `koanf:"retry" json:"retry" yaml:"retry"`
	Rate      RateConfig        `koanf:"rate" json:"rate" yaml:"rate"`
}

// AuthConfig selects the service-wide authentication. An empty username
// disables authentication.
type AuthConfig struct {
	Username string `koanf:"username" json:"username" yaml:"username"`
	Password string `koanf:"password" json:"-" yaml:"password"`
}

// TimeoutConfig bounds every attempt.
type TimeoutConfig struct {
	Total         time.Duration `koanf:"total" json:"total" yaml:"total" validate:"gte=0"`
	LowSpeedLimit int64         `koanf:"lowspeedlimit" json:"lowspeedlimit" yaml:"lowspeedlimit" validate:"gte=0"`
	LowSpeedTime  time.Duration `koanf:"lowspeedtime" json:"lowspeedtime" yaml:"lowspeedtime" validate:"gte=0"`
}

// Retry policies
const (
	RetryPolicyNone        = "none"
	RetryPolicyFixed       = "fixed"
	RetryPolicyExponential = "exponential"
)

// RetryConfig describes the retry strategy applied by Do when the caller does
// not provide one.
type RetryConfig struct {
	Policy               string        `koanf:"policy" json:"policy" yaml:"policy" validate:"oneof=none fixed exponential"`
	BaseDelay            time.Duration `koanf:"basedelay" json:"basedelay" yaml:"basedelay" validate:"gte=0"`
	Multiplier           float64       `koanf:"multiplier" json:"multiplier" yaml:"multiplier" validate:"gte=0"`
	MaxDelay             time.Duration `koanf:"maxdelay" json:"maxdelay" yaml:"maxdelay" validate:"gte=0"`
	MaxAttempts          int           `koanf:"maxattempts" json:"maxattempts" yaml:"maxattempts" validate:"gte=0"`
	MaxElapsedTime       time.Duration `koanf:"maxelapsedtime" json:"maxelapsedtime" yaml:"maxelapsedtime" validate:"gte=0"`
	Statuses             []int         `koanf:"statuses" json:"statuses" yaml:"statuses" validate:"dive,gte=100,lte=599"`
	RetryOnServerErrors  bool          `koanf:"retryonservererrors" json:"retryonservererrors" yaml:"retryonservererrors"`
	RetryOnGenericErrors bool          `koanf:"retryongenericerrors" json:"retryongenericerrors" yaml:"retryongenericerrors"`
	EqualJitter          bool          `koanf:"equaljitter" json:"equaljitter" yaml:"equaljitter"`
}

// RateConfig holds client-side rate limiting settings. A zero limit disables it.
type RateConfig struct {
	Limit float64 `koanf:"limit" json:"limit" yaml:"limit" validate:"gte=0"`
	Burst int     `koanf:"burst" json:"burst" yaml:"burst" validate:"gte=0"`
}

// Telemetry export protocols
const (
	ProtocolHTTP = "http"
	ProtocolGRPC = "grpc"
)

// EndpointStdout makes an exporter print to standard output instead of
// shipping to an OTLP collector.
const EndpointStdout = "stdout"

// ObservabilityConfig controls the OpenTelemetry providers handed to the REST
// client. When disabled the client records into no-op providers.
type ObservabilityConfig struct {
	Enabled     bool           `koanf:"enabled" json:"enabled" yaml:"enabled"`
	Environment string         `koanf:"environment" json:"environment" yaml:"environment"`
	Trace       ExporterConfig `koanf:"trace" json:"trace" yaml:"trace"`
	Metrics     ExporterConfig `koanf:"metrics" json:"metrics" yaml:"metrics"`
}

// ExporterConfig describes one signal's exporter. SampleRate only applies to
// traces and Interval only to metrics.
type ExporterConfig struct {
	Enabled    bool              `koanf:"enabled" json:"enabled" yaml:"enabled"`
	Endpoint   string            `koanf:"endpoint" json:"endpoint" yaml:"endpoint"`
	Protocol   string            `koanf:"protocol" json:"protocol" yaml:"protocol" validate:"omitempty,oneof=http grpc"`
	Insecure   bool              `koanf:"insecure" json:"insecure" yaml:"insecure"`
	Headers    map[string]string `koanf:"headers" json:"-" yaml:"headers"`
	SampleRate float64           `koanf:"samplerate" json:"samplerate" yaml:"samplerate" validate:"gte=0,lte=1"`
	Interval   time.Duration     `koanf:"interval" json:"interval" yaml:"interval" validate:"gte=0"`
}
