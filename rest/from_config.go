package rest

import (
	"fmt"

	"github.com/gaborage/restbricks/config"
	"github.com/gaborage/restbricks/logger"
)

// NewServiceFromConfig builds a service from loaded configuration. The
// User-Agent is derived from the application name and version.
func NewServiceFromConfig(cfg *config.Config, log logger.Logger, opts ...Option) (*Service, error) {
	if cfg == nil {
		return nil, NewConfigurationError("configuration cannot be nil")
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	c := cfg.Client
	base := []Option{
		WithUserAgent(cfg.App.Name, cfg.App.Version),
		WithDefaultHeaders(Headers(c.Headers)),
		WithTimeouts(Timeouts{
			Total:         c.Timeout.Total,
			LowSpeedLimit: c.Timeout.LowSpeedLimit,
			LowSpeedTime:  c.Timeout.LowSpeedTime,
		}),
		WithRateLimit(c.Rate.Limit, c.Rate.Burst),
	}
	if c.Auth.Username != "" {
		base = append(base, WithAuthentication(BasicAuthentication{
			Username: c.Auth.Username,
			Password: c.Auth.Password,
		}))
	}

	return NewService(c.BaseURL, c.VerifyTLS, log, append(base, opts...)...), nil
}

// NewRetryStrategy builds the strategy described by cfg. The "none" policy
// yields a nil strategy, which makes Do issue a single attempt.
func NewRetryStrategy(cfg config.RetryConfig) (RetryStrategy, error) {
	var (
		strategy RetryStrategy
		budget   *retryBudget
	)

	switch cfg.Policy {
	case "", config.RetryPolicyNone:
		return nil, nil
	case config.RetryPolicyFixed:
		f := NewFixedRetry(cfg.BaseDelay)
		strategy, budget = f, &f.retryBudget
	case config.RetryPolicyExponential:
		e := NewExponentialBackoffRetry(cfg.BaseDelay, cfg.Multiplier, cfg.MaxDelay)
		e.SetEqualJitter(cfg.EqualJitter)
		strategy, budget = e, &e.retryBudget
	default:
		return nil, NewConfigurationError(fmt.Sprintf("unsupported retry policy %q", cfg.Policy))
	}

	budget.SetMaxAttempts(cfg.MaxAttempts)
	budget.SetMaxElapsedTime(cfg.MaxElapsedTime)
	budget.AddRetriableStatus(cfg.Statuses...)
	budget.SetRetryOnServerErrors(cfg.RetryOnServerErrors)
	budget.SetRetryOnGenericErrors(cfg.RetryOnGenericErrors)
	return strategy, nil
}
