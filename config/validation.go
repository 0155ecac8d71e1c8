package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validOptions = map[string][]string{
	"log.level":           {"trace", "debug", "info", "warn", "error"},
	"client.retry.policy": {RetryPolicyNone, RetryPolicyFixed, RetryPolicyExponential},

	"observability.trace.protocol":   {ProtocolHTTP, ProtocolGRPC},
	"observability.metrics.protocol": {ProtocolHTTP, ProtocolGRPC},
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("koanf"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// Validate checks cfg against its struct tags and returns the first failure
// as a *ConfigError.
func Validate(cfg *Config) error {
	if cfg == nil {
		return NewMissingFieldError("config")
	}
	if err := newValidator().Struct(cfg); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			return toConfigError(validationErrors[0])
		}
		return err
	}
	return nil
}

func toConfigError(fe validator.FieldError) *ConfigError {
	// Namespace is "Config.client.baseurl"; drop the root type name
	_, field, _ := strings.Cut(fe.Namespace(), ".")

	switch fe.Tag() {
	case "required":
		return NewMissingFieldError(field)
	case "oneof":
		return NewInvalidFieldError(field, fmt.Sprintf("unsupported value %q", fmt.Sprint(fe.Value())), validOptions[field])
	case "url":
		return NewInvalidFieldError(field, fmt.Sprintf("%q is not a valid url", fmt.Sprint(fe.Value())), nil)
	case "gte", "lte":
		return NewInvalidFieldError(field, fmt.Sprintf("must be %s %s", fe.Tag(), fe.Param()), nil)
	default:
		return NewInvalidFieldError(field, fmt.Sprintf("failed %q validation", fe.Tag()), nil)
	}
}
