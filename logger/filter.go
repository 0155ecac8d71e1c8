package logger

import (
	"net/url"
	"strings"
)

// DefaultMaskValue replaces sensitive values in log output.
const DefaultMaskValue = "***"

// FilterConfig defines the configuration for sensitive data filtering
type FilterConfig struct {
	// SensitiveFields contains field names that should be masked in logs
	SensitiveFields []string
	// MaskValue is the value used to replace sensitive data (default: "***")
	MaskValue string
}

// DefaultFilterConfig returns a default configuration with common sensitive field names
func DefaultFilterConfig() *FilterConfig {
	return &FilterConfig{
		SensitiveFields: []string{
			"password", "passwd", "pwd",
			"secret", "api_key", "apikey",
			"token", "authorization", "cookie",
			"credential",
		},
		MaskValue: DefaultMaskValue,
	}
}

// SensitiveDataFilter masks values whose keys look sensitive. Header maps are
// walked key by key so an Authorization header never reaches the output.
type SensitiveDataFilter struct {
	config *FilterConfig
}

// NewSensitiveDataFilter creates a new filter with the given configuration
func NewSensitiveDataFilter(config *FilterConfig) *SensitiveDataFilter {
	if config == nil {
		config = DefaultFilterConfig()
	}
	if config.MaskValue == "" {
		config.MaskValue = DefaultMaskValue
	}
	return &SensitiveDataFilter{config: config}
}

// FilterString filters sensitive data from string values. URLs carrying
// user info always have their password masked.
func (f *SensitiveDataFilter) FilterString(key, value string) string {
	if value == "" {
		return value
	}
	if f.isSensitiveField(key) {
		if isURL(value) {
			return f.maskURL(value)
		}
		return f.config.MaskValue
	}
	if isURL(value) {
		return f.maskURL(value)
	}
	return value
}

// FilterValue filters sensitive data from map values; other types pass through.
func (f *SensitiveDataFilter) FilterValue(key string, value any) any {
	if f.isSensitiveField(key) {
		return f.config.MaskValue
	}

	switch v := value.(type) {
	case string:
		return f.FilterString(key, v)
	case map[string]any:
		return f.FilterFields(v)
	case map[string]string:
		out := make(map[string]string, len(v))
		for k, s := range v {
			out[k] = f.FilterString(k, s)
		}
		return out
	case map[string][]string:
		out := make(map[string][]string, len(v))
		for k, values := range v {
			if f.isSensitiveField(k) {
				out[k] = []string{f.config.MaskValue}
				continue
			}
			out[k] = values
		}
		return out
	default:
		return value
	}
}

// FilterFields filters a map of fields for sensitive data
func (f *SensitiveDataFilter) FilterFields(fields map[string]any) map[string]any {
	filtered := make(map[string]any, len(fields))
	for key, value := range fields {
		filtered[key] = f.FilterValue(key, value)
	}
	return filtered
}

func (f *SensitiveDataFilter) isSensitiveField(fieldName string) bool {
	lower := strings.ToLower(fieldName)
	for _, sensitive := range f.config.SensitiveFields {
		if strings.Contains(lower, strings.ToLower(sensitive)) {
			return true
		}
	}
	return false
}

func isURL(value string) bool {
	return strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://")
}

// maskURL masks the password in a URL's user info while preserving structure
func (f *SensitiveDataFilter) maskURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return f.config.MaskValue
	}
	if parsed.User == nil {
		return raw
	}
	if _, hasPassword := parsed.User.Password(); !hasPassword {
		return raw
	}
	parsed.User = url.UserPassword(parsed.User.Username(), f.config.MaskValue)
	masked := parsed.String()
	// url.String escapes the mask characters inside user info
	return strings.Replace(masked, url.PathEscape(f.config.MaskValue), f.config.MaskValue, 1)
}
