package rest

import (
	"net/http"
	"sort"
	"strings"
)

// Headers is a header mapping with case-insensitive lookups. Keys keep the
// spelling they were set with; Set replaces any case-variant of the key.
type Headers map[string]string

// Lookup returns the value for key and whether it was present. Empty values are
// reported as present.
func (h Headers) Lookup(key string) (string, bool) {
	if v, ok := h[key]; ok {
		return v, true
	}
	for k, v := range h {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}

// Get returns the value for key, or "" when absent
func (h Headers) Get(key string) string {
	v, _ := h.Lookup(key)
	return v
}

// Has reports whether key is present regardless of case
func (h Headers) Has(key string) bool {
	_, ok := h.Lookup(key)
	return ok
}

// Set stores value under key, dropping any entry whose key differs only in case
func (h Headers) Set(key, value string) {
	h.Del(key)
	h[key] = value
}

// Del removes key and all of its case variants
func (h Headers) Del(key string) {
	for k := range h {
		if strings.EqualFold(k, key) {
			delete(h, k)
		}
	}
}

// Clone returns an independent copy
func (h Headers) Clone() Headers {
	out := make(Headers, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// Keys returns the header names sorted for stable output
func (h Headers) Keys() []string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// mergeHeaders returns defaults overlaid with overrides; overrides win on
// case-insensitive collisions. Neither input is modified.
func mergeHeaders(defaults, overrides Headers) Headers {
	merged := defaults.Clone()
	for k, v := range overrides {
		merged.Set(k, v)
	}
	return merged
}

// headersFromHTTP flattens net/http headers, joining repeated values with ", "
func headersFromHTTP(h http.Header) Headers {
	out := make(Headers, len(h))
	for k, values := range h {
		out[k] = strings.Join(values, ", ")
	}
	return out
}
