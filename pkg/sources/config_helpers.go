package sources

import (
	"fmt"
	"strconv"
	"strings"
)

// ConfigString reads a non-blank string; non-strings yield fallback.
func ConfigString(cfg Source, key, fallback string) string {
	val, _ := cfg.Config[key].(string)
	if val = strings.TrimSpace(val); val == "" {
		return fallback
	}
	return val
}

// ConfigStrings reads a list of strings; YAML and JSON both decode lists as []any.
func ConfigStrings(cfg Source, key string, fallback []string) []string {
	raw, ok := cfg.Config[key]
	if !ok {
		return fallback
	}

	var out []string
	switch vals := raw.(type) {
	case []string:
		out = vals
	case []any:
		for _, v := range vals {
			out = append(out, fmt.Sprint(v))
		}
	case string:
		out = strings.Split(vals, ",")
	}

	cleaned := make([]string, 0, len(out))
	for _, v := range out {
		if v = strings.TrimSpace(v); v != "" {
			cleaned = append(cleaned, v)
		}
	}
	if len(cleaned) == 0 {
		return fallback
	}
	return cleaned
}

// ConfigInt reads a positive integer; anything else yields fallback.
func ConfigInt(cfg Source, key string, fallback int) int {
	raw, ok := cfg.Config[key]
	if !ok {
		return fallback
	}

	var n int
	switch v := raw.(type) {
	case int:
		n = v
	case int64:
		n = int(v)
	case float64:
		n = int(v)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fallback
		}
		n = parsed
	default:
		return fallback
	}
	if n <= 0 {
		return fallback
	}
	return n
}

// Source config keys.
const (
	ConfigUserAgentKey      = "user_agent"
	ConfigAcceptKey         = "accept"
	ConfigAcceptLanguageKey = "accept_language"
	ConfigCacheControlKey   = "cache_control"
	ConfigAuthorKey         = "author"
)

var headerKeys = [...]struct{ key, header string }{
	{ConfigUserAgentKey, "User-Agent"},
	{ConfigAcceptKey, "Accept"},
	{ConfigAcceptLanguageKey, "Accept-Language"},
	{ConfigCacheControlKey, "Cache-Control"},
}

// Headers maps the request-header keys of a source config onto HTTP headers.
// Blank values are left out so client defaults apply.
func Headers(cfg Source) map[string]string {
	out := make(map[string]string, len(headerKeys))
	for _, hk := range headerKeys {
		if v := ConfigString(cfg, hk.key, ""); v != "" {
			out[hk.header] = v
		}
	}
	return out
}
