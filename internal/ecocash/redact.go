package ecocash

import (
	"net/http"
	"sort"
	"strings"
)

const redacted = "[REDACTED]"

var sensitiveHeaders = map[string]bool{
	"X-Api-Key":     true,
	"Authorization": true,
}

// redactHeaders renders headers for audit logs with credentials masked.
func redactHeaders(h http.Header) string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		value := strings.Join(h[k], ",")
		if sensitiveHeaders[http.CanonicalHeaderKey(k)] {
			value = redacted
		}
		parts = append(parts, k+": "+value)
	}

	return strings.Join(parts, "; ")
}

// redactSecret removes any literal occurrence of secret from s.
func redactSecret(s, secret string) string {
	if secret == "" {
		return s
	}
	return strings.ReplaceAll(s, secret, redacted)
}
