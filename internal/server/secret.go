package server

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
)

// secretMatches checks whether the request carries the proxy shared secret.
// Accepted forms: "Bearer <secret>", "Basic <base64 user:pass>" where either
// side equals the secret, the raw secret in the Authorization header, or the
// secret in an x-api-key / api-key header. Comparison is case-sensitive after
// stripping surrounding whitespace and quotes.
func secretMatches(r *http.Request, secret string) bool {
	if secret == "" {
		return false
	}

	for _, header := range []string{"x-api-key", "api-key"} {
		if trimSecret(r.Header.Get(header)) == secret {
			return true
		}
	}

	value := trimSecret(r.Header.Get("Authorization"))
	if value == "" {
		return false
	}
	if value == secret {
		return true
	}

	if rest, ok := stripScheme(value, "Bearer"); ok {
		return trimSecret(rest) == secret
	}
	if rest, ok := stripScheme(value, "Basic"); ok {
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(rest))
		if err != nil {
			return false
		}
		user, pass, found := strings.Cut(string(decoded), ":")
		if !found {
			return user == secret
		}
		return user == secret || pass == secret
	}

	return false
}

func trimSecret(v string) string {
	v = strings.TrimSpace(v)
	v = strings.Trim(v, `"'`)
	return strings.TrimSpace(v)
}

func stripScheme(value, scheme string) (string, bool) {
	if len(value) > len(scheme) && strings.EqualFold(value[:len(scheme)], scheme) && value[len(scheme)] == ' ' {
		return value[len(scheme)+1:], true
	}
	return "", false
}

// authDiagnostic summarizes the credential headers for logging without ever
// exposing their values.
func authDiagnostic(r *http.Request) string {
	parts := make([]string, 0, 3)
	if v := r.Header.Get("Authorization"); v != "" {
		scheme := "raw"
		if s, _, found := strings.Cut(strings.TrimSpace(v), " "); found {
			scheme = s
		}
		parts = append(parts, fmt.Sprintf("authorization(scheme=%s len=%d)", scheme, len(v)))
	}
	for _, header := range []string{"x-api-key", "api-key"} {
		if v := r.Header.Get(header); v != "" {
			parts = append(parts, fmt.Sprintf("%s(len=%d)", header, len(v)))
		}
	}
	if len(parts) == 0 {
		return "no credential headers"
	}
	return strings.Join(parts, ", ")
}
