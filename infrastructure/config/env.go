// Package config provides environment-based configuration helpers.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvBool reads a boolean environment variable. The values "false" and
// "0" (any case) are false, any other non-empty value is true, and an
// unset or empty variable yields fallback.
func EnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	switch strings.ToLower(v) {
	case "false", "0":
		return false
	default:
		return true
	}
}

// EnvDuration reads a duration environment variable in Go duration
// syntax (e.g. "24h", "90m"). Unset, empty, or unparseable values yield
// fallback.
func EnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

// EnvInt64 reads an integer environment variable. Unset, empty, or
// unparseable values yield fallback.
func EnvInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

// EnvString reads a string environment variable, yielding fallback when
// unset or empty.
func EnvString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
