package config

import (
	"testing"
	"time"
)

func TestEnvBool(t *testing.T) {
	tests := []struct {
		value    string
		fallback bool
		want     bool
	}{
		{"", true, true},
		{"", false, false},
		{"true", false, true},
		{"1", false, true},
		{"yes", false, true},
		{"false", true, false},
		{"FALSE", true, false},
		{"FaLsE", true, false},
		{"0", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			if tt.value != "" {
				t.Setenv("TRACEWAL_TEST_BOOL", tt.value)
			}
			if got := EnvBool("TRACEWAL_TEST_BOOL", tt.fallback); got != tt.want {
				t.Errorf("EnvBool(%q, %v) = %v, want %v", tt.value, tt.fallback, got, tt.want)
			}
		})
	}
}

func TestEnvDuration(t *testing.T) {
	t.Setenv("TRACEWAL_TEST_DUR", "90m")
	if got := EnvDuration("TRACEWAL_TEST_DUR", time.Hour); got != 90*time.Minute {
		t.Errorf("EnvDuration = %v, want 90m", got)
	}

	t.Setenv("TRACEWAL_TEST_DUR", "soon")
	if got := EnvDuration("TRACEWAL_TEST_DUR", time.Hour); got != time.Hour {
		t.Errorf("EnvDuration fallback = %v, want 1h", got)
	}

	if got := EnvDuration("TRACEWAL_TEST_DUR_UNSET", time.Minute); got != time.Minute {
		t.Errorf("EnvDuration unset = %v, want 1m", got)
	}
}

func TestEnvInt64(t *testing.T) {
	t.Setenv("TRACEWAL_TEST_INT", "4096")
	if got := EnvInt64("TRACEWAL_TEST_INT", 1); got != 4096 {
		t.Errorf("EnvInt64 = %d, want 4096", got)
	}

	t.Setenv("TRACEWAL_TEST_INT", "lots")
	if got := EnvInt64("TRACEWAL_TEST_INT", 7); got != 7 {
		t.Errorf("EnvInt64 fallback = %d, want 7", got)
	}
}

func TestEnvString(t *testing.T) {
	t.Setenv("TRACEWAL_TEST_STR", "/var/wal")
	if got := EnvString("TRACEWAL_TEST_STR", "/tmp"); got != "/var/wal" {
		t.Errorf("EnvString = %q, want /var/wal", got)
	}
	if got := EnvString("TRACEWAL_TEST_STR_UNSET", "/tmp"); got != "/tmp" {
		t.Errorf("EnvString unset = %q, want /tmp", got)
	}
}
