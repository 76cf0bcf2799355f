package config

import (
	"encoding/json"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestDurationYAML(t *testing.T) {
	t.Parallel()

	var d Duration
	if err := yaml.Unmarshal([]byte(`"48h"`), &d); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if d.Duration() != 48*time.Hour {
		t.Errorf("Duration() = %v, want 48h", d.Duration())
	}

	out, err := yaml.Marshal(Duration(90 * time.Second))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(out) != "1m30s\n" {
		t.Errorf("Marshal() = %q", out)
	}
}

func TestDurationJSON(t *testing.T) {
	t.Parallel()

	var d Duration
	if err := json.Unmarshal([]byte(`"250ms"`), &d); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if d.Duration() != 250*time.Millisecond {
		t.Errorf("Duration() = %v, want 250ms", d.Duration())
	}

	if err := json.Unmarshal([]byte(`null`), &d); err != nil {
		t.Fatalf("Unmarshal(null) error = %v", err)
	}
	if d.Duration() != 250*time.Millisecond {
		t.Errorf("null overwrote value: %v", d.Duration())
	}

	out, err := json.Marshal(Duration(time.Hour))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(out) != `"1h0m0s"` {
		t.Errorf("Marshal() = %s", out)
	}
}

func TestDurationInvalid(t *testing.T) {
	t.Parallel()

	var d Duration
	if err := yaml.Unmarshal([]byte(`"soon"`), &d); err == nil {
		t.Error("yaml accepted invalid duration")
	}
	if err := json.Unmarshal([]byte(`"soon"`), &d); err == nil {
		t.Error("json accepted invalid duration")
	}
}
