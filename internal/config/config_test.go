package config

import "testing"

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
}

func TestLoadClampsMatchThreshold(t *testing.T) {
	t.Setenv("MATCH_THRESHOLD", "1.5")

	cfg := Load()
	if cfg.MatchThreshold != 0.6 {
		t.Fatalf("expected out-of-range threshold to fall back to 0.6, got %v", cfg.MatchThreshold)
	}

	t.Setenv("MATCH_THRESHOLD", "0.75")
	cfg = Load()
	if cfg.MatchThreshold != 0.75 {
		t.Fatalf("expected threshold 0.75, got %v", cfg.MatchThreshold)
	}
}
