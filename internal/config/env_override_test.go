package config

import "testing"

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CONTEXTKIT_DB", "/tmp/override.db")
	t.Setenv("CONTEXTKIT_POLICY_URL", "http://policy.internal:8443")
	t.Setenv("CONTEXTKIT_POLICY_FALLBACK", "false")
	t.Setenv("CONTEXTKIT_ACCEPT_THRESHOLD", "0.85")
	t.Setenv("CONTEXTKIT_MAX_RETRIES", "5")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Store.Path != "/tmp/override.db" {
		t.Errorf("Store.Path = %q", cfg.Store.Path)
	}
	if cfg.Policy.ServiceURL != "http://policy.internal:8443" {
		t.Errorf("Policy.ServiceURL = %q", cfg.Policy.ServiceURL)
	}
	if cfg.Policy.FallbackEnabled {
		t.Error("FallbackEnabled should be overridden to false")
	}
	if cfg.Decision.AcceptThreshold != 0.85 {
		t.Errorf("AcceptThreshold = %v", cfg.Decision.AcceptThreshold)
	}
	if cfg.Decision.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d", cfg.Decision.MaxRetries)
	}
}

func TestEnvOverrides_MalformedValuesIgnored(t *testing.T) {
	t.Setenv("CONTEXTKIT_ACCEPT_THRESHOLD", "not-a-number")
	t.Setenv("CONTEXTKIT_MAX_RETRIES", "many")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Decision.AcceptThreshold != 0.70 {
		t.Errorf("malformed threshold should keep default, got %v", cfg.Decision.AcceptThreshold)
	}
	if cfg.Decision.MaxRetries != 3 {
		t.Errorf("malformed retries should keep default, got %d", cfg.Decision.MaxRetries)
	}
}
