package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GOTRUE_URL", "")
	t.Setenv("GOTRUE_ACCESS_TOKEN", "")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BaseURL != "http://0.0.0.0:9999" {
		t.Fatalf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.AccessToken != "" {
		t.Fatalf("expected no default token, got %q", cfg.AccessToken)
	}
	if cfg.HTTPTimeout != 10*time.Second || cfg.SessionDefaultTTL != time.Hour {
		t.Fatalf("unexpected durations %v %v", cfg.HTTPTimeout, cfg.SessionDefaultTTL)
	}
	if cfg.SessionRetention != 30*24*time.Hour {
		t.Fatalf("SessionRetention = %v", cfg.SessionRetention)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("GOTRUE_URL", "https://auth.example.com")
	t.Setenv("GOTRUE_ACCESS_TOKEN", "service-key")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BaseURL != "https://auth.example.com" || cfg.AccessToken != "service-key" || cfg.LogLevel != "debug" {
		t.Fatalf("unexpected config %#v", cfg)
	}
	if cfg.Redacted().AccessToken != "[redacted]" {
		t.Fatalf("Redacted did not hide token")
	}
}

func TestLoadFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("GOTRUE_URL", "https://auth.example.com")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	if err := fs.Parse([]string{"--url", "http://localhost:9999", "--events-file", "events.yaml"}); err != nil {
		t.Fatalf("parse: %v", err)
	}

	cfg, err := Load(fs)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BaseURL != "http://localhost:9999" {
		t.Fatalf("BaseURL = %q, flag should win", cfg.BaseURL)
	}
	if cfg.EventsFile != "events.yaml" {
		t.Fatalf("EventsFile = %q", cfg.EventsFile)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("GOTRUE_URL", "not a url")
	if _, err := Load(nil); err == nil {
		t.Fatalf("expected error for invalid url")
	}

	t.Setenv("GOTRUE_URL", "http://localhost:9999")
	t.Setenv("HTTP_TIMEOUT_SECONDS", "0")
	if _, err := Load(nil); err == nil {
		t.Fatalf("expected error for zero timeout")
	}
}
