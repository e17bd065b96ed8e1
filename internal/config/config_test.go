package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_EmbeddedDefaults(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	t.Setenv("ROSTER_URL", "https://example.org/turnos.html")
	t.Setenv("PORT", "")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Roster.URL != "https://example.org/turnos.html" {
		t.Fatalf("env reference not expanded: %q", cfg.Roster.URL)
	}
	if cfg.Server.Port != "8081" {
		t.Fatalf("expected default port, got %q", cfg.Server.Port)
	}
	if cfg.Roster.CacheTTL != 4*time.Hour || cfg.Roster.FailureTTL != 5*time.Minute {
		t.Fatalf("unexpected ttls %s / %s", cfg.Roster.CacheTTL, cfg.Roster.FailureTTL)
	}
	if cfg.Expiry.Grace != 8*time.Hour {
		t.Fatalf("unexpected grace %s", cfg.Expiry.Grace)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Fatalf("unexpected log config %+v", cfg.Log)
	}
	if got := cfg.RosterService().MaxBodyBytes; got != cfg.FetchConfig().MaxBodyBytes || got != 5242880 {
		t.Fatalf("roster service body limit %d not taken from config", got)
	}
	if got := cfg.RosterService().Markers.ValidityStart; got != "turno comienza" {
		t.Fatalf("unexpected marker %q", got)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("embedded config should validate: %v", err)
	}
}

func TestLoad_OverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cityguide.yaml")
	body := `
roster:
  url: https://example.org/roster
  fetcher: colly
  cache_ttl: 30m
expiry:
  timezone: UTC
  sweep_concurrency: 2
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvConfigPath, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Roster.Fetcher != "colly" || cfg.Roster.CacheTTL != 30*time.Minute {
		t.Fatalf("override not applied: %+v", cfg.Roster)
	}
	if cfg.Roster.Encoding != "windows-1252" {
		t.Fatalf("missing encoding should default, got %q", cfg.Roster.Encoding)
	}
	loc, err := cfg.Location()
	if err != nil || loc.String() != "UTC" {
		t.Fatalf("unexpected location %v, %v", loc, err)
	}
}

func TestValidate(t *testing.T) {
	cfg, err := Parse([]byte(`
roster:
  fetcher: wget
  encoding: utf-8
expiry:
  timezone: Mars/Olympus_Mons
`))
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	err = cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"roster.url", "roster.fetcher", "roster.encoding", "expiry.timezone"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
}

func TestValidate_RejectsNonHTTPURL(t *testing.T) {
	cfg, err := Parse([]byte("roster:\n  url: ftp://example.org/turnos\n"))
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "roster.url") {
		t.Fatalf("expected roster.url error, got %v", err)
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	if _, err := Parse([]byte("roster: [unterminated")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestCORSOrigins(t *testing.T) {
	cfg := &Config{Server: ServerConfig{CORSOrigins: " https://a.example , ,https://b.example"}}
	got := cfg.CORSOrigins()
	if len(got) != 3 || got[1] != "https://a.example" || got[2] != "https://b.example" {
		t.Fatalf("unexpected origins %v", got)
	}
}
