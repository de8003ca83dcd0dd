package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("DJBLASTER_AD_SERVER_URL", "http://ads.example.com/")
	t.Setenv("DJBLASTER_TIMEZONE", "UTC")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.AdServerURL != "http://ads.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.AdServerURL)
	}
	if cfg.EventStartHour != 7 || cfg.EventEndHour != 21 {
		t.Fatalf("unexpected event window %d-%d", cfg.EventStartHour, cfg.EventEndHour)
	}
	if cfg.PollInterval != time.Second {
		t.Fatalf("unexpected poll interval: %v", cfg.PollInterval)
	}
	if cfg.SimulatedTime {
		t.Fatal("expected simulated time off by default")
	}
	if cfg.DiscardStaleResponses {
		t.Fatal("expected stale-response guard off by default")
	}
	if cfg.Location != time.UTC {
		t.Fatalf("unexpected location: %v", cfg.Location)
	}
}

func TestLoadRequiresAdServerURL(t *testing.T) {
	t.Setenv("DJBLASTER_AD_SERVER_URL", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without ad server URL")
	}

	t.Setenv("DJBLASTER_AD_SERVER_URL", "ads.example.com")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for relative ad server URL")
	}
}

func TestLoadRejectsBadEventWindow(t *testing.T) {
	t.Setenv("DJBLASTER_AD_SERVER_URL", "http://ads.example.com")

	t.Setenv("DJBLASTER_EVENT_START_HOUR", "24")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for start hour 24")
	}

	t.Setenv("DJBLASTER_EVENT_START_HOUR", "22")
	t.Setenv("DJBLASTER_EVENT_END_HOUR", "7")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for inverted window")
	}
}

func TestLoadSimulatedStart(t *testing.T) {
	t.Setenv("DJBLASTER_AD_SERVER_URL", "http://ads.example.com")
	t.Setenv("DJBLASTER_TIMEZONE", "UTC")
	t.Setenv("DJBLASTER_DEBUG", "true")
	t.Setenv("DJBLASTER_SIMULATED_START", "2026-03-02T07:00:00Z")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if !cfg.SimulatedTime {
		t.Fatal("expected DJBLASTER_DEBUG to enable simulated time")
	}
	want := time.Date(2026, time.March, 2, 7, 0, 0, 0, time.UTC)
	if !cfg.SimulatedStart.Equal(want) {
		t.Fatalf("SimulatedStart = %v, want %v", cfg.SimulatedStart, want)
	}

	t.Setenv("DJBLASTER_SIMULATED_START", "yesterday")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for malformed simulated start")
	}
}

func TestLoadFileOverlayWithEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "djblaster.yaml")
	content := `
ad_server_url: http://file.example.com
poll_interval_ms: 250
discard_stale_responses: true
timezone: UTC
event_active_window:
  start_hour: 6
  end_hour: 20
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv("DJBLASTER_CONFIG_FILE", path)
	t.Setenv("DJBLASTER_EVENT_END_HOUR", "22")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.AdServerURL != "http://file.example.com" {
		t.Fatalf("unexpected ad server URL: %q", cfg.AdServerURL)
	}
	if cfg.PollInterval != 250*time.Millisecond {
		t.Fatalf("unexpected poll interval: %v", cfg.PollInterval)
	}
	if !cfg.DiscardStaleResponses {
		t.Fatal("expected stale-response guard from file")
	}
	if cfg.EventStartHour != 6 {
		t.Fatalf("expected start hour from file, got %d", cfg.EventStartHour)
	}
	if cfg.EventEndHour != 22 {
		t.Fatalf("expected env to override end hour, got %d", cfg.EventEndHour)
	}
}

func TestLoadReportsMissingConfigFile(t *testing.T) {
	t.Setenv("DJBLASTER_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("DJBLASTER_AD_SERVER_URL", "http://ads.example.com")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
