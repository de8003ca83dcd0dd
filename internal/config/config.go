/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config covers process level configuration read from environment variables
// and an optional YAML file.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int

	// Ad server the booth pulls events, show sponsorships and PSAs from.
	AdServerURL    string
	RequestTimeout time.Duration

	// Event ads are only requested while the current hour is inside this
	// inclusive window.
	EventStartHour int
	EventEndHour   int

	PollInterval time.Duration
	Location     *time.Location

	// Simulated time replaces the wall clock with an operator-controlled one.
	SimulatedTime  bool
	SimulatedStart time.Time

	// DiscardStaleResponses drops a feed response when a newer request for
	// the same ad type was issued after it.
	DiscardStaleResponses bool

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	ConfigFile string
}

// fileConfig mirrors Config for the YAML overlay. Pointers distinguish unset keys.
type fileConfig struct {
	Environment           *string  `yaml:"environment"`
	HTTPBind              *string  `yaml:"http_bind"`
	HTTPPort              *int     `yaml:"http_port"`
	AdServerURL           *string  `yaml:"ad_server_url"`
	RequestTimeoutMS      *int     `yaml:"request_timeout_ms"`
	PollIntervalMS        *int     `yaml:"poll_interval_ms"`
	Timezone              *string  `yaml:"timezone"`
	SimulatedTime         *bool    `yaml:"simulated_time"`
	SimulatedStart        *string  `yaml:"simulated_start"`
	DiscardStaleResponses *bool    `yaml:"discard_stale_responses"`
	TracingEnabled        *bool    `yaml:"tracing_enabled"`
	OTLPEndpoint          *string  `yaml:"otlp_endpoint"`
	TracingSampleRate     *float64 `yaml:"tracing_sample_rate"`
	EventActiveWindow     struct {
		StartHour *int `yaml:"start_hour"`
		EndHour   *int `yaml:"end_hour"`
	} `yaml:"event_active_window"`
}

// Load reads the optional config file and environment variables, applies
// defaults, and validates the result. Environment variables win over the file.
func Load() (*Config, error) {
	path := getEnvAny([]string{"DJBLASTER_CONFIG_FILE"}, "")
	file, err := readFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Environment:           getEnvAny([]string{"DJBLASTER_ENV"}, strOr(file.Environment, "development")),
		HTTPBind:              getEnvAny([]string{"DJBLASTER_HTTP_BIND"}, strOr(file.HTTPBind, "127.0.0.1")),
		HTTPPort:              getEnvIntAny([]string{"DJBLASTER_HTTP_PORT"}, intOr(file.HTTPPort, 8090)),
		AdServerURL:           getEnvAny([]string{"DJBLASTER_AD_SERVER_URL", "DJBLASTER_BASE_URL"}, strOr(file.AdServerURL, "")),
		RequestTimeout:        time.Duration(getEnvIntAny([]string{"DJBLASTER_REQUEST_TIMEOUT_MS"}, intOr(file.RequestTimeoutMS, 10000))) * time.Millisecond,
		EventStartHour:        getEnvIntAny([]string{"DJBLASTER_EVENT_START_HOUR"}, intOr(file.EventActiveWindow.StartHour, 7)),
		EventEndHour:          getEnvIntAny([]string{"DJBLASTER_EVENT_END_HOUR"}, intOr(file.EventActiveWindow.EndHour, 21)),
		PollInterval:          time.Duration(getEnvIntAny([]string{"DJBLASTER_POLL_INTERVAL_MS"}, intOr(file.PollIntervalMS, 1000))) * time.Millisecond,
		SimulatedTime:         getEnvBoolAny([]string{"DJBLASTER_SIMULATED_TIME", "DJBLASTER_DEBUG"}, boolOr(file.SimulatedTime, false)),
		DiscardStaleResponses: getEnvBoolAny([]string{"DJBLASTER_DISCARD_STALE_RESPONSES"}, boolOr(file.DiscardStaleResponses, false)),

		TracingEnabled:    getEnvBoolAny([]string{"DJBLASTER_TRACING_ENABLED"}, boolOr(file.TracingEnabled, false)),
		OTLPEndpoint:      getEnvAny([]string{"DJBLASTER_OTLP_ENDPOINT"}, strOr(file.OTLPEndpoint, "localhost:4317")),
		TracingSampleRate: getEnvFloatAny([]string{"DJBLASTER_TRACING_SAMPLE_RATE"}, floatOr(file.TracingSampleRate, 1.0)),

		ConfigFile: path,
	}

	tz := getEnvAny([]string{"DJBLASTER_TIMEZONE", "TZ"}, strOr(file.Timezone, ""))
	cfg.Location = time.Local
	if tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("invalid timezone %q: %w", tz, err)
		}
		cfg.Location = loc
	}

	cfg.SimulatedStart = time.Now().In(cfg.Location)
	if start := getEnvAny([]string{"DJBLASTER_SIMULATED_START"}, strOr(file.SimulatedStart, "")); start != "" {
		parsed, err := time.Parse(time.RFC3339, start)
		if err != nil {
			return nil, fmt.Errorf("DJBLASTER_SIMULATED_START must be RFC3339: %w", err)
		}
		cfg.SimulatedStart = parsed.In(cfg.Location)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.AdServerURL == "" {
		return fmt.Errorf("DJBLASTER_AD_SERVER_URL must be provided")
	}
	u, err := url.Parse(c.AdServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("DJBLASTER_AD_SERVER_URL must be an absolute http(s) URL, got %q", c.AdServerURL)
	}
	c.AdServerURL = strings.TrimRight(c.AdServerURL, "/")

	if !validHour(c.EventStartHour) || !validHour(c.EventEndHour) {
		return fmt.Errorf("event active window hours must be within 0-23, got %d-%d", c.EventStartHour, c.EventEndHour)
	}
	if c.EventStartHour > c.EventEndHour {
		return fmt.Errorf("event active window start %d is after end %d", c.EventStartHour, c.EventEndHour)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("DJBLASTER_POLL_INTERVAL_MS must be positive")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("DJBLASTER_REQUEST_TIMEOUT_MS must be positive")
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("DJBLASTER_HTTP_PORT out of range: %d", c.HTTPPort)
	}
	return nil
}

func readFile(path string) (fileConfig, error) {
	var fc fileConfig
	if path == "" {
		return fc, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return fc, nil
}

func validHour(h int) bool {
	return h >= 0 && h <= 23
}

func strOr(v *string, def string) string {
	if v != nil {
		return *v
	}
	return def
}

func intOr(v *int, def int) int {
	if v != nil {
		return *v
	}
	return def
}

func boolOr(v *bool, def bool) bool {
	if v != nil {
		return *v
	}
	return def
}

func floatOr(v *float64, def float64) float64 {
	if v != nil {
		return *v
	}
	return def
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

// getEnvIntAny returns the first set integer environment variable value from keys, or def.
func getEnvIntAny(keys []string, def int) int {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvBoolAny returns the first set boolean environment variable value from keys, or def.
func getEnvBoolAny(keys []string, def bool) bool {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "true" || v == "1" || v == "yes" {
				return true
			}
			if v == "false" || v == "0" || v == "no" {
				return false
			}
		}
	}
	return def
}

// getEnvFloatAny returns the first set float environment variable value from keys, or def.
func getEnvFloatAny(keys []string, def float64) float64 {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed
			}
		}
	}
	return def
}
