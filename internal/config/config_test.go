package config

import (
	"strings"
	"testing"
	"time"
)

const secret = "0123456789abcdef0123456789abcdef"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_SESSION_SECRET", secret)
	t.Setenv("APP_TRUSTED_PROXIES", "10.0.0.0/8, ,127.0.0.1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ListenAddr != ":8080" || cfg.BaseURL != "http://localhost:8080" {
		t.Errorf("listen=%q base=%q", cfg.ListenAddr, cfg.BaseURL)
	}
	if cfg.Session.IdleTimeout != 30*time.Minute || cfg.Session.MaxSessions != 1000 {
		t.Errorf("session = %+v", cfg.Session)
	}
	if cfg.Events.PerSecond != 20 || cfg.Events.Burst != 40 {
		t.Errorf("events = %+v", cfg.Events)
	}
	if len(cfg.TrustedProxies) != 2 {
		t.Errorf("trusted proxies = %v", cfg.TrustedProxies)
	}
	if cfg.Location != time.Local {
		t.Errorf("location = %v, want Local", cfg.Location)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_SESSION_SECRET", secret)
	t.Setenv("APP_SESSION_IDLE_TIMEOUT", "90s")
	t.Setenv("APP_MAX_SESSIONS", "5")
	t.Setenv("APP_EVENTS_PER_SECOND", "2.5")
	t.Setenv("APP_EVENTS_BURST", "3")
	t.Setenv("APP_TIMEZONE", "UTC")
	t.Setenv("APP_PROMETHEUS_ENDPOINT_ENABLED", "yes")
	t.Setenv("APP_PRESETS_FILE", "/etc/calpicker/presets.yaml")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Session.IdleTimeout != 90*time.Second || cfg.Session.MaxSessions != 5 {
		t.Errorf("session = %+v", cfg.Session)
	}
	if cfg.Events.PerSecond != 2.5 || cfg.Events.Burst != 3 {
		t.Errorf("events = %+v", cfg.Events)
	}
	if cfg.Location.String() != "UTC" || !cfg.PrometheusEnabled || cfg.PresetsFile == "" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	testCases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing secret", map[string]string{}, "APP_SESSION_SECRET is required"},
		{"short secret", map[string]string{"APP_SESSION_SECRET": "short"}, "at least 32"},
		{"bad timeout", map[string]string{"APP_SESSION_SECRET": secret, "APP_SESSION_IDLE_TIMEOUT": "soon"}, "APP_SESSION_IDLE_TIMEOUT"},
		{"negative timeout", map[string]string{"APP_SESSION_SECRET": secret, "APP_SESSION_IDLE_TIMEOUT": "-1m"}, "must be positive"},
		{"bad max", map[string]string{"APP_SESSION_SECRET": secret, "APP_MAX_SESSIONS": "many"}, "not an integer"},
		{"zero max", map[string]string{"APP_SESSION_SECRET": secret, "APP_MAX_SESSIONS": "0"}, "at least 1"},
		{"bad rate", map[string]string{"APP_SESSION_SECRET": secret, "APP_EVENTS_PER_SECOND": "fast"}, "not a number"},
		{"zero burst", map[string]string{"APP_SESSION_SECRET": secret, "APP_EVENTS_BURST": "0"}, "must be positive"},
		{"bad timezone", map[string]string{"APP_SESSION_SECRET": secret, "APP_TIMEZONE": "Mars/Olympus"}, "APP_TIMEZONE"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			for _, k := range []string{"APP_SESSION_SECRET", "APP_SESSION_IDLE_TIMEOUT", "APP_MAX_SESSIONS", "APP_EVENTS_PER_SECOND", "APP_EVENTS_BURST", "APP_TIMEZONE"} {
				t.Setenv(k, "")
			}
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("Load() error = %v, want it to mention %q", err, tc.want)
			}
		})
	}
}
