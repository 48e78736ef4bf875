package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoad_Defaults(t *testing.T) {
	// Only the client section is present; the server section falls back to defaults.
	p := writeConfig(t, `client:
  server_endpoint: "http://localhost:8080"
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.HTTPPort != DefaultHTTPPort {
		t.Errorf("http_port: got %d, want %d", cfg.Server.HTTPPort, DefaultHTTPPort)
	}
	if cfg.Server.Session.TTL != DefaultSessionTTL {
		t.Errorf("session.ttl: got %v, want %v", cfg.Server.Session.TTL, DefaultSessionTTL)
	}
	if cfg.Server.Stream.Interval != DefaultStreamInterval {
		t.Errorf("stream.interval: got %v, want %v", cfg.Server.Stream.Interval, DefaultStreamInterval)
	}
	if cfg.Server.Calc.Strict {
		t.Error("calc.strict: got true, want false")
	}
	if !cfg.Server.Audit.Enabled || cfg.Server.Audit.DefaultActor != DefaultActor {
		t.Errorf("audit: got %+v", cfg.Server.Audit)
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "*" {
		t.Errorf("allowed_origins: got %v, want [*]", cfg.Server.AllowedOrigins)
	}
	if cfg.Server.Level() != slog.LevelInfo {
		t.Errorf("Level: got %v, want info", cfg.Server.Level())
	}
}

func TestLoad_FullServer(t *testing.T) {
	t.Setenv("MY_SECRET", "hmac-secret")
	p := writeConfig(t, `server:
  http_port: 9091
  log_level: debug
  allowed_origins: ["https://rza.example"]
  auth:
    mode: jwt
    secret_env: MY_SECRET
  session:
    ttl: 10m
  calc:
    strict: true
  stream:
    interval: 5s
  audit:
    enabled: false
  alerts:
    rules:
      - name: ct-error
        kind: ctcheck
        condition: "relative_error > 10"
        severity: critical
        cooldown: 1m
    webhooks:
      - type: slack
        url_env: SLACK_URL
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s := cfg.Server
	if s.HTTPPort != 9091 {
		t.Errorf("http_port: got %d, want 9091", s.HTTPPort)
	}
	if s.Level() != slog.LevelDebug {
		t.Errorf("Level: got %v, want debug", s.Level())
	}
	if s.Auth.Mode != "jwt" || s.Auth.SecretEnv != "MY_SECRET" {
		t.Errorf("auth: got %+v", s.Auth)
	}
	if s.Session.TTL != 10*time.Minute {
		t.Errorf("session.ttl: got %v, want 10m", s.Session.TTL)
	}
	if !s.Calc.Strict {
		t.Error("calc.strict: got false, want true")
	}
	if s.Stream.Interval != 5*time.Second {
		t.Errorf("stream.interval: got %v, want 5s", s.Stream.Interval)
	}
	if s.Audit.Enabled {
		t.Error("audit.enabled: got true, want false")
	}
	if len(s.Alerts.Rules) != 1 || s.Alerts.Rules[0].Kind != "ctcheck" || s.Alerts.Rules[0].Cooldown != time.Minute {
		t.Errorf("alerts.rules: got %+v", s.Alerts.Rules)
	}
	if len(s.Alerts.Webhooks) != 1 || s.Alerts.Webhooks[0].Type != "slack" {
		t.Errorf("alerts.webhooks: got %+v", s.Alerts.Webhooks)
	}
}

func TestLoad_DefaultHeader(t *testing.T) {
	t.Setenv("K", "k")
	p := writeConfig(t, `server:
  auth:
    mode: apikey
    key_env: K
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if h := cfg.Server.Auth.EffectiveHeader(); h != "x-api-key" {
		t.Errorf("EffectiveHeader: got %q, want x-api-key", h)
	}
}

func TestLoad_EnvResolution(t *testing.T) {
	t.Setenv("TEST_SERVER_KEY", "supersecret")
	t.Setenv("TEST_JWT_SECRET", "hmac-secret")
	t.Setenv("TEST_HOOK", "https://hooks.example/x")
	p := writeConfig(t, `server:
  auth:
    mode: apikey
    key_env: TEST_SERVER_KEY
    secret_env: TEST_JWT_SECRET
  alerts:
    webhooks:
      - type: http
        url_env: TEST_HOOK
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if k := cfg.Server.Auth.Key(); k != "supersecret" {
		t.Errorf("Key(): got %q, want supersecret", k)
	}
	if s := cfg.Server.Auth.Secret(); s != "hmac-secret" {
		t.Errorf("Secret(): got %q, want hmac-secret", s)
	}
	if u := cfg.Server.Alerts.Webhooks[0].URL(); u != "https://hooks.example/x" {
		t.Errorf("URL(): got %q", u)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"unknown auth mode": "server:\n  auth:\n    mode: oauth2\n",
		"port out of range": "server:\n  http_port: 70000\n",
		"bad log level":     "server:\n  log_level: loud\n",
		"zero ttl":          "server:\n  session:\n    ttl: 0s\n",
		"negative interval": "server:\n  stream:\n    interval: -1s\n",
		"rule without name": "server:\n  alerts:\n    rules:\n      - condition: \"x > 1\"\n",
		"malformed rule":    "server:\n  alerts:\n    rules:\n      - name: r\n        condition: \"x >\"\n",
		"unknown webhook":   "server:\n  alerts:\n    webhooks:\n      - type: pager\n",
		"broken yaml":       "server: [\n",
		"apikey no env":     "server:\n  auth:\n    mode: apikey\n",
		"apikey empty env":  "server:\n  auth:\n    mode: apikey\n    key_env: RZA_TEST_UNSET_KEY\n",
		"jwt no env":        "server:\n  auth:\n    mode: jwt\n",
		"jwt empty env":     "server:\n  auth:\n    mode: jwt\n    secret_env: RZA_TEST_UNSET_SECRET\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, content)); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	p := writeConfig(t, "server:\n  log_level: info\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, p, func(c *Config) { got <- c })
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(p, []byte("server:\n  log_level: debug\n  calc:\n    strict: true\n"), 0o600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case c := <-got:
		if c.Server.Level() != slog.LevelDebug || !c.Server.Calc.Strict {
			t.Errorf("reloaded config: got %+v", c.Server)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not stop after cancel")
	}
}

func TestWatch_ReloadsOnAtomicReplace(t *testing.T) {
	p := writeConfig(t, "server:\n  log_level: info\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Config, 8)
	go Watch(ctx, p, func(c *Config) { got <- c }) //nolint:errcheck

	time.Sleep(100 * time.Millisecond)
	for i, level := range []string{"debug", "warn"} {
		tmp := filepath.Join(filepath.Dir(p), fmt.Sprintf("config.yaml.tmp%d", i))
		if err := os.WriteFile(tmp, []byte("server:\n  log_level: "+level+"\n"), 0o600); err != nil {
			t.Fatalf("write temp: %v", err)
		}
		if err := os.Rename(tmp, p); err != nil {
			t.Fatalf("rename over config: %v", err)
		}

		deadline := time.After(3 * time.Second)
	wait:
		for {
			select {
			case c := <-got:
				if c.Server.LogLevel == level {
					break wait
				}
			case <-deadline:
				t.Fatalf("replace %d: timed out waiting for log_level %s", i, level)
			}
		}
	}
}

func TestWatch_IgnoresSiblingFiles(t *testing.T) {
	p := writeConfig(t, "server:\n  log_level: info\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Config, 4)
	go Watch(ctx, p, func(c *Config) { got <- c }) //nolint:errcheck

	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(filepath.Dir(p), "other.yaml"), []byte("x: 1\n"), 0o600); err != nil {
		t.Fatalf("write sibling: %v", err)
	}

	select {
	case c := <-got:
		t.Errorf("onChange called for a sibling file: %+v", c.Server)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatch_InvalidReloadKeepsPrevious(t *testing.T) {
	p := writeConfig(t, "server:\n  log_level: info\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Config, 4)
	go Watch(ctx, p, func(c *Config) { got <- c }) //nolint:errcheck

	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(p, []byte("server:\n  log_level: loud\n"), 0o600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case c := <-got:
		t.Errorf("onChange called with invalid config: %+v", c.Server)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatch_MissingFile(t *testing.T) {
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "absent.yaml"), func(*Config) {})
	if err == nil {
		t.Fatal("expected error watching a missing file, got nil")
	}
}
