package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AlertsConfig holds alerting rules and webhook delivery targets.
type AlertsConfig struct {
	Rules    []AlertRule     `yaml:"rules"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// AlertRule defines one threshold condition on a calculation result.
type AlertRule struct {
	// Name is the human-readable alert identifier, used as the deduplication key.
	Name string `yaml:"name"`

	// Kind restricts the rule to one calculation tag ("ctcheck", "mtz", ...).
	// Empty matches every kind.
	Kind string `yaml:"kind"`

	// Condition compares a metric key to a number: "relative_error > 10",
	// "stability_margin < 0", or "trip_current == nan".
	Condition string `yaml:"condition"`

	// Severity is one of: critical | warning | info.
	Severity string `yaml:"severity"`

	// Cooldown suppresses re-fires for this duration after an alert fires.
	// Defaults to 15 minutes if zero.
	Cooldown time.Duration `yaml:"cooldown"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: teams | slack | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable that holds the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// Default values for the server configuration.
const (
	DefaultHTTPPort       = 8080
	DefaultLogLevel       = "info"
	DefaultSessionTTL     = 30 * time.Minute
	DefaultStreamInterval = 15 * time.Second
	DefaultActor          = "system"
)

// Config holds the server configuration parsed from the `server:` section
// of config.yaml. The `client:` key in the same file is ignored.
type Config struct {
	Server ServerConfig `yaml:"server"`
}

// ServerConfig holds all server-side settings.
type ServerConfig struct {
	// HTTPPort is the port the REST API, metrics and WebSocket stream listen on.
	HTTPPort int `yaml:"http_port"`

	// LogLevel is one of: debug | info | warn | error. Hot-reloadable.
	LogLevel string `yaml:"log_level"`

	// AllowedOrigins lists the CORS origins the browser UI may call from.
	// "*" allows any origin.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// Auth configures how the server authenticates REST and WebSocket clients.
	Auth AuthConfig `yaml:"auth"`

	// Session controls calculator session retention.
	Session SessionConfig `yaml:"session"`

	// Calc controls how calculation input is checked.
	Calc CalcConfig `yaml:"calc"`

	// Stream controls the WebSocket feed stream.
	Stream StreamConfig `yaml:"stream"`

	// Audit controls audit records for destructive session operations.
	Audit AuditConfig `yaml:"audit"`

	// Alerts holds rule definitions and webhook delivery targets.
	Alerts AlertsConfig `yaml:"alerts"`
}

// AuthConfig controls client authentication on the server side.
type AuthConfig struct {
	// Mode is one of: apikey | jwt | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable that holds the expected API key.
	// Used when Mode == "apikey".
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header to read the API key from.
	// Defaults to "x-api-key" if empty.
	Header string `yaml:"header"`

	// SecretEnv is the name of the environment variable that holds the HS256
	// signing secret. Used when Mode == "jwt".
	SecretEnv string `yaml:"secret_env"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// Secret returns the JWT signing secret resolved from the environment.
func (a AuthConfig) Secret() string {
	if a.SecretEnv == "" {
		return ""
	}
	return os.Getenv(a.SecretEnv)
}

// EffectiveHeader returns the configured header name, or the default "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// SessionConfig controls calculator session retention.
type SessionConfig struct {
	// TTL is how long an idle session (and its result feed) is kept.
	// Default: 30m. Hot-reloadable.
	TTL time.Duration `yaml:"ttl"`
}

// CalcConfig controls calculation input handling.
type CalcConfig struct {
	// Strict rejects missing or non-numeric fields with 422 instead of
	// rendering NaN in the result. Hot-reloadable.
	Strict bool `yaml:"strict"`
}

// StreamConfig controls the WebSocket feed stream.
type StreamConfig struct {
	// Interval is how often the current feed is re-sent to every client,
	// in addition to the pushes that follow each change. Default: 15s.
	Interval time.Duration `yaml:"interval"`
}

// AuditConfig controls audit logging.
type AuditConfig struct {
	Enabled bool `yaml:"enabled"`

	// DefaultActor is recorded when the request carries no identity.
	DefaultActor string `yaml:"default_actor"`
}

// Level returns the slog level for LogLevel. Unknown values map to Info;
// validate rejects them at load time.
func (s ServerConfig) Level() slog.Level {
	switch strings.ToLower(s.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load reads and parses the config file at path, returning the server configuration.
// Missing fields are filled with sensible defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("server config: read %q: %w", path, err)
	}
	return Parse(data)
}

// Parse parses YAML config bytes, applying defaults and validation.
func Parse(data []byte) (*Config, error) {
	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("server config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}

	return cfg, nil
}

// Defaults returns a Config pre-populated with default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:       DefaultHTTPPort,
			LogLevel:       DefaultLogLevel,
			AllowedOrigins: []string{"*"},
			Session: SessionConfig{
				TTL: DefaultSessionTTL,
			},
			Stream: StreamConfig{
				Interval: DefaultStreamInterval,
			},
			Audit: AuditConfig{
				Enabled:      true,
				DefaultActor: DefaultActor,
			},
		},
	}
}

// requireEnv checks that the variable named by field is set and non-empty.
// Use auth mode none to run without credentials.
func requireEnv(field, name string) error {
	if name == "" {
		return fmt.Errorf("%s is required", field)
	}
	if os.Getenv(name) == "" {
		return fmt.Errorf("%s: environment variable %s is empty or unset", field, name)
	}
	return nil
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	s := cfg.Server
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", s.HTTPPort)
	}
	switch strings.ToLower(s.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("server.log_level %q unknown: want debug|info|warn|error", s.LogLevel)
	}
	switch s.Auth.Mode {
	case "apikey":
		if err := requireEnv("server.auth.key_env", s.Auth.KeyEnv); err != nil {
			return err
		}
	case "jwt":
		if err := requireEnv("server.auth.secret_env", s.Auth.SecretEnv); err != nil {
			return err
		}
	case "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|jwt|none", s.Auth.Mode)
	}
	if s.Session.TTL <= 0 {
		return fmt.Errorf("server.session.ttl must be positive")
	}
	if s.Stream.Interval <= 0 {
		return fmt.Errorf("server.stream.interval must be positive")
	}
	for i, r := range s.Alerts.Rules {
		if r.Name == "" {
			return fmt.Errorf("server.alerts.rules[%d]: name is required", i)
		}
		if len(strings.Fields(r.Condition)) != 3 {
			return fmt.Errorf("server.alerts.rules[%d] %q: condition %q must be \"<metric> <op> <value>\"", i, r.Name, r.Condition)
		}
	}
	for i, w := range s.Alerts.Webhooks {
		switch w.Type {
		case "slack", "teams", "http":
		default:
			return fmt.Errorf("server.alerts.webhooks[%d]: type %q unknown: want slack|teams|http", i, w.Type)
		}
	}
	return nil
}
