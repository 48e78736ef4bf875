package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultServerEndpoint = "http://localhost:8080"
	DefaultTimeout        = 10 * time.Second
	DefaultRetries        = 2
	DefaultAPIKeyHeader   = "X-API-Key"
)

// Config is the top-level client configuration.
type Config struct {
	Client ClientConfig `yaml:"client"`
}

// ClientConfig holds the settings rzacalc uses to reach rzadesk-server.
type ClientConfig struct {
	// ServerEndpoint is the base URL of rzadesk-server, without the /api/v1 suffix.
	ServerEndpoint string `yaml:"server_endpoint"`

	// Timeout bounds one HTTP attempt.
	Timeout time.Duration `yaml:"timeout"`

	// Retries is how many times a transient failure is retried.
	Retries int `yaml:"retries"`

	// Auth configures how the client authenticates to the server.
	Auth AuthConfig `yaml:"auth"`

	TLS TLSConfig `yaml:"tls"`
}

// AuthConfig specifies the authentication mode for server requests.
type AuthConfig struct {
	// Mode is one of: apikey | bearer | none.
	Mode string `yaml:"mode"`

	// Header is the HTTP header the API key is sent in. Defaults to X-API-Key.
	Header string `yaml:"header"`
	// KeyEnv is the name of the environment variable that holds the key value.
	KeyEnv string `yaml:"key_env"`

	// TokenEnv is the name of the environment variable that holds the bearer token.
	TokenEnv string `yaml:"token_env"`
}

// Key returns the API key value resolved from the environment.
// Returns empty string if KeyEnv is unset or the variable is not found.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// Token returns the bearer token value resolved from the environment.
func (a AuthConfig) Token() string {
	if a.TokenEnv == "" {
		return ""
	}
	return os.Getenv(a.TokenEnv)
}

// EffectiveHeader returns Header, or X-API-Key when it is empty.
func (a AuthConfig) EffectiveHeader() string {
	if a.Header == "" {
		return DefaultAPIKeyHeader
	}
	return a.Header
}

// TLSConfig holds TLS dial options.
type TLSConfig struct {
	// InsecureSkipVerify disables TLS certificate verification.
	// Only use this for internal CAs in development environments.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("client config: read file: %w", err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("client config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("client config: %w", err)
	}

	return cfg, nil
}

// Defaults returns a Config pre-populated with default values. It is what
// rzacalc uses when no config file is given.
func Defaults() *Config {
	return &Config{
		Client: ClientConfig{
			ServerEndpoint: DefaultServerEndpoint,
			Timeout:        DefaultTimeout,
			Retries:        DefaultRetries,
			Auth:           AuthConfig{Mode: "none"},
		},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	c := cfg.Client
	if c.ServerEndpoint == "" {
		return fmt.Errorf("client.server_endpoint is required")
	}
	u, err := url.Parse(c.ServerEndpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("client.server_endpoint %q must be an http(s) URL", c.ServerEndpoint)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("client.timeout must be positive")
	}
	if c.Retries < 0 {
		return fmt.Errorf("client.retries must not be negative")
	}
	switch c.Auth.Mode {
	case "apikey":
		if c.Auth.KeyEnv == "" {
			return fmt.Errorf("client.auth.key_env is required for apikey mode")
		}
	case "bearer":
		if c.Auth.TokenEnv == "" {
			return fmt.Errorf("client.auth.token_env is required for bearer mode")
		}
	case "none", "":
	default:
		return fmt.Errorf("client.auth: unknown mode %q", c.Auth.Mode)
	}
	return nil
}
