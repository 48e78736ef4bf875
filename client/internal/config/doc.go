// Package config loads the rzacalc client configuration file.
//
// Top-level types:
//   - Config{Client} parsed from YAML
//   - ClientConfig: server_endpoint, timeout, retries, auth, tls
//   - AuthConfig: mode (apikey|bearer|none), header, key_env, token_env;
//     Key() and Token() resolve from environment variables
//
// Load(path) reads the YAML file, applies defaults (http://localhost:8080,
// 10s timeout, 2 retries, no auth), then validates the endpoint URL and the
// auth mode. Defaults() is used as-is when rzacalc runs without -config.
package config
