// Package config loads the server configuration from the `server:` section
// of config.yaml (the `client:` key is ignored by the server binary).
//
// Config fields:
//   - HTTPPort:        port for the REST API, /metrics and the WebSocket stream (default 8080)
//   - LogLevel:        debug | info | warn | error (default info)
//   - AllowedOrigins:  CORS origins for the browser UI (default ["*"])
//   - Auth.Mode:       "apikey", "jwt" or "none"
//   - Auth.KeyEnv:     environment variable holding the expected API key
//   - Auth.Header:     HTTP header carrying the API key (default "x-api-key")
//   - Auth.SecretEnv:  environment variable holding the HS256 JWT secret
//   - Session.TTL:     idle lifetime of a calculator session (default 30m)
//   - Calc.Strict:     reject unusable input with 422 instead of rendering NaN
//   - Stream.Interval: periodic WebSocket re-send interval (default 15s)
//   - Audit:           audit records for session delete / feed clear
//   - Alerts:          metric threshold rules and webhook targets
//
// Load(path) applies defaults before unmarshalling, then validates.
// Watch(ctx, path, fn) reloads the file on change; LogLevel, Session.TTL and
// Calc.Strict are applied live by the server binary.
package config
