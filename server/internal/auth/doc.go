// Package auth provides HTTP authentication middleware for rzadesk-server.
//
// Middleware(cfg, next) wraps the REST API, the metrics endpoint and the
// WebSocket stream. Modes:
//
//	none    all requests pass through
//	apikey  the configured header must equal the key read from key_env
//	jwt     Authorization: Bearer <token>, HS256, verified with secret_env
//
// Browsers cannot set headers on a WebSocket handshake, so requests under
// /ws/sessions/ may instead pass the key as ?api_key= or the token as
// ?access_token=. A header, when present, takes precedence.
//
// When the mode's key or secret resolves empty, every non-exempt request is
// rejected; use mode none for local development. Rejected requests get 401
// with a JSON error body.
// GET /api/v1/health and /metrics are always exempt.
//
// The authenticated caller is stored in the request context; Actor(ctx)
// returns it for audit records.
package auth
