package types

import "github.com/rzadesk/rzadesk/pkg/rza"

// CalculateRequest is the body of POST /api/v1/calculate and
// POST /api/v1/sessions/{id}/calculate. Kind may be empty on the session
// endpoint, in which case the session's selected kind is used.
type CalculateRequest struct {
	Kind  string            `json:"kind"`
	Input map[string]string `json:"input"`
}

// CalculateResponse is returned by both calculate endpoints. Session is set
// only for the session endpoint.
type CalculateResponse struct {
	Result  rza.Result       `json:"result"`
	Hints   []Hint           `json:"hints"`
	Session *SessionResponse `json:"session,omitempty"`
}

// Hint is one human-readable remark about a calculation result.
type Hint struct {
	// Key is a stable identifier, e.g. "invalid_input".
	Key string `json:"key"`
	// Level is "info" | "warning".
	Level  string `json:"level"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
	// Field names the offending input field, when there is one.
	Field string `json:"field,omitempty"`
}

// SessionResponse is the view of one calculator session.
type SessionResponse struct {
	ID           string       `json:"id"`
	SelectedKind string       `json:"selected_kind"`
	Feed         []rza.Result `json:"feed"`
	CreatedAt    string       `json:"created_at"` // RFC3339
	UpdatedAt    string       `json:"updated_at"` // RFC3339
}

// SelectKindRequest is the body of PUT /api/v1/sessions/{id}/kind.
type SelectKindRequest struct {
	Kind string `json:"kind"`
}

// KindResponse describes one calculation tab in GET /api/v1/kinds.
type KindResponse struct {
	Kind   string      `json:"kind"`
	Title  string      `json:"title"`
	Fields []rza.Field `json:"fields"`
}

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	Status       string `json:"status"`
	Version      string `json:"version"`
	SessionCount int    `json:"session_count"`
}

// ErrorResponse is the JSON error body. Fields is set for rejected input.
type ErrorResponse struct {
	Error  string           `json:"error"`
	Fields []rza.FieldError `json:"fields,omitempty"`
}
