package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rzadesk/rzadesk/client/internal/config"
	"github.com/rzadesk/rzadesk/pkg/rza"
	"github.com/rzadesk/rzadesk/pkg/types"
)

// maxBody caps how much of a response body is read.
const maxBody = 1 << 20

// errTransport marks failures where no HTTP response was received.
var errTransport = errors.New("transport error")

// APIError is returned for a non-2xx response that was not retried away.
type APIError struct {
	Status  int
	Message string
	// Fields lists rejected input fields on a 422 response.
	Fields []rza.FieldError
}

func (e *APIError) Error() string {
	return fmt.Sprintf("remote: %s (status %d)", e.Message, e.Status)
}

// Client calls the rzadesk-server REST API.
type Client struct {
	base    string
	http    *http.Client
	retries int

	// sleep waits between attempts; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Client for the given config.
func New(cfg config.ClientConfig) *Client {
	return &Client{
		base:    strings.TrimRight(cfg.ServerEndpoint, "/") + "/api/v1",
		http:    buildHTTPClient(cfg),
		retries: cfg.Retries,
		sleep:   sleepCtx,
	}
}

// Health returns GET /health.
func (c *Client) Health(ctx context.Context) (types.HealthResponse, error) {
	var out types.HealthResponse
	err := c.fetchJSON(ctx, http.MethodGet, "/health", nil, &out)
	return out, err
}

// Kinds returns the calculation tabs in display order.
func (c *Client) Kinds(ctx context.Context) ([]types.KindResponse, error) {
	var raw json.RawMessage
	if err := c.fetchJSON(ctx, http.MethodGet, "/kinds", nil, &raw); err != nil {
		return nil, err
	}
	return normalizeList[types.KindResponse](raw)
}

// Calculate runs one stateless calculation.
func (c *Client) Calculate(ctx context.Context, kind rza.Kind, in rza.Input) (types.CalculateResponse, error) {
	var out types.CalculateResponse
	req := types.CalculateRequest{Kind: string(kind), Input: in}
	err := c.fetchJSON(ctx, http.MethodPost, "/calculate", req, &out)
	return out, err
}

// CreateSession opens a new calculator session.
func (c *Client) CreateSession(ctx context.Context) (types.SessionResponse, error) {
	var out types.SessionResponse
	err := c.fetchJSON(ctx, http.MethodPost, "/sessions", nil, &out)
	return out, err
}

// Session returns one session.
func (c *Client) Session(ctx context.Context, id string) (types.SessionResponse, error) {
	var out types.SessionResponse
	err := c.fetchJSON(ctx, http.MethodGet, "/sessions/"+id, nil, &out)
	return out, err
}

// Sessions lists live sessions.
func (c *Client) Sessions(ctx context.Context) ([]types.SessionResponse, error) {
	var raw json.RawMessage
	if err := c.fetchJSON(ctx, http.MethodGet, "/sessions", nil, &raw); err != nil {
		return nil, err
	}
	return normalizeList[types.SessionResponse](raw)
}

// SessionCalculate computes in a session and pushes the result onto its feed.
// An empty kind uses the session's selected kind.
func (c *Client) SessionCalculate(ctx context.Context, id string, kind rza.Kind, in rza.Input) (types.CalculateResponse, error) {
	var out types.CalculateResponse
	req := types.CalculateRequest{Kind: string(kind), Input: in}
	err := c.fetchJSON(ctx, http.MethodPost, "/sessions/"+id+"/calculate", req, &out)
	return out, err
}

// SelectKind switches the session's active tab.
func (c *Client) SelectKind(ctx context.Context, id string, kind rza.Kind) (types.SessionResponse, error) {
	var out types.SessionResponse
	err := c.fetchJSON(ctx, http.MethodPut, "/sessions/"+id+"/kind", types.SelectKindRequest{Kind: string(kind)}, &out)
	return out, err
}

// ClearFeed empties the session's feed.
func (c *Client) ClearFeed(ctx context.Context, id string) (types.SessionResponse, error) {
	var out types.SessionResponse
	err := c.fetchJSON(ctx, http.MethodDelete, "/sessions/"+id+"/feed", nil, &out)
	return out, err
}

// DeleteSession ends a session.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	return c.fetchJSON(ctx, http.MethodDelete, "/sessions/"+id, nil, nil)
}

// fetchJSON sends body as JSON and decodes a successful response into out.
// Network errors and 5xx responses are retried with backoff; a POST is only
// retried when the connection was never established, since a repeated
// session calculation would push a second result.
func (c *Client) fetchJSON(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("remote: encode %s %s: %w", method, path, err)
		}
	}

	bo := newBackoff()
	for attempt := 0; ; attempt++ {
		err := c.do(ctx, method, path, payload, out)
		if err == nil || attempt >= c.retries || !retryable(method, err) || ctx.Err() != nil {
			return err
		}
		wait := bo.next()
		slog.Debug("remote: request failed, will retry",
			"method", method, "path", path, "err", err, "retry_in", wait)
		if err := c.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte, out any) error {
	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return fmt.Errorf("remote: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("remote: %s %s: %w: %w", method, path, errTransport, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fmt.Errorf("remote: read response: %w", err)
	}
	isJSON := strings.Contains(resp.Header.Get("Content-Type"), "application/json")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errorFrom(resp.StatusCode, data, isJSON)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent || len(data) == 0 {
		return nil
	}
	if !isJSON {
		return fmt.Errorf("remote: %s %s: unexpected content type %q", method, path, resp.Header.Get("Content-Type"))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("remote: decode response: %w", err)
	}
	return nil
}

// errorFrom builds an APIError. A text body is the message itself; a JSON
// body contributes its detail, message or error field, in that order.
func errorFrom(status int, data []byte, isJSON bool) *APIError {
	e := &APIError{Status: status}
	if !isJSON {
		e.Message = strings.TrimSpace(string(data))
	} else {
		var body struct {
			Detail  any              `json:"detail"`
			Message string           `json:"message"`
			Error   string           `json:"error"`
			Fields  []rza.FieldError `json:"fields"`
		}
		if json.Unmarshal(data, &body) == nil {
			e.Fields = body.Fields
			switch {
			case detailString(body.Detail) != "":
				e.Message = detailString(body.Detail)
			case body.Message != "":
				e.Message = body.Message
			default:
				e.Message = body.Error
			}
		}
	}
	if e.Message == "" {
		e.Message = fmt.Sprintf("API error (%d)", status)
	}
	return e
}

// detailString accepts a plain string detail; structured details (e.g.
// validation lists) are ignored in favour of the other fields.
func detailString(v any) string {
	s, _ := v.(string)
	return s
}

// retryable reports whether err from a method call is worth another attempt.
func retryable(method string, err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500 && method != http.MethodPost
	}
	if !errors.Is(err, errTransport) || errors.Is(err, context.Canceled) {
		return false
	}
	if method != http.MethodPost {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

// normalizeList decodes a list payload that is either a bare array or an
// object wrapping it in items, data or results. Anything else is empty.
func normalizeList[T any](raw json.RawMessage) ([]T, error) {
	out := []T{}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return out, nil
	}
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &out); err != nil {
			return nil, fmt.Errorf("remote: decode list: %w", err)
		}
		return out, nil
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return out, nil
	}
	for _, key := range []string{"items", "data", "results"} {
		v, ok := wrapped[key]
		if !ok {
			continue
		}
		v = bytes.TrimSpace(v)
		if len(v) == 0 || v[0] != '[' {
			continue
		}
		if err := json.Unmarshal(v, &out); err != nil {
			return nil, fmt.Errorf("remote: decode list %q: %w", key, err)
		}
		return out, nil
	}
	return out, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
