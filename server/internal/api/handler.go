package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rzadesk/rzadesk/pkg/rza"
	"github.com/rzadesk/rzadesk/pkg/types"
	"github.com/rzadesk/rzadesk/server/internal/alerts"
	"github.com/rzadesk/rzadesk/server/internal/auth"
	"github.com/rzadesk/rzadesk/server/internal/config"
	"github.com/rzadesk/rzadesk/server/internal/metrics"
	"github.com/rzadesk/rzadesk/server/internal/session"
)

// maxBodyBytes caps request bodies; calculation input is a handful of fields.
const maxBodyBytes = 1 << 20

// Notifier is told about session changes so live streams can follow them.
type Notifier interface {
	// Notify reports that session id changed.
	Notify(id string)
	// Closed reports that session id no longer exists.
	Closed(id string)
}

// Options wires optional collaborators into the Handler. Nil fields are
// skipped.
type Options struct {
	Version  string
	Strict   bool
	Audit    config.AuditConfig
	Alerts   *alerts.Engine
	Metrics  *metrics.Registry
	Notifier Notifier
}

// Handler is the HTTP handler for all /api/v1/* endpoints.
type Handler struct {
	sessions *session.Store
	opts     Options
	strict   atomic.Bool
	mux      *http.ServeMux
}

// New creates a Handler wired to the given session store and registers all routes.
func New(st *session.Store, opts Options) *Handler {
	h := &Handler{sessions: st, opts: opts, mux: http.NewServeMux()}
	h.strict.Store(opts.Strict)

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/kinds", h.kinds)
	h.mux.HandleFunc("/api/v1/calculate", h.calculate)
	h.mux.HandleFunc("/api/v1/sessions", h.sessionsRoot)
	h.mux.HandleFunc("/api/v1/sessions/", h.sessionRoute) // subtree, extracts {id}
	h.mux.HandleFunc("/api/v1/alerts", h.alerts)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// SetStrict switches input validation on calculate endpoints. Safe to call
// while serving.
func (h *Handler) SetStrict(strict bool) {
	h.strict.Store(strict)
}

// Strict reports whether calculate endpoints reject unusable input.
func (h *Handler) Strict() bool {
	return h.strict.Load()
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, types.HealthResponse{
		Status:       "ok",
		Version:      h.opts.Version,
		SessionCount: h.sessions.Count(),
	})
}

// kinds returns GET /api/v1/kinds, the calculation tabs in display order.
func (h *Handler) kinds(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	kinds := rza.Kinds()
	out := make([]types.KindResponse, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, types.KindResponse{Kind: string(k), Title: k.Title(), Fields: rza.Fields(k)})
	}
	jsonResp(w, http.StatusOK, out)
}

// calculate handles POST /api/v1/calculate, a one-off calculation outside
// any session.
func (h *Handler) calculate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req types.CalculateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	kind := rza.ParseKind(req.Kind)
	in := rza.Input(req.Input)
	if !h.checkInput(w, kind, in) {
		return
	}

	res := rza.Compute(kind, in)
	h.observe(res)
	jsonResp(w, http.StatusOK, types.CalculateResponse{
		Result: res,
		Hints:  computeHints(kind, in, res),
	})
}

// sessionsRoot handles /api/v1/sessions: GET lists, POST creates.
func (h *Handler) sessionsRoot(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		views := h.sessions.List()
		out := make([]types.SessionResponse, 0, len(views))
		for _, v := range views {
			out = append(out, ToSessionResponse(v))
		}
		jsonResp(w, http.StatusOK, out)
	case http.MethodPost:
		v := h.sessions.Create()
		slog.Debug("api: session created", "session", v.ID)
		jsonResp(w, http.StatusCreated, ToSessionResponse(v))
	default:
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// sessionRoute dispatches /api/v1/sessions/{id}[/calculate|/kind|/feed].
func (h *Handler) sessionRoute(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/sessions/"), "/")
	if rest == "" {
		h.sessionsRoot(w, r)
		return
	}
	id, action, _ := strings.Cut(rest, "/")

	switch action {
	case "":
		switch r.Method {
		case http.MethodGet:
			h.getSession(w, id)
		case http.MethodDelete:
			h.deleteSession(w, r, id)
		default:
			jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	case "calculate":
		if r.Method != http.MethodPost {
			jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.sessionCalculate(w, r, id)
	case "kind":
		if r.Method != http.MethodPut {
			jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.selectKind(w, r, id)
	case "feed":
		if r.Method != http.MethodDelete {
			jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.clearFeed(w, r, id)
	default:
		jsonErr(w, http.StatusNotFound, "not found")
	}
}

func (h *Handler) getSession(w http.ResponseWriter, id string) {
	v, ok := h.sessions.Get(id)
	if !ok {
		jsonErr(w, http.StatusNotFound, "session not found")
		return
	}
	jsonResp(w, http.StatusOK, ToSessionResponse(v))
}

func (h *Handler) deleteSession(w http.ResponseWriter, r *http.Request, id string) {
	if !h.sessions.Delete(id) {
		jsonErr(w, http.StatusNotFound, "session not found")
		return
	}
	h.audit(r, "session.delete", id)
	if h.opts.Alerts != nil {
		h.opts.Alerts.Forget(id)
	}
	if h.opts.Notifier != nil {
		h.opts.Notifier.Closed(id)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) sessionCalculate(w http.ResponseWriter, r *http.Request, id string) {
	var req types.CalculateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	cur, ok := h.sessions.Get(id)
	if !ok {
		jsonErr(w, http.StatusNotFound, "session not found")
		return
	}
	kind := cur.Selected
	if strings.TrimSpace(req.Kind) != "" {
		kind = rza.ParseKind(req.Kind)
	}
	in := rza.Input(req.Input)
	if !h.checkInput(w, kind, in) {
		return
	}

	res, v, err := h.sessions.Calculate(id, kind, in)
	if errors.Is(err, session.ErrNotFound) {
		jsonErr(w, http.StatusNotFound, "session not found")
		return
	}
	h.observe(res)
	if h.opts.Alerts != nil {
		h.opts.Alerts.Evaluate(id, res)
	}
	h.notify(id)

	sr := ToSessionResponse(v)
	jsonResp(w, http.StatusOK, types.CalculateResponse{
		Result:  res,
		Hints:   computeHints(kind, in, res),
		Session: &sr,
	})
}

func (h *Handler) selectKind(w http.ResponseWriter, r *http.Request, id string) {
	var req types.SelectKindRequest
	if !decodeBody(w, r, &req) {
		return
	}
	kind := rza.ParseKind(req.Kind)
	if !kind.Known() {
		jsonErr(w, http.StatusBadRequest, "unknown calculation kind: "+req.Kind)
		return
	}
	v, err := h.sessions.Select(id, kind)
	if errors.Is(err, session.ErrNotFound) {
		jsonErr(w, http.StatusNotFound, "session not found")
		return
	}
	h.notify(id)
	jsonResp(w, http.StatusOK, ToSessionResponse(v))
}

func (h *Handler) clearFeed(w http.ResponseWriter, r *http.Request, id string) {
	v, err := h.sessions.Clear(id)
	if errors.Is(err, session.ErrNotFound) {
		jsonErr(w, http.StatusNotFound, "session not found")
		return
	}
	h.audit(r, "feed.clear", id)
	h.notify(id)
	jsonResp(w, http.StatusOK, ToSessionResponse(v))
}

// alerts returns GET /api/v1/alerts: firing alerts and those resolved in the
// last hour.
func (h *Handler) alerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.opts.Alerts == nil {
		jsonResp(w, http.StatusOK, []*alerts.Alert{})
		return
	}
	jsonResp(w, http.StatusOK, h.opts.Alerts.Active())
}

// --- helpers ----------------------------------------------------------------

// checkInput applies strict-mode validation. It writes the error response and
// returns false when the request must not be computed.
func (h *Handler) checkInput(w http.ResponseWriter, kind rza.Kind, in rza.Input) bool {
	if !h.Strict() {
		return true
	}
	err := rza.Validate(kind, in)
	if err == nil {
		return true
	}
	if h.opts.Metrics != nil {
		h.opts.Metrics.ObserveValidationFailure(kind)
	}
	var ie *rza.InputError
	if errors.As(err, &ie) {
		jsonResp(w, http.StatusUnprocessableEntity, types.ErrorResponse{
			Error:  "invalid input for " + string(kind),
			Fields: ie.Fields,
		})
		return false
	}
	jsonErr(w, http.StatusBadRequest, "unknown calculation kind")
	return false
}

func (h *Handler) observe(res rza.Result) {
	if h.opts.Metrics != nil {
		h.opts.Metrics.ObserveResult(res)
	}
}

func (h *Handler) notify(id string) {
	if h.opts.Notifier != nil {
		h.opts.Notifier.Notify(id)
	}
}

// audit records a destructive operation on a session.
func (h *Handler) audit(r *http.Request, action, id string) {
	if !h.opts.Audit.Enabled {
		return
	}
	actor := auth.Actor(r.Context())
	if actor == "" {
		actor = h.opts.Audit.DefaultActor
	}
	slog.Info("audit",
		"action", action,
		"session", id,
		"actor", actor,
		"remote", r.RemoteAddr,
	)
}

// ToSessionResponse maps a session view to its JSON representation.
func ToSessionResponse(v session.View) types.SessionResponse {
	feed := v.Feed
	if feed == nil {
		feed = []rza.Result{}
	}
	return types.SessionResponse{
		ID:           v.ID,
		SelectedKind: string(v.Selected),
		Feed:         feed,
		CreatedAt:    v.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:    v.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func jsonResp(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, types.ErrorResponse{Error: msg})
}
