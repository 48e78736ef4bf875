package alerts

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rzadesk/rzadesk/pkg/rza"
	"github.com/rzadesk/rzadesk/server/internal/config"
)

const (
	defaultCooldown   = 15 * time.Minute
	maxHistoryLen     = 200
	recentWindowHours = 1
)

// Alert represents a single alert event produced by the rule engine.
type Alert struct {
	ID         string     `json:"id"`
	RuleName   string     `json:"rule_name"`
	SessionID  string     `json:"session_id"`
	Kind       string     `json:"kind"`
	Title      string     `json:"title"` // calculation title, e.g. "Current transformer check"
	Condition  string     `json:"condition"`
	Metric     string     `json:"metric"` // metric key the condition tested
	Label      string     `json:"label"`  // human label of that metric
	Severity   string     `json:"severity"`
	Message    string     `json:"message"`
	Value      string     `json:"value"` // formatted metric, e.g. "12.50 %" or "NaN A"
	FiredAt    time.Time  `json:"fired_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	State      string     `json:"state"` // "firing" | "resolved"
}

type rule struct {
	config.AlertRule
	cond condition
}

// Engine evaluates alert rules against calculation results and delivers
// webhook notifications when rules fire or resolve.
//
// Engine is safe for concurrent use.
type Engine struct {
	rules    []rule
	webhooks []config.WebhookConfig

	mu       sync.Mutex
	active   map[string]*Alert    // key: "ruleName:sessionID"
	lastFire map[string]time.Time // last fire time per key (for cooldown)
	history  []*Alert             // recently resolved alerts
	client   *http.Client
	now      func() time.Time
	wg       sync.WaitGroup
}

// New creates an Engine from the server alert configuration. Rules whose
// condition does not parse are logged and skipped. An Engine with no rules
// is valid; Evaluate becomes a no-op.
func New(cfg config.AlertsConfig) *Engine {
	e := &Engine{
		webhooks: cfg.Webhooks,
		active:   make(map[string]*Alert),
		lastFire: make(map[string]time.Time),
		client:   &http.Client{},
		now:      time.Now,
	}
	for _, r := range cfg.Rules {
		c, err := parseCondition(r.Condition)
		if err != nil {
			slog.Warn("alerts: skipping rule", "rule", r.Name, "err", err)
			continue
		}
		e.rules = append(e.rules, rule{AlertRule: r, cond: c})
	}
	return e
}

// Evaluate tests every rule that applies to res.Kind against res.
// Alerts that fire are stored and webhook delivery is triggered asynchronously.
// Alerts that were firing for this session but whose condition is now false
// are resolved.
func (e *Engine) Evaluate(sessionID string, res rza.Result) {
	if len(e.rules) == 0 {
		return
	}

	now := e.now()
	for _, r := range e.rules {
		if r.Kind != "" && rza.Kind(r.Kind) != res.Kind {
			continue
		}
		fires, m, ok := r.cond.eval(res)
		if !ok {
			continue
		}
		key := r.Name + ":" + sessionID

		e.mu.Lock()
		if fires {
			cooldown := r.Cooldown
			if cooldown <= 0 {
				cooldown = defaultCooldown
			}
			if now.Sub(e.lastFire[key]) <= cooldown {
				e.mu.Unlock()
				continue
			}
			sev := r.Severity
			if sev == "" {
				sev = "warning"
			}
			a := &Alert{
				ID:        fmt.Sprintf("%s:%s:%d", r.Name, sessionID, now.UnixNano()),
				RuleName:  r.Name,
				SessionID: sessionID,
				Kind:      string(res.Kind),
				Title:     res.Title,
				Condition: r.Condition,
				Metric:    m.Key,
				Label:     m.Label,
				Severity:  sev,
				Value:     m.Value,
				Message: fmt.Sprintf("[%s] %s fired on %s: %s = %s",
					sev, r.Name, res.Title, r.Condition, m.Value),
				FiredAt: now,
				State:   "firing",
			}
			e.active[key] = a
			e.lastFire[key] = now
			alertCopy := *a
			e.mu.Unlock()

			slog.Warn("alert fired",
				"rule", r.Name,
				"session", sessionID,
				"value", m.Value,
				"severity", sev,
			)
			e.dispatch(&alertCopy)
			continue
		}

		a, ok := e.active[key]
		if !ok {
			e.mu.Unlock()
			continue
		}
		resolved := now
		a.State = "resolved"
		a.ResolvedAt = &resolved
		delete(e.active, key)
		e.appendHistory(a)
		alertCopy := *a
		e.mu.Unlock()

		slog.Info("alert resolved",
			"rule", r.Name,
			"session", sessionID,
		)
		e.dispatch(&alertCopy)
	}
}

// Forget resolves every alert still firing for sessionID and drops its
// cooldown state. Call it when a session ends.
func (e *Engine) Forget(sessionID string) {
	suffix := ":" + sessionID
	now := e.now()

	e.mu.Lock()
	var resolved []Alert
	for key, a := range e.active {
		if a.SessionID != sessionID {
			continue
		}
		at := now
		a.State = "resolved"
		a.ResolvedAt = &at
		delete(e.active, key)
		e.appendHistory(a)
		resolved = append(resolved, *a)
	}
	for key := range e.lastFire {
		if strings.HasSuffix(key, suffix) {
			delete(e.lastFire, key)
		}
	}
	e.mu.Unlock()

	for i := range resolved {
		slog.Info("alert resolved",
			"rule", resolved[i].RuleName,
			"session", sessionID,
			"reason", "session ended",
		)
		e.dispatch(&resolved[i])
	}
}

// appendHistory records a resolved alert. Callers hold mu.
func (e *Engine) appendHistory(a *Alert) {
	e.history = append(e.history, a)
	if len(e.history) > maxHistoryLen {
		e.history = e.history[len(e.history)-maxHistoryLen:]
	}
}

func (e *Engine) dispatch(a *Alert) {
	if len(e.webhooks) == 0 {
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.deliver(a)
	}()
}

// Wait blocks until all in-flight webhook deliveries have finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Active returns copies of all currently firing alerts plus any alerts
// resolved within the past hour, newest first.
func (e *Engine) Active() []*Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.now().Add(-recentWindowHours * time.Hour)
	out := make([]*Alert, 0, len(e.active))

	for _, a := range e.active {
		cp := *a
		out = append(out, &cp)
	}
	for _, a := range e.history {
		if a.ResolvedAt != nil && a.ResolvedAt.After(cutoff) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FiredAt.After(out[j].FiredAt) })
	return out
}
