package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const deliveryTimeout = 10 * time.Second

// Event names carried by the generic http webhook.
const (
	EventFiring   = "alert.firing"
	EventResolved = "alert.resolved"
)

// HTTPEvent is the body posted to "http" webhooks.
type HTTPEvent struct {
	Event string `json:"event"`
	Alert *Alert `json:"alert"`
}

type severityStyle struct {
	label string
	color string
}

var severityStyles = map[string]severityStyle{
	"critical": {label: "CRITICAL", color: "FF4F6A"},
	"warning":  {label: "WARNING", color: "FFAB40"},
	"info":     {label: "INFO", color: "00D4FF"},
}

func styleFor(severity string) severityStyle {
	if s, ok := severityStyles[severity]; ok {
		return s
	}
	return severityStyles["info"]
}

// fact is one name/value line shown in chat cards.
type fact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// facts describes the calculation behind a: what was computed, which metric
// tripped the rule and in which session.
func facts(a *Alert) []fact {
	metric := a.Label
	if metric == "" {
		metric = a.Metric
	}
	return []fact{
		{Name: "Calculation", Value: fmt.Sprintf("%s (%s)", a.Title, a.Kind)},
		{Name: metric, Value: a.Value},
		{Name: "Condition", Value: a.Condition},
		{Name: "Session", Value: a.SessionID},
		{Name: "State", Value: a.State},
	}
}

// payloads maps a webhook type to its body builder.
var payloads = map[string]func(a *Alert) any{
	"slack": slackPayload,
	"teams": teamsPayload,
	"http":  httpPayload,
}

// deliver posts a to every configured webhook. Failures are logged only.
func (e *Engine) deliver(a *Alert) {
	for _, wh := range e.webhooks {
		url := wh.URL()
		if url == "" {
			continue
		}
		build, ok := payloads[wh.Type]
		if !ok {
			slog.Warn("alerts: unknown webhook type, skipping", "type", wh.Type)
			continue
		}

		if err := e.post(url, build(a)); err != nil {
			slog.Error("alerts: webhook delivery failed",
				"type", wh.Type,
				"rule", a.RuleName,
				"session", a.SessionID,
				"err", err,
			)
			continue
		}
		slog.Debug("alerts: webhook delivered", "type", wh.Type, "rule", a.RuleName, "state", a.State)
	}
}

// slackPayload renders a as an incoming-webhook message with one attachment
// whose fields list the calculation facts.
func slackPayload(a *Alert) any {
	style := styleFor(a.Severity)
	type field struct {
		Title string `json:"title"`
		Value string `json:"value"`
		Short bool   `json:"short"`
	}
	fs := facts(a)
	fields := make([]field, len(fs))
	for i, f := range fs {
		fields[i] = field{Title: f.Name, Value: f.Value, Short: f.Name != "Session"}
	}
	return map[string]any{
		"text": fmt.Sprintf("*[%s]* %s: %s", style.label, a.RuleName, a.State),
		"attachments": []map[string]any{{
			"color":  "#" + style.color,
			"title":  a.Title,
			"fields": fields,
		}},
	}
}

// teamsPayload renders a as a MessageCard with a facts section.
func teamsPayload(a *Alert) any {
	style := styleFor(a.Severity)
	return map[string]any{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": style.color,
		"summary":    a.RuleName,
		"title":      fmt.Sprintf("RZA alert [%s]: %s", style.label, a.RuleName),
		"sections": []map[string]any{{
			"activityTitle":    a.Title,
			"activitySubtitle": a.Message,
			"facts":            facts(a),
		}},
	}
}

func httpPayload(a *Alert) any {
	ev := EventFiring
	if a.State == "resolved" {
		ev = EventResolved
	}
	return HTTPEvent{Event: ev, Alert: a}
}

func (e *Engine) post(url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("alerts: encode payload: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("alerts: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("alerts: post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("alerts: webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}
