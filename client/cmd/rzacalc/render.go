package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rzadesk/rzadesk/pkg/rza"
	"github.com/rzadesk/rzadesk/pkg/types"
)

func localKinds() []types.KindResponse {
	kinds := rza.Kinds()
	out := make([]types.KindResponse, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, types.KindResponse{Kind: string(k), Title: k.Title(), Fields: rza.Fields(k)})
	}
	return out
}

func localCalculation(k rza.Kind, in rza.Input) types.CalculateResponse {
	return types.CalculateResponse{Result: rza.Compute(k, in), Hints: []types.Hint{}}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderKinds(w io.Writer, kinds []types.KindResponse, asJSON bool) error {
	if asJSON {
		return writeJSON(w, kinds)
	}
	for _, k := range kinds {
		fmt.Fprintf(w, "%s: %s\n", k.Kind, k.Title)
		for _, f := range k.Fields {
			if f.Unit != "" {
				fmt.Fprintf(w, "  - %s (%s, %s)\n", f.Name, f.Label, f.Unit)
			} else {
				fmt.Fprintf(w, "  - %s (%s)\n", f.Name, f.Label)
			}
		}
	}
	return nil
}

func renderCalculation(w io.Writer, resp types.CalculateResponse, asJSON bool) error {
	if asJSON {
		return writeJSON(w, resp)
	}
	renderResult(w, resp.Result)
	for _, h := range resp.Hints {
		fmt.Fprintf(w, "%s: %s. %s\n", h.Level, h.Title, h.Detail)
	}
	if len(resp.Hints) == 0 && !valid(resp.Result) {
		fmt.Fprintln(w, "warning: result contains values that are not finite numbers; check the input")
	}
	return nil
}

func renderFeed(w io.Writer, selected string, feed []rza.Result, asJSON bool) error {
	if asJSON {
		return writeJSON(w, struct {
			SelectedKind string       `json:"selected_kind"`
			Feed         []rza.Result `json:"feed"`
		}{selected, feed})
	}
	fmt.Fprintf(w, "Selected: %s\n", selected)
	fmt.Fprintf(w, "Feed (%d, newest first):\n", len(feed))
	for i, r := range feed {
		fmt.Fprintln(w, "")
		fmt.Fprintf(w, "[%d] ", i+1)
		renderResult(w, r)
	}
	return nil
}

func renderResult(w io.Writer, r rza.Result) {
	fmt.Fprintln(w, r.Title)
	for _, m := range r.Metrics {
		fmt.Fprintf(w, "  %s: %s\n", m.Label, m.Value)
	}
	if r.Note != "" {
		fmt.Fprintf(w, "  Note: %s\n", r.Note)
	}
}

// valid reports whether every metric rendered as a finite number. Raw values
// do not survive JSON, so remote results are checked by their text.
func valid(r rza.Result) bool {
	for _, m := range r.Metrics {
		v := strings.TrimPrefix(m.Value, "-")
		if strings.HasPrefix(v, "NaN") || strings.HasPrefix(v, "Infinity") {
			return false
		}
	}
	return true
}
