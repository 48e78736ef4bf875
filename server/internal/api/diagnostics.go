package api

import (
	"errors"
	"fmt"
	"math"

	"github.com/rzadesk/rzadesk/pkg/rza"
	"github.com/rzadesk/rzadesk/pkg/types"
)

// computeHints derives human-readable remarks about a calculation.
// Input problems come first, then rendering problems, then informational notes.
// The returned slice is never nil.
func computeHints(kind rza.Kind, in rza.Input, res rza.Result) []types.Hint {
	hints := []types.Hint{}

	// ── Input that could not be read as a number ─────────────────────────────
	var ie *rza.InputError
	if err := rza.Validate(kind, in); errors.As(err, &ie) {
		labels := fieldLabels(kind)
		for _, f := range ie.Fields {
			var detail string
			switch f.Reason {
			case rza.ReasonMissing:
				detail = fmt.Sprintf(
					"%s was left empty, so every value that depends on it shows NaN. "+
						"Enter a number and calculate again.",
					labels[f.Field],
				)
			default:
				detail = fmt.Sprintf(
					"%s (%q) is not a number. Use digits with a decimal point, "+
						"for example 0.5 rather than 0,5.",
					labels[f.Field], in[f.Field],
				)
			}
			hints = append(hints, types.Hint{
				Key:    "invalid_input",
				Level:  "warning",
				Title:  "Check " + labels[f.Field],
				Detail: detail,
				Field:  f.Field,
			})
		}
	}

	// ── Values that rendered as NaN or Infinity ──────────────────────────────
	for _, m := range res.Metrics {
		if !math.IsNaN(m.Raw) && !math.IsInf(m.Raw, 0) {
			continue
		}
		detail := fmt.Sprintf(
			"%s came out as %s. This happens when an input is missing or not a number, "+
				"or when a divisor is zero.",
			m.Label, m.Value,
		)
		hints = append(hints, types.Hint{
			Key:    "not_a_number",
			Level:  "warning",
			Title:  m.Label + " not computed",
			Detail: detail,
		})
	}

	// ── Fault current units ──────────────────────────────────────────────────
	if res.Kind == rza.KindFaultCurrent {
		hints = append(hints, types.Hint{
			Key:   "fault_units",
			Level: "info",
			Title: "Check fault current units",
			Detail: "The fault current is computed as Skz×10⁶ / (√3 × U × 10³) and labelled kA. " +
				"With Skz in MVA and U in kV that value is in amperes, so the displayed figure " +
				"is 1000 times the current in kA. Divide by 1000 before using it as a setting.",
		})
	}

	return hints
}

func fieldLabels(kind rza.Kind) map[string]string {
	fields := rza.Fields(kind)
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		out[f.Name] = f.Label
	}
	return out
}
