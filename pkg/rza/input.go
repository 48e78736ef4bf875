package rza

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Input is the raw form data of one calculation: field name → entered text.
type Input map[string]string

// Float parses the named field. Missing, blank and non-numeric values yield
// NaN. Values outside the float64 range yield ±Inf.
func (in Input) Float(name string) float64 {
	raw, ok := in[name]
	if !ok {
		return math.NaN()
	}
	v, err := parseNumber(raw)
	if err != nil {
		return math.NaN()
	}
	return v
}

// parseNumber parses a trimmed decimal number. ErrRange is not an error here:
// strconv already returns the correctly signed infinity.
func parseNumber(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, errBlank
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, err
	}
	return v, nil
}

var errBlank = errors.New("blank")

// ErrUnknownKind is returned by Validate for a kind outside the catalog.
var ErrUnknownKind = errors.New("rza: unknown calculation kind")

// Field error reasons.
const (
	ReasonMissing    = "missing"
	ReasonNotANumber = "not a number"
)

// FieldError describes one unusable form field.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// InputError lists every unusable field of one calculation request.
type InputError struct {
	Kind   Kind
	Fields []FieldError
}

func (e *InputError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Reason)
	}
	return fmt.Sprintf("rza: invalid %s input: %s", e.Kind, strings.Join(parts, ", "))
}

// Validate checks that every field kind needs is present and numeric.
// Compute does not call Validate; it is for callers that prefer rejecting
// input over rendering NaN.
func Validate(kind Kind, in Input) error {
	fields := Fields(kind)
	if fields == nil {
		return fmt.Errorf("%w: %q", ErrUnknownKind, string(kind))
	}

	var bad []FieldError
	for _, f := range fields {
		raw, ok := in[f.Name]
		if !ok || strings.TrimSpace(raw) == "" {
			bad = append(bad, FieldError{Field: f.Name, Reason: ReasonMissing})
			continue
		}
		v, err := parseNumber(raw)
		if err != nil || math.IsNaN(v) {
			bad = append(bad, FieldError{Field: f.Name, Reason: ReasonNotANumber})
		}
	}
	if len(bad) > 0 {
		return &InputError{Kind: kind, Fields: bad}
	}
	return nil
}
