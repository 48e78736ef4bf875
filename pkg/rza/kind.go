package rza

import "strings"

// Kind is the tag of one calculation tab.
type Kind string

const (
	KindOvercurrent    Kind = "mtz"
	KindDifferential   Kind = "dif"
	KindDistance       Kind = "distance"
	KindFaultCurrent   Kind = "fault"
	KindCTCheck        Kind = "ctcheck"
	KindSelectivity    Kind = "selectivity"
	KindZeroSequence   Kind = "tznp"
	KindSwingStability Kind = "stability"

	// KindUnknown is returned by ParseKind for any unrecognised tag.
	KindUnknown Kind = "unknown"
)

// kindOrder is the tab order shown by the UI.
var kindOrder = []Kind{
	KindOvercurrent,
	KindDifferential,
	KindDistance,
	KindFaultCurrent,
	KindCTCheck,
	KindSelectivity,
	KindZeroSequence,
	KindSwingStability,
}

// Field describes one named form input of a calculation kind.
type Field struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Unit  string `json:"unit,omitempty"`
}

// catalog holds the fixed title, advisory note and form fields per kind.
var catalog = map[Kind]struct {
	title  string
	note   string
	fields []Field
}{
	KindOvercurrent: {
		title: "Overcurrent protection (MTZ)",
		note:  "Check the trip current against the minimum two-phase fault current at the end of the protected zone; the sensitivity coefficient should be at least 1.5.",
		fields: []Field{
			{Name: "in", Label: "Nominal current", Unit: "A"},
			{Name: "ks", Label: "Sensitivity coefficient"},
			{Name: "t", Label: "Time delay", Unit: "s"},
		},
	},
	KindDifferential: {
		title: "Differential protection",
		note:  "Verify the restraint characteristic with the transformer tap changer at both extreme positions and with inrush blocking enabled.",
		fields: []Field{
			{Name: "idiff", Label: "Differential current", Unit: "A"},
			{Name: "irestr", Label: "Restraint current", Unit: "A"},
			{Name: "kh", Label: "Restraint slope"},
		},
	},
	KindDistance: {
		title: "Distance protection",
		note:  "Set zone 1 to 80-85% of the line impedance so that it does not overreach the remote busbar.",
		fields: []Field{
			{Name: "zl", Label: "Line impedance per km", Unit: "Ω/km"},
			{Name: "u", Label: "Nominal voltage", Unit: "kV"},
			{Name: "length", Label: "Line length", Unit: "km"},
		},
	},
	KindFaultCurrent: {
		title: "Short-circuit current",
		note:  "Use the maximum-mode short-circuit power for breaker duty and the minimum mode for protection sensitivity checks.",
		fields: []Field{
			{Name: "skz", Label: "Short-circuit power", Unit: "MVA"},
			{Name: "u", Label: "Nominal voltage", Unit: "kV"},
			{Name: "xR", Label: "X/R ratio"},
		},
	},
	KindCTCheck: {
		title: "Current transformer check",
		note:  "The relative error must stay within 10% at the maximum through-fault current; otherwise reduce the secondary burden or pick a higher accuracy limit factor.",
		fields: []Field{
			{Name: "class", Label: "Accuracy class"},
			{Name: "isecondary", Label: "Rated secondary current", Unit: "A"},
			{Name: "burden", Label: "Secondary burden", Unit: "Ω"},
		},
	},
	KindSelectivity: {
		title: "Selectivity coordination",
		note:  "A time margin of 0.3-0.5 s between adjacent stages is typical for digital relays; electromechanical relays need more.",
		fields: []Field{
			{Name: "iprev", Label: "Previous stage setting", Unit: "A"},
			{Name: "ks", Label: "Coordination coefficient"},
			{Name: "dt", Label: "Time margin", Unit: "s"},
		},
	},
	KindZeroSequence: {
		title: "Zero-sequence protection (TZNP)",
		note:  "Coordinate the ground-fault stage with downstream zero-sequence protections and check the core-balance CT polarity.",
		fields: []Field{
			{Name: "ig", Label: "Ground fault current", Unit: "A"},
			{Name: "rz", Label: "Relay resistance", Unit: "Ω"},
			{Name: "t", Label: "Time delay", Unit: "s"},
		},
	},
	KindSwingStability: {
		title: "Swing stability",
		note:  "Enable power swing blocking for the distance zones when the stability margin drops below zero.",
		fields: []Field{
			{Name: "inertia", Label: "Inertia constant", Unit: "s"},
			{Name: "iosc", Label: "Oscillation current", Unit: "A"},
			{Name: "ks", Label: "Stability coefficient"},
		},
	},
}

// Kinds returns the known calculation kinds in tab order.
func Kinds() []Kind {
	out := make([]Kind, len(kindOrder))
	copy(out, kindOrder)
	return out
}

// ParseKind maps a tag such as "mtz" to its Kind. Surrounding whitespace is
// ignored; any other mismatch yields KindUnknown.
func ParseKind(tag string) Kind {
	k := Kind(strings.TrimSpace(tag))
	if _, ok := catalog[k]; ok {
		return k
	}
	return KindUnknown
}

// Known reports whether k is one of the eight calculation kinds.
func (k Kind) Known() bool {
	_, ok := catalog[k]
	return ok
}

// Title returns the human-readable name of the calculation, or "Result" for
// an unknown kind.
func (k Kind) Title() string {
	if c, ok := catalog[k]; ok {
		return c.title
	}
	return unknownTitle
}

// Fields returns the form fields of kind in form order, or nil for an
// unknown kind.
func Fields(kind Kind) []Field {
	c, ok := catalog[kind]
	if !ok {
		return nil
	}
	out := make([]Field, len(c.fields))
	copy(out, c.fields)
	return out
}
