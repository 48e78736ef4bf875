package rza

import "math"

// Metric is one labelled line of a calculation result.
type Metric struct {
	// Key is a stable snake_case identifier, e.g. "trip_current".
	Key   string `json:"key"`
	Label string `json:"label"`
	// Value is the formatted number with its unit, e.g. "130.0 A".
	Value string `json:"value"`
	// Raw is the unformatted value. It is not serialised because JSON
	// cannot carry NaN or infinities.
	Raw float64 `json:"-"`
}

// Result is the outcome of one calculation. Metrics keep a fixed order per
// kind and are never nil.
type Result struct {
	Kind    Kind     `json:"kind"`
	Title   string   `json:"title"`
	Metrics []Metric `json:"metrics"`
	Note    string   `json:"note"`
}

// Valid reports whether every metric holds a finite number.
func (r Result) Valid() bool {
	for _, m := range r.Metrics {
		if math.IsNaN(m.Raw) || math.IsInf(m.Raw, 0) {
			return false
		}
	}
	return true
}

// Metric returns the metric with the given key.
func (r Result) Metric(key string) (Metric, bool) {
	for _, m := range r.Metrics {
		if m.Key == key {
			return m, true
		}
	}
	return Metric{}, false
}

var sqrt3 = math.Sqrt(3)

// OvercurrentInput holds the MTZ form fields.
type OvercurrentInput struct {
	In float64 // nominal current, A
	Ks float64 // sensitivity coefficient
	T  float64 // time delay, s
}

// Overcurrent computes the time-delayed overcurrent trip setting.
func Overcurrent(in OvercurrentInput) Result {
	iset := in.In * in.Ks
	return newResult(KindOvercurrent,
		metric("trip_current", "Trip current", iset, 1, " A"),
		metric("time_delay", "Time delay", in.T, 2, " s"),
	)
}

// DifferentialInput holds the differential protection form fields.
type DifferentialInput struct {
	IDiff  float64
	IRestr float64
	Kh     float64
}

// Differential computes the sensitivity of a restrained differential stage.
func Differential(in DifferentialInput) Result {
	sensitivity := in.IDiff / (in.IRestr * (1 + in.Kh))
	return newResult(KindDifferential,
		metric("sensitivity", "Sensitivity", sensitivity, 2, ""),
		metric("trip_current", "Trip current", in.IDiff, 1, " A"),
	)
}

// DistanceInput holds the distance protection form fields.
type DistanceInput struct {
	Zl     float64 // Ω per km
	U      float64 // kV
	Length float64 // km
}

// Distance computes the protected zone impedance and the expected fault
// current at its end.
func Distance(in DistanceInput) Result {
	zProtected := in.Zl * in.Length
	iFault := (in.U * 1000) / (sqrt3 * zProtected)
	return newResult(KindDistance,
		metric("zone_impedance", "Zone impedance", zProtected, 2, " Ω"),
		metric("fault_current", "Expected fault current", iFault, 1, " A"),
	)
}

// FaultCurrentInput holds the short-circuit form fields.
type FaultCurrentInput struct {
	Skz float64 // MVA
	U   float64 // kV
	XR  float64
}

// FaultCurrent computes the three-phase and peak short-circuit currents.
//
// The formula mixes MVA and kV scaling and labels an ampere value as kA, so
// results are about three orders of magnitude too large. It is kept as is
// until the unit handling is decided.
func FaultCurrent(in FaultCurrentInput) Result {
	ik := (in.Skz * 1e6) / (sqrt3 * in.U * 1000)
	peak := ik * (1 + in.XR)
	return newResult(KindFaultCurrent,
		metric("fault_current", "3-phase fault current", ik, 1, " kA"),
		metric("peak_current", "Peak current", peak, 1, " kA"),
	)
}

// CTCheckInput holds the current transformer check form fields.
type CTCheckInput struct {
	Class      float64
	ISecondary float64
	Burden     float64
}

// CTCheck computes the relative error of a current transformer under the
// given secondary burden.
func CTCheck(in CTCheckInput) Result {
	relErr := (in.Burden / (in.ISecondary * in.Class)) * 100
	return newResult(KindCTCheck,
		metric("relative_error", "Relative error", relErr, 2, " %"),
		metric("burden", "Circuit burden", in.Burden, 2, " Ω"),
	)
}

// SelectivityInput holds the selectivity form fields.
type SelectivityInput struct {
	IPrev float64
	Ks    float64
	Dt    float64
}

// Selectivity computes the setting of the next upstream stage.
func Selectivity(in SelectivityInput) Result {
	inext := in.IPrev * in.Ks
	return newResult(KindSelectivity,
		metric("next_setting", "Next-stage setting", inext, 1, " A"),
		metric("time_margin", "Time margin", in.Dt, 2, " s"),
	)
}

// ZeroSequenceInput holds the TZNP form fields.
type ZeroSequenceInput struct {
	Ig float64 // ground fault current, A
	Rz float64 // relay resistance, Ω
	T  float64 // time delay, s
}

// zeroSequenceFactor is the share of the ground fault current used as the
// trip setting.
const zeroSequenceFactor = 0.6

// ZeroSequence computes the ground-fault trip current and relay voltage.
func ZeroSequence(in ZeroSequenceInput) Result {
	iSetting := in.Ig * zeroSequenceFactor
	voltage := iSetting * in.Rz
	return newResult(KindZeroSequence,
		metric("trip_current", "Trip current", iSetting, 1, " A"),
		metric("relay_voltage", "Relay voltage", voltage, 1, " V"),
		metric("time_delay", "Time delay", in.T, 2, " s"),
	)
}

// SwingStabilityInput holds the swing stability form fields.
type SwingStabilityInput struct {
	Inertia float64
	IOsc    float64
	Ks      float64
}

// SwingStability computes the stability margin during power swings.
func SwingStability(in SwingStabilityInput) Result {
	margin := in.Ks - (in.IOsc/1000)*in.Inertia
	return newResult(KindSwingStability,
		metric("stability_margin", "Stability margin", margin, 2, ""),
		metric("swing_current", "Max swing current", in.IOsc, 1, " A"),
	)
}

func newResult(kind Kind, metrics ...Metric) Result {
	c := catalog[kind]
	return Result{Kind: kind, Title: c.title, Metrics: metrics, Note: c.note}
}

func metric(key, label string, v float64, places int32, unit string) Metric {
	return Metric{Key: key, Label: label, Value: FormatFixed(v, places) + unit, Raw: v}
}
