package rza

const (
	unknownTitle = "Result"
	unknownNote  = "No data"
)

// Compute runs the calculation for kind on the raw form input.
//
// Compute is pure and never fails: unusable fields become NaN and show up as
// "NaN" in the metric values. An unknown kind yields a "Result" titled
// result with no metrics and the note "No data".
func Compute(kind Kind, in Input) Result {
	switch kind {
	case KindOvercurrent:
		return Overcurrent(OvercurrentInput{
			In: in.Float("in"),
			Ks: in.Float("ks"),
			T:  in.Float("t"),
		})
	case KindDifferential:
		return Differential(DifferentialInput{
			IDiff:  in.Float("idiff"),
			IRestr: in.Float("irestr"),
			Kh:     in.Float("kh"),
		})
	case KindDistance:
		return Distance(DistanceInput{
			Zl:     in.Float("zl"),
			U:      in.Float("u"),
			Length: in.Float("length"),
		})
	case KindFaultCurrent:
		return FaultCurrent(FaultCurrentInput{
			Skz: in.Float("skz"),
			U:   in.Float("u"),
			XR:  in.Float("xR"),
		})
	case KindCTCheck:
		return CTCheck(CTCheckInput{
			Class:      in.Float("class"),
			ISecondary: in.Float("isecondary"),
			Burden:     in.Float("burden"),
		})
	case KindSelectivity:
		return Selectivity(SelectivityInput{
			IPrev: in.Float("iprev"),
			Ks:    in.Float("ks"),
			Dt:    in.Float("dt"),
		})
	case KindZeroSequence:
		return ZeroSequence(ZeroSequenceInput{
			Ig: in.Float("ig"),
			Rz: in.Float("rz"),
			T:  in.Float("t"),
		})
	case KindSwingStability:
		return SwingStability(SwingStabilityInput{
			Inertia: in.Float("inertia"),
			IOsc:    in.Float("iosc"),
			Ks:      in.Float("ks"),
		})
	default:
		return Result{Kind: KindUnknown, Title: unknownTitle, Metrics: []Metric{}, Note: unknownNote}
	}
}
