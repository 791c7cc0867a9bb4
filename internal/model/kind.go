package model

// Kind is the closed set of registry entries a step can resolve to.
// Unlisted kind strings classify as KindTarget and the string itself becomes
// the observation target identifier.
type Kind string

const (
	KindPhaseUp   Kind = "phaseup"
	KindPhaseUpFB Kind = "phaseupfb"
	KindDelayCal  Kind = "delaycal"
	KindTarget    Kind = "target"
)

// ClassifyKind maps a raw step kind string onto the closed enumeration.
func ClassifyKind(name string) Kind {
	switch Kind(name) {
	case KindPhaseUp:
		return KindPhaseUp
	case KindPhaseUpFB:
		return KindPhaseUpFB
	case KindDelayCal:
		return KindDelayCal
	default:
		return KindTarget
	}
}

// IsBoundaryKind reports whether name marks the start of a new sequence in
// tabular input and selects the targetless instruction template.
func IsBoundaryKind(name string) bool {
	k := Kind(name)
	return k == KindPhaseUp || k == KindPhaseUpFB
}
