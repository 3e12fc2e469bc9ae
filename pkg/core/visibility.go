package core

// VisibilityEval is the outcome of evaluating one viewer/target pair.
type VisibilityEval int

const (
	Visible VisibilityEval = iota
	Hidden
	UnknownTransient
)

func (v VisibilityEval) String() string {
	switch v {
	case Visible:
		return "visible"
	case Hidden:
		return "hidden"
	case UnknownTransient:
		return "unknown"
	default:
		return "invalid"
	}
}
