package ir

type TermKind uint8

const (
	TermNone TermKind = iota
	TermBranch
	TermReturn
)

func (k TermKind) String() string {
	switch k {
	case TermBranch:
		return "branch"
	case TermReturn:
		return "return"
	default:
		return "none"
	}
}

// Terminator is the control transfer closing a block. It starts as TermNone
// and is set exactly once.
type Terminator struct {
	Kind   TermKind
	Target BlockID
	Value  ValueID
}

func noTerminator() Terminator {
	return Terminator{Kind: TermNone, Target: NoBlockID, Value: NoValueID}
}
