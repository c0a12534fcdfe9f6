package types

import (
	"slices"
	"strings"
)

// FuncType is a call signature: ordered inputs and one output.
type FuncType struct {
	Inputs []TypeID
	Output TypeID
}

// NewFuncType copies inputs so the caller may reuse its slice.
func NewFuncType(output TypeID, inputs ...TypeID) FuncType {
	return FuncType{Inputs: slices.Clone(inputs), Output: output}
}

// Clone returns a deep copy.
func (f FuncType) Clone() FuncType {
	return FuncType{Inputs: slices.Clone(f.Inputs), Output: f.Output}
}

func (f FuncType) Equal(other FuncType) bool {
	return f.Output == other.Output && slices.Equal(f.Inputs, other.Inputs)
}

// Format renders the signature as "(i32, bool) -> i32".
func (f FuncType) Format(in *Interner) string {
	var sb strings.Builder
	sb.WriteByte('(')
	for i, id := range f.Inputs {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(in.Name(id))
	}
	sb.WriteString(") -> ")
	sb.WriteString(in.Name(f.Output))
	return sb.String()
}

// Validate checks that every TypeID in the signature is known to in.
func (f FuncType) Validate(in *Interner) error {
	for _, id := range f.Inputs {
		if _, ok := in.Lookup(id); !ok {
			return ErrInvalidType
		}
	}
	if _, ok := in.Lookup(f.Output); !ok {
		return ErrInvalidType
	}
	return nil
}
