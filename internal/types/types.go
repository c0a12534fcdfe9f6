package types

import "fmt"

// TypeID uniquely identifies a type inside the interner.
type TypeID uint32

// NoTypeID marks the absence of a type.
const NoTypeID TypeID = 0

// MaxIntWidth is the widest integer the backend can represent.
const MaxIntWidth uint32 = 1 << 23

// Kind enumerates all supported kinds of types.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindInt
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Type is a compact descriptor for any supported type.
type Type struct {
	Kind  Kind
	Width uint32 // bits, for KindInt only
}

// MakeInt describes an integer of the given bit width. Signedness is a
// property of the operation, not of the type.
func MakeInt(width uint32) Type {
	return Type{Kind: KindInt, Width: width}
}

// MakeBool describes the boolean type.
func MakeBool() Type {
	return Type{Kind: KindBool}
}

// Validate reports whether t is a well-formed descriptor.
func (t Type) Validate() error {
	switch t.Kind {
	case KindInt:
		if t.Width == 0 || t.Width > MaxIntWidth {
			return fmt.Errorf("%w: integer width %d outside [1, %d]", ErrInvalidType, t.Width, MaxIntWidth)
		}
		return nil
	case KindBool:
		if t.Width != 0 {
			return fmt.Errorf("%w: bool carries width %d", ErrInvalidType, t.Width)
		}
		return nil
	default:
		return fmt.Errorf("%w: kind %s", ErrInvalidType, t.Kind)
	}
}

func (t Type) String() string {
	switch t.Kind {
	case KindInt:
		return fmt.Sprintf("i%d", t.Width)
	case KindBool:
		return "bool"
	default:
		return "<invalid>"
	}
}
