package ir

import (
	"fmt"

	"pcb/internal/types"
)

// ValueKind enumerates the instruction results a block can hold.
type ValueKind uint8

const (
	// ValueParam is a function parameter. It is created with the function and
	// never appended to a block.
	ValueParam ValueKind = iota
	// ValueConstInt is an integer constant.
	ValueConstInt
	// ValueCall calls another function of the same context.
	ValueCall

	ValueMul
	ValueUDiv
	ValueSDiv
	ValueURem
	ValueSRem
	ValueAdd
	ValueSub
	ValueShl
	ValueLShr
	ValueAShr
	ValueAnd
	ValueXor
	ValueOr

	ValueEq
	ValueNeq
	ValueLt
	ValueGt
	ValueLte
	ValueGte
)

var mnemonics = [...]string{
	ValueParam:    "param",
	ValueConstInt: "const",
	ValueCall:     "call",
	ValueMul:      "mul",
	ValueUDiv:     "udiv",
	ValueSDiv:     "sdiv",
	ValueURem:     "urem",
	ValueSRem:     "srem",
	ValueAdd:      "add",
	ValueSub:      "sub",
	ValueShl:      "shl",
	ValueLShr:     "lshr",
	ValueAShr:     "ashr",
	ValueAnd:      "and",
	ValueXor:      "xor",
	ValueOr:       "or",
	ValueEq:       "eq",
	ValueNeq:      "neq",
	ValueLt:       "lt",
	ValueGt:       "gt",
	ValueLte:      "lte",
	ValueGte:      "gte",
}

// Mnemonic returns the textual opcode.
func (k ValueKind) Mnemonic() string {
	if int(k) < len(mnemonics) {
		return mnemonics[k]
	}
	return fmt.Sprintf("ValueKind(%d)", k)
}

func (k ValueKind) String() string { return k.Mnemonic() }

// IsBinary reports arithmetic, shift and bitwise kinds.
func (k ValueKind) IsBinary() bool { return k >= ValueMul && k <= ValueOr }

// IsCompare reports comparison kinds.
func (k ValueKind) IsCompare() bool { return k >= ValueEq && k <= ValueGte }

// OperatorByMnemonic resolves a binary or comparison opcode.
func OperatorByMnemonic(s string) (ValueKind, bool) {
	for k := ValueMul; k <= ValueGte; k++ {
		if mnemonics[k] == s {
			return k, true
		}
	}
	return 0, false
}

// Value is a single instruction result. It is immutable once built.
type Value struct {
	id    ValueID
	kind  ValueKind
	typ   types.TypeID
	block BlockID

	literal uint64
	param   int

	callee FuncID
	args   []ValueID

	lhs ValueID
	rhs ValueID

	ctx *Context
	fn  FuncID
}

func (v *Value) ID() ValueID { return v.id }
func (v *Value) Kind() ValueKind { return v.kind }
func (v *Value) Type() types.TypeID { return v.typ }
func (v *Value) Literal() uint64 { return v.literal }
func (v *Value) ParamIndex() int { return v.param }
func (v *Value) Function() *Function { return v.ctx.function(v.fn) }
func (v *Value) Context() *Context { return v.ctx }
func (v *Value) BlockID() BlockID { return v.block }
func (v *Value) IsParam() bool { return v.kind == ValueParam }
func (v *Value) String() string { return fmt.Sprintf("%%%d", v.id) }

// Block returns the block holding v, or nil for parameters.
func (v *Value) Block() *Block {
	if v.block == NoBlockID {
		return nil
	}
	return v.Function().Block(v.block)
}

// Callee returns the called function of a ValueCall.
func (v *Value) Callee() *Function {
	if v.kind != ValueCall {
		return nil
	}
	return v.ctx.function(v.callee)
}

// Args returns the call arguments in order.
func (v *Value) Args() []*Value {
	if v.kind != ValueCall {
		return nil
	}
	fn := v.Function()
	out := make([]*Value, len(v.args))
	for i, id := range v.args {
		out[i] = fn.Value(id)
	}
	return out
}

// Operands returns both sides of a binary or comparison value.
func (v *Value) Operands() (lhs, rhs *Value) {
	if !v.kind.IsBinary() && !v.kind.IsCompare() {
		return nil, nil
	}
	fn := v.Function()
	return fn.Value(v.lhs), fn.Value(v.rhs)
}
