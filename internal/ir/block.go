package ir

import (
	"fmt"
	"iter"
	"slices"

	"pcb/internal/types"
)

// Block is a basic block: ordered values closed by one terminator. Builder
// methods fail with ErrTerminatorAlreadySet once the terminator is set.
type Block struct {
	id     BlockID
	values []ValueID
	term   Terminator
	ctx    *Context
	fn     FuncID
}

func (b *Block) ID() BlockID { return b.id }
func (b *Block) Function() *Function { return b.ctx.function(b.fn) }
func (b *Block) Terminator() Terminator { return b.term }
func (b *Block) Terminated() bool { return b.term.Kind != TermNone }
func (b *Block) Len() int { return len(b.values) }
func (b *Block) String() string { return fmt.Sprintf("bb%d", b.id) }

// Values yields the block's values in build order.
func (b *Block) Values() iter.Seq[*Value] {
	return func(yield func(*Value) bool) {
		fn := b.Function()
		for _, id := range b.values {
			if !yield(fn.Value(id)) {
				return
			}
		}
	}
}

// BranchTarget resolves a TermBranch target.
func (b *Block) BranchTarget() *Block {
	if b.term.Kind != TermBranch {
		return nil
	}
	return b.Function().Block(b.term.Target)
}

// ReturnValue resolves a TermReturn operand.
func (b *Block) ReturnValue() *Value {
	if b.term.Kind != TermReturn {
		return nil
	}
	return b.Function().Value(b.term.Value)
}

func (b *Block) fail(op string, err error, detail string, args ...any) error {
	be := &BuildError{Op: op, Block: NoBlockID, Err: err}
	if b != nil {
		be.Block = b.id
		if fn := b.Function(); fn != nil {
			be.Func = fn.name
		}
	}
	if detail != "" {
		be.Detail = fmt.Sprintf(detail, args...)
	}
	return be
}

// open checks the state every builder call shares.
func (b *Block) open(op string) error {
	if b == nil {
		return b.fail(op, ErrInvalidHandle, "nil block")
	}
	if err := b.ctx.usable(); err != nil {
		return b.fail(op, err, "")
	}
	if b.Terminated() {
		return b.fail(op, ErrTerminatorAlreadySet, "block ends with %s", b.term.Kind)
	}
	return nil
}

// local checks that v is a value of the block's own function.
func (b *Block) local(op string, what string, v *Value) error {
	if v == nil {
		return b.fail(op, ErrInvalidHandle, "nil %s", what)
	}
	if v.ctx != b.ctx || v.fn != b.fn {
		return b.fail(op, ErrCrossFunction, "%s %s belongs to %s", what, v, funcName(v.Function()))
	}
	return nil
}

func (b *Block) append(v Value) *Value {
	fn := b.Function()
	v.block = b.id
	id := fn.pushValue(v)
	b.values = append(b.values, id)
	return fn.Value(id)
}

func (b *Block) typeName(id types.TypeID) string { return b.ctx.types.Name(id) }

// BuildConstInt appends an integer constant of type typ.
func (b *Block) BuildConstInt(typ types.TypeID, literal uint64) (*Value, error) {
	const op = "const"
	if err := b.open(op); err != nil {
		return nil, err
	}
	if _, ok := b.ctx.types.Lookup(typ); !ok {
		return nil, b.fail(op, types.ErrInvalidType, "type id %d", typ)
	}
	return b.append(Value{kind: ValueConstInt, typ: typ, literal: literal}), nil
}

// BuildCall appends a call to callee. Argument count and types must match
// the callee's signature exactly.
func (b *Block) BuildCall(callee *Function, args ...*Value) (*Value, error) {
	const op = "call"
	if err := b.open(op); err != nil {
		return nil, err
	}
	if callee == nil {
		return nil, b.fail(op, ErrInvalidHandle, "nil callee")
	}
	if callee.ctx != b.ctx {
		return nil, b.fail(op, ErrInvalidHandle, "callee %s belongs to another context", callee.name)
	}
	if len(args) != len(callee.sig.Inputs) {
		return nil, b.fail(op, ErrArityMismatch, "%s takes %d arguments, got %d", callee.name, len(callee.sig.Inputs), len(args))
	}
	ids := make([]ValueID, len(args))
	for i, arg := range args {
		if err := b.local(op, fmt.Sprintf("argument %d", i), arg); err != nil {
			return nil, err
		}
		if want := callee.sig.Inputs[i]; arg.typ != want {
			return nil, b.fail(op, ErrTypeMismatch, "argument %d of %s: want %s, got %s",
				i, callee.name, b.typeName(want), b.typeName(arg.typ))
		}
		ids[i] = arg.id
	}
	return b.append(Value{kind: ValueCall, typ: callee.sig.Output, callee: callee.id, args: slices.Clip(ids)}), nil
}

// BuildBinary appends a binary or comparison value. Both operands must have
// the same type; binary results share it, comparisons produce bool.
func (b *Block) BuildBinary(kind ValueKind, lhs, rhs *Value) (*Value, error) {
	op := kind.Mnemonic()
	if err := b.open(op); err != nil {
		return nil, err
	}
	if !kind.IsBinary() && !kind.IsCompare() {
		return nil, b.fail(op, ErrInvalidOpcode, "")
	}
	if err := b.local(op, "lhs", lhs); err != nil {
		return nil, err
	}
	if err := b.local(op, "rhs", rhs); err != nil {
		return nil, err
	}
	if lhs.typ != rhs.typ {
		return nil, b.fail(op, ErrTypeMismatch, "%s vs %s", b.typeName(lhs.typ), b.typeName(rhs.typ))
	}
	result := lhs.typ
	if kind.IsCompare() {
		result = b.ctx.types.Builtins().Bool
	}
	return b.append(Value{kind: kind, typ: result, lhs: lhs.id, rhs: rhs.id}), nil
}

func (b *Block) BuildMul(lhs, rhs *Value) (*Value, error) { return b.BuildBinary(ValueMul, lhs, rhs) }
func (b *Block) BuildUDiv(lhs, rhs *Value) (*Value, error) { return b.BuildBinary(ValueUDiv, lhs, rhs) }
func (b *Block) BuildSDiv(lhs, rhs *Value) (*Value, error) { return b.BuildBinary(ValueSDiv, lhs, rhs) }
func (b *Block) BuildURem(lhs, rhs *Value) (*Value, error) { return b.BuildBinary(ValueURem, lhs, rhs) }
func (b *Block) BuildSRem(lhs, rhs *Value) (*Value, error) { return b.BuildBinary(ValueSRem, lhs, rhs) }
func (b *Block) BuildAdd(lhs, rhs *Value) (*Value, error) { return b.BuildBinary(ValueAdd, lhs, rhs) }
func (b *Block) BuildSub(lhs, rhs *Value) (*Value, error) { return b.BuildBinary(ValueSub, lhs, rhs) }
func (b *Block) BuildShl(lhs, rhs *Value) (*Value, error) { return b.BuildBinary(ValueShl, lhs, rhs) }

// BuildLShr is a logical (zero-filling) right shift.
func (b *Block) BuildLShr(lhs, rhs *Value) (*Value, error) { return b.BuildBinary(ValueLShr, lhs, rhs) }

// BuildAShr is an arithmetic (sign-filling) right shift.
func (b *Block) BuildAShr(lhs, rhs *Value) (*Value, error) { return b.BuildBinary(ValueAShr, lhs, rhs) }

func (b *Block) BuildAnd(lhs, rhs *Value) (*Value, error) { return b.BuildBinary(ValueAnd, lhs, rhs) }
func (b *Block) BuildXor(lhs, rhs *Value) (*Value, error) { return b.BuildBinary(ValueXor, lhs, rhs) }
func (b *Block) BuildOr(lhs, rhs *Value) (*Value, error) { return b.BuildBinary(ValueOr, lhs, rhs) }

// Comparisons are representable but have no lowering; backends reject them
// with ErrNotImplemented.

func (b *Block) BuildEq(lhs, rhs *Value) (*Value, error) { return b.BuildBinary(ValueEq, lhs, rhs) }
func (b *Block) BuildNeq(lhs, rhs *Value) (*Value, error) { return b.BuildBinary(ValueNeq, lhs, rhs) }
func (b *Block) BuildLt(lhs, rhs *Value) (*Value, error) { return b.BuildBinary(ValueLt, lhs, rhs) }
func (b *Block) BuildGt(lhs, rhs *Value) (*Value, error) { return b.BuildBinary(ValueGt, lhs, rhs) }
func (b *Block) BuildLte(lhs, rhs *Value) (*Value, error) { return b.BuildBinary(ValueLte, lhs, rhs) }
func (b *Block) BuildGte(lhs, rhs *Value) (*Value, error) { return b.BuildBinary(ValueGte, lhs, rhs) }

// BuildBranch terminates the block with an unconditional jump to target,
// which must belong to the same function.
func (b *Block) BuildBranch(target *Block) error {
	const op = "branch"
	if err := b.open(op); err != nil {
		return err
	}
	if target == nil {
		return b.fail(op, ErrInvalidHandle, "nil target")
	}
	if target.ctx != b.ctx || target.fn != b.fn {
		return b.fail(op, ErrCrossFunction, "target %s belongs to %s", target, funcName(target.Function()))
	}
	b.term = Terminator{Kind: TermBranch, Target: target.id, Value: NoValueID}
	return nil
}

// BuildReturn terminates the block by returning v, which must belong to the
// same function.
func (b *Block) BuildReturn(v *Value) error {
	const op = "return"
	if err := b.open(op); err != nil {
		return err
	}
	if err := b.local(op, "value", v); err != nil {
		return err
	}
	if out := b.Function().sig.Output; v.typ != out {
		return b.fail(op, ErrTypeMismatch, "function returns %s, got %s", b.typeName(out), b.typeName(v.typ))
	}
	b.term = Terminator{Kind: TermReturn, Target: NoBlockID, Value: v.id}
	return nil
}
