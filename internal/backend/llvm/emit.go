package llvm

import (
	"context"
	"fmt"
	"math/big"

	llir "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	lltypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"pcb/internal/ir"
	"pcb/internal/trace"
	"pcb/internal/types"
)

// Emitter lowers one IR context to an llir module.
type Emitter struct {
	c      *ir.Context
	mod    *llir.Module
	funcs  map[ir.FuncID]*llir.Func
	llty   map[types.TypeID]lltypes.Type
	tracer trace.Tracer
	span   uint64
}

type funcEmitter struct {
	emitter *Emitter
	f       *ir.Function
	lf      *llir.Func
	blocks  []*llir.Block
	values  []value.Value
}

// EmitModule builds the LLVM module for c. Every function is declared
// before any body is emitted so calls may refer forward.
//
// A block without a terminator is an internal error and panics; callers
// reach this only through ir.Context.Lower, which validates first.
func EmitModule(ctx context.Context, c *ir.Context) (*llir.Module, error) {
	e := &Emitter{
		c:      c,
		mod:    llir.NewModule(),
		funcs:  make(map[ir.FuncID]*llir.Func, c.NumFunctions()),
		llty:   make(map[types.TypeID]lltypes.Type),
		tracer: trace.FromContext(ctx),
		span:   trace.ParentID(ctx),
	}
	if err := e.prepareFunctions(); err != nil {
		return nil, err
	}
	for fn := range c.Functions() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := e.emitFunction(fn); err != nil {
			return nil, fmt.Errorf("function %s: %w", fn.Name(), err)
		}
	}
	return e.mod, nil
}

func (e *Emitter) prepareFunctions() error {
	for fn := range e.c.Functions() {
		sig := fn.Type()
		params := make([]*llir.Param, len(sig.Inputs))
		for i, in := range sig.Inputs {
			t, err := e.llvmType(in)
			if err != nil {
				return err
			}
			params[i] = llir.NewParam(fmt.Sprintf("p%d", i), t)
		}
		ret, err := e.llvmType(sig.Output)
		if err != nil {
			return err
		}
		e.funcs[fn.ID()] = e.mod.NewFunc(fn.Name(), ret, params...)
	}
	return nil
}

func (e *Emitter) llvmType(id types.TypeID) (lltypes.Type, error) {
	if t, ok := e.llty[id]; ok {
		return t, nil
	}
	desc, ok := e.c.Types().Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: type id %d", types.ErrInvalidType, id)
	}
	var t lltypes.Type
	switch desc.Kind {
	case types.KindBool:
		t = lltypes.I1
	case types.KindInt:
		t = lltypes.NewInt(uint64(desc.Width))
	default:
		return nil, fmt.Errorf("%w: %s", types.ErrInvalidType, desc)
	}
	e.llty[id] = t
	return t, nil
}

func (e *Emitter) emitFunction(fn *ir.Function) error {
	trace.Point(e.tracer, trace.ScopeFunction, "func:"+fn.Name(), fn.Type().Format(e.c.Types()), e.span)
	fe := &funcEmitter{
		emitter: e,
		f:       fn,
		lf:      e.funcs[fn.ID()],
		values:  make([]value.Value, fn.NumValues()),
	}
	for b := range fn.Blocks() {
		fe.blocks = append(fe.blocks, fe.lf.NewBlock(b.String()))
	}
	// Values are emitted in numbering order so every operand exists before
	// its user; each lands in its own block, keeping per-block build order.
	for v := range fn.Values() {
		if err := fe.emitValue(v); err != nil {
			return err
		}
	}
	for b := range fn.Blocks() {
		fe.emitTerminator(b)
	}
	return nil
}

func (fe *funcEmitter) emitValue(v *ir.Value) error {
	if v.IsParam() {
		fe.values[v.ID()] = fe.lf.Params[v.ParamIndex()]
		return nil
	}
	trace.Point(fe.emitter.tracer, trace.ScopeValue, v.String(), v.Kind().Mnemonic(), fe.emitter.span)
	bb := fe.blocks[v.BlockID()]
	var out value.Value
	switch kind := v.Kind(); {
	case kind == ir.ValueConstInt:
		c, err := fe.constInt(v)
		if err != nil {
			return err
		}
		out = c
	case kind == ir.ValueCall:
		args := make([]value.Value, 0, len(v.Args()))
		for _, a := range v.Args() {
			args = append(args, fe.values[a.ID()])
		}
		out = bb.NewCall(fe.emitter.funcs[v.Callee().ID()], args...)
	case kind.IsBinary():
		l, r := v.Operands()
		out = emitBinary(bb, kind, fe.values[l.ID()], fe.values[r.ID()])
	case kind.IsCompare():
		return fmt.Errorf("%w: %s (%s has no lowering)", ir.ErrNotImplemented, v, kind.Mnemonic())
	default:
		return fmt.Errorf("%w: value kind %s", ir.ErrNotImplemented, kind)
	}
	fe.values[v.ID()] = out
	return nil
}

// constInt truncates the literal to the type's width.
func (fe *funcEmitter) constInt(v *ir.Value) (*constant.Int, error) {
	t, err := fe.emitter.llvmType(v.Type())
	if err != nil {
		return nil, err
	}
	it, ok := t.(*lltypes.IntType)
	if !ok {
		return nil, fmt.Errorf("%w: constant of non-integer type %s", types.ErrInvalidType, t)
	}
	x := new(big.Int).SetUint64(v.Literal())
	if it.BitSize < 64 {
		mask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), uint(it.BitSize)), big.NewInt(1))
		x.And(x, mask)
	}
	c := constant.NewInt(it, 0)
	c.X = x
	return c, nil
}

func emitBinary(bb *llir.Block, kind ir.ValueKind, l, r value.Value) value.Value {
	switch kind {
	case ir.ValueMul:
		return bb.NewMul(l, r)
	case ir.ValueUDiv:
		return bb.NewUDiv(l, r)
	case ir.ValueSDiv:
		return bb.NewSDiv(l, r)
	case ir.ValueURem:
		return bb.NewURem(l, r)
	case ir.ValueSRem:
		return bb.NewSRem(l, r)
	case ir.ValueAdd:
		return bb.NewAdd(l, r)
	case ir.ValueSub:
		return bb.NewSub(l, r)
	case ir.ValueShl:
		return bb.NewShl(l, r)
	case ir.ValueLShr:
		return bb.NewLShr(l, r)
	case ir.ValueAShr:
		return bb.NewAShr(l, r)
	case ir.ValueAnd:
		return bb.NewAnd(l, r)
	case ir.ValueXor:
		return bb.NewXor(l, r)
	default:
		return bb.NewOr(l, r)
	}
}

func (fe *funcEmitter) emitTerminator(b *ir.Block) {
	bb := fe.blocks[b.ID()]
	switch term := b.Terminator(); term.Kind {
	case ir.TermBranch:
		bb.NewBr(fe.blocks[term.Target])
	case ir.TermReturn:
		bb.NewRet(fe.values[term.Value])
	default:
		panic(fmt.Sprintf("pcb: internal error: %s of %s has no terminator", b, fe.f.Name()))
	}
}
