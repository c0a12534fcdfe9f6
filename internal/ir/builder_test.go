package ir_test

import (
	"errors"
	"testing"

	"pcb/internal/ir"
	"pcb/internal/types"
)

func mustInt(t *testing.T, c *ir.Context, width uint32) types.TypeID {
	t.Helper()
	id, err := c.IntType(width)
	if err != nil {
		t.Fatalf("int type %d: %v", width, err)
	}
	return id
}

func mustFunc(t *testing.T, c *ir.Context, name string, out types.TypeID, in ...types.TypeID) *ir.Function {
	t.Helper()
	fn, err := c.AddFunction(name, types.NewFuncType(out, in...))
	if err != nil {
		t.Fatalf("add function %s: %v", name, err)
	}
	return fn
}

func mustBlock(t *testing.T, fn *ir.Function) *ir.Block {
	t.Helper()
	b, err := fn.AddBlock()
	if err != nil {
		t.Fatalf("add block: %v", err)
	}
	return b
}

func mustConst(t *testing.T, b *ir.Block, typ types.TypeID, lit uint64) *ir.Value {
	t.Helper()
	v, err := b.BuildConstInt(typ, lit)
	if err != nil {
		t.Fatalf("const: %v", err)
	}
	return v
}

func TestTypeInterningIdempotent(t *testing.T) {
	c := ir.NewContext(false)
	a := mustInt(t, c, 32)
	if b := mustInt(t, c, 32); a != b {
		t.Fatalf("i32 interned twice yields %d and %d", a, b)
	}
	if a == mustInt(t, c, 64) {
		t.Fatalf("i32 and i64 share identity")
	}
	b1, _ := c.BoolType()
	b2, _ := c.BoolType()
	if b1 != b2 {
		t.Fatalf("bool interned twice differs")
	}
	if _, err := c.IntType(0); !errors.Is(err, types.ErrInvalidType) {
		t.Fatalf("expected ErrInvalidType for i0, got %v", err)
	}
}

func TestTerminatorIsOneShot(t *testing.T) {
	c := ir.NewContext(false)
	i32 := mustInt(t, c, 32)
	fn := mustFunc(t, c, "f", i32)
	b := mustBlock(t, fn)
	other := mustBlock(t, fn)
	v := mustConst(t, b, i32, 1)
	if err := b.BuildReturn(v); err != nil {
		t.Fatalf("return: %v", err)
	}

	calls := map[string]func() error{
		"const":  func() error { _, err := b.BuildConstInt(i32, 2); return err },
		"add":    func() error { _, err := b.BuildAdd(v, v); return err },
		"eq":     func() error { _, err := b.BuildEq(v, v); return err },
		"call":   func() error { _, err := b.BuildCall(fn); return err },
		"return": func() error { return b.BuildReturn(v) },
		"branch": func() error { return b.BuildBranch(other) },
	}
	for name, call := range calls {
		if err := call(); !errors.Is(err, ir.ErrTerminatorAlreadySet) {
			t.Errorf("%s after return: expected ErrTerminatorAlreadySet, got %v", name, err)
		}
	}
	if b.Len() != 1 {
		t.Fatalf("terminated block grew to %d values", b.Len())
	}
	if term := b.Terminator(); term.Kind != ir.TermReturn || term.Value != v.ID() {
		t.Fatalf("terminator changed: %+v", term)
	}
}

func TestBinaryTypeCheck(t *testing.T) {
	c := ir.NewContext(false)
	i32 := mustInt(t, c, 32)
	i64 := mustInt(t, c, 64)
	fn := mustFunc(t, c, "f", i32)
	b := mustBlock(t, fn)
	a := mustConst(t, b, i32, 1)
	wide := mustConst(t, b, i64, 2)

	var be *ir.BuildError
	if _, err := b.BuildAdd(a, wide); !errors.Is(err, ir.ErrTypeMismatch) || !errors.As(err, &be) {
		t.Fatalf("expected BuildError(ErrTypeMismatch), got %v", err)
	}
	if be.Op != "add" || be.Func != "f" || be.Block != 0 {
		t.Fatalf("error not located: %+v", be)
	}

	builders := []func(l, r *ir.Value) (*ir.Value, error){
		b.BuildMul, b.BuildUDiv, b.BuildSDiv, b.BuildURem, b.BuildSRem,
		b.BuildAdd, b.BuildSub, b.BuildShl, b.BuildLShr, b.BuildAShr,
		b.BuildAnd, b.BuildXor, b.BuildOr,
	}
	for i, build := range builders {
		v, err := build(a, a)
		if err != nil {
			t.Fatalf("builder %d: %v", i, err)
		}
		if v.Type() != i32 {
			t.Fatalf("builder %d: result type %s, want i32", i, c.TypeName(v.Type()))
		}
		if !v.Kind().IsBinary() {
			t.Fatalf("builder %d produced %s", i, v.Kind())
		}
		if _, err := build(a, wide); !errors.Is(err, ir.ErrTypeMismatch) {
			t.Fatalf("builder %d: expected ErrTypeMismatch, got %v", i, err)
		}
	}
}

func TestCompareProducesBool(t *testing.T) {
	c := ir.NewContext(false)
	i8 := mustInt(t, c, 8)
	boolT, _ := c.BoolType()
	fn := mustFunc(t, c, "f", i8)
	b := mustBlock(t, fn)
	x := mustConst(t, b, i8, 3)
	y := mustConst(t, b, i8, 4)
	for _, build := range []func(l, r *ir.Value) (*ir.Value, error){
		b.BuildEq, b.BuildNeq, b.BuildLt, b.BuildGt, b.BuildLte, b.BuildGte,
	} {
		v, err := build(x, y)
		if err != nil {
			t.Fatal(err)
		}
		if v.Type() != boolT || !v.Kind().IsCompare() {
			t.Fatalf("%s: type %s", v.Kind(), c.TypeName(v.Type()))
		}
		l, r := v.Operands()
		if l != x || r != y {
			t.Fatalf("%s: operands not preserved", v.Kind())
		}
	}
	if _, err := b.BuildBinary(ir.ValueCall, x, y); !errors.Is(err, ir.ErrInvalidOpcode) {
		t.Fatalf("expected ErrInvalidOpcode, got %v", err)
	}
}

func TestCallArityAndTypes(t *testing.T) {
	c := ir.NewContext(false)
	i32 := mustInt(t, c, 32)
	i64 := mustInt(t, c, 64)
	callee := mustFunc(t, c, "f", i32, i32)
	caller := mustFunc(t, c, "g", i32)
	b := mustBlock(t, caller)

	if _, err := b.BuildCall(callee); !errors.Is(err, ir.ErrArityMismatch) {
		t.Fatalf("zero args: expected ErrArityMismatch, got %v", err)
	}
	wide := mustConst(t, b, i64, 1)
	if _, err := b.BuildCall(callee, wide); !errors.Is(err, ir.ErrTypeMismatch) {
		t.Fatalf("i64 arg: expected ErrTypeMismatch, got %v", err)
	}
	arg := mustConst(t, b, i32, 1)
	v, err := b.BuildCall(callee, arg)
	if err != nil {
		t.Fatalf("valid call: %v", err)
	}
	if v.Type() != i32 || v.Callee() != callee {
		t.Fatalf("call result mismatch: type=%s callee=%v", c.TypeName(v.Type()), v.Callee())
	}
	if args := v.Args(); len(args) != 1 || args[0] != arg {
		t.Fatalf("args not preserved: %v", args)
	}

	// A parameter of the callee cannot be passed from the caller.
	foreign, err := callee.Argument(0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.BuildCall(callee, foreign); !errors.Is(err, ir.ErrCrossFunction) {
		t.Fatalf("foreign arg: expected ErrCrossFunction, got %v", err)
	}
}

func TestCrossFunctionTerminators(t *testing.T) {
	c := ir.NewContext(false)
	i32 := mustInt(t, c, 32)
	fa := mustFunc(t, c, "a", i32)
	fb := mustFunc(t, c, "b", i32)
	ba := mustBlock(t, fa)
	bb := mustBlock(t, fb)

	if err := ba.BuildBranch(bb); !errors.Is(err, ir.ErrCrossFunction) {
		t.Fatalf("branch: expected ErrCrossFunction, got %v", err)
	}
	v := mustConst(t, bb, i32, 0)
	if err := ba.BuildReturn(v); !errors.Is(err, ir.ErrCrossFunction) {
		t.Fatalf("return: expected ErrCrossFunction, got %v", err)
	}
	if _, err := ba.BuildAdd(v, v); !errors.Is(err, ir.ErrCrossFunction) {
		t.Fatalf("operand: expected ErrCrossFunction, got %v", err)
	}
	if ba.Terminated() {
		t.Fatalf("failed terminator calls must leave the block open")
	}

	other := ir.NewContext(false)
	oi32 := mustInt(t, other, 32)
	ofn := mustFunc(t, other, "a", oi32)
	ob := mustBlock(t, ofn)
	if err := ba.BuildBranch(ob); !errors.Is(err, ir.ErrCrossFunction) {
		t.Fatalf("branch to other context: expected ErrCrossFunction, got %v", err)
	}
	if _, err := ba.BuildCall(ofn); !errors.Is(err, ir.ErrInvalidHandle) {
		t.Fatalf("call into other context: expected ErrInvalidHandle, got %v", err)
	}
}

func TestReturnTypeMustMatchOutput(t *testing.T) {
	c := ir.NewContext(false)
	i32 := mustInt(t, c, 32)
	i64 := mustInt(t, c, 64)
	fn := mustFunc(t, c, "f", i32)
	b := mustBlock(t, fn)
	if err := b.BuildReturn(mustConst(t, b, i64, 0)); !errors.Is(err, ir.ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch, got %v", err)
	}
}

func TestArgumentsAndNumbering(t *testing.T) {
	c := ir.NewContext(false)
	i32 := mustInt(t, c, 32)
	boolT, _ := c.BoolType()
	fn := mustFunc(t, c, "f", i32, i32, boolT)

	p0, err := fn.Argument(0)
	if err != nil {
		t.Fatal(err)
	}
	p1, err := fn.Argument(1)
	if err != nil {
		t.Fatal(err)
	}
	if p0.ID() != 0 || p1.ID() != 1 || !p0.IsParam() || p1.Type() != boolT {
		t.Fatalf("parameters not numbered first: %v %v", p0, p1)
	}
	if p0.Block() != nil {
		t.Fatalf("parameter must not live in a block")
	}
	for _, idx := range []int{2, -1} {
		if _, err := fn.Argument(idx); !errors.Is(err, ir.ErrIndexOutOfRange) {
			t.Fatalf("argument %d: expected ErrIndexOutOfRange, got %v", idx, err)
		}
	}

	entry := mustBlock(t, fn)
	next := mustBlock(t, fn)
	if entry.ID() != 0 || next.ID() != 1 || fn.Entry() != entry {
		t.Fatalf("entry block convention broken")
	}
	v := mustConst(t, next, i32, 9)
	w, err := entry.BuildAdd(p0, v)
	if err != nil {
		t.Fatal(err)
	}
	if v.ID() != 2 || w.ID() != 3 {
		t.Fatalf("numbering is not function-global: %v %v", v, w)
	}
	if entry.Len() != 1 || next.Len() != 1 {
		t.Fatalf("parameters leaked into blocks")
	}
}

func TestAddFunctionRejectsBadNames(t *testing.T) {
	c := ir.NewContext(false)
	i32 := mustInt(t, c, 32)
	mustFunc(t, c, "caf\u00e9", i32)
	if _, err := c.AddFunction("cafe\u0301", types.NewFuncType(i32)); !errors.Is(err, ir.ErrDuplicateFunction) {
		t.Fatalf("NFC-equal name: expected ErrDuplicateFunction, got %v", err)
	}
	if c.FunctionByName("cafe\u0301") == nil {
		t.Fatalf("lookup must normalize names")
	}
	for _, name := range []string{"", "a b", "f(x)", "%0"} {
		if _, err := c.AddFunction(name, types.NewFuncType(i32)); !errors.Is(err, ir.ErrInvalidName) {
			t.Fatalf("%q: expected ErrInvalidName, got %v", name, err)
		}
	}
	if _, err := c.AddFunction("g", types.NewFuncType(types.TypeID(999))); !errors.Is(err, types.ErrInvalidType) {
		t.Fatalf("unknown output type: expected ErrInvalidType, got %v", err)
	}
}

func TestNilHandlesRejected(t *testing.T) {
	c := ir.NewContext(false)
	i32 := mustInt(t, c, 32)
	fn := mustFunc(t, c, "f", i32)
	b := mustBlock(t, fn)
	v := mustConst(t, b, i32, 1)

	var nilBlock *ir.Block
	if _, err := nilBlock.BuildConstInt(i32, 0); !errors.Is(err, ir.ErrInvalidHandle) {
		t.Fatalf("nil block: %v", err)
	}
	if _, err := b.BuildAdd(v, nil); !errors.Is(err, ir.ErrInvalidHandle) {
		t.Fatalf("nil operand: %v", err)
	}
	if err := b.BuildBranch(nil); !errors.Is(err, ir.ErrInvalidHandle) {
		t.Fatalf("nil target: %v", err)
	}
	if _, err := b.BuildCall(nil); !errors.Is(err, ir.ErrInvalidHandle) {
		t.Fatalf("nil callee: %v", err)
	}
	var nilFn *ir.Function
	if _, err := nilFn.AddBlock(); !errors.Is(err, ir.ErrInvalidHandle) {
		t.Fatalf("nil function: %v", err)
	}
}

func TestDestroyInvalidatesHandles(t *testing.T) {
	c := ir.NewContext(false)
	i32 := mustInt(t, c, 32)
	fn := mustFunc(t, c, "f", i32)
	b := mustBlock(t, fn)
	c.Destroy()

	if _, err := b.BuildConstInt(i32, 0); !errors.Is(err, ir.ErrContextClosed) {
		t.Fatalf("build after destroy: %v", err)
	}
	if _, err := fn.AddBlock(); !errors.Is(err, ir.ErrContextClosed) {
		t.Fatalf("add block after destroy: %v", err)
	}
	if _, err := c.AddFunction("g", types.NewFuncType(i32)); !errors.Is(err, ir.ErrContextClosed) {
		t.Fatalf("add function after destroy: %v", err)
	}
	if _, err := c.IntType(8); !errors.Is(err, ir.ErrContextClosed) {
		t.Fatalf("intern after destroy: %v", err)
	}
	c.Destroy()
}
