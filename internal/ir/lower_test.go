package ir_test

import (
	"context"
	"errors"
	"testing"

	"pcb/internal/ir"
	"pcb/internal/testkit"
)

type recordingBackend struct {
	calls   int
	output  string
	verbose bool
	funcs   []string
}

func (r *recordingBackend) Lower(_ context.Context, c *ir.Context, output string, verbose bool) error {
	r.calls++
	r.output = output
	r.verbose = verbose
	for fn := range c.Functions() {
		r.funcs = append(r.funcs, fn.Name())
	}
	return nil
}

func TestLowerConsumesContext(t *testing.T) {
	c := ir.NewContext(true)
	if err := testkit.BuildFooMain(c); err != nil {
		t.Fatal(err)
	}
	rb := &recordingBackend{}
	if err := c.Lower(context.Background(), rb, "out.o", true); err != nil {
		t.Fatalf("lower: %v", err)
	}
	if rb.calls != 1 || rb.output != "out.o" || !rb.verbose {
		t.Fatalf("backend saw %+v", rb)
	}
	if len(rb.funcs) != 2 || rb.funcs[0] != "foo" || rb.funcs[1] != "main" {
		t.Fatalf("functions out of registry order: %v", rb.funcs)
	}

	if err := c.Lower(context.Background(), rb, "again.o", false); !errors.Is(err, ir.ErrContextClosed) {
		t.Fatalf("second lower: expected ErrContextClosed, got %v", err)
	}
	if _, err := c.AddFunction("late", c.FunctionByName("foo").Type()); !errors.Is(err, ir.ErrContextClosed) {
		t.Fatalf("build after lower: expected ErrContextClosed, got %v", err)
	}
	if rb.calls != 1 {
		t.Fatalf("backend called %d times", rb.calls)
	}
	if c.String() != testkit.FooMainDump {
		t.Fatalf("consumed context must stay printable")
	}
}

func TestLowerValidatesFirst(t *testing.T) {
	c := ir.NewContext(false)
	i32 := mustInt(t, c, 32)
	fn := mustFunc(t, c, "f", i32)
	b := mustBlock(t, fn)
	mustConst(t, b, i32, 1)
	mustFunc(t, c, "empty", i32)

	called := false
	backend := ir.BackendFunc(func(context.Context, *ir.Context, string, bool) error {
		called = true
		return nil
	})
	err := c.Lower(context.Background(), backend, "x.o", false)
	if !errors.Is(err, ir.ErrUnterminatedBlock) || !errors.Is(err, ir.ErrEmptyFunction) {
		t.Fatalf("expected both validation errors, got %v", err)
	}
	if called {
		t.Fatalf("backend must not see an invalid context")
	}
	if _, err := b.BuildConstInt(i32, 2); !errors.Is(err, ir.ErrContextClosed) {
		t.Fatalf("failed lower must still consume the context, got %v", err)
	}
}

func TestLowerPropagatesBackendError(t *testing.T) {
	c := ir.NewContext(false)
	if err := testkit.BuildFooMain(c); err != nil {
		t.Fatal(err)
	}
	boom := ir.BackendFunc(func(context.Context, *ir.Context, string, bool) error {
		return ir.ErrBackendFailure
	})
	if err := c.Lower(context.Background(), boom, "x.o", false); !errors.Is(err, ir.ErrBackendFailure) {
		t.Fatalf("expected ErrBackendFailure, got %v", err)
	}
}

func TestValidateAcceptsComplete(t *testing.T) {
	c := ir.NewContext(false)
	if err := testkit.BuildArith(c); err != nil {
		t.Fatal(err)
	}
	if err := ir.Validate(c); err != nil {
		t.Fatalf("validate: %v", err)
	}
}
