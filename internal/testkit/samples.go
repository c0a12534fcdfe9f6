package testkit

import (
	"pcb/internal/ir"
	"pcb/internal/types"
)

// FooMainDump is the dump of BuildFooMain.
const FooMainDump = `define foo() -> i32 {
bb0:
  %0: i32 = 0
  return %0
}

define main() -> i32 {
bb0:
  %0: i32 = call foo()
  return %0
}
`

// BuildFooMain builds foo() returning 0 and main() returning foo().
func BuildFooMain(c *ir.Context) error {
	i32, err := c.IntType(32)
	if err != nil {
		return err
	}
	sig := types.NewFuncType(i32)

	foo, err := c.AddFunction("foo", sig)
	if err != nil {
		return err
	}
	fooStart, err := foo.AddBlock()
	if err != nil {
		return err
	}
	zero, err := fooStart.BuildConstInt(i32, 0)
	if err != nil {
		return err
	}
	if err := fooStart.BuildReturn(zero); err != nil {
		return err
	}

	main, err := c.AddFunction("main", sig)
	if err != nil {
		return err
	}
	mainStart, err := main.AddBlock()
	if err != nil {
		return err
	}
	ret, err := mainStart.BuildCall(foo)
	if err != nil {
		return err
	}
	return mainStart.BuildReturn(ret)
}

// ArithDump is the dump of BuildArith.
const ArithDump = `define arith(i32, i32) -> i32 {
bb0:
  %2: i32 = add %0 %1
  %3: i32 = 3
  %4: i32 = mul %2 %3
  branch bb1
bb1:
  %5: i32 = call arith(%4, %1)
  %6: i32 = sdiv %5 %0
  %7: i32 = xor %6 %1
  return %7
}
`

// BuildArith builds a two-block function with parameters, arithmetic and a
// recursive call.
func BuildArith(c *ir.Context) error {
	i32, err := c.IntType(32)
	if err != nil {
		return err
	}
	fn, err := c.AddFunction("arith", types.NewFuncType(i32, i32, i32))
	if err != nil {
		return err
	}
	a, err := fn.Argument(0)
	if err != nil {
		return err
	}
	b, err := fn.Argument(1)
	if err != nil {
		return err
	}
	entry, err := fn.AddBlock()
	if err != nil {
		return err
	}
	tail, err := fn.AddBlock()
	if err != nil {
		return err
	}
	sum, err := entry.BuildAdd(a, b)
	if err != nil {
		return err
	}
	three, err := entry.BuildConstInt(i32, 3)
	if err != nil {
		return err
	}
	prod, err := entry.BuildMul(sum, three)
	if err != nil {
		return err
	}
	if err := entry.BuildBranch(tail); err != nil {
		return err
	}
	rec, err := tail.BuildCall(fn, prod, b)
	if err != nil {
		return err
	}
	quo, err := tail.BuildSDiv(rec, a)
	if err != nil {
		return err
	}
	out, err := tail.BuildXor(quo, b)
	if err != nil {
		return err
	}
	return tail.BuildReturn(out)
}
