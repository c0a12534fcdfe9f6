package testkit

import (
	"fmt"

	"pcb/internal/ir"
)

// CheckInvariants walks a context and verifies the structural invariants the
// builders are meant to uphold:
// 1) parameters take the first value numbers, in input order
// 2) value numbers are dense and every operand refers to an earlier value
// 3) every block value points back at its block
// 4) terminators reference blocks and values of their own function
func CheckInvariants(c *ir.Context) error {
	if c == nil {
		return fmt.Errorf("nil context")
	}
	for fn := range c.Functions() {
		if err := checkFunc(fn); err != nil {
			return fmt.Errorf("function %s: %w", fn.Name(), err)
		}
	}
	return nil
}

func checkFunc(fn *ir.Function) error {
	sig := fn.Type()
	if fn.NumParams() != len(sig.Inputs) {
		return fmt.Errorf("%d parameters for %d inputs", fn.NumParams(), len(sig.Inputs))
	}
	next := ir.ValueID(0)
	for v := range fn.Values() {
		if v.ID() != next {
			return fmt.Errorf("value numbering gap: want %%%d, got %s", next, v)
		}
		next++
		if v.Function() != fn {
			return fmt.Errorf("%s: owner mismatch", v)
		}
		if int(v.ID()) < len(sig.Inputs) {
			if !v.IsParam() || v.ParamIndex() != int(v.ID()) || v.Type() != sig.Inputs[v.ID()] {
				return fmt.Errorf("%s: expected parameter %d", v, v.ID())
			}
			continue
		}
		if v.IsParam() {
			return fmt.Errorf("%s: parameter after the signature inputs", v)
		}
		var operands []*ir.Value
		switch {
		case v.Kind() == ir.ValueCall:
			operands = v.Args()
		case v.Kind().IsBinary() || v.Kind().IsCompare():
			l, r := v.Operands()
			operands = []*ir.Value{l, r}
		}
		for _, op := range operands {
			if op == nil || op.ID() >= v.ID() {
				return fmt.Errorf("%s: operand does not precede its user", v)
			}
		}
	}

	for b := range fn.Blocks() {
		for v := range b.Values() {
			if v.Block() != b {
				return fmt.Errorf("%s: listed in %s but points at %v", v, b, v.Block())
			}
		}
		switch term := b.Terminator(); term.Kind {
		case ir.TermBranch:
			if b.BranchTarget() == nil {
				return fmt.Errorf("%s: dangling branch target bb%d", b, term.Target)
			}
		case ir.TermReturn:
			if b.ReturnValue() == nil {
				return fmt.Errorf("%s: dangling return value %%%d", b, term.Value)
			}
		}
	}
	return nil
}
