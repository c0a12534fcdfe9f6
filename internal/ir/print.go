package ir

import (
	"fmt"
	"io"
	"strings"
)

// Dump writes the textual form of every function in creation order:
//
//	define foo() -> i32 {
//	bb0:
//	  %0: i32 = 0
//	  return %0
//	}
//
// Functions are separated by a blank line. A block without a terminator
// has no terminator line.
func (c *Context) Dump(w io.Writer) error {
	if err := c.readable(); err != nil {
		return err
	}
	var sb strings.Builder
	first := true
	for fn := range c.Functions() {
		if !first {
			sb.WriteByte('\n')
		}
		first = false
		fn.format(&sb)
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func (c *Context) String() string {
	var sb strings.Builder
	if err := c.Dump(&sb); err != nil {
		return "<" + err.Error() + ">"
	}
	return sb.String()
}

// Dump writes the textual form of f alone.
func (f *Function) Dump(w io.Writer) error {
	if f == nil {
		return ErrInvalidHandle
	}
	if err := f.ctx.readable(); err != nil {
		return err
	}
	var sb strings.Builder
	f.format(&sb)
	_, err := io.WriteString(w, sb.String())
	return err
}

func (f *Function) format(sb *strings.Builder) {
	fmt.Fprintf(sb, "define %s%s {\n", f.name, f.sig.Format(f.ctx.types))
	for b := range f.Blocks() {
		fmt.Fprintf(sb, "%s:\n", b)
		for v := range b.Values() {
			fmt.Fprintf(sb, "  %s: %s = %s\n", v, f.ctx.types.Name(v.typ), f.formatValue(v))
		}
		switch b.term.Kind {
		case TermBranch:
			fmt.Fprintf(sb, "  branch bb%d\n", b.term.Target)
		case TermReturn:
			fmt.Fprintf(sb, "  return %%%d\n", b.term.Value)
		}
	}
	sb.WriteString("}\n")
}

// formatValue renders the right-hand side of v's dump line.
func (f *Function) formatValue(v *Value) string {
	switch {
	case v.kind == ValueConstInt:
		return fmt.Sprintf("%d", v.literal)
	case v.kind == ValueCall:
		var sb strings.Builder
		sb.WriteString("call ")
		sb.WriteString(f.ctx.function(v.callee).name)
		sb.WriteByte('(')
		for i, arg := range v.args {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%%%d", arg)
		}
		sb.WriteByte(')')
		return sb.String()
	case v.kind.IsBinary() || v.kind.IsCompare():
		return fmt.Sprintf("%s %%%d %%%d", v.kind.Mnemonic(), v.lhs, v.rhs)
	default:
		return fmt.Sprintf("param %d", v.param)
	}
}

// readable allows inspection of a consumed context; only a destroyed one is
// rejected.
func (c *Context) readable() error {
	if c == nil {
		return ErrInvalidHandle
	}
	if c.state == stateDestroyed {
		return fmt.Errorf("%w: destroyed", ErrContextClosed)
	}
	return nil
}
