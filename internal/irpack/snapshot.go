// Package irpack stores a whole IR context as msgpack. Decoding replays the
// snapshot through the IR builders, so a decoded context is checked exactly
// like one built by hand.
package irpack

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"pcb/internal/ir"
	"pcb/internal/types"
)

// SchemaVersion changes whenever the snapshot layout does.
const SchemaVersion uint16 = 1

// ErrSchema is returned for snapshots written by another schema version.
var ErrSchema = errors.New("irpack: unsupported snapshot schema")

type Snapshot struct {
	Schema   uint16 `msgpack:"schema"`
	Optimize bool   `msgpack:"opt"`
	Funcs    []Func `msgpack:"funcs"`
}

type TypeDesc struct {
	Kind  uint8  `msgpack:"k"`
	Width uint32 `msgpack:"w,omitempty"`
}

type Func struct {
	Name   string     `msgpack:"name"`
	Inputs []TypeDesc `msgpack:"in"`
	Output TypeDesc   `msgpack:"out"`
	Blocks []Block    `msgpack:"blocks"`
	// Values holds built values in numbering order; parameters are implied
	// by Inputs and omitted.
	Values []Value `msgpack:"values"`
}

type Block struct {
	Term   uint8 `msgpack:"t"`
	Target int32 `msgpack:"bb,omitempty"`
	Ret    int32 `msgpack:"ret,omitempty"`
}

type Value struct {
	Kind    uint8    `msgpack:"k"`
	Block   int32    `msgpack:"bb"`
	Type    TypeDesc `msgpack:"ty"`
	Literal uint64   `msgpack:"lit,omitempty"`
	Callee  string   `msgpack:"fn,omitempty"`
	Args    []int32  `msgpack:"args,omitempty"`
	LHS     int32    `msgpack:"l,omitempty"`
	RHS     int32    `msgpack:"r,omitempty"`
}

// Take captures c. The context must not be destroyed.
func Take(c *ir.Context) (*Snapshot, error) {
	if c == nil {
		return nil, ir.ErrInvalidHandle
	}
	snap := &Snapshot{Schema: SchemaVersion, Optimize: c.Optimize()}
	in := c.Types()
	desc := func(id types.TypeID) TypeDesc {
		t := in.MustLookup(id)
		return TypeDesc{Kind: uint8(t.Kind), Width: t.Width}
	}
	for fn := range c.Functions() {
		sig := fn.Type()
		f := Func{Name: fn.Name(), Output: desc(sig.Output)}
		for _, id := range sig.Inputs {
			f.Inputs = append(f.Inputs, desc(id))
		}
		for b := range fn.Blocks() {
			term := b.Terminator()
			f.Blocks = append(f.Blocks, Block{Term: uint8(term.Kind), Target: int32(term.Target), Ret: int32(term.Value)})
		}
		for v := range fn.Values() {
			if v.IsParam() {
				continue
			}
			pv := Value{Kind: uint8(v.Kind()), Block: int32(v.BlockID()), Type: desc(v.Type())}
			switch {
			case v.Kind() == ir.ValueConstInt:
				pv.Literal = v.Literal()
			case v.Kind() == ir.ValueCall:
				pv.Callee = v.Callee().Name()
				for _, a := range v.Args() {
					pv.Args = append(pv.Args, int32(a.ID()))
				}
			default:
				l, r := v.Operands()
				pv.LHS, pv.RHS = int32(l.ID()), int32(r.ID())
			}
			f.Values = append(f.Values, pv)
		}
		snap.Funcs = append(snap.Funcs, f)
	}
	return snap, nil
}

// Restore rebuilds a context from snap.
func Restore(snap *Snapshot) (*ir.Context, error) {
	if snap == nil {
		return nil, ir.ErrInvalidHandle
	}
	if snap.Schema != SchemaVersion {
		return nil, fmt.Errorf("%w: %d", ErrSchema, snap.Schema)
	}
	c := ir.NewContext(snap.Optimize)
	if err := restore(c, snap); err != nil {
		c.Destroy()
		return nil, err
	}
	return c, nil
}

func restore(c *ir.Context, snap *Snapshot) error {
	intern := func(d TypeDesc) (types.TypeID, error) {
		return c.Intern(types.Type{Kind: types.Kind(d.Kind), Width: d.Width})
	}
	fns := make([]*ir.Function, len(snap.Funcs))
	for i, f := range snap.Funcs {
		out, err := intern(f.Output)
		if err != nil {
			return fmt.Errorf("function %s: %w", f.Name, err)
		}
		inputs := make([]types.TypeID, len(f.Inputs))
		for j, d := range f.Inputs {
			if inputs[j], err = intern(d); err != nil {
				return fmt.Errorf("function %s: input %d: %w", f.Name, j, err)
			}
		}
		if fns[i], err = c.AddFunction(f.Name, types.NewFuncType(out, inputs...)); err != nil {
			return err
		}
	}
	for i, f := range snap.Funcs {
		if err := restoreBody(c, fns[i], f, intern); err != nil {
			return fmt.Errorf("function %s: %w", f.Name, err)
		}
	}
	return nil
}

func restoreBody(c *ir.Context, fn *ir.Function, f Func, intern func(TypeDesc) (types.TypeID, error)) error {
	for range f.Blocks {
		if _, err := fn.AddBlock(); err != nil {
			return err
		}
	}
	value := func(id int32) (*ir.Value, error) {
		v := fn.Value(ir.ValueID(id))
		if v == nil {
			return nil, fmt.Errorf("%w: value %%%d", ir.ErrIndexOutOfRange, id)
		}
		return v, nil
	}
	for _, pv := range f.Values {
		b := fn.Block(ir.BlockID(pv.Block))
		if b == nil {
			return fmt.Errorf("%w: block bb%d", ir.ErrIndexOutOfRange, pv.Block)
		}
		typ, err := intern(pv.Type)
		if err != nil {
			return err
		}
		kind := ir.ValueKind(pv.Kind)
		var v *ir.Value
		switch {
		case kind == ir.ValueConstInt:
			v, err = b.BuildConstInt(typ, pv.Literal)
		case kind == ir.ValueCall:
			callee := c.FunctionByName(pv.Callee)
			if callee == nil {
				return fmt.Errorf("%w: unknown callee %q", ir.ErrInvalidHandle, pv.Callee)
			}
			args := make([]*ir.Value, len(pv.Args))
			for i, a := range pv.Args {
				if args[i], err = value(a); err != nil {
					return err
				}
			}
			v, err = b.BuildCall(callee, args...)
		default:
			lhs, lerr := value(pv.LHS)
			if lerr != nil {
				return lerr
			}
			rhs, rerr := value(pv.RHS)
			if rerr != nil {
				return rerr
			}
			v, err = b.BuildBinary(kind, lhs, rhs)
		}
		if err != nil {
			return err
		}
		if v.Type() != typ {
			return fmt.Errorf("%w: %s recorded as %s, rebuilt as %s", ir.ErrTypeMismatch, v, c.TypeName(typ), c.TypeName(v.Type()))
		}
	}
	for i, pb := range f.Blocks {
		b := fn.Block(ir.BlockID(i)) //nolint:gosec // i < len(f.Blocks) == NumBlocks
		switch ir.TermKind(pb.Term) {
		case ir.TermBranch:
			target := fn.Block(ir.BlockID(pb.Target))
			if target == nil {
				return fmt.Errorf("%w: branch target bb%d", ir.ErrIndexOutOfRange, pb.Target)
			}
			if err := b.BuildBranch(target); err != nil {
				return err
			}
		case ir.TermReturn:
			v, err := value(pb.Ret)
			if err != nil {
				return err
			}
			if err := b.BuildReturn(v); err != nil {
				return err
			}
		}
	}
	return nil
}

// Encode writes c to w.
func Encode(w io.Writer, c *ir.Context) error {
	snap, err := Take(c)
	if err != nil {
		return err
	}
	return msgpack.NewEncoder(w).Encode(snap)
}

// Decode reads a context written by Encode.
func Decode(r io.Reader) (*ir.Context, error) {
	var snap Snapshot
	if err := msgpack.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("irpack: %w", err)
	}
	return Restore(&snap)
}

// Marshal is Encode into a byte slice.
func Marshal(c *ir.Context) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal is Decode from a byte slice.
func Unmarshal(data []byte) (*ir.Context, error) {
	return Decode(bytes.NewReader(data))
}
