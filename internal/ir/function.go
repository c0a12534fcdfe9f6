package ir

import (
	"fmt"
	"iter"

	"pcb/internal/arena"
	"pcb/internal/types"
)

// Function is a named, typed unit of code. It owns its blocks and the
// values built in them; value numbers are function-global.
type Function struct {
	id     FuncID
	name   string
	sig    types.FuncType
	blocks *arena.Arena[Block]
	values *arena.Arena[Value]
	params []ValueID
	ctx    *Context
}

func (f *Function) ID() FuncID { return f.id }
func (f *Function) Name() string { return f.name }
func (f *Function) Context() *Context { return f.ctx }
func (f *Function) NumBlocks() int { return f.blocks.Len() }
func (f *Function) NumValues() int { return f.values.Len() }
func (f *Function) NumParams() int { return len(f.params) }
func (f *Function) String() string { return f.name }

// Type returns a copy of the signature.
func (f *Function) Type() types.FuncType { return f.sig.Clone() }

func (f *Function) Output() types.TypeID { return f.sig.Output }

func (f *Function) usable() error {
	if f == nil {
		return ErrInvalidHandle
	}
	return f.ctx.usable()
}

// AddBlock appends a block numbered by the current block count. The first
// block of a function is its entry block.
func (f *Function) AddBlock() (*Block, error) {
	if err := f.usable(); err != nil {
		return nil, &BuildError{Op: "add block", Func: funcName(f), Block: NoBlockID, Err: err}
	}
	h := f.blocks.Push(Block{
		term: noTerminator(),
		ctx:  f.ctx,
		fn:   f.id,
	})
	b := f.blocks.Get(h)
	b.id = mustID[BlockID](h)
	return b, nil
}

// Argument returns the parameter value for input index.
func (f *Function) Argument(index int) (*Value, error) {
	if err := f.usable(); err != nil {
		return nil, &BuildError{Op: "get argument", Func: funcName(f), Block: NoBlockID, Err: err}
	}
	if index < 0 || index >= len(f.params) {
		return nil, &BuildError{
			Op:     "get argument",
			Func:   f.name,
			Block:  NoBlockID,
			Err:    ErrIndexOutOfRange,
			Detail: fmt.Sprintf("index %d, function takes %d", index, len(f.params)),
		}
	}
	return f.Value(f.params[index]), nil
}

// Entry returns block 0, or nil when no block was added yet.
func (f *Function) Entry() *Block { return f.Block(0) }

// Block returns the block with the given id, or nil.
func (f *Function) Block(id BlockID) *Block {
	if f == nil || id < 0 {
		return nil
	}
	return f.blocks.Get(uint32(id))
}

// Value returns the value with the given number, or nil.
func (f *Function) Value(id ValueID) *Value {
	if f == nil || id < 0 {
		return nil
	}
	return f.values.Get(uint32(id))
}

// Blocks yields blocks in insertion order.
func (f *Function) Blocks() iter.Seq[*Block] { return f.blocks.Values() }

// Values yields every value, parameters included, in numbering order.
func (f *Function) Values() iter.Seq[*Value] { return f.values.Values() }

// Params returns the parameter values in input order.
func (f *Function) Params() []*Value {
	out := make([]*Value, len(f.params))
	for i, id := range f.params {
		out[i] = f.Value(id)
	}
	return out
}

func (f *Function) pushValue(v Value) ValueID {
	v.ctx = f.ctx
	v.fn = f.id
	h := f.values.Push(v)
	stored := f.values.Get(h)
	stored.id = mustID[ValueID](h)
	return stored.id
}

func funcName(f *Function) string {
	if f == nil {
		return ""
	}
	return f.name
}
