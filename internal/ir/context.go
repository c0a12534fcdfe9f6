package ir

import (
	"fmt"
	"iter"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"pcb/internal/arena"
	"pcb/internal/types"
)

type ctxState uint8

const (
	stateOpen ctxState = iota
	stateConsumed
	stateDestroyed
)

// Context owns the type interner and every function built through it.
// Handles derived from a Context must not be used once it is destroyed or
// handed to a Backend.
type Context struct {
	optimize bool
	types    *types.Interner
	funcs    *arena.Arena[Function]
	byName   map[string]FuncID
	state    ctxState
}

// NewContext creates an empty context. optimize is forwarded to the backend.
func NewContext(optimize bool) *Context {
	return &Context{
		optimize: optimize,
		types:    types.NewInterner(),
		funcs:    arena.New[Function](8),
		byName:   make(map[string]FuncID),
	}
}

func (c *Context) Optimize() bool { return c.optimize }

// Types exposes the interner for read access.
func (c *Context) Types() *types.Interner { return c.types }

func (c *Context) usable() error {
	if c == nil {
		return ErrInvalidHandle
	}
	switch c.state {
	case stateConsumed:
		return fmt.Errorf("%w: consumed by a backend", ErrContextClosed)
	case stateDestroyed:
		return fmt.Errorf("%w: destroyed", ErrContextClosed)
	}
	return nil
}

// Intern returns the canonical TypeID for t.
func (c *Context) Intern(t types.Type) (types.TypeID, error) {
	if err := c.usable(); err != nil {
		return types.NoTypeID, err
	}
	return c.types.Intern(t)
}

// IntType interns an integer type of the given bit width.
func (c *Context) IntType(width uint32) (types.TypeID, error) {
	return c.Intern(types.MakeInt(width))
}

// BoolType interns the boolean type.
func (c *Context) BoolType() (types.TypeID, error) {
	return c.Intern(types.MakeBool())
}

// TypeName renders id as it appears in the textual dump.
func (c *Context) TypeName(id types.TypeID) string {
	return c.types.Name(id)
}

// AddFunction creates a function named name with signature sig. One
// parameter value per input is created immediately, numbered from zero.
func (c *Context) AddFunction(name string, sig types.FuncType) (*Function, error) {
	if err := c.usable(); err != nil {
		return nil, &BuildError{Op: "add function", Func: name, Block: NoBlockID, Err: err}
	}
	name = norm.NFC.String(name)
	if err := ValidateName(name); err != nil {
		return nil, &BuildError{Op: "add function", Func: name, Block: NoBlockID, Err: err}
	}
	if _, dup := c.byName[name]; dup {
		return nil, &BuildError{Op: "add function", Func: name, Block: NoBlockID, Err: ErrDuplicateFunction}
	}
	if err := sig.Validate(c.types); err != nil {
		return nil, &BuildError{Op: "add function", Func: name, Block: NoBlockID, Err: err, Detail: "signature"}
	}

	h := c.funcs.Push(Function{
		name:   name,
		sig:    sig.Clone(),
		blocks: arena.New[Block](4),
		values: arena.New[Value](16),
		ctx:    c,
	})
	id := mustID[FuncID](h)
	fn := c.funcs.Get(h)
	fn.id = id
	fn.params = make([]ValueID, len(sig.Inputs))
	for i, in := range sig.Inputs {
		fn.params[i] = fn.pushValue(Value{kind: ValueParam, typ: in, block: NoBlockID, param: i})
	}
	c.byName[name] = id
	return fn, nil
}

func (c *Context) function(id FuncID) *Function {
	if c == nil || c.funcs == nil || id < 0 {
		return nil
	}
	return c.funcs.Get(uint32(id))
}

// Function returns the function with the given id, or nil.
func (c *Context) Function(id FuncID) *Function { return c.function(id) }

// FunctionByName looks a function up by its (NFC-normalized) name.
func (c *Context) FunctionByName(name string) *Function {
	if c == nil {
		return nil
	}
	id, ok := c.byName[norm.NFC.String(name)]
	if !ok {
		return nil
	}
	return c.function(id)
}

// Functions yields functions in creation order.
func (c *Context) Functions() iter.Seq[*Function] {
	if c == nil || c.funcs == nil {
		return func(func(*Function) bool) {}
	}
	return c.funcs.Values()
}

func (c *Context) NumFunctions() int {
	if c == nil {
		return 0
	}
	return c.funcs.Len()
}

// Destroy releases the context. Every handle it produced becomes invalid.
func (c *Context) Destroy() {
	if c == nil || c.state == stateDestroyed {
		return
	}
	c.state = stateDestroyed
	c.funcs = nil
	c.byName = nil
}

// ValidateName rejects names that cannot be spelled in the textual dump.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if i := strings.IndexFunc(name, isReservedRune); i >= 0 {
		r, _ := utf8.DecodeRuneInString(name[i:])
		return fmt.Errorf("%w: %q contains %q", ErrInvalidName, name, r)
	}
	return nil
}

func isReservedRune(r rune) bool {
	if unicode.IsSpace(r) || unicode.IsControl(r) {
		return true
	}
	return strings.ContainsRune("(),:%{};=", r)
}
