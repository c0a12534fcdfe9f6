package types

import (
	"fmt"

	"fortio.org/safecast"
)

// Builtins stores TypeIDs for common primitive types.
type Builtins struct {
	Invalid TypeID
	Bool    TypeID
	I1      TypeID
	I8      TypeID
	I16     TypeID
	I32     TypeID
	I64     TypeID
}

// Interner provides stable TypeIDs by hashing structural descriptors.
type Interner struct {
	types    []Type
	index    map[Type]TypeID
	builtins Builtins
}

// NewInterner constructs an interner seeded with built-in primitives.
func NewInterner() *Interner {
	in := &Interner{
		index: make(map[Type]TypeID, 16),
	}
	in.builtins.Invalid = in.internRaw(Type{Kind: KindInvalid})
	in.builtins.Bool = in.mustIntern(MakeBool())
	in.builtins.I1 = in.mustIntern(MakeInt(1))
	in.builtins.I8 = in.mustIntern(MakeInt(8))
	in.builtins.I16 = in.mustIntern(MakeInt(16))
	in.builtins.I32 = in.mustIntern(MakeInt(32))
	in.builtins.I64 = in.mustIntern(MakeInt(64))
	return in
}

// Builtins returns TypeIDs for primitive types.
func (in *Interner) Builtins() Builtins {
	return in.builtins
}

// Intern returns the canonical TypeID for t, allocating one the first time a
// descriptor is seen.
func (in *Interner) Intern(t Type) (TypeID, error) {
	if err := t.Validate(); err != nil {
		return NoTypeID, err
	}
	if id, ok := in.index[t]; ok {
		return id, nil
	}
	return in.internRaw(t), nil
}

func (in *Interner) mustIntern(t Type) TypeID {
	id, err := in.Intern(t)
	if err != nil {
		panic(err)
	}
	return id
}

// internRaw adds the descriptor to the storage without consulting the map.
func (in *Interner) internRaw(t Type) TypeID {
	lenTypes, err := safecast.Conv[uint32](len(in.types))
	if err != nil {
		panic(fmt.Errorf("len(types) overflow: %w", err))
	}
	id := TypeID(lenTypes)
	in.types = append(in.types, t)
	in.index[t] = id
	return id
}

// Lookup returns the descriptor for a TypeID.
func (in *Interner) Lookup(id TypeID) (Type, bool) {
	if id == NoTypeID || int(id) >= len(in.types) {
		return Type{}, false
	}
	return in.types[id], true
}

// MustLookup panics when id is invalid.
func (in *Interner) MustLookup(id TypeID) Type {
	tt, ok := in.Lookup(id)
	if !ok {
		panic("types: invalid TypeID")
	}
	return tt
}

// Len returns the number of interned descriptors, including the invalid slot.
func (in *Interner) Len() int {
	return len(in.types)
}

// Name renders id the way the textual IR spells it.
func (in *Interner) Name(id TypeID) string {
	tt, ok := in.Lookup(id)
	if !ok {
		return "<invalid>"
	}
	return tt.String()
}
