package ir

import (
	"errors"
	"math"
	"testing"

	"pcb/internal/types"
)

func TestIDOfRange(t *testing.T) {
	tests := []struct {
		handle uint32
		want   ValueID
		ok     bool
	}{
		{0, 0, true},
		{7, 7, true},
		{math.MaxInt32, math.MaxInt32, true},
		{math.MaxInt32 + 1, -1, false},
		{math.MaxUint32, -1, false},
	}
	for _, tt := range tests {
		got, err := idOf[ValueID](tt.handle)
		if tt.ok != (err == nil) {
			t.Fatalf("idOf(%d): err = %v", tt.handle, err)
		}
		if !tt.ok && !errors.Is(err, ErrIndexOutOfRange) {
			t.Fatalf("idOf(%d): expected ErrIndexOutOfRange, got %v", tt.handle, err)
		}
		if got != tt.want {
			t.Fatalf("idOf(%d) = %d, want %d", tt.handle, got, tt.want)
		}
	}
}

func TestMustIDPanicsPastInt32(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	_ = mustID[BlockID](math.MaxInt32 + 1)
}

func TestIDsFollowArenaHandles(t *testing.T) {
	c := NewContext(false)
	i32, _ := c.IntType(32)
	fn, err := c.AddFunction("f", types.NewFuncType(i32, i32, i32))
	if err != nil {
		t.Fatal(err)
	}
	if fn.ID() != 0 || fn.NumParams() != 2 {
		t.Fatalf("id=%d params=%d", fn.ID(), fn.NumParams())
	}
	for i := range 3 {
		b, err := fn.AddBlock()
		if err != nil {
			t.Fatal(err)
		}
		if b.ID() != BlockID(i) || fn.Block(b.ID()) != b {
			t.Fatalf("block %d: got %s", i, b)
		}
		v, err := b.BuildConstInt(i32, uint64(i))
		if err != nil {
			t.Fatal(err)
		}
		if want := ValueID(2 + i); v.ID() != want || fn.Value(want) != v {
			t.Fatalf("value id %d, want %d", v.ID(), want)
		}
	}
}
