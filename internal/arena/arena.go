// Package arena provides append-only storage whose entries never move.
package arena

import (
	"fmt"
	"iter"

	"fortio.org/safecast"
)

const chunkSize = 64

// Arena stores values in fixed-size chunks so pointers returned by Get stay
// valid for the arena's whole lifetime.
type Arena[T any] struct {
	chunks [][]T
	n      int
}

// New creates an arena. capHint pre-sizes the chunk table; zero is allowed.
func New[T any](capHint uint) *Arena[T] {
	return &Arena[T]{
		chunks: make([][]T, 0, capHint/chunkSize+1),
	}
}

// Push appends value and returns its 0-based handle.
func (a *Arena[T]) Push(value T) uint32 {
	idx, err := safecast.Conv[uint32](a.n)
	if err != nil {
		panic(fmt.Errorf("arena overflow: %w", err))
	}
	if a.n%chunkSize == 0 {
		a.chunks = append(a.chunks, make([]T, 0, chunkSize))
	}
	last := len(a.chunks) - 1
	a.chunks[last] = append(a.chunks[last], value)
	a.n++
	return idx
}

// Get returns a pointer to the entry, or nil when index is out of range.
func (a *Arena[T]) Get(index uint32) *T {
	if a == nil || int64(index) >= int64(a.n) {
		return nil
	}
	return &a.chunks[index/chunkSize][index%chunkSize]
}

func (a *Arena[T]) Len() int {
	if a == nil {
		return 0
	}
	return a.n
}

// All yields handles and entries in insertion order. The sequence is lazy and
// may be ranged over any number of times.
func (a *Arena[T]) All() iter.Seq2[uint32, *T] {
	return func(yield func(uint32, *T) bool) {
		if a == nil {
			return
		}
		for i := 0; i < a.n; i++ {
			if !yield(uint32(i), &a.chunks[i/chunkSize][i%chunkSize]) { //nolint:gosec // i < a.n which fits in uint32
				return
			}
		}
	}
}

// Values yields entries in insertion order.
func (a *Arena[T]) Values() iter.Seq[*T] {
	return func(yield func(*T) bool) {
		for _, v := range a.All() {
			if !yield(v) {
				return
			}
		}
	}
}
