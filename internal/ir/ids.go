package ir

import (
	"fmt"

	"fortio.org/safecast"
)

type FuncID int32
type BlockID int32
type ValueID int32

const (
	NoBlockID BlockID = -1
	NoValueID ValueID = -1
)

// idOf converts an arena handle into a typed ID. Handles are uint32 but IDs
// are int32, so the upper half of the handle space is unaddressable.
func idOf[T ~int32](handle uint32) (T, error) {
	n, err := safecast.Conv[int32](handle)
	if err != nil {
		return -1, fmt.Errorf("%w: handle %d exceeds the id space", ErrIndexOutOfRange, handle)
	}
	return T(n), nil
}

// mustID is idOf for freshly pushed entries; running out of ids is
// resource exhaustion, like arena overflow.
func mustID[T ~int32](handle uint32) T {
	id, err := idOf[T](handle)
	if err != nil {
		panic(err)
	}
	return id
}
