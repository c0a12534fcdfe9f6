package types

import "errors"

// ErrInvalidType is returned for malformed type descriptors.
var ErrInvalidType = errors.New("invalid type")
