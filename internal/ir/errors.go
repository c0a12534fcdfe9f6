package ir

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTerminatorAlreadySet = errors.New("terminator already set")
	ErrTypeMismatch         = errors.New("type mismatch")
	ErrArityMismatch        = errors.New("arity mismatch")
	ErrCrossFunction        = errors.New("cross-function reference")
	ErrIndexOutOfRange      = errors.New("index out of range")
	ErrNotImplemented       = errors.New("not implemented")
	ErrBackendFailure       = errors.New("backend failure")

	ErrInvalidHandle     = errors.New("invalid handle")
	ErrInvalidName       = errors.New("invalid function name")
	ErrInvalidOpcode     = errors.New("invalid opcode")
	ErrContextClosed     = errors.New("context is no longer usable")
	ErrDuplicateFunction = errors.New("duplicate function")
	ErrUnterminatedBlock = errors.New("unterminated block")
	ErrEmptyFunction     = errors.New("function has no blocks")
)

// BuildError locates a failed builder call. It unwraps to one of the
// sentinel errors above.
type BuildError struct {
	Op     string
	Func   string
	Block  BlockID
	Detail string
	Err    error
}

func (e *BuildError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Op)
	if e.Func != "" {
		sb.WriteString(" in ")
		sb.WriteString(e.Func)
		if e.Block != NoBlockID {
			fmt.Fprintf(&sb, "/bb%d", e.Block)
		}
	}
	sb.WriteString(": ")
	sb.WriteString(e.Err.Error())
	if e.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Detail)
	}
	return sb.String()
}

func (e *BuildError) Unwrap() error { return e.Err }
