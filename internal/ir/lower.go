package ir

import (
	"context"
	"fmt"
)

// Backend lowers a complete context to a target artifact named output.
// verbose asks the backend to dump its target-level IR before emitting.
//
// A backend meeting an unterminated block or a kind it cannot lower must
// not produce an artifact. Comparisons surface as ErrNotImplemented; target
// or write failures wrap ErrBackendFailure.
type Backend interface {
	Lower(ctx context.Context, c *Context, output string, verbose bool) error
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context, c *Context, output string, verbose bool) error

func (f BackendFunc) Lower(ctx context.Context, c *Context, output string, verbose bool) error {
	return f(ctx, c, output, verbose)
}

// Lower hands c to backend. It is the terminal operation on c: whatever the
// outcome, no builder call on c or its handles succeeds afterwards.
func (c *Context) Lower(ctx context.Context, backend Backend, output string, verbose bool) error {
	if err := c.usable(); err != nil {
		return err
	}
	if backend == nil {
		return fmt.Errorf("%w: nil backend", ErrInvalidHandle)
	}
	c.state = stateConsumed
	if err := Validate(c); err != nil {
		return err
	}
	return backend.Lower(ctx, c, output, verbose)
}
