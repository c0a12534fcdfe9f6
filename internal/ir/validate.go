package ir

import (
	"errors"
	"fmt"
)

// Validate checks the whole-context invariants a backend relies on: every
// function has an entry block and every block is terminated.
func Validate(c *Context) error {
	if err := c.readable(); err != nil {
		return err
	}
	var errs []error
	for fn := range c.Functions() {
		if err := validateFunc(fn); err != nil {
			errs = append(errs, fmt.Errorf("function %s: %w", fn.name, err))
		}
	}
	return errors.Join(errs...)
}

func validateFunc(f *Function) error {
	if f.NumBlocks() == 0 {
		return ErrEmptyFunction
	}
	var errs []error
	for b := range f.Blocks() {
		if !b.Terminated() {
			errs = append(errs, fmt.Errorf("bb%d: %w", b.id, ErrUnterminatedBlock))
		}
	}
	return errors.Join(errs...)
}
