// Package provision holds the driver-specific primitives that create and drop
// the physical database behind a tenant. Creation tolerates "already exists"
// and dropping tolerates "does not exist" so both sides can be retried.
package provision

import (
	"errors"
	"fmt"
)

// Error wraps a storage-layer failure with enough detail for an operator to
// run a compensating action.
type Error struct {
	Op         string // "create" or "drop"
	Identifier string
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provision: %s database %q: %v", e.Op, e.Identifier, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsProvisionError reports whether err is a provisioning failure.
func IsProvisionError(err error) bool {
	var pe *Error
	return errors.As(err, &pe)
}
