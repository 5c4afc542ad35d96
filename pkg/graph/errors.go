package graph

import (
	"errors"
	"fmt"
)

var (
	ErrNegativeWeight = errors.New("edge weight must be non-negative")
	ErrUnknownPolicy  = errors.New("unknown merge policy")
)

// ConflictError rejects a formal-edge insertion that would break the
// hierarchy forest. The existing forest is left unchanged.
type ConflictError struct {
	FromPlayerID string
	ToPlayerID   string
	Reason       string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("relationship conflict %s -> %s: %s", e.FromPlayerID, e.ToPlayerID, e.Reason)
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// BuildError signals an internal invariant violation during a snapshot build.
// The build is aborted; the previously published snapshot stays authoritative.
type BuildError struct {
	TenantID string
	Reason   string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("graph build failed for tenant %s: %s", e.TenantID, e.Reason)
}
