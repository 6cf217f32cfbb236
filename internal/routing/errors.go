package routing

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidTransition = errors.New("invalid route status transition")
	ErrStopNotFound      = errors.New("stop not on route")
	ErrUnknownDriver     = errors.New("unknown driver")
	ErrEmptyRoute        = errors.New("route has no orders")
	ErrDuplicateOrder    = errors.New("order appears twice in route")
	ErrRouteClosed       = errors.New("route is completed or cancelled")
	ErrBadDeliveryDate   = errors.New("delivery date must be YYYY-MM-DD")
)

// PersistenceError is a record-store failure before anything was changed.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *PersistenceError) Unwrap() error { return e.Err }

// InconsistencyError is a multi-step write that stopped after some steps
// were applied. Nothing is compensated; Applied names the steps that stuck.
type InconsistencyError struct {
	Op      string
	Applied []string
	Failed  string
	Err     error
}

func (e *InconsistencyError) Error() string {
	applied := "nothing"
	if len(e.Applied) > 0 {
		applied = strings.Join(e.Applied, ", ")
	}
	return fmt.Sprintf("%s: %s failed after %s was applied: %v", e.Op, e.Failed, applied, e.Err)
}

func (e *InconsistencyError) Unwrap() error { return e.Err }
