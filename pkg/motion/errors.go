package motion

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrSinkUnavailable = errors.New("velocity command sink unavailable")
	ErrInvalidPlan     = errors.New("invalid motion plan")
)

// PlanError describes why a plan was rejected. Step is -1 for plan-level problems.
type PlanError struct {
	Step   int
	Reason string
}

func (e *PlanError) Error() string {
	if e.Step < 0 {
		return fmt.Sprintf("%s: %s", ErrInvalidPlan, e.Reason)
	}
	return fmt.Sprintf("%s: step %d: %s", ErrInvalidPlan, e.Step+1, e.Reason)
}

func (e *PlanError) Unwrap() error {
	return ErrInvalidPlan
}

// SinkError is returned when the sink rejects a command. Step is zero-based.
type SinkError struct {
	Step    int
	Command VelocityCommand
	Err     error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("%s: step %d %s: %v", ErrSinkUnavailable, e.Step+1, e.Command, e.Err)
}

// Unwrap exposes both the sentinel and the sink's own error to errors.Is.
func (e *SinkError) Unwrap() []error {
	return []error{ErrSinkUnavailable, e.Err}
}
