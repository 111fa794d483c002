// Package motion sequences timed velocity commands against a command sink.
package motion

import (
	"fmt"
	"math"
	"time"
)

// VelocityCommand is a desired instantaneous robot velocity in the robot frame.
// Linear is forward speed, Angular is yaw rate.
type VelocityCommand struct {
	Linear  float64 `json:"linear" yaml:"linear"`
	Angular float64 `json:"angular" yaml:"angular"`
}

// Stop is the zero velocity command.
var Stop = VelocityCommand{}

func (c VelocityCommand) String() string {
	return fmt.Sprintf("(linear=%.3f, angular=%.3f)", c.Linear, c.Angular)
}

// TimedStep applies Command, then holds it for Hold seconds.
type TimedStep struct {
	Command VelocityCommand `json:"command" yaml:"command"`
	Hold    float64         `json:"hold" yaml:"hold"`
}

// Step is shorthand for a TimedStep literal.
func Step(linear, angular, hold float64) TimedStep {
	return TimedStep{Command: VelocityCommand{Linear: linear, Angular: angular}, Hold: hold}
}

// MaxHoldSeconds is the longest hold a time.Duration can represent.
const MaxHoldSeconds = float64(math.MaxInt64) / float64(time.Second)

// HoldDuration converts Hold to a time.Duration. Negative holds map to zero
// and holds beyond MaxHoldSeconds saturate.
func (s TimedStep) HoldDuration() time.Duration {
	if !(s.Hold > 0) {
		return 0
	}
	if s.Hold >= MaxHoldSeconds {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(s.Hold * float64(time.Second))
}

// MotionPlan is an ordered, immutable list of steps.
type MotionPlan struct {
	steps []TimedStep
}

// NewPlan builds a plan from steps in execution order. The slice is copied.
func NewPlan(steps ...TimedStep) MotionPlan {
	cp := make([]TimedStep, len(steps))
	copy(cp, steps)
	return MotionPlan{steps: cp}
}

// Len returns the number of steps.
func (p MotionPlan) Len() int {
	return len(p.steps)
}

// Steps returns a copy of the plan's steps.
func (p MotionPlan) Steps() []TimedStep {
	cp := make([]TimedStep, len(p.steps))
	copy(cp, p.steps)
	return cp
}

// At returns step i.
func (p MotionPlan) At(i int) TimedStep {
	return p.steps[i]
}

// TotalDuration returns the sum of all holds in seconds.
func (p MotionPlan) TotalDuration() float64 {
	total := 0.0
	for _, s := range p.steps {
		total += s.Hold
	}
	return total
}

// Limits bounds the magnitude of commanded velocities. Zero disables a bound.
type Limits struct {
	MaxLinear  float64 `yaml:"max_linear"`
	MaxAngular float64 `yaml:"max_angular"`
}

// Validate reports the first reason the plan cannot be executed.
func (p MotionPlan) Validate(limits Limits) error {
	if len(p.steps) == 0 {
		return &PlanError{Step: -1, Reason: "plan has no steps"}
	}
	for i, s := range p.steps {
		if math.IsNaN(s.Hold) || math.IsInf(s.Hold, 0) {
			return &PlanError{Step: i, Reason: "hold is not a finite number"}
		}
		if s.Hold < 0 {
			return &PlanError{Step: i, Reason: fmt.Sprintf("negative hold %.3fs", s.Hold)}
		}
		if s.Hold >= MaxHoldSeconds {
			return &PlanError{Step: i, Reason: fmt.Sprintf("hold %.3gs exceeds maximum %.3gs", s.Hold, MaxHoldSeconds)}
		}
		if !finite(s.Command.Linear) || !finite(s.Command.Angular) {
			return &PlanError{Step: i, Reason: "command is not finite"}
		}
		if limits.MaxLinear > 0 && math.Abs(s.Command.Linear) > limits.MaxLinear {
			return &PlanError{Step: i, Reason: fmt.Sprintf("linear %.3f exceeds limit %.3f", s.Command.Linear, limits.MaxLinear)}
		}
		if limits.MaxAngular > 0 && math.Abs(s.Command.Angular) > limits.MaxAngular {
			return &PlanError{Step: i, Reason: fmt.Sprintf("angular %.3f exceeds limit %.3f", s.Command.Angular, limits.MaxAngular)}
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
