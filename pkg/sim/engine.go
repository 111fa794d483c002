// Package sim predicts and simulates differential-drive motion under velocity
// commands using unicycle kinematics.
package sim

import (
	"math"

	"github.com/open-teleop/sequencer/pkg/motion"
)

// State is a planar robot pose plus the velocity currently applied.
type State struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Theta   float64 `json:"theta"` // radians
	Linear  float64 `json:"linear_velocity"`
	Angular float64 `json:"angular_velocity"`
	Time    float64 `json:"time"` // seconds since the start of motion
}

// Advance integrates the current velocity over dt seconds (Euler).
func (s State) Advance(dt float64) State {
	if dt <= 0 {
		return s
	}
	s.X += s.Linear * math.Cos(s.Theta) * dt
	s.Y += s.Linear * math.Sin(s.Theta) * dt
	s.Theta += s.Angular * dt
	s.Time += dt
	return s
}

// Apply sets the commanded velocity without moving.
func (s State) Apply(cmd motion.VelocityCommand) State {
	s.Linear = cmd.Linear
	s.Angular = cmd.Angular
	return s
}

// Evaluate replays plan from rest at the origin and returns the state at time t.
// Commands issued exactly at t are already in effect. Times past the end of the
// plan return the final state with Time set to t.
func Evaluate(plan motion.MotionPlan, t float64) State {
	var s State
	elapsed := 0.0

	for _, step := range plan.Steps() {
		if elapsed > t {
			break
		}
		s = s.Apply(step.Command)
		if step.Hold <= 0 {
			continue
		}
		s = s.Advance(math.Min(t-elapsed, step.Hold))
		elapsed += step.Hold
	}

	s.Time = t
	return s
}

// Trajectory samples Evaluate every interval seconds across the whole plan,
// always including the final pose.
func Trajectory(plan motion.MotionPlan, interval float64) []State {
	total := plan.TotalDuration()
	if interval <= 0 || total <= 0 {
		return []State{Evaluate(plan, total)}
	}

	n := int(math.Ceil(total / interval))
	out := make([]State, 0, n+1)
	for i := 0; i < n; i++ {
		out = append(out, Evaluate(plan, float64(i)*interval))
	}
	return append(out, Evaluate(plan, total))
}
