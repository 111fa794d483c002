package sim

import (
	"sync"
	"time"

	customlog "github.com/open-teleop/sequencer/pkg/log"
	"github.com/open-teleop/sequencer/pkg/motion"
)

// Ensure Robot implements motion.Sink
var _ motion.Sink = (*Robot)(nil)

// Robot is an in-process simulated base. Each command takes effect when it is
// sent and the pose integrates the active velocity over wall-clock time.
type Robot struct {
	logger   customlog.Logger
	now      func() time.Time
	mu       sync.Mutex
	state    State
	started  time.Time
	last     time.Time
	commands []motion.VelocityCommand
}

// RobotOption configures a Robot.
type RobotOption func(*Robot)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) RobotOption {
	return func(r *Robot) {
		r.now = now
	}
}

// NewRobot creates a simulated robot at rest at the origin.
func NewRobot(logger customlog.Logger, opts ...RobotOption) *Robot {
	if logger == nil {
		logger = customlog.NewNopLogger()
	}
	r := &Robot{
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Send integrates the previous velocity up to now, then applies cmd.
func (r *Robot) Send(cmd motion.VelocityCommand) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if r.started.IsZero() {
		r.started = now
		r.last = now
	}
	r.state = r.state.Advance(now.Sub(r.last).Seconds()).Apply(cmd)
	r.last = now
	r.commands = append(r.commands, cmd)

	r.logger.Infof("Simulated robot commanded %s at t=%.3fs pose=(%.3f, %.3f, %.3f rad)",
		cmd, r.state.Time, r.state.X, r.state.Y, r.state.Theta)
	return nil
}

// Pose returns the state integrated up to now without changing the robot.
func (r *Robot) Pose() State {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started.IsZero() {
		return r.state
	}
	return r.state.Advance(r.now().Sub(r.last).Seconds())
}

// Commands returns every command received so far, in order.
func (r *Robot) Commands() []motion.VelocityCommand {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]motion.VelocityCommand, len(r.commands))
	copy(out, r.commands)
	return out
}
