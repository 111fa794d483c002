package sim

import (
	"context"
	"testing"
	"time"

	"github.com/open-teleop/sequencer/pkg/motion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tolerance = 1e-9

func examplePlan() motion.MotionPlan {
	return motion.NewPlan(
		motion.Step(1.0, 0.0, 2.0),
		motion.Step(0.0, 0.0, 0.0),
		motion.Step(0.0, 1.57, 1.0),
	)
}

func TestEvaluateExamplePlan(t *testing.T) {
	plan := examplePlan()

	start := Evaluate(plan, 0)
	assert.Equal(t, 0.0, start.X)
	assert.Equal(t, 1.0, start.Linear, "first command is in effect at t=0")

	mid := Evaluate(plan, 1)
	assert.InDelta(t, 1.0, mid.X, tolerance)
	assert.InDelta(t, 0.0, mid.Theta, tolerance)

	atTurn := Evaluate(plan, 2)
	assert.InDelta(t, 2.0, atTurn.X, tolerance)
	assert.Equal(t, 1.57, atTurn.Angular)
	assert.Equal(t, 0.0, atTurn.Linear)

	end := Evaluate(plan, 3)
	assert.InDelta(t, 2.0, end.X, tolerance)
	assert.InDelta(t, 0.0, end.Y, tolerance)
	assert.InDelta(t, 1.57, end.Theta, tolerance)
	assert.Equal(t, 3.0, end.Time)

	past := Evaluate(plan, 10)
	assert.InDelta(t, 1.57, past.Theta, tolerance)
	assert.Equal(t, 10.0, past.Time)
}

func TestEvaluateTurnThenDrive(t *testing.T) {
	plan := motion.NewPlan(
		motion.Step(0.5, 0.0, 1.0),
		motion.Step(1.0, 0.0, 2.0),
		motion.Step(0.0, 1.57, 1.0),
		motion.Step(1.0, 0.0, 2.0),
		motion.Step(0.0, 0.0, 0.0),
	)

	end := Evaluate(plan, plan.TotalDuration())
	assert.InDelta(t, 2.5, end.X, 1e-2)
	assert.InDelta(t, 2.0, end.Y, 1e-2)
	assert.Equal(t, 0.0, end.Linear, "trailing stop is applied at the final instant")
}

func TestTrajectory(t *testing.T) {
	states := Trajectory(examplePlan(), 0.5)

	require.Len(t, states, 7)
	assert.Equal(t, 0.0, states[0].Time)
	assert.Equal(t, 3.0, states[len(states)-1].Time)
	for i := 1; i < len(states); i++ {
		assert.GreaterOrEqual(t, states[i].X, states[i-1].X)
	}

	assert.Len(t, Trajectory(examplePlan(), 0), 1)
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestRobotIntegratesBetweenCommands(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	robot := NewRobot(nil, WithClock(clock.now))

	require.NoError(t, robot.Send(motion.VelocityCommand{Linear: 1.0}))
	clock.advance(2 * time.Second)
	require.NoError(t, robot.Send(motion.Stop))
	clock.advance(5 * time.Second)

	pose := robot.Pose()
	assert.InDelta(t, 2.0, pose.X, tolerance)
	assert.InDelta(t, 7.0, pose.Time, tolerance)

	require.NoError(t, robot.Send(motion.VelocityCommand{Angular: 1.57}))
	clock.advance(time.Second)

	pose = robot.Pose()
	assert.InDelta(t, 1.57, pose.Theta, tolerance)
	assert.Equal(t, []motion.VelocityCommand{{Linear: 1.0}, {}, {Angular: 1.57}}, robot.Commands())
}

func TestRobotAsSequencerSink(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	robot := NewRobot(nil, WithClock(clock.now))
	sleeper := motion.SleeperFunc(func(_ context.Context, d time.Duration) error {
		clock.advance(d)
		return nil
	})
	seq := motion.NewSequencer(nil, motion.WithSleeper(sleeper))

	require.NoError(t, seq.Run(context.Background(), examplePlan(), robot))

	want := Evaluate(examplePlan(), 3)
	got := robot.Pose()
	assert.InDelta(t, want.X, got.X, 1e-6)
	assert.InDelta(t, want.Y, got.Y, 1e-6)
	assert.InDelta(t, want.Theta, got.Theta, 1e-6)
}
