package motion

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// event is one observed interaction, either a send or a hold.
type event struct {
	kind    string
	command VelocityCommand
	hold    time.Duration
}

type recorder struct {
	events []event
	failAt int // 1-based send index that fails; 0 never fails
	sends  int
}

func (r *recorder) Send(cmd VelocityCommand) error {
	r.sends++
	r.events = append(r.events, event{kind: "send", command: cmd})
	if r.failAt == r.sends {
		return errors.New("publisher closed")
	}
	return nil
}

func (r *recorder) Sleep(_ context.Context, d time.Duration) error {
	r.events = append(r.events, event{kind: "hold", hold: d})
	return nil
}

func (r *recorder) sent() []VelocityCommand {
	var out []VelocityCommand
	for _, e := range r.events {
		if e.kind == "send" {
			out = append(out, e.command)
		}
	}
	return out
}

func (r *recorder) held() time.Duration {
	var total time.Duration
	for _, e := range r.events {
		if e.kind == "hold" {
			total += e.hold
		}
	}
	return total
}

func examplePlan() MotionPlan {
	return NewPlan(
		Step(1.0, 0.0, 2.0),
		Step(0.0, 0.0, 0.0),
		Step(0.0, 1.57, 1.0),
	)
}

func TestRunExamplePlan(t *testing.T) {
	rec := &recorder{}
	seq := NewSequencer(nil, WithSleeper(rec))

	require.NoError(t, seq.Run(context.Background(), examplePlan(), rec))

	assert.Equal(t, []event{
		{kind: "send", command: VelocityCommand{Linear: 1.0}},
		{kind: "hold", hold: 2 * time.Second},
		{kind: "send", command: VelocityCommand{}},
		{kind: "send", command: VelocityCommand{Angular: 1.57}},
		{kind: "hold", hold: time.Second},
	}, rec.events)
}

func TestRunSendsEveryStepInOrder(t *testing.T) {
	plan := NewPlan(
		Step(0.5, 0.0, 1.0),
		Step(1.0, 0.0, 2.0),
		Step(0.0, 1.57, 1.0),
		Step(1.0, 0.0, 2.0),
		Step(0.0, 0.0, 0.0),
	)
	rec := &recorder{}
	seq := NewSequencer(nil, WithSleeper(rec))

	require.NoError(t, seq.Run(context.Background(), plan, rec))

	want := make([]VelocityCommand, 0, plan.Len())
	for _, s := range plan.Steps() {
		want = append(want, s.Command)
	}
	assert.Equal(t, want, rec.sent())
	assert.Equal(t, 6*time.Second, rec.held())
	assert.Equal(t, 6.0, plan.TotalDuration())
}

func TestRunStopsAtFailingStep(t *testing.T) {
	for failAt := 1; failAt <= 3; failAt++ {
		rec := &recorder{failAt: failAt}
		seq := NewSequencer(nil, WithSleeper(rec))

		err := seq.Run(context.Background(), examplePlan(), rec)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSinkUnavailable)

		var sinkErr *SinkError
		require.ErrorAs(t, err, &sinkErr)
		assert.Equal(t, failAt-1, sinkErr.Step)
		assert.Equal(t, failAt, rec.sends)

		last := rec.events[len(rec.events)-1]
		assert.Equal(t, "send", last.kind, "no hold may follow a failed send")
	}
}

func TestSinkErrorKeepsCause(t *testing.T) {
	cause := errors.New("socket gone")
	seq := NewSequencer(nil, WithSleeper(&recorder{}))

	err := seq.Run(context.Background(), examplePlan(), SinkFunc(func(VelocityCommand) error { return cause }))

	assert.ErrorIs(t, err, ErrSinkUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrInvalidPlan)
}

func TestRunRejectsInvalidPlans(t *testing.T) {
	cases := map[string]MotionPlan{
		"empty":          NewPlan(),
		"negative hold":  NewPlan(Step(1, 0, 1), Step(0, 0, -0.5)),
		"nan hold":       NewPlan(Step(1, 0, math.NaN())),
		"infinite speed": NewPlan(Step(math.Inf(1), 0, 1)),
		"hold too long":  NewPlan(Step(1, 0, 1e10), Step(0, 0, 0)),
	}
	for name, plan := range cases {
		t.Run(name, func(t *testing.T) {
			rec := &recorder{}
			seq := NewSequencer(nil, WithSleeper(rec))

			err := seq.Run(context.Background(), plan, rec)
			assert.ErrorIs(t, err, ErrInvalidPlan)
			assert.Empty(t, rec.events)
		})
	}
}

func TestRunEnforcesLimits(t *testing.T) {
	rec := &recorder{}
	seq := NewSequencer(nil, WithSleeper(rec), WithLimits(Limits{MaxLinear: 0.8, MaxAngular: 2}))

	err := seq.Run(context.Background(), examplePlan(), rec)

	var planErr *PlanError
	require.ErrorAs(t, err, &planErr)
	assert.Equal(t, 0, planErr.Step)
	assert.Contains(t, err.Error(), "step 1")
	assert.Empty(t, rec.events)
}

func TestRunHonoursCancellationDuringHold(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rec := &recorder{}
	sleeper := SleeperFunc(func(ctx context.Context, d time.Duration) error {
		cancel()
		<-ctx.Done()
		return ctx.Err()
	})
	seq := NewSequencer(nil, WithSleeper(sleeper))

	err := seq.Run(ctx, examplePlan(), rec)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, rec.sends)
}

func TestRunWallClockHold(t *testing.T) {
	plan := NewPlan(
		Step(1, 0, 0.05),
		Step(0, 0, 0),
		Step(0, 1, 0.03),
	)
	rec := &recorder{}
	seq := NewSequencer(nil)

	start := time.Now()
	require.NoError(t, seq.Run(context.Background(), plan, rec))
	elapsed := time.Since(start)

	assert.Equal(t, 3, rec.sends)
	assert.GreaterOrEqual(t, elapsed, 80*time.Millisecond)
	assert.Less(t, elapsed, 2*time.Second)
}

func TestNilSinkIsUnavailable(t *testing.T) {
	seq := NewSequencer(nil, WithSleeper(&recorder{}))

	err := seq.Run(context.Background(), examplePlan(), nil)
	assert.ErrorIs(t, err, ErrSinkUnavailable)
}
