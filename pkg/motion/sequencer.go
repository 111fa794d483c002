package motion

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	customlog "github.com/open-teleop/sequencer/pkg/log"
)

// Sink delivers velocity commands to a robot or simulator.
type Sink interface {
	Send(cmd VelocityCommand) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(cmd VelocityCommand) error

// Send calls the function
func (f SinkFunc) Send(cmd VelocityCommand) error {
	return f(cmd)
}

// Sleeper suspends the caller for d or until ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to the Sleeper interface.
type SleeperFunc func(ctx context.Context, d time.Duration) error

// Sleep calls the function
func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error {
	return f(ctx, d)
}

// TimerSleeper blocks on a wall-clock timer.
type TimerSleeper struct{}

// Sleep implements Sleeper
func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithSleeper replaces the wall-clock sleeper.
func WithSleeper(s Sleeper) Option {
	return func(seq *Sequencer) {
		seq.sleeper = s
	}
}

// WithLimits rejects plans whose commands exceed limits.
func WithLimits(l Limits) Option {
	return func(seq *Sequencer) {
		seq.limits = l
	}
}

// Sequencer executes motion plans one step at a time on the calling goroutine.
type Sequencer struct {
	logger  customlog.Logger
	sleeper Sleeper
	limits  Limits
}

// NewSequencer creates a sequencer. A nil logger discards output.
func NewSequencer(logger customlog.Logger, opts ...Option) *Sequencer {
	if logger == nil {
		logger = customlog.NewNopLogger()
	}
	s := &Sequencer{
		logger:  logger,
		sleeper: TimerSleeper{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run sends each step's command to sink, then holds for the step's duration.
// It stops at the first sink failure and returns a *SinkError. Plans that fail
// validation are rejected with a *PlanError before anything is sent.
func (s *Sequencer) Run(ctx context.Context, plan MotionPlan, sink Sink) error {
	if err := plan.Validate(s.limits); err != nil {
		s.logger.Errorf("Rejecting motion plan: %v", err)
		return err
	}
	if sink == nil {
		return &SinkError{Step: 0, Command: plan.At(0).Command, Err: fmt.Errorf("no sink configured")}
	}

	runLog := s.logger.WithField("run_id", uuid.New().String())
	runLog.Infof("Starting motion plan: %d steps, %.2fs total hold", plan.Len(), plan.TotalDuration())
	start := time.Now()

	for i := 0; i < plan.Len(); i++ {
		step := plan.At(i)
		stepLog := runLog.WithField("step", i+1)

		if err := ctx.Err(); err != nil {
			stepLog.Warnf("Motion plan cancelled before step")
			return fmt.Errorf("motion plan cancelled at step %d: %w", i+1, err)
		}

		if err := sink.Send(step.Command); err != nil {
			stepLog.Errorf("Failed to send command %s: %v", step.Command, err)
			return &SinkError{Step: i, Command: step.Command, Err: err}
		}
		stepLog.Debugf("Sent command %s, holding %.3fs", step.Command, step.Hold)

		if d := step.HoldDuration(); d > 0 {
			if err := s.sleeper.Sleep(ctx, d); err != nil {
				stepLog.Warnf("Hold interrupted: %v", err)
				return fmt.Errorf("motion plan cancelled at step %d: %w", i+1, err)
			}
		}
	}

	runLog.Infof("Motion plan completed in %s", time.Since(start).Round(time.Millisecond))
	return nil
}
