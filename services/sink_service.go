package services

import (
	"fmt"

	"github.com/open-teleop/sequencer/pkg/config"
	customlog "github.com/open-teleop/sequencer/pkg/log"
	"github.com/open-teleop/sequencer/pkg/motion"
	"github.com/open-teleop/sequencer/pkg/sim"
	"github.com/open-teleop/sequencer/pkg/zeromq"
)

// VelocitySink is a motion.Sink that owns resources.
type VelocitySink interface {
	motion.Sink
	Close()
}

// NewVelocitySink builds the sink selected by cfg.Sink.Type.
func NewVelocitySink(cfg *config.BootstrapConfig, logger customlog.Logger) (VelocitySink, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap configuration cannot be nil")
	}
	if logger == nil {
		logger = customlog.NewNopLogger()
	}

	switch cfg.Sink.Type {
	case config.SinkSimulated:
		logger.Infof("Using simulated robot sink")
		return &simulatedSink{Robot: sim.NewRobot(logger.WithField("sink", "sim")), logger: logger}, nil
	case config.SinkLog:
		logger.Infof("Using logging sink (dry run)")
		return NewLoggingSink(logger.WithField("sink", "log")), nil
	case config.SinkZeroMQ:
		pub, err := zeromq.NewVelocityPublisher(cfg.ZeroMQ, logger.WithField("sink", "zeromq"))
		if err != nil {
			return nil, fmt.Errorf("failed to create ZeroMQ velocity publisher: %w", err)
		}
		return pub, nil
	default:
		return nil, fmt.Errorf("unsupported sink type %q", cfg.Sink.Type)
	}
}

// simulatedSink reports the final pose when closed.
type simulatedSink struct {
	*sim.Robot
	logger customlog.Logger
}

func (s *simulatedSink) Close() {
	pose := s.Pose()
	s.logger.Infof("Simulated robot final pose: x=%.3f y=%.3f theta=%.3f rad after %.3fs",
		pose.X, pose.Y, pose.Theta, pose.Time)
}

// LoggingSink writes every command to the logger instead of a robot.
type LoggingSink struct {
	logger customlog.Logger
	count  int
}

// NewLoggingSink creates a new logging sink
func NewLoggingSink(logger customlog.Logger) *LoggingSink {
	return &LoggingSink{logger: logger}
}

// Send logs the command
func (s *LoggingSink) Send(cmd motion.VelocityCommand) error {
	s.count++
	s.logger.Infof("cmd_vel #%d linear=%.3f angular=%.3f", s.count, cmd.Linear, cmd.Angular)
	return nil
}

// Count returns the number of commands received.
func (s *LoggingSink) Count() int {
	return s.count
}

// Close implements VelocitySink
func (s *LoggingSink) Close() {
	s.logger.Debugf("Logging sink closed after %d commands", s.count)
}
