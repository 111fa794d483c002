package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/open-teleop/sequencer/pkg/config"
	customlog "github.com/open-teleop/sequencer/pkg/log"
	"github.com/open-teleop/sequencer/pkg/motion"
	"github.com/open-teleop/sequencer/pkg/script"
	"github.com/open-teleop/sequencer/pkg/sim"
	"github.com/open-teleop/sequencer/services"
)

// builtinPlan is the robot_mover sequence: forward for 2s, stop, turn for 1s.
var builtinPlan = motion.NewPlan(
	motion.Step(1.0, 0.0, 2.0),
	motion.Step(0.0, 0.0, 0.0),
	motion.Step(0.0, 1.57, 1.0),
)

func main() {
	os.Exit(run())
}

func run() int {
	configDir := flag.String("config", "config", "directory containing "+config.BootstrapConfigFilename)
	flag.Parse()

	// Environment overrides the flag
	if envDir := os.Getenv("SEQUENCER_CONFIG_DIR"); envDir != "" {
		*configDir = envDir
	}

	cfg, err := config.LoadBootstrapConfig(*configDir)
	if errors.Is(err, os.ErrNotExist) {
		cfg = config.DefaultBootstrapConfig()
	} else if err != nil {
		log.Printf("Failed to load configuration: %v", err)
		return 1
	}

	logger, err := customlog.NewLogrusLogger(cfg.Logging.Level, cfg.Logging.LogPath)
	if err != nil {
		log.Printf("Failed to initialize logger: %v", err)
		return 1
	}

	plan := builtinPlan
	if cfg.Plan.File != "" {
		if plan, err = script.ParseFile(cfg.Plan.File); err != nil {
			logger.Errorf("Failed to load motion plan: %v", err)
			return 1
		}
		logger.Infof("Loaded motion plan from %s", cfg.Plan.File)
	} else {
		logger.Infof("No plan file configured, using built-in plan")
	}

	predicted := sim.Evaluate(plan, plan.TotalDuration())
	logger.Infof("Predicted final pose: x=%.3f y=%.3f theta=%.3f rad", predicted.X, predicted.Y, predicted.Theta)

	sink, err := services.NewVelocitySink(cfg, logger)
	if err != nil {
		logger.Errorf("Failed to create velocity sink: %v", err)
		return 1
	}
	defer sink.Close()

	// Cancel the run on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sequencer := motion.NewSequencer(logger, motion.WithLimits(cfg.Limits))
	err = sequencer.Run(ctx, plan, sink)
	switch {
	case err == nil:
		return 0
	case ctx.Err() != nil:
		logger.Warnf("Interrupted, sending stop command")
		if stopErr := sink.Send(motion.Stop); stopErr != nil {
			logger.Errorf("Failed to send stop command: %v", stopErr)
		}
		return 1
	default:
		logger.Errorf("Motion plan failed: %v", err)
		return 1
	}
}
