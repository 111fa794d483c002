package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/open-teleop/sequencer/pkg/motion"
	"github.com/open-teleop/sequencer/pkg/twist"
	"gopkg.in/yaml.v3"
)

// BootstrapConfigFilename is looked up inside the config directory.
const BootstrapConfigFilename = "sequencer_config.yaml"

// Sink types
const (
	SinkSimulated = "simulated"
	SinkZeroMQ    = "zeromq"
	SinkLog       = "log"
)

// BootstrapConfig holds the configuration loaded from sequencer_config.yaml
type BootstrapConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Sink    SinkConfig    `yaml:"sink"`
	ZeroMQ  ZeroMQConfig  `yaml:"zeromq"`
	Plan    PlanConfig    `yaml:"plan"`
	Limits  motion.Limits `yaml:"limits"`
}

// LoggingConfig holds logging settings from bootstrap
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogPath string `yaml:"log_path,omitempty"`
}

// SinkConfig selects where velocity commands go
type SinkConfig struct {
	Type string `yaml:"type"`
}

// ZeroMQConfig holds the velocity publisher settings
type ZeroMQConfig struct {
	PublishBindAddress string `yaml:"publish_bind_address"`
	RosTopic           string `yaml:"ros_topic"`
	OttTopic           string `yaml:"ott_topic"`
	Encoding           string `yaml:"encoding"`
	// SettleMs delays the first send so subscribers can finish connecting.
	SettleMs int `yaml:"settle_ms"`
}

// PlanConfig points at the plan to execute. An empty File runs the built-in plan.
type PlanConfig struct {
	File string `yaml:"file"`
}

// DefaultBootstrapConfig returns the configuration used when no file is present.
func DefaultBootstrapConfig() *BootstrapConfig {
	return &BootstrapConfig{
		Logging: LoggingConfig{Level: "info"},
		Sink:    SinkConfig{Type: SinkSimulated},
		ZeroMQ: ZeroMQConfig{
			PublishBindAddress: "tcp://*:5556",
			RosTopic:           "/cmd_vel",
			OttTopic:           "teleop.control.velocity",
			Encoding:           "flatbuffers",
			SettleMs:           200,
		},
	}
}

// LoadBootstrapConfig loads the bootstrap configuration from sequencer_config.yaml.
// Fields absent from the file keep their defaults. A missing file yields an
// error wrapping os.ErrNotExist.
func LoadBootstrapConfig(configDir string) (*BootstrapConfig, error) {
	bootstrapConfigPath := filepath.Join(configDir, BootstrapConfigFilename)

	data, err := os.ReadFile(bootstrapConfigPath)
	if err != nil {
		return nil, fmt.Errorf("error reading bootstrap config file '%s': %w", bootstrapConfigPath, err)
	}

	bootstrapCfg := DefaultBootstrapConfig()
	if err := yaml.Unmarshal(data, bootstrapCfg); err != nil {
		return nil, fmt.Errorf("error parsing bootstrap config file '%s': %w", bootstrapConfigPath, err)
	}

	// Relative plan paths are resolved against the config directory
	if bootstrapCfg.Plan.File != "" && !filepath.IsAbs(bootstrapCfg.Plan.File) {
		bootstrapCfg.Plan.File = filepath.Join(configDir, bootstrapCfg.Plan.File)
	}

	if err := bootstrapCfg.Validate(); err != nil {
		return nil, err
	}
	return bootstrapCfg, nil
}

// Validate checks required fields and enumerated values, normalizing the
// ZeroMQ encoding name.
func (c *BootstrapConfig) Validate() error {
	switch c.Sink.Type {
	case SinkSimulated, SinkLog:
	case SinkZeroMQ:
		if c.ZeroMQ.PublishBindAddress == "" {
			return fmt.Errorf("missing required field in bootstrap config: zeromq.publish_bind_address")
		}
		if c.ZeroMQ.OttTopic == "" {
			return fmt.Errorf("missing required field in bootstrap config: zeromq.ott_topic")
		}
		encoding, err := twist.ParseEncoding(c.ZeroMQ.Encoding)
		if err != nil {
			return fmt.Errorf("invalid value in bootstrap config: zeromq.encoding: %w", err)
		}
		c.ZeroMQ.Encoding = string(encoding)
		if c.ZeroMQ.SettleMs < 0 {
			return fmt.Errorf("invalid value in bootstrap config: zeromq.settle_ms %d", c.ZeroMQ.SettleMs)
		}
	case "":
		return fmt.Errorf("missing required field in bootstrap config: sink.type")
	default:
		return fmt.Errorf("invalid value in bootstrap config: sink.type %q", c.Sink.Type)
	}

	if c.Limits.MaxLinear < 0 || c.Limits.MaxAngular < 0 {
		return fmt.Errorf("invalid value in bootstrap config: limits must not be negative")
	}
	return nil
}
