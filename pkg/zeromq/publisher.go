package zeromq

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/open-teleop/sequencer/pkg/config"
	customlog "github.com/open-teleop/sequencer/pkg/log"
	"github.com/open-teleop/sequencer/pkg/motion"
	"github.com/open-teleop/sequencer/pkg/twist"
	"github.com/pebbe/zmq4"
)

// Common errors
var (
	ErrServiceClosed = errors.New("zeromq publisher is closed")
)

// Ensure VelocityPublisher implements motion.Sink
var _ motion.Sink = (*VelocityPublisher)(nil)

// VelocityPublisher publishes velocity commands on a ZeroMQ PUB socket as
// two-frame messages: topic, then the encoded Twist.
type VelocityPublisher struct {
	ctx     *zmq4.Context
	socket  *zmq4.Socket
	topic   string
	encoder *twist.Encoder
	settle  time.Duration
	logger  customlog.Logger
	mu      sync.Mutex
	running bool
	sent    int
}

// NewVelocityPublisher binds a PUB socket to cfg.PublishBindAddress.
func NewVelocityPublisher(cfg config.ZeroMQConfig, logger customlog.Logger) (*VelocityPublisher, error) {
	encoding, err := twist.ParseEncoding(cfg.Encoding)
	if err != nil {
		return nil, err
	}

	ctx, err := zmq4.NewContext()
	if err != nil {
		return nil, fmt.Errorf("failed to create ZMQ context: %w", err)
	}

	socket, err := ctx.NewSocket(zmq4.PUB)
	if err != nil {
		ctx.Term()
		return nil, fmt.Errorf("failed to create PUB socket: %w", err)
	}

	// Configure socket options
	if err := socket.SetLinger(0); err != nil {
		socket.Close()
		ctx.Term()
		return nil, fmt.Errorf("failed to set linger option: %w", err)
	}

	if err := socket.Bind(cfg.PublishBindAddress); err != nil {
		socket.Close()
		ctx.Term()
		return nil, fmt.Errorf("failed to bind to %s: %w", cfg.PublishBindAddress, err)
	}

	logger.Infof("VelocityPublisher bound on %s (topic %s -> %s, encoding %s)",
		cfg.PublishBindAddress, cfg.RosTopic, cfg.OttTopic, encoding)

	return &VelocityPublisher{
		ctx:     ctx,
		socket:  socket,
		topic:   cfg.OttTopic,
		encoder: twist.NewEncoder(encoding, cfg.OttTopic, cfg.RosTopic),
		settle:  time.Duration(cfg.SettleMs) * time.Millisecond,
		logger:  logger,
		running: true,
	}, nil
}

// Send encodes cmd and publishes it on the configured topic.
func (p *VelocityPublisher) Send(cmd motion.VelocityCommand) error {
	payload, err := p.encoder.Encode(cmd)
	if err != nil {
		return err
	}
	return p.PublishMessage(p.topic, payload)
}

// PublishMessage sends a message with the given topic
func (p *VelocityPublisher) PublishMessage(topic string, message []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return ErrServiceClosed
	}

	// PUB sockets drop messages until subscribers have connected
	if p.sent == 0 && p.settle > 0 {
		p.logger.Debugf("Waiting %s for subscribers before first publish", p.settle)
		time.Sleep(p.settle)
	}

	// Send two messages in sequence (topic first, then message)
	if _, err := p.socket.Send(topic, zmq4.SNDMORE); err != nil {
		return fmt.Errorf("failed to send topic: %w", err)
	}
	if _, err := p.socket.SendBytes(message, 0); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	p.sent++
	p.logger.Debugf("Published %d bytes on %s", len(message), topic)
	return nil
}

// Close cleans up resources
func (p *VelocityPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	p.running = false

	if p.socket != nil {
		p.socket.Close()
		p.socket = nil
	}
	if p.ctx != nil {
		p.ctx.Term()
		p.ctx = nil
	}
	p.logger.Infof("VelocityPublisher closed after %d messages", p.sent)
}
