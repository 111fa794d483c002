// Package twist encodes velocity commands as geometry_msgs/Twist payloads for
// the open-teleop wire formats.
package twist

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	flatbuffers "github.com/google/flatbuffers/go"
	message "github.com/open-teleop/sequencer/pkg/flatbuffers/open_teleop/message"
	"github.com/open-teleop/sequencer/pkg/motion"
)

// MsgTypeTwist is the envelope type of JSON-encoded Twist commands.
const MsgTypeTwist = "TWIST"

// ottMessageVersion is written into every OttMessage.
const ottMessageVersion = 1

// Common errors
var (
	ErrUnknownEncoding = errors.New("unknown twist encoding")
	ErrInvalidMessage  = errors.New("invalid twist message")
)

// Vector3 defines a standard 3D vector.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// TwistMsg represents a command velocity message, matching geometry_msgs/Twist.
type TwistMsg struct {
	Linear  Vector3 `json:"linear"`
	Angular Vector3 `json:"angular"`
}

// FromCommand maps a planar command onto linear.x and angular.z.
func FromCommand(cmd motion.VelocityCommand) TwistMsg {
	return TwistMsg{
		Linear:  Vector3{X: cmd.Linear},
		Angular: Vector3{Z: cmd.Angular},
	}
}

// Command drops the components a planar base ignores.
func (t TwistMsg) Command() motion.VelocityCommand {
	return motion.VelocityCommand{Linear: t.Linear.X, Angular: t.Angular.Z}
}

// Envelope is the JSON framing shared with the gateway.
type Envelope struct {
	Type      string   `json:"type"`
	Timestamp float64  `json:"timestamp"`
	RosTopic  string   `json:"ros_topic,omitempty"`
	Data      TwistMsg `json:"data"`
}

// Encoding selects the wire format.
type Encoding string

const (
	EncodingJSON        Encoding = "json"
	EncodingFlatbuffers Encoding = "flatbuffers"
)

// ParseEncoding validates an encoding name. Matching is case-insensitive.
func ParseEncoding(s string) (Encoding, error) {
	switch enc := Encoding(strings.ToLower(strings.TrimSpace(s))); enc {
	case EncodingJSON, EncodingFlatbuffers:
		return enc, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownEncoding, s)
	}
}

// Message is a decoded Twist command.
type Message struct {
	Topic     string
	RosTopic  string
	Timestamp time.Time
	Twist     TwistMsg
}

// Encoder turns commands into wire payloads for one OTT topic.
type Encoder struct {
	encoding Encoding
	ottTopic string
	rosTopic string
	now      func() time.Time
}

// NewEncoder creates an encoder. ottTopic is embedded in FlatBuffer messages;
// rosTopic names the ROS topic the gateway republishes on and is carried by
// both encodings.
func NewEncoder(encoding Encoding, ottTopic, rosTopic string) *Encoder {
	return &Encoder{encoding: encoding, ottTopic: ottTopic, rosTopic: rosTopic, now: time.Now}
}

// Encoding returns the configured wire format.
func (e *Encoder) Encoding() Encoding {
	return e.encoding
}

// Encode serializes cmd in the configured format.
func (e *Encoder) Encode(cmd motion.VelocityCommand) ([]byte, error) {
	twist := FromCommand(cmd)
	now := e.now()

	switch e.encoding {
	case EncodingJSON:
		env := Envelope{
			Type:      MsgTypeTwist,
			Timestamp: float64(now.UnixNano()) / float64(time.Second),
			RosTopic:  e.rosTopic,
			Data:      twist,
		}
		data, err := json.Marshal(env)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal twist envelope: %w", err)
		}
		return data, nil

	case EncodingFlatbuffers:
		payload, err := json.Marshal(twist)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal twist payload: %w", err)
		}
		return buildOttMessage(e.ottTopic, e.rosTopic, now, payload), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, e.encoding)
	}
}

func buildOttMessage(topic, rosTopic string, ts time.Time, payload []byte) []byte {
	builder := flatbuffers.NewBuilder(256)
	topicOffset := builder.CreateString(topic)
	payloadOffset := builder.CreateByteVector(payload)
	var rosTopicOffset flatbuffers.UOffsetT
	if rosTopic != "" {
		rosTopicOffset = builder.CreateString(rosTopic)
	}

	message.OttMessageStart(builder)
	message.OttMessageAddVersion(builder, ottMessageVersion)
	message.OttMessageAddOtt(builder, topicOffset)
	message.OttMessageAddTimestampNs(builder, ts.UnixNano())
	message.OttMessageAddContentType(builder, message.ContentTypeJSON_COMMAND)
	message.OttMessageAddPayload(builder, payloadOffset)
	if rosTopicOffset != 0 {
		message.OttMessageAddRosTopic(builder, rosTopicOffset)
	}
	builder.Finish(message.OttMessageEnd(builder))

	return builder.FinishedBytes()
}

// Decode parses a payload produced by Encode.
func Decode(encoding Encoding, data []byte) (Message, error) {
	switch encoding {
	case EncodingJSON:
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return Message{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
		}
		if env.Type != MsgTypeTwist {
			return Message{}, fmt.Errorf("%w: unexpected type %q", ErrInvalidMessage, env.Type)
		}
		sec := int64(env.Timestamp)
		nsec := int64((env.Timestamp - float64(sec)) * float64(time.Second))
		return Message{RosTopic: env.RosTopic, Timestamp: time.Unix(sec, nsec), Twist: env.Data}, nil

	case EncodingFlatbuffers:
		return decodeOttMessage(data)

	default:
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownEncoding, encoding)
	}
}

// decodeOttMessage reads an OttMessage from untrusted bytes. The generated
// accessors index the buffer without checks, so the table header is bounds
// checked first and any remaining out-of-range read is reported as invalid.
func decodeOttMessage(data []byte) (msg Message, err error) {
	if err := checkTable(data); err != nil {
		return Message{}, err
	}
	// Reads past len(data) must fail even when the caller's slice has spare capacity.
	data = data[:len(data):len(data)]

	defer func() {
		if r := recover(); r != nil {
			msg, err = Message{}, fmt.Errorf("%w: malformed flatbuffer: %v", ErrInvalidMessage, r)
		}
	}()

	ottMsg := message.GetRootAsOttMessage(data, 0)
	if ottMsg.ContentType() != message.ContentTypeJSON_COMMAND {
		return Message{}, fmt.Errorf("%w: unexpected content type %s", ErrInvalidMessage, ottMsg.ContentType())
	}
	var twist TwistMsg
	if err := json.Unmarshal(ottMsg.PayloadBytes(), &twist); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return Message{
		Topic:     string(ottMsg.Ott()),
		RosTopic:  string(ottMsg.RosTopic()),
		Timestamp: time.Unix(0, ottMsg.TimestampNs()),
		Twist:     twist,
	}, nil
}

// checkTable verifies that the root table and its vtable lie inside data.
func checkTable(data []byte) error {
	size := len(data)
	if size < flatbuffers.SizeUOffsetT {
		return fmt.Errorf("%w: %d bytes is too short", ErrInvalidMessage, size)
	}

	table := int(flatbuffers.GetUOffsetT(data))
	if table < 0 || table > size-flatbuffers.SizeSOffsetT {
		return fmt.Errorf("%w: root offset %d out of range", ErrInvalidMessage, table)
	}

	vtable := table - int(flatbuffers.GetSOffsetT(data[table:]))
	if vtable < 0 || vtable > size-2*flatbuffers.SizeVOffsetT {
		return fmt.Errorf("%w: vtable offset %d out of range", ErrInvalidMessage, vtable)
	}

	vtableLen := int(flatbuffers.GetVOffsetT(data[vtable:]))
	tableLen := int(flatbuffers.GetVOffsetT(data[vtable+flatbuffers.SizeVOffsetT:]))
	if vtableLen < 2*flatbuffers.SizeVOffsetT || vtable+vtableLen > size || table+tableLen > size {
		return fmt.Errorf("%w: table extends past %d bytes", ErrInvalidMessage, size)
	}
	return nil
}
