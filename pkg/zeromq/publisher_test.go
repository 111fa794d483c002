package zeromq

import (
	"testing"
	"time"

	"github.com/open-teleop/sequencer/pkg/config"
	customlog "github.com/open-teleop/sequencer/pkg/log"
	"github.com/open-teleop/sequencer/pkg/motion"
	"github.com/open-teleop/sequencer/pkg/twist"
	"github.com/pebbe/zmq4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAddress = "tcp://127.0.0.1:45556"

func testConfig(encoding string) config.ZeroMQConfig {
	return config.ZeroMQConfig{
		PublishBindAddress: testAddress,
		RosTopic:           "/cmd_vel",
		OttTopic:           "teleop.control.velocity",
		Encoding:           encoding,
		SettleMs:           300,
	}
}

func TestVelocityPublisherDeliversTwist(t *testing.T) {
	for _, encoding := range []string{"json", "flatbuffers"} {
		t.Run(encoding, func(t *testing.T) {
			pub, err := NewVelocityPublisher(testConfig(encoding), customlog.NewNopLogger())
			require.NoError(t, err)
			defer pub.Close()

			sub, err := zmq4.NewSocket(zmq4.SUB)
			require.NoError(t, err)
			defer sub.Close()
			require.NoError(t, sub.SetLinger(0))
			require.NoError(t, sub.SetRcvtimeo(2*time.Second))
			require.NoError(t, sub.SetSubscribe("teleop.control.velocity"))
			require.NoError(t, sub.Connect(testAddress))

			cmd := motion.VelocityCommand{Linear: 1.0, Angular: 0.25}
			require.NoError(t, pub.Send(cmd))

			frames, err := sub.RecvMessageBytes(0)
			require.NoError(t, err)
			require.Len(t, frames, 2)
			assert.Equal(t, "teleop.control.velocity", string(frames[0]))

			msg, err := twist.Decode(twist.Encoding(encoding), frames[1])
			require.NoError(t, err)
			assert.Equal(t, cmd, msg.Twist.Command())
			assert.Equal(t, "/cmd_vel", msg.RosTopic)
		})
	}
}

func TestVelocityPublisherClosed(t *testing.T) {
	pub, err := NewVelocityPublisher(testConfig("json"), customlog.NewNopLogger())
	require.NoError(t, err)

	pub.Close()
	pub.Close()

	assert.ErrorIs(t, pub.Send(motion.Stop), ErrServiceClosed)
}

func TestVelocityPublisherRejectsEncoding(t *testing.T) {
	_, err := NewVelocityPublisher(testConfig("cdr"), customlog.NewNopLogger())
	assert.ErrorIs(t, err, twist.ErrUnknownEncoding)
}
