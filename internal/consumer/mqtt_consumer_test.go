package consumer

import (
	"testing"

	"posture-engine/internal/config"
	"posture-engine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeSink 仅用于单元测试（记录收到的回调）
type fakeSink struct {
	samples  []models.MotionSample
	devices  []string
	commands []models.ControlCommand
}

func (f *fakeSink) OnMotionSample(deviceID string, sample models.MotionSample) {
	f.devices = append(f.devices, deviceID)
	f.samples = append(f.samples, sample)
}

func (f *fakeSink) OnControl(deviceID string, cmd models.ControlCommand) {
	f.devices = append(f.devices, deviceID)
	f.commands = append(f.commands, cmd)
}

func newTestConsumer(t *testing.T) (*MotionConsumer, *fakeSink) {
	t.Helper()
	cfg := &config.Config{}
	cfg.Posture.Topics.Motion = "posture/+/motion"
	cfg.Posture.Topics.Control = "posture/+/control"

	sink := &fakeSink{}
	return NewMotionConsumer(cfg, nil, sink, zap.NewNop()), sink
}

func TestMotionConsumer_HandleMotionMessage(t *testing.T) {
	c, sink := newTestConsumer(t)

	payload := []byte(`{"pitch_deg": 21.5, "roll_deg": -1.0, "yaw_deg": 3.0, "timestamp_ms": 5000}`)
	require.NoError(t, c.handleMotionMessage("posture/device-1/motion", payload))

	require.Len(t, sink.samples, 1)
	assert.Equal(t, "device-1", sink.devices[0])
	assert.Equal(t, 21.5, sink.samples[0].PitchDeg)
	assert.Equal(t, int64(5000), sink.samples[0].TimestampMs)
}

func TestMotionConsumer_HandleMotionMessage_InvalidTopic(t *testing.T) {
	c, sink := newTestConsumer(t)

	assert.Error(t, c.handleMotionMessage("posture", []byte(`{}`)))
	assert.Error(t, c.handleMotionMessage("posture//motion", []byte(`{}`)))
	assert.Empty(t, sink.samples)
}

func TestMotionConsumer_HandleMotionMessage_BadPayload(t *testing.T) {
	c, sink := newTestConsumer(t)

	assert.Error(t, c.handleMotionMessage("posture/device-1/motion", []byte(`not json`)))
	assert.Empty(t, sink.samples)
}

func TestMotionConsumer_HandleControlMessage(t *testing.T) {
	c, sink := newTestConsumer(t)

	require.NoError(t, c.handleControlMessage("posture/device-1/control",
		[]byte(`{"action": "start", "timestamp_ms": 1000}`)))
	require.NoError(t, c.handleControlMessage("posture/device-1/control",
		[]byte(`{"action": "calibrate", "pitch_deg": 2.5, "timestamp_ms": 2000}`)))
	require.NoError(t, c.handleControlMessage("posture/device-1/control",
		[]byte(`{"action": "stop", "timestamp_ms": 3000}`)))

	require.Len(t, sink.commands, 3)
	assert.Equal(t, models.ControlActionStart, sink.commands[0].Action)
	assert.Equal(t, models.ControlActionCalibrate, sink.commands[1].Action)
	require.NotNil(t, sink.commands[1].PitchDeg)
	assert.Equal(t, 2.5, *sink.commands[1].PitchDeg)
	assert.Equal(t, models.ControlActionStop, sink.commands[2].Action)
}

func TestMotionConsumer_HandleControlMessage_UnknownAction(t *testing.T) {
	c, sink := newTestConsumer(t)

	err := c.handleControlMessage("posture/device-1/control", []byte(`{"action": "reboot"}`))
	assert.Error(t, err)
	assert.Empty(t, sink.commands)
}

func TestDeviceIDFromTopic(t *testing.T) {
	id, err := deviceIDFromTopic("posture/device-42/motion")
	require.NoError(t, err)
	assert.Equal(t, "device-42", id)

	_, err = deviceIDFromTopic("bad-topic")
	assert.Error(t, err)
}
