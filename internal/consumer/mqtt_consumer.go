package consumer

import (
	"encoding/json"
	"fmt"
	"strings"

	"posture-engine/internal/config"
	"posture-engine/internal/models"

	mqttcommon "posture-engine/common/mqtt"

	"go.uber.org/zap"
)

// SampleSink 接收解析后的采样与控制命令（由 service 层实现）
// 回调在 MQTT 投递线程上同步执行，实现方负责与会话启停的串行化
type SampleSink interface {
	OnMotionSample(deviceID string, sample models.MotionSample)
	OnControl(deviceID string, cmd models.ControlCommand)
}

// MotionConsumer MQTT 采样消费者
// 订阅 posture/{device_id}/motion（姿态采样）和 posture/{device_id}/control（控制命令）
type MotionConsumer struct {
	config     *config.Config
	mqttClient *mqttcommon.Client
	sink       SampleSink
	logger     *zap.Logger
}

// NewMotionConsumer 创建MQTT采样消费者
func NewMotionConsumer(
	cfg *config.Config,
	mqttClient *mqttcommon.Client,
	sink SampleSink,
	logger *zap.Logger,
) *MotionConsumer {
	return &MotionConsumer{
		config:     cfg,
		mqttClient: mqttClient,
		sink:       sink,
		logger:     logger,
	}
}

// Start 订阅主题
func (c *MotionConsumer) Start() error {
	qos := c.config.MQTT.QoS

	if err := c.mqttClient.Subscribe(c.config.Posture.Topics.Motion, qos, c.handleMotionMessage); err != nil {
		return fmt.Errorf("failed to subscribe to motion topic: %w", err)
	}
	if err := c.mqttClient.Subscribe(c.config.Posture.Topics.Control, qos, c.handleControlMessage); err != nil {
		return fmt.Errorf("failed to subscribe to control topic: %w", err)
	}

	c.logger.Info("Motion consumer started",
		zap.String("motion_topic", c.config.Posture.Topics.Motion),
		zap.String("control_topic", c.config.Posture.Topics.Control),
	)

	return nil
}

// Stop 取消订阅
func (c *MotionConsumer) Stop() error {
	if err := c.mqttClient.Unsubscribe(c.config.Posture.Topics.Motion, c.config.Posture.Topics.Control); err != nil {
		c.logger.Error("Failed to unsubscribe", zap.Error(err))
	}

	c.logger.Info("Motion consumer stopped")
	return nil
}

// handleMotionMessage 处理采样消息
// 主题格式: posture/{device_id}/motion
func (c *MotionConsumer) handleMotionMessage(topic string, payload []byte) error {
	deviceID, err := deviceIDFromTopic(topic)
	if err != nil {
		return err
	}

	var sample models.MotionSample
	if err := json.Unmarshal(payload, &sample); err != nil {
		c.logger.Error("Failed to unmarshal motion sample",
			zap.String("topic", topic),
			zap.Error(err),
		)
		return fmt.Errorf("failed to unmarshal motion sample: %w", err)
	}

	c.sink.OnMotionSample(deviceID, sample)
	return nil
}

// handleControlMessage 处理控制命令
// 主题格式: posture/{device_id}/control
func (c *MotionConsumer) handleControlMessage(topic string, payload []byte) error {
	deviceID, err := deviceIDFromTopic(topic)
	if err != nil {
		return err
	}

	var cmd models.ControlCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		c.logger.Error("Failed to unmarshal control command",
			zap.String("topic", topic),
			zap.Error(err),
		)
		return fmt.Errorf("failed to unmarshal control command: %w", err)
	}

	switch cmd.Action {
	case models.ControlActionStart, models.ControlActionStop, models.ControlActionCalibrate:
		c.sink.OnControl(deviceID, cmd)
	default:
		c.logger.Warn("Unknown control action",
			zap.String("device_id", deviceID),
			zap.String("action", cmd.Action),
		)
		return fmt.Errorf("unknown control action: %s", cmd.Action)
	}

	return nil
}

// deviceIDFromTopic 从主题中提取设备ID
func deviceIDFromTopic(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) < 3 || parts[1] == "" {
		return "", fmt.Errorf("invalid topic format: %s", topic)
	}
	return parts[1], nil
}
