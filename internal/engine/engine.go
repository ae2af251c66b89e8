package engine

import (
	"fmt"

	"posture-engine/internal/detector"
	"posture-engine/internal/dispatcher"
	"posture-engine/internal/models"
	"posture-engine/internal/session"
)

// Outcome 单个采样经过完整管线后的结果
type Outcome struct {
	State  models.PostureState
	Event  *models.DetectionEvent
	Action *models.AlertAction
}

// Tracker 单个设备的姿态跟踪管线
// 采样驱动、单线程：每个采样按固定顺序经过 侦测器 → 聚合器 → 分发器，
// 过程中不做 I/O、不阻塞。会话启停和设置变更必须由调用方与采样投递串行化
type Tracker struct {
	deviceID   string
	detector   *detector.Detector
	aggregator *session.Aggregator
	dispatcher *dispatcher.Dispatcher
	feedback   models.FeedbackSettings

	// 上一个采样计算出的状态：聚合器计入的是在该状态下流逝的区间
	prevState models.PostureState
	active    bool

	// 最后一个采样的时间戳：结束时间不得早于它
	// （断线时用服务端时钟结束会话，设备时钟偏快时会出现这种倒退）
	lastSampleMs int64
}

// NewTracker 创建设备跟踪器
func NewTracker(deviceID string, cfg detector.Config, feedback models.FeedbackSettings) (*Tracker, error) {
	det, err := detector.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create detector: %w", err)
	}

	return &Tracker{
		deviceID:   deviceID,
		detector:   det,
		aggregator: session.NewAggregator(),
		dispatcher: dispatcher.New(),
		feedback:   feedback,
		prevState:  models.GoodPosture,
	}, nil
}

// DeviceID 返回设备ID
func (t *Tracker) DeviceID() string {
	return t.deviceID
}

// Active 会话是否进行中
func (t *Tracker) Active() bool {
	return t.active
}

// Calibrate 以当前 pitch 校准基线（会话内外均可，幂等）
func (t *Tracker) Calibrate(currentPitchDeg float64) float64 {
	return t.detector.Calibrate(currentPitchDeg)
}

// Baseline 返回当前基线
func (t *Tracker) Baseline() (float64, bool) {
	return t.detector.Baseline()
}

// ApplySettings 应用新的阈值与反馈设置
// 保留校准基线，清除侦测器的偏离计时（避免旧偏离在新阈值下立即触发）
func (t *Tracker) ApplySettings(cfg detector.Config, feedback models.FeedbackSettings) error {
	if err := t.detector.Reconfigure(cfg); err != nil {
		return err
	}
	t.feedback = feedback
	return nil
}

// Start 开启跟踪会话：重置侦测器计时、聚合器计数和报警冷却
func (t *Tracker) Start(nowMs int64) {
	t.detector.Reset()
	t.dispatcher.Reset()
	t.aggregator.Reset(nowMs)
	t.prevState = models.GoodPosture
	t.lastSampleMs = nowMs
	t.active = true
}

// HandleSample 处理一个采样（每采样唯一入口）
// 会话未开启或已结束时采样被丢弃，第二个返回值为 false
func (t *Tracker) HandleSample(sample models.MotionSample) (Outcome, bool) {
	if !t.active {
		return Outcome{}, false
	}

	nowMs := sample.TimestampMs

	result := t.detector.Update(sample.PitchDeg, nowMs)
	t.aggregator.Observe(sample, t.prevState, result.Event, nowMs)
	action := t.dispatcher.Evaluate(result.Event, nowMs, t.feedback)

	t.prevState = result.State
	if nowMs > t.lastSampleMs {
		t.lastSampleMs = nowMs
	}

	return Outcome{
		State:  result.State,
		Event:  result.Event,
		Action: action,
	}, true
}

// Snapshot 返回进行中会话的实时统计
func (t *Tracker) Snapshot(nowMs int64) models.SessionSnapshot {
	snapshot := t.aggregator.Snapshot(nowMs)
	snapshot.DeviceID = t.deviceID
	snapshot.State = t.detector.State()
	return snapshot
}

// Stop 结束会话并生成汇总
// 零时长会话返回 nil；之后到达的采样会被 HandleSample 丢弃
// 结束时间下限为最后一个采样的时间戳（服务端与设备时钟可能偏差）
func (t *Tracker) Stop(nowMs int64) *models.SessionSummary {
	if !t.active {
		return nil
	}
	t.active = false

	if nowMs < t.lastSampleMs {
		nowMs = t.lastSampleMs
	}

	var baseline *float64
	if b, ok := t.detector.Baseline(); ok {
		baseline = &b
	}

	summary := t.aggregator.Finalize(nowMs, baseline)
	t.detector.Reset()
	t.prevState = models.GoodPosture

	if summary != nil {
		summary.DeviceID = t.deviceID
	}
	return summary
}
