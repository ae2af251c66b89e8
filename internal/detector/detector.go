package detector

import (
	"fmt"
	"math"

	"posture-engine/internal/models"
)

// Config 侦测器参数
// 不变量：SlouchMs > WarningMs > 0，ThresholdDeg > 0
type Config struct {
	ThresholdDeg float64 // 偏离基线多少度开始计时
	WarningMs    int64   // 持续偏离多久进入 warning
	SlouchMs     int64   // 持续偏离多久进入 slouching
}

// Validate 校验配置不变量
func (c Config) Validate() error {
	if c.ThresholdDeg <= 0 {
		return fmt.Errorf("threshold_deg must be positive, got %v", c.ThresholdDeg)
	}
	if c.WarningMs <= 0 {
		return fmt.Errorf("warning_ms must be positive, got %d", c.WarningMs)
	}
	if c.SlouchMs <= c.WarningMs {
		return fmt.Errorf("slouch_ms (%d) must be greater than warning_ms (%d)", c.SlouchMs, c.WarningMs)
	}
	return nil
}

// Result 单个采样的评估结果
// Event 在无可操作条件时为 nil；持续越界时每个合格采样都带事件
type Result struct {
	State models.PostureState
	Event *models.DetectionEvent
}

// Detector 弯腰侦测状态机（纯逻辑，无 I/O，不阻塞）
// 基线缺失或采样非法时一律放行为 good_posture（fail-open，绝不在输入不可信时报警）
type Detector struct {
	config   Config
	baseline *float64 // 校准后的中立 pitch，缺失时无法判定偏离
	onsetMs  *int64   // 持续偏离的起始时刻，偏离回落或重配置时清除
	state    models.PostureState
}

// New 创建侦测器
func New(cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid detector config: %w", err)
	}
	return &Detector{
		config: cfg,
		state:  models.GoodPosture,
	}, nil
}

// Calibrate 以当前 pitch 作为中立基线（幂等，后调用者覆盖）
func (d *Detector) Calibrate(currentPitchDeg float64) float64 {
	d.baseline = &currentPitchDeg
	return currentPitchDeg
}

// Baseline 返回当前基线，未校准时第二个返回值为 false
func (d *Detector) Baseline() (float64, bool) {
	if d.baseline == nil {
		return 0, false
	}
	return *d.baseline, true
}

// Config 返回当前配置
func (d *Detector) Config() Config {
	return d.config
}

// State 返回当前姿态状态
func (d *Detector) State() models.PostureState {
	return d.state
}

// Reconfigure 更换阈值配置
// 保留校准基线，但清除偏离计时，避免旧的临界偏离在新（可能更严格的）阈值下立即触发
func (d *Detector) Reconfigure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid detector config: %w", err)
	}
	d.config = cfg
	d.onsetMs = nil
	return nil
}

// Reset 会话边界重置：清除偏离计时和状态，保留校准基线
func (d *Detector) Reset() {
	d.onsetMs = nil
	d.state = models.GoodPosture
}

// Update 评估单个采样（每个采样的唯一入口）
func (d *Detector) Update(pitchDeg float64, nowMs int64) Result {
	// 非法采样或未校准：fail-open
	if math.IsNaN(pitchDeg) || math.IsInf(pitchDeg, 0) || d.baseline == nil {
		d.onsetMs = nil
		d.state = models.GoodPosture
		return Result{State: models.GoodPosture}
	}

	deviation := math.Abs(pitchDeg - *d.baseline)

	// 偏离回落：立即恢复，不论之前持续了多久
	if deviation < d.config.ThresholdDeg {
		d.onsetMs = nil
		d.state = models.GoodPosture
		return Result{State: models.GoodPosture}
	}

	if d.onsetMs == nil {
		onset := nowMs
		d.onsetMs = &onset
	}
	sustainedMs := nowMs - *d.onsetMs

	switch {
	case sustainedMs >= d.config.SlouchMs:
		d.state = models.Slouching
		return Result{
			State: models.Slouching,
			Event: &models.DetectionEvent{Severity: models.SeveritySlouching, TimestampMs: nowMs},
		}
	case sustainedMs >= d.config.WarningMs:
		d.state = models.Warning
		return Result{
			State: models.Warning,
			Event: &models.DetectionEvent{Severity: models.SeverityWarning, TimestampMs: nowMs},
		}
	default:
		// 偏离尚未持续到足以触发
		d.state = models.GoodPosture
		return Result{State: models.GoodPosture}
	}
}
