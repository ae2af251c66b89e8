package dispatcher

import (
	"posture-engine/internal/models"
)

// CooldownMs 两次报警之间的最小间隔（毫秒），对所有级别共用
// 全局（非按级别）冷却是刻意的简化：warning 会压制随后的 slouching 报警，
// 反之亦然，以避免报警风暴
const CooldownMs int64 = 30000

// Dispatcher 报警分发器（纯逻辑，只返回意图，不做 I/O）
type Dispatcher struct {
	lastFiredMs *int64
}

// New 创建分发器
func New() *Dispatcher {
	return &Dispatcher{}
}

// Reset 清除冷却状态（会话边界使用）
func (d *Dispatcher) Reset() {
	d.lastFiredMs = nil
}

// Evaluate 评估检测事件是否触发报警动作
// 事件为 nil 或处于冷却期内时返回 nil；否则记录触发时刻并返回动作意图，
// 由表现层执行触觉/声音反馈
func (d *Dispatcher) Evaluate(event *models.DetectionEvent, nowMs int64, feedback models.FeedbackSettings) *models.AlertAction {
	if event == nil {
		return nil
	}

	if d.lastFiredMs != nil && nowMs-*d.lastFiredMs < CooldownMs {
		return nil
	}

	fired := nowMs
	d.lastFiredMs = &fired

	action := &models.AlertAction{
		Severity:    event.Severity,
		TimestampMs: nowMs,
	}

	if feedback.HapticsEnabled {
		if event.Severity == models.SeveritySlouching {
			action.Haptic = models.HapticStrong
		} else {
			action.Haptic = models.HapticLight
		}
	}

	if feedback.SoundEnabled && feedback.SoundLoaded {
		action.PlaySound = true
	}

	return action
}
