package session

import (
	"math"
	"time"

	"posture-engine/internal/models"
)

// Aggregator 会话统计聚合器（纯逻辑，无 I/O）
// 生命周期：Reset 创建会话，Finalize 结束并清空；Finalize 之后的采样不再计入
type Aggregator struct {
	active       bool
	startedAtMs  int64
	lastSampleMs int64

	goodMs              int64
	currentGoodStreakMs int64
	longestGoodStreakMs int64
	slouchCount         int
	pitchSum            float64
	pitchSampleCount    int
}

// NewAggregator 创建聚合器（未激活，需先 Reset）
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Active 会话是否进行中
func (a *Aggregator) Active() bool {
	return a.active
}

// Reset 清零所有计数并开启新会话
func (a *Aggregator) Reset(nowMs int64) {
	a.active = true
	a.startedAtMs = nowMs
	a.lastSampleMs = nowMs
	a.goodMs = 0
	a.currentGoodStreakMs = 0
	a.longestGoodStreakMs = 0
	a.slouchCount = 0
	a.pitchSum = 0
	a.pitchSampleCount = 0
}

// Observe 记录一个采样
// priorState 是上一个采样计算出的状态：本次计入的时间区间是在该状态下流逝的，
// 而不是刚刚发生转换的瞬间
// event 是侦测器对当前采样返回的事件（slouching 事件按采样逐个计数，level-triggered）
func (a *Aggregator) Observe(sample models.MotionSample, priorState models.PostureState, event *models.DetectionEvent, nowMs int64) {
	if !a.active {
		return
	}

	delta := nowMs - a.lastSampleMs
	if delta < 0 {
		delta = 0
	}

	if priorState == models.GoodPosture {
		a.goodMs += delta
		a.currentGoodStreakMs += delta
		if a.currentGoodStreakMs > a.longestGoodStreakMs {
			a.longestGoodStreakMs = a.currentGoodStreakMs
		}
	} else {
		a.currentGoodStreakMs = 0
	}

	// 非法 pitch 不进累加器（时间照常计入，侦测器已 fail-open）
	if !math.IsNaN(sample.PitchDeg) && !math.IsInf(sample.PitchDeg, 0) {
		a.pitchSum += sample.PitchDeg
		a.pitchSampleCount++
	}

	if event != nil && event.Severity == models.SeveritySlouching {
		a.slouchCount++
	}

	a.lastSampleMs = nowMs
}

// Snapshot 返回进行中会话的实时统计视图
func (a *Aggregator) Snapshot(nowMs int64) models.SessionSnapshot {
	elapsedMs := nowMs - a.startedAtMs
	if elapsedMs < 0 {
		elapsedMs = 0
	}

	snapshot := models.SessionSnapshot{
		StartedAtMs:         a.startedAtMs,
		ElapsedMs:           elapsedMs,
		GoodMs:              a.goodMs,
		GoodPct:             goodPct(a.goodMs, elapsedMs),
		CurrentGoodStreakMs: a.currentGoodStreakMs,
		LongestGoodStreakMs: a.longestGoodStreakMs,
		SlouchCount:         a.slouchCount,
		Timestamp:           nowMs,
	}

	if a.pitchSampleCount > 0 {
		avg := a.pitchSum / float64(a.pitchSampleCount)
		snapshot.AvgPitch = &avg
	}

	return snapshot
}

// Finalize 结束会话并生成汇总
// 零时长会话（nowMs <= startedAtMs）不产生记录，返回 nil；调用后内部状态清空
func (a *Aggregator) Finalize(nowMs int64, baselinePitch *float64) *models.SessionSummary {
	if !a.active {
		return nil
	}

	defer a.clear()

	if nowMs <= a.startedAtMs {
		return nil
	}

	elapsedMs := nowMs - a.startedAtMs

	summary := &models.SessionSummary{
		StartedAt:       time.UnixMilli(a.startedAtMs).UTC(),
		EndedAt:         time.UnixMilli(nowMs).UTC(),
		DurationSeconds: int(elapsedMs / 1000),
		GoodPosturePct:  goodPct(a.goodMs, elapsedMs),
		SlouchCount:     a.slouchCount,
		BaselinePitch:   baselinePitch,
	}

	if a.pitchSampleCount > 0 {
		avg := a.pitchSum / float64(a.pitchSampleCount)
		summary.AvgPitch = &avg
	}

	return summary
}

func (a *Aggregator) clear() {
	*a = Aggregator{}
}

// goodPct 计算良好姿态时间百分比（四舍五入，0-100）
func goodPct(goodMs, elapsedMs int64) int {
	if elapsedMs <= 0 {
		return 0
	}
	pct := int(math.Round(float64(goodMs) / float64(elapsedMs) * 100))
	if pct > 100 {
		pct = 100
	}
	return pct
}
