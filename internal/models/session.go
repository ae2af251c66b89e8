package models

import (
	"time"
)

// SessionSnapshot 进行中会话的实时统计视图（只读，写入 Redis 供 App 展示）
type SessionSnapshot struct {
	DeviceID            string       `json:"device_id"`
	StartedAtMs         int64        `json:"started_at_ms"`
	ElapsedMs           int64        `json:"elapsed_ms"`
	GoodMs              int64        `json:"good_ms"`
	GoodPct             int          `json:"good_pct"`
	CurrentGoodStreakMs int64        `json:"current_good_streak_ms"`
	LongestGoodStreakMs int64        `json:"longest_good_streak_ms"`
	SlouchCount         int          `json:"slouch_count"`
	AvgPitch            *float64     `json:"avg_pitch,omitempty"`
	State               PostureState `json:"state"`
	Timestamp           int64        `json:"timestamp"`
}

// SessionSummary 已完成会话的汇总（对应 posture_sessions 表，只写一次，不再更新）
type SessionSummary struct {
	SessionID       string    `json:"session_id" db:"session_id"`
	TenantID        string    `json:"tenant_id" db:"tenant_id"`
	DeviceID        string    `json:"device_id" db:"device_id"`
	StartedAt       time.Time `json:"started_at" db:"started_at"`
	EndedAt         time.Time `json:"ended_at" db:"ended_at"`
	DurationSeconds int       `json:"duration_seconds" db:"duration_seconds"`
	GoodPosturePct  int       `json:"good_posture_pct" db:"good_posture_pct"`
	SlouchCount     int       `json:"slouch_count" db:"slouch_count"`
	AvgPitch        *float64  `json:"avg_pitch,omitempty" db:"avg_pitch"`
	BaselinePitch   *float64  `json:"baseline_pitch,omitempty" db:"baseline_pitch"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// DeviceSettings 设备姿态设置（对应 posture_settings 表，外部持久化）
type DeviceSettings struct {
	DeviceID       string  `json:"device_id" db:"device_id"`
	TenantID       string  `json:"tenant_id" db:"tenant_id"`
	ThresholdDeg   float64 `json:"threshold_deg" db:"threshold_deg"`
	AlertDelaySec  int     `json:"alert_delay_sec" db:"alert_delay_sec"`
	HapticsEnabled bool    `json:"haptics_enabled" db:"haptics_enabled"`
	SoundEnabled   bool    `json:"sound_enabled" db:"sound_enabled"`
}
