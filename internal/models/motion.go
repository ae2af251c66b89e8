package models

// MotionSample 头部姿态采样（来自可穿戴设备，硬件决定采样率）
// 侦测器只评估 pitch 轴；采样数据是瞬态的，不落库
type MotionSample struct {
	PitchDeg    float64 `json:"pitch_deg"`
	RollDeg     float64 `json:"roll_deg"`
	YawDeg      float64 `json:"yaw_deg"`
	TimestampMs int64   `json:"timestamp_ms"`
}

// PostureState 姿态状态（任一时刻有且只有一个）
type PostureState string

const (
	GoodPosture PostureState = "good_posture" // 初始状态，也是恢复后的状态
	Warning     PostureState = "warning"
	Slouching   PostureState = "slouching"
)

// Severity 检测事件级别
type Severity string

const (
	SeverityWarning   Severity = "warning"
	SeveritySlouching Severity = "slouching"
)

// DetectionEvent 检测事件（与状态一起返回，条件不成立时为 nil）
// 持续越界时每个采样都会产生事件（level-triggered），节流由 dispatcher 负责
type DetectionEvent struct {
	Severity    Severity `json:"severity"`
	TimestampMs int64    `json:"timestamp_ms"`
}

// HapticStrength 触觉反馈强度
type HapticStrength string

const (
	HapticNone   HapticStrength = ""
	HapticLight  HapticStrength = "light"  // warning
	HapticStrong HapticStrength = "strong" // slouching
)

// AlertAction 报警动作意图（dispatcher 只返回意图，不做 I/O）
// 由表现层（App 端）实际执行触觉/声音反馈
type AlertAction struct {
	Severity    Severity       `json:"severity"`
	Haptic      HapticStrength `json:"haptic,omitempty"`
	PlaySound   bool           `json:"play_sound"`
	TimestampMs int64          `json:"timestamp_ms"`
}

// FeedbackSettings 反馈通道开关（来自设备设置）
type FeedbackSettings struct {
	HapticsEnabled bool `json:"haptics_enabled"`
	SoundEnabled   bool `json:"sound_enabled"`
	SoundLoaded    bool `json:"sound_loaded"` // 声音资源是否已加载
}
