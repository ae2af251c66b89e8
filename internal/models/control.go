package models

// 控制命令动作
const (
	ControlActionStart     = "start"
	ControlActionStop      = "stop"
	ControlActionCalibrate = "calibrate"
)

// ControlCommand 设备控制命令（App 通过 posture/{device_id}/control 下发）
// calibrate 携带调用方采集的当前 pitch；时间戳使用客户端时钟，
// 与采样时间戳同源，保证状态机计时一致
type ControlCommand struct {
	Action      string   `json:"action"`
	PitchDeg    *float64 `json:"pitch_deg,omitempty"`
	TimestampMs int64    `json:"timestamp_ms"`
}
