package detector

import (
	"math"
	"testing"

	"posture-engine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDetector(t *testing.T) *Detector {
	t.Helper()
	d, err := New(Config{
		ThresholdDeg: 15,
		WarningMs:    5000,
		SlouchMs:     10000,
	})
	require.NoError(t, err)
	return d
}

func TestConfig_Validate(t *testing.T) {
	// 合法配置
	assert.NoError(t, Config{ThresholdDeg: 15, WarningMs: 5000, SlouchMs: 10000}.Validate())

	// 非法配置
	assert.Error(t, Config{ThresholdDeg: 0, WarningMs: 5000, SlouchMs: 10000}.Validate())
	assert.Error(t, Config{ThresholdDeg: 15, WarningMs: 0, SlouchMs: 10000}.Validate())
	assert.Error(t, Config{ThresholdDeg: 15, WarningMs: 5000, SlouchMs: 5000}.Validate())
	assert.Error(t, Config{ThresholdDeg: 15, WarningMs: 5000, SlouchMs: 3000}.Validate())
}

func TestDetector_Calibrate_LastCallerWins(t *testing.T) {
	d := newTestDetector(t)

	_, ok := d.Baseline()
	assert.False(t, ok)

	assert.Equal(t, 5.0, d.Calibrate(5.0))
	assert.Equal(t, -2.5, d.Calibrate(-2.5))

	baseline, ok := d.Baseline()
	require.True(t, ok)
	assert.Equal(t, -2.5, baseline)
}

func TestDetector_Update_FailOpen(t *testing.T) {
	d := newTestDetector(t)

	// 未校准：任何 pitch 都返回 good_posture 且无事件
	result := d.Update(90, 1000)
	assert.Equal(t, models.GoodPosture, result.State)
	assert.Nil(t, result.Event)

	// 校准后，非法采样同样 fail-open
	d.Calibrate(0)
	for _, pitch := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		result := d.Update(pitch, 2000)
		assert.Equal(t, models.GoodPosture, result.State)
		assert.Nil(t, result.Event)
	}
}

func TestDetector_Update_ConcreteScenario(t *testing.T) {
	// 基线 0°，阈值 15°，warning 5000ms，slouch 10000ms
	// pitch 20° 每 1000ms 一个采样：
	// t=0..4000 good，t=5000..9000 warning，t=10000 起 slouching
	d := newTestDetector(t)
	d.Calibrate(0)

	for tMs := int64(0); tMs <= 15000; tMs += 1000 {
		result := d.Update(20, tMs)

		switch {
		case tMs < 5000:
			assert.Equal(t, models.GoodPosture, result.State, "t=%d", tMs)
			assert.Nil(t, result.Event, "t=%d", tMs)
		case tMs < 10000:
			assert.Equal(t, models.Warning, result.State, "t=%d", tMs)
			require.NotNil(t, result.Event, "t=%d", tMs)
			assert.Equal(t, models.SeverityWarning, result.Event.Severity)
			assert.Equal(t, tMs, result.Event.TimestampMs)
		default:
			assert.Equal(t, models.Slouching, result.State, "t=%d", tMs)
			require.NotNil(t, result.Event, "t=%d", tMs)
			assert.Equal(t, models.SeveritySlouching, result.Event.Severity)
			assert.Equal(t, tMs, result.Event.TimestampMs)
		}
	}
}

func TestDetector_Update_NeverSkipsWarning(t *testing.T) {
	// 恒定偏离下，状态序列必须经过 warning 才能到 slouching
	d := newTestDetector(t)
	d.Calibrate(0)

	var states []models.PostureState
	for tMs := int64(0); tMs <= 12000; tMs += 500 {
		states = append(states, d.Update(30, tMs).State)
	}

	sawWarning := false
	for _, s := range states {
		if s == models.Slouching {
			assert.True(t, sawWarning, "slouching must not be reached before warning")
		}
		if s == models.Warning {
			sawWarning = true
		}
	}
	assert.Contains(t, states, models.Warning)
	assert.Contains(t, states, models.Slouching)
}

func TestDetector_Update_InstantRecovery(t *testing.T) {
	d := newTestDetector(t)
	d.Calibrate(0)

	// 进入 slouching
	for tMs := int64(0); tMs <= 10000; tMs += 1000 {
		d.Update(20, tMs)
	}
	assert.Equal(t, models.Slouching, d.State())

	// 偏离回落后的下一个采样立即恢复
	result := d.Update(5, 11000)
	assert.Equal(t, models.GoodPosture, result.State)
	assert.Nil(t, result.Event)

	// 再次偏离需要重新计时
	result = d.Update(20, 12000)
	assert.Equal(t, models.GoodPosture, result.State)
	assert.Nil(t, result.Event)
}

func TestDetector_Update_NegativeDeviation(t *testing.T) {
	// 偏离取绝对值：向后仰同样触发
	d := newTestDetector(t)
	d.Calibrate(10)

	result := d.Update(-10, 0)
	assert.Equal(t, models.GoodPosture, result.State)

	result = d.Update(-10, 6000)
	assert.Equal(t, models.Warning, result.State)
}

func TestDetector_Reconfigure_PreservesBaselineClearsOnset(t *testing.T) {
	d := newTestDetector(t)
	d.Calibrate(0)

	// 积累 4 秒偏离（接近 warning 阈值）
	d.Update(20, 0)
	d.Update(20, 4000)

	// 换更严格的阈值：偏离计时必须清零，不能立即触发
	require.NoError(t, d.Reconfigure(Config{
		ThresholdDeg: 10,
		WarningMs:    1000,
		SlouchMs:     7000,
	}))

	baseline, ok := d.Baseline()
	require.True(t, ok)
	assert.Equal(t, 0.0, baseline)

	result := d.Update(20, 4500)
	assert.Equal(t, models.GoodPosture, result.State, "onset must restart after reconfigure")

	// 新配置下重新计时后触发
	result = d.Update(20, 5500)
	assert.Equal(t, models.Warning, result.State)
}

func TestDetector_Reconfigure_RejectsInvalidConfig(t *testing.T) {
	d := newTestDetector(t)
	err := d.Reconfigure(Config{ThresholdDeg: -1, WarningMs: 1, SlouchMs: 2})
	assert.Error(t, err)
	// 原配置保持不变
	assert.Equal(t, 15.0, d.Config().ThresholdDeg)
}

func TestDetector_Reset_KeepsCalibration(t *testing.T) {
	d := newTestDetector(t)
	d.Calibrate(3)

	for tMs := int64(0); tMs <= 10000; tMs += 1000 {
		d.Update(25, tMs)
	}
	assert.Equal(t, models.Slouching, d.State())

	d.Reset()

	assert.Equal(t, models.GoodPosture, d.State())
	baseline, ok := d.Baseline()
	require.True(t, ok)
	assert.Equal(t, 3.0, baseline)

	// 重置后偏离重新计时
	result := d.Update(25, 11000)
	assert.Equal(t, models.GoodPosture, result.State)
}
