package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	// 清除环境变量
	os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	// 验证默认值
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "postgres", cfg.Database.User)
	assert.Equal(t, "posture", cfg.Database.Database)
	assert.Equal(t, "disable", cfg.Database.SSLMode)

	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 0, cfg.Redis.DB)

	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, "posture-engine", cfg.MQTT.ClientID)

	assert.Equal(t, "posture/+/motion", cfg.Posture.Topics.Motion)
	assert.Equal(t, "posture/+/control", cfg.Posture.Topics.Control)
	assert.Equal(t, "posture/%s/feedback", cfg.Posture.Topics.Feedback)

	assert.Equal(t, 15.0, cfg.Posture.Defaults.ThresholdDeg)
	assert.Equal(t, 5, cfg.Posture.Defaults.AlertDelaySec)
	assert.True(t, cfg.Posture.Defaults.HapticsEnabled)
	assert.False(t, cfg.Posture.Defaults.SoundEnabled)

	assert.Equal(t, 5.0, cfg.Posture.Bounds.ThresholdMinDeg)
	assert.Equal(t, 45.0, cfg.Posture.Bounds.ThresholdMaxDeg)
	assert.Equal(t, 3, cfg.Posture.Bounds.AlertDelayMinSec)
	assert.Equal(t, 60, cfg.Posture.Bounds.AlertDelayMaxSec)

	assert.Equal(t, int64(5000), cfg.Posture.SlouchExtraMs)

	assert.Equal(t, "posture:device:", cfg.Posture.Cache.LiveKeyPrefix)
	assert.Equal(t, ":live", cfg.Posture.Cache.LiveSuffix)
	assert.Equal(t, 30, cfg.Posture.Cache.LiveTTL)
	assert.Equal(t, "posture:session:stream", cfg.Posture.SessionStream)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	os.Setenv("DB_HOST", "test-host")
	os.Setenv("DB_NAME", "test-db")
	os.Setenv("REDIS_ADDR", "test-redis:6380")
	os.Setenv("MQTT_BROKER", "tcp://test-broker:1883")
	os.Setenv("TENANT_ID", "test-tenant")
	os.Setenv("POSTURE_DEFAULT_THRESHOLD_DEG", "20.5")
	os.Setenv("POSTURE_DEFAULT_ALERT_DELAY_SEC", "8")
	os.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "test-host", cfg.Database.Host)
	assert.Equal(t, "test-db", cfg.Database.Database)
	assert.Equal(t, "test-redis:6380", cfg.Redis.Addr)
	assert.Equal(t, "tcp://test-broker:1883", cfg.MQTT.Broker)
	assert.Equal(t, "test-tenant", cfg.Posture.TenantID)
	assert.Equal(t, 20.5, cfg.Posture.Defaults.ThresholdDeg)
	assert.Equal(t, 8, cfg.Posture.Defaults.AlertDelaySec)
	assert.Equal(t, "debug", cfg.Log.Level)

	// 清理环境变量
	os.Clearenv()
}

func TestConfig_ClampThreshold(t *testing.T) {
	os.Clearenv()
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 15.0, cfg.ClampThreshold(15))
	assert.Equal(t, 5.0, cfg.ClampThreshold(1))
	assert.Equal(t, 45.0, cfg.ClampThreshold(90))
}

func TestConfig_ClampAlertDelay(t *testing.T) {
	os.Clearenv()
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.ClampAlertDelay(5))
	assert.Equal(t, 3, cfg.ClampAlertDelay(0))
	assert.Equal(t, 60, cfg.ClampAlertDelay(600))
}

func TestGetEnv(t *testing.T) {
	os.Clearenv()
	assert.Equal(t, "default-value", getEnv("TEST_KEY", "default-value"))

	os.Setenv("TEST_KEY", "env-value")
	assert.Equal(t, "env-value", getEnv("TEST_KEY", "default-value"))

	os.Unsetenv("TEST_KEY")
}
