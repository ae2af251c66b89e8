package config

import (
	"os"
	"strconv"

	"posture-engine/common/config"
)

// Config 姿态引擎服务配置
type Config struct {
	Database config.DatabaseConfig
	Redis    config.RedisConfig
	MQTT     config.MQTTConfig

	// 姿态引擎特定配置
	Posture struct {
		// 租户 ID（多租户场景，当前先支持单个租户）
		TenantID string

		// MQTT 主题
		Topics struct {
			Motion   string // 采样数据主题，如 "posture/+/motion"
			Control  string // 控制命令主题，如 "posture/+/control"
			Feedback string // 反馈意图主题前缀，如 "posture/%s/feedback"
		}

		// 设备设置默认值（设备无持久化设置时使用）
		Defaults struct {
			ThresholdDeg   float64 // 偏离阈值（度），默认 15
			AlertDelaySec  int     // 持续偏离多少秒进入 warning，默认 5
			HapticsEnabled bool
			SoundEnabled   bool
		}

		// 设置取值边界（加载设置时做钳制）
		Bounds struct {
			ThresholdMinDeg  float64 // 默认 5
			ThresholdMaxDeg  float64 // 默认 45
			AlertDelayMinSec int     // 默认 3
			AlertDelayMaxSec int     // 默认 60
		}

		// slouchMs = alertDelaySec*1000 + SlouchExtraMs
		SlouchExtraMs int64 // 默认 5000

		// Redis 缓存配置
		Cache struct {
			LiveKeyPrefix  string // 实时统计缓存键前缀，如 "posture:device:"
			LiveSuffix     string // 实时统计缓存键后缀，如 ":live"
			LiveTTL        int    // 实时统计 TTL（秒），默认 30
			SettingsTTL    int    // 设置缓存 TTL（秒），默认 60
			SettingsSuffix string // 设置缓存键后缀，如 ":settings"
		}

		// 会话汇总发布的 Redis Stream 名称
		SessionStream string // 如 "posture:session:stream"

		// 声音资源是否已在客户端加载（来自设备能力上报，当前用配置开关）
		SoundLoaded bool
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	// 从环境变量加载（默认值）
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = 5432
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "posture")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = 0

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "posture-engine")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = 1

	// 姿态引擎配置
	cfg.Posture.TenantID = getEnv("TENANT_ID", "")

	cfg.Posture.Topics.Motion = getEnv("POSTURE_MOTION_TOPIC", "posture/+/motion")
	cfg.Posture.Topics.Control = getEnv("POSTURE_CONTROL_TOPIC", "posture/+/control")
	cfg.Posture.Topics.Feedback = getEnv("POSTURE_FEEDBACK_TOPIC", "posture/%s/feedback")

	cfg.Posture.Defaults.ThresholdDeg = getEnvFloat("POSTURE_DEFAULT_THRESHOLD_DEG", 15)
	cfg.Posture.Defaults.AlertDelaySec = getEnvInt("POSTURE_DEFAULT_ALERT_DELAY_SEC", 5)
	cfg.Posture.Defaults.HapticsEnabled = getEnv("POSTURE_DEFAULT_HAPTICS", "true") == "true"
	cfg.Posture.Defaults.SoundEnabled = getEnv("POSTURE_DEFAULT_SOUND", "false") == "true"

	cfg.Posture.Bounds.ThresholdMinDeg = getEnvFloat("POSTURE_THRESHOLD_MIN_DEG", 5)
	cfg.Posture.Bounds.ThresholdMaxDeg = getEnvFloat("POSTURE_THRESHOLD_MAX_DEG", 45)
	cfg.Posture.Bounds.AlertDelayMinSec = getEnvInt("POSTURE_ALERT_DELAY_MIN_SEC", 3)
	cfg.Posture.Bounds.AlertDelayMaxSec = getEnvInt("POSTURE_ALERT_DELAY_MAX_SEC", 60)

	cfg.Posture.SlouchExtraMs = 5000

	cfg.Posture.Cache.LiveKeyPrefix = getEnv("POSTURE_CACHE_LIVE_PREFIX", "posture:device:")
	cfg.Posture.Cache.LiveSuffix = ":live"
	cfg.Posture.Cache.LiveTTL = 30
	cfg.Posture.Cache.SettingsTTL = 60
	cfg.Posture.Cache.SettingsSuffix = ":settings"

	cfg.Posture.SessionStream = getEnv("POSTURE_SESSION_STREAM", "posture:session:stream")

	cfg.Posture.SoundLoaded = getEnv("POSTURE_SOUND_LOADED", "true") == "true"

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

// ClampThreshold 将阈值钳制到配置边界内
func (c *Config) ClampThreshold(thresholdDeg float64) float64 {
	if thresholdDeg < c.Posture.Bounds.ThresholdMinDeg {
		return c.Posture.Bounds.ThresholdMinDeg
	}
	if thresholdDeg > c.Posture.Bounds.ThresholdMaxDeg {
		return c.Posture.Bounds.ThresholdMaxDeg
	}
	return thresholdDeg
}

// ClampAlertDelay 将报警延迟钳制到配置边界内
func (c *Config) ClampAlertDelay(alertDelaySec int) int {
	if alertDelaySec < c.Posture.Bounds.AlertDelayMinSec {
		return c.Posture.Bounds.AlertDelayMinSec
	}
	if alertDelaySec > c.Posture.Bounds.AlertDelayMaxSec {
		return c.Posture.Bounds.AlertDelayMaxSec
	}
	return alertDelaySec
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.Atoi(value); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			return v
		}
	}
	return defaultValue
}
