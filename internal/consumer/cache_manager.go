package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"posture-engine/internal/config"
	"posture-engine/internal/models"

	rediscommon "posture-engine/common/redis"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// CacheManager Redis 缓存管理器（实时统计与设置缓存）
type CacheManager struct {
	config      *config.Config
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewCacheManager 创建缓存管理器
func NewCacheManager(
	cfg *config.Config,
	redisClient *redis.Client,
	logger *zap.Logger,
) *CacheManager {
	return &CacheManager{
		config:      cfg,
		redisClient: redisClient,
		logger:      logger,
	}
}

// liveKey 构建实时统计缓存键
func (c *CacheManager) liveKey(deviceID string) string {
	return fmt.Sprintf("%s%s%s",
		c.config.Posture.Cache.LiveKeyPrefix,
		deviceID,
		c.config.Posture.Cache.LiveSuffix,
	)
}

// settingsKey 构建设置缓存键
func (c *CacheManager) settingsKey(deviceID string) string {
	return fmt.Sprintf("%s%s%s",
		c.config.Posture.Cache.LiveKeyPrefix,
		deviceID,
		c.config.Posture.Cache.SettingsSuffix,
	)
}

// UpdateLiveSnapshot 写入进行中会话的实时统计（带 TTL，供 App 端轮询展示）
func (c *CacheManager) UpdateLiveSnapshot(ctx context.Context, deviceID string, snapshot models.SessionSnapshot) error {
	jsonData, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal live snapshot: %w", err)
	}

	key := c.liveKey(deviceID)
	err = c.redisClient.Set(
		ctx,
		key,
		jsonData,
		time.Duration(c.config.Posture.Cache.LiveTTL)*time.Second,
	).Err()

	if err != nil {
		return fmt.Errorf("failed to set live snapshot: %w", err)
	}

	c.logger.Debug("Updated live snapshot",
		zap.String("device_id", deviceID),
		zap.String("key", key),
	)

	return nil
}

// GetLiveSnapshot 读取实时统计
func (c *CacheManager) GetLiveSnapshot(ctx context.Context, deviceID string) (*models.SessionSnapshot, error) {
	val, err := c.redisClient.Get(ctx, c.liveKey(deviceID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("live snapshot not found for device: %s", deviceID)
		}
		return nil, fmt.Errorf("failed to get live snapshot: %w", err)
	}

	var snapshot models.SessionSnapshot
	if err := json.Unmarshal([]byte(val), &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal live snapshot: %w", err)
	}

	return &snapshot, nil
}

// ClearLiveSnapshot 会话结束时清除实时统计
func (c *CacheManager) ClearLiveSnapshot(ctx context.Context, deviceID string) error {
	if err := c.redisClient.Del(ctx, c.liveKey(deviceID)).Err(); err != nil {
		return fmt.Errorf("failed to clear live snapshot: %w", err)
	}
	return nil
}

// CacheSettings 缓存设备设置（带 TTL，减少 settings 表查询）
func (c *CacheManager) CacheSettings(ctx context.Context, deviceID string, settings *models.DeviceSettings) error {
	jsonData, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	err = c.redisClient.Set(
		ctx,
		c.settingsKey(deviceID),
		jsonData,
		time.Duration(c.config.Posture.Cache.SettingsTTL)*time.Second,
	).Err()

	if err != nil {
		return fmt.Errorf("failed to cache settings: %w", err)
	}

	return nil
}

// GetCachedSettings 读取缓存的设备设置（未命中返回 (nil, nil)）
func (c *CacheManager) GetCachedSettings(ctx context.Context, deviceID string) (*models.DeviceSettings, error) {
	val, err := c.redisClient.Get(ctx, c.settingsKey(deviceID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cached settings: %w", err)
	}

	var settings models.DeviceSettings
	if err := json.Unmarshal([]byte(val), &settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached settings: %w", err)
	}

	return &settings, nil
}

// PublishSessionSummary 将已完成会话发布到 Redis Streams（供下游统计服务消费）
func (c *CacheManager) PublishSessionSummary(ctx context.Context, summary *models.SessionSummary) (string, error) {
	streamID, err := rediscommon.PublishJSONToStream(ctx, c.redisClient, c.config.Posture.SessionStream, summary)
	if err != nil {
		return "", fmt.Errorf("failed to publish session summary to stream: %w", err)
	}

	c.logger.Debug("Published session summary to stream",
		zap.String("device_id", summary.DeviceID),
		zap.String("session_id", summary.SessionID),
		zap.String("stream_id", streamID),
	)

	return streamID, nil
}
