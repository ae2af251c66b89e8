package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"posture-engine/internal/config"
	"posture-engine/internal/consumer"
	"posture-engine/internal/detector"
	"posture-engine/internal/engine"
	"posture-engine/internal/models"
	"posture-engine/internal/repository"

	"posture-engine/common/database"
	mqttcommon "posture-engine/common/mqtt"
	rediscommon "posture-engine/common/redis"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FeedbackPublisher 反馈意图发布接口（生产实现为 MQTT 客户端）
type FeedbackPublisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// TrackerService 姿态跟踪服务（整合各层）
// 每个设备一条跟踪管线；采样投递、会话启停与设置变更经由同一把锁串行化，
// 避免重置与迟到采样竞争
type TrackerService struct {
	config      *config.Config
	logger      *zap.Logger
	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *mqttcommon.Client

	sessionsRepo   *repository.SessionsRepository
	settingsRepo   *repository.SettingsRepository
	cacheManager   *consumer.CacheManager
	motionConsumer *consumer.MotionConsumer
	publisher      FeedbackPublisher

	mu       sync.Mutex
	trackers map[string]*engine.Tracker
}

// NewTrackerService 创建姿态跟踪服务
func NewTrackerService(cfg *config.Config, logger *zap.Logger) (*TrackerService, error) {
	// 1. 连接数据库
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// 2. 连接 Redis
	redisClient := rediscommon.NewRedisClient(&cfg.Redis)
	if err := rediscommon.Ping(context.Background(), redisClient); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	s := &TrackerService{
		config:       cfg,
		logger:       logger,
		db:           db,
		redisClient:  redisClient,
		sessionsRepo: repository.NewSessionsRepository(db, logger),
		settingsRepo: repository.NewSettingsRepository(db, logger),
		cacheManager: consumer.NewCacheManager(cfg, redisClient, logger),
		trackers:     make(map[string]*engine.Tracker),
	}

	// 3. 连接 MQTT（断开时强制结束所有进行中的会话）
	mqttClient, err := mqttcommon.NewClient(&cfg.MQTT, s.handleConnectionLost)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}
	s.mqttClient = mqttClient
	s.publisher = mqttClient

	// 4. 创建采样消费者
	s.motionConsumer = consumer.NewMotionConsumer(cfg, mqttClient, s, logger)

	return s, nil
}

// Start 启动服务（阻塞直到上下文取消）
func (s *TrackerService) Start(ctx context.Context) error {
	s.logger.Info("Starting posture tracker service",
		zap.String("tenant_id", s.config.Posture.TenantID),
	)

	if err := s.motionConsumer.Start(); err != nil {
		return fmt.Errorf("failed to start motion consumer: %w", err)
	}

	<-ctx.Done()

	// 优雅关闭：结束所有进行中的会话并尽力持久化
	s.stopAllSessions("service shutdown")
	return nil
}

// Stop 停止服务
func (s *TrackerService) Stop() error {
	s.logger.Info("Stopping posture tracker service")

	if s.motionConsumer != nil {
		if err := s.motionConsumer.Stop(); err != nil {
			s.logger.Error("Error stopping motion consumer", zap.Error(err))
		}
	}

	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}

	if s.redisClient != nil {
		if err := rediscommon.Close(s.redisClient); err != nil {
			s.logger.Error("Error closing redis connection", zap.Error(err))
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Error closing database connection", zap.Error(err))
		}
	}

	s.logger.Info("Posture tracker service stopped")
	return nil
}

// OnMotionSample 处理一个采样（实现 consumer.SampleSink）
func (s *TrackerService) OnMotionSample(deviceID string, sample models.MotionSample) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tracker, ok := s.trackers[deviceID]
	if !ok || !tracker.Active() {
		// 无进行中会话的采样直接丢弃
		s.logger.Debug("Dropping sample without active session",
			zap.String("device_id", deviceID),
		)
		return
	}

	outcome, ok := tracker.HandleSample(sample)
	if !ok {
		return
	}

	// 更新实时统计缓存（尽力而为）
	ctx := context.Background()
	snapshot := tracker.Snapshot(sample.TimestampMs)
	if err := s.cacheManager.UpdateLiveSnapshot(ctx, deviceID, snapshot); err != nil {
		s.logger.Warn("Failed to update live snapshot",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
	}

	// 发布报警动作意图
	if outcome.Action != nil {
		s.publishFeedback(deviceID, outcome.Action)
	}
}

// OnControl 处理控制命令（实现 consumer.SampleSink）
func (s *TrackerService) OnControl(deviceID string, cmd models.ControlCommand) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch cmd.Action {
	case models.ControlActionStart:
		s.startSession(deviceID, cmd.TimestampMs)
	case models.ControlActionStop:
		s.stopSession(deviceID, cmd.TimestampMs, "control")
	case models.ControlActionCalibrate:
		s.calibrate(deviceID, cmd)
	}
}

// startSession 开启跟踪会话（加载最新设置）
// 调用方必须持有 s.mu
func (s *TrackerService) startSession(deviceID string, nowMs int64) {
	ctx := context.Background()

	detectorCfg, feedback := s.loadSettings(ctx, deviceID)

	tracker, ok := s.trackers[deviceID]
	if !ok {
		var err error
		tracker, err = engine.NewTracker(deviceID, detectorCfg, feedback)
		if err != nil {
			s.logger.Error("Failed to create tracker",
				zap.String("device_id", deviceID),
				zap.Error(err),
			)
			return
		}
		s.trackers[deviceID] = tracker
	} else {
		// 设置变更：保留校准基线，清除偏离计时
		if err := tracker.ApplySettings(detectorCfg, feedback); err != nil {
			s.logger.Error("Failed to apply settings",
				zap.String("device_id", deviceID),
				zap.Error(err),
			)
			return
		}
	}

	if tracker.Active() {
		// 重复 start 视为重启：先结束旧会话
		s.finalizeAndPersist(tracker, nowMs, "restart")
	}

	tracker.Start(nowMs)

	s.logger.Info("Tracking session started",
		zap.String("device_id", deviceID),
		zap.Int64("started_at_ms", nowMs),
		zap.Float64("threshold_deg", detectorCfg.ThresholdDeg),
		zap.Int64("warning_ms", detectorCfg.WarningMs),
		zap.Int64("slouch_ms", detectorCfg.SlouchMs),
	)
}

// stopSession 结束跟踪会话
// 调用方必须持有 s.mu
func (s *TrackerService) stopSession(deviceID string, nowMs int64, reason string) {
	tracker, ok := s.trackers[deviceID]
	if !ok || !tracker.Active() {
		s.logger.Debug("Stop ignored, no active session",
			zap.String("device_id", deviceID),
		)
		return
	}

	s.finalizeAndPersist(tracker, nowMs, reason)
}

// calibrate 以命令携带的 pitch 校准基线
// 调用方必须持有 s.mu
func (s *TrackerService) calibrate(deviceID string, cmd models.ControlCommand) {
	if cmd.PitchDeg == nil {
		s.logger.Warn("Calibrate command without pitch",
			zap.String("device_id", deviceID),
		)
		return
	}

	tracker, ok := s.trackers[deviceID]
	if !ok {
		detectorCfg, feedback := s.loadSettings(context.Background(), deviceID)
		var err error
		tracker, err = engine.NewTracker(deviceID, detectorCfg, feedback)
		if err != nil {
			s.logger.Error("Failed to create tracker",
				zap.String("device_id", deviceID),
				zap.Error(err),
			)
			return
		}
		s.trackers[deviceID] = tracker
	}

	baseline := tracker.Calibrate(*cmd.PitchDeg)
	s.logger.Info("Baseline calibrated",
		zap.String("device_id", deviceID),
		zap.Float64("baseline_pitch", baseline),
	)
}

// finalizeAndPersist 结束会话、清缓存并尽力持久化汇总
// 持久化失败只告警，会话内存数据随之丢弃（不做重试队列）
// 调用方必须持有 s.mu
func (s *TrackerService) finalizeAndPersist(tracker *engine.Tracker, nowMs int64, reason string) {
	deviceID := tracker.DeviceID()
	summary := tracker.Stop(nowMs)

	ctx := context.Background()
	if err := s.cacheManager.ClearLiveSnapshot(ctx, deviceID); err != nil {
		s.logger.Warn("Failed to clear live snapshot",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
	}

	if summary == nil {
		// 零时长会话不落库
		s.logger.Info("Session ended without record",
			zap.String("device_id", deviceID),
			zap.String("reason", reason),
		)
		return
	}

	summary.SessionID = uuid.New().String()
	summary.TenantID = s.config.Posture.TenantID

	if err := s.sessionsRepo.CreateSession(ctx, s.config.Posture.TenantID, summary); err != nil {
		s.logger.Warn("Failed to persist session, dropping",
			zap.String("device_id", deviceID),
			zap.String("session_id", summary.SessionID),
			zap.Error(err),
		)
	} else {
		s.logger.Info("Session persisted",
			zap.String("device_id", deviceID),
			zap.String("session_id", summary.SessionID),
			zap.String("reason", reason),
			zap.Int("duration_seconds", summary.DurationSeconds),
			zap.Int("good_posture_pct", summary.GoodPosturePct),
			zap.Int("slouch_count", summary.SlouchCount),
		)
	}

	// 发布到 Streams 供下游统计消费（尽力而为）
	if _, err := s.cacheManager.PublishSessionSummary(ctx, summary); err != nil {
		s.logger.Warn("Failed to publish session summary",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
	}
}

// stopAllSessions 结束所有进行中的会话（断开/关闭时）
func (s *TrackerService) stopAllSessions(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nowMs := time.Now().UnixMilli()
	for _, tracker := range s.trackers {
		if tracker.Active() {
			s.finalizeAndPersist(tracker, nowMs, reason)
		}
	}
}

// handleConnectionLost MQTT 断开回调：传感器链路断开视为隐式 stop
func (s *TrackerService) handleConnectionLost(err error) {
	s.logger.Warn("MQTT connection lost, force-stopping active sessions",
		zap.Error(err),
	)
	s.stopAllSessions("connection lost")
}

// loadSettings 加载设备设置（缓存 → 数据库 → 默认值），并做边界钳制
func (s *TrackerService) loadSettings(ctx context.Context, deviceID string) (detector.Config, models.FeedbackSettings) {
	var settings *models.DeviceSettings

	cached, err := s.cacheManager.GetCachedSettings(ctx, deviceID)
	if err != nil {
		s.logger.Warn("Failed to read settings cache",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
	}
	if cached != nil {
		settings = cached
	} else {
		stored, err := s.settingsRepo.GetDeviceSettings(ctx, s.config.Posture.TenantID, deviceID)
		if err != nil {
			s.logger.Warn("Failed to load device settings, using defaults",
				zap.String("device_id", deviceID),
				zap.Error(err),
			)
		}
		if stored != nil {
			settings = stored
			if err := s.cacheManager.CacheSettings(ctx, deviceID, stored); err != nil {
				s.logger.Debug("Failed to cache settings",
					zap.String("device_id", deviceID),
					zap.Error(err),
				)
			}
		}
	}

	if settings == nil {
		settings = &models.DeviceSettings{
			DeviceID:       deviceID,
			ThresholdDeg:   s.config.Posture.Defaults.ThresholdDeg,
			AlertDelaySec:  s.config.Posture.Defaults.AlertDelaySec,
			HapticsEnabled: s.config.Posture.Defaults.HapticsEnabled,
			SoundEnabled:   s.config.Posture.Defaults.SoundEnabled,
		}
	}

	warningMs := int64(s.config.ClampAlertDelay(settings.AlertDelaySec)) * 1000
	detectorCfg := detector.Config{
		ThresholdDeg: s.config.ClampThreshold(settings.ThresholdDeg),
		WarningMs:    warningMs,
		SlouchMs:     warningMs + s.config.Posture.SlouchExtraMs,
	}

	feedback := models.FeedbackSettings{
		HapticsEnabled: settings.HapticsEnabled,
		SoundEnabled:   settings.SoundEnabled,
		SoundLoaded:    s.config.Posture.SoundLoaded,
	}

	return detectorCfg, feedback
}

// publishFeedback 将报警动作意图发布到设备反馈主题
func (s *TrackerService) publishFeedback(deviceID string, action *models.AlertAction) {
	if s.publisher == nil {
		return
	}

	payload, err := json.Marshal(action)
	if err != nil {
		s.logger.Error("Failed to marshal alert action", zap.Error(err))
		return
	}

	topic := fmt.Sprintf(s.config.Posture.Topics.Feedback, deviceID)
	if err := s.publisher.Publish(topic, s.config.MQTT.QoS, false, payload); err != nil {
		s.logger.Warn("Failed to publish feedback",
			zap.String("device_id", deviceID),
			zap.String("topic", topic),
			zap.Error(err),
		)
		return
	}

	s.logger.Info("Alert fired",
		zap.String("device_id", deviceID),
		zap.String("severity", string(action.Severity)),
		zap.String("haptic", string(action.Haptic)),
		zap.Bool("play_sound", action.PlaySound),
	)
}
