package repository

import (
	"context"
	"database/sql"
	"fmt"

	"posture-engine/internal/models"

	"go.uber.org/zap"
)

// SettingsRepository 设备姿态设置仓库（posture_settings 表）
type SettingsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSettingsRepository 创建设置仓库
func NewSettingsRepository(db *sql.DB, logger *zap.Logger) *SettingsRepository {
	return &SettingsRepository{
		db:     db,
		logger: logger,
	}
}

// GetDeviceSettings 读取设备设置（需验证 tenant_id）
// 设备无持久化设置时返回 (nil, nil)，调用方回落到默认值
func (r *SettingsRepository) GetDeviceSettings(ctx context.Context, tenantID, deviceID string) (*models.DeviceSettings, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenant_id is required")
	}
	if deviceID == "" {
		return nil, fmt.Errorf("device_id is required")
	}

	query := `
		SELECT
			device_id,
			tenant_id,
			threshold_deg,
			alert_delay_sec,
			haptics_enabled,
			sound_enabled
		FROM posture_settings
		WHERE device_id = $1
		  AND tenant_id = $2
	`

	var settings models.DeviceSettings
	err := r.db.QueryRowContext(ctx, query, deviceID, tenantID).Scan(
		&settings.DeviceID,
		&settings.TenantID,
		&settings.ThresholdDeg,
		&settings.AlertDelaySec,
		&settings.HapticsEnabled,
		&settings.SoundEnabled,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // 无设置，调用方使用默认值
		}
		return nil, fmt.Errorf("failed to get device settings: %w", err)
	}

	return &settings, nil
}

// UpsertDeviceSettings 写入设备设置（App 端设置页保存时调用）
func (r *SettingsRepository) UpsertDeviceSettings(ctx context.Context, tenantID string, settings *models.DeviceSettings) error {
	if tenantID == "" {
		return fmt.Errorf("tenant_id is required")
	}
	if settings == nil {
		return fmt.Errorf("settings is required")
	}
	if settings.DeviceID == "" {
		return fmt.Errorf("device_id is required")
	}

	query := `
		INSERT INTO posture_settings (
			device_id,
			tenant_id,
			threshold_deg,
			alert_delay_sec,
			haptics_enabled,
			sound_enabled,
			updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, CURRENT_TIMESTAMP
		)
		ON CONFLICT (device_id, tenant_id) DO UPDATE SET
			threshold_deg = EXCLUDED.threshold_deg,
			alert_delay_sec = EXCLUDED.alert_delay_sec,
			haptics_enabled = EXCLUDED.haptics_enabled,
			sound_enabled = EXCLUDED.sound_enabled,
			updated_at = CURRENT_TIMESTAMP
	`

	_, err := r.db.ExecContext(ctx,
		query,
		settings.DeviceID,
		tenantID,
		settings.ThresholdDeg,
		settings.AlertDelaySec,
		settings.HapticsEnabled,
		settings.SoundEnabled,
	)

	if err != nil {
		return fmt.Errorf("failed to upsert device settings: %w", err)
	}

	return nil
}
