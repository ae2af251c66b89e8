package repository

import (
	"context"
	"database/sql"
	"fmt"

	"posture-engine/internal/models"

	"go.uber.org/zap"
)

// SessionsRepository 会话记录仓库（posture_sessions 表）
// 每个已完成会话只写入一行，之后不再更新
type SessionsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSessionsRepository 创建会话记录仓库
func NewSessionsRepository(db *sql.DB, logger *zap.Logger) *SessionsRepository {
	return &SessionsRepository{
		db:     db,
		logger: logger,
	}
}

// CreateSession 写入已完成会话（需验证 tenant_id）
func (r *SessionsRepository) CreateSession(ctx context.Context, tenantID string, summary *models.SessionSummary) error {
	if tenantID == "" {
		return fmt.Errorf("tenant_id is required")
	}
	if summary == nil {
		return fmt.Errorf("summary is required")
	}
	if summary.SessionID == "" {
		return fmt.Errorf("session_id is required")
	}
	// 亚秒级会话取整后 duration_seconds 为 0，仍然落库；
	// 零时长会话在 Finalize 阶段就不会产生汇总
	if summary.DurationSeconds < 0 {
		return fmt.Errorf("duration_seconds must be non-negative, got %d", summary.DurationSeconds)
	}

	query := `
		INSERT INTO posture_sessions (
			session_id,
			tenant_id,
			device_id,
			started_at,
			ended_at,
			duration_seconds,
			good_posture_pct,
			slouch_count,
			avg_pitch,
			baseline_pitch,
			created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, CURRENT_TIMESTAMP
		)
	`

	_, err := r.db.ExecContext(ctx,
		query,
		summary.SessionID,
		tenantID,
		summary.DeviceID,
		summary.StartedAt,
		summary.EndedAt,
		summary.DurationSeconds,
		summary.GoodPosturePct,
		summary.SlouchCount,
		summary.AvgPitch,
		summary.BaselinePitch,
	)

	if err != nil {
		return fmt.Errorf("failed to create posture session: %w", err)
	}

	return nil
}

// ListSessions 查询设备最近的会话记录（按结束时间倒序）
func (r *SessionsRepository) ListSessions(ctx context.Context, tenantID, deviceID string, limit int) ([]*models.SessionSummary, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenant_id is required")
	}
	if deviceID == "" {
		return nil, fmt.Errorf("device_id is required")
	}
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT
			session_id,
			tenant_id,
			device_id,
			started_at,
			ended_at,
			duration_seconds,
			good_posture_pct,
			slouch_count,
			avg_pitch,
			baseline_pitch,
			created_at
		FROM posture_sessions
		WHERE tenant_id = $1
		  AND device_id = $2
		ORDER BY ended_at DESC
		LIMIT $3
	`

	rows, err := r.db.QueryContext(ctx, query, tenantID, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query posture sessions: %w", err)
	}
	defer rows.Close()

	sessions := []*models.SessionSummary{}
	for rows.Next() {
		var s models.SessionSummary
		var avgPitch, baselinePitch sql.NullFloat64

		err := rows.Scan(
			&s.SessionID,
			&s.TenantID,
			&s.DeviceID,
			&s.StartedAt,
			&s.EndedAt,
			&s.DurationSeconds,
			&s.GoodPosturePct,
			&s.SlouchCount,
			&avgPitch,
			&baselinePitch,
			&s.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan posture session: %w", err)
		}

		// 处理可空字段
		if avgPitch.Valid {
			s.AvgPitch = &avgPitch.Float64
		}
		if baselinePitch.Valid {
			s.BaselinePitch = &baselinePitch.Float64
		}

		sessions = append(sessions, &s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate posture sessions: %w", err)
	}

	return sessions, nil
}
