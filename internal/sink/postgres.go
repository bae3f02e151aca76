package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"senior-connect/internal/models"

	"go.uber.org/zap"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS alarm_events (
	event_id     UUID PRIMARY KEY,
	kind         TEXT NOT NULL,
	severity     TEXT NOT NULL,
	location     TEXT NOT NULL,
	subject      TEXT NOT NULL,
	body         TEXT NOT NULL,
	metadata     JSONB NOT NULL DEFAULT '{}',
	triggered_at TIMESTAMPTZ NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS sensor_log (
	id          BIGSERIAL PRIMARY KEY,
	sensor_type TEXT NOT NULL,
	location    TEXT NOT NULL,
	value       TEXT NOT NULL,
	status      TEXT NOT NULL,
	logged_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sensor_log_logged_at ON sensor_log (logged_at);
`

// PostgresSink 告警与传感器日志落库
type PostgresSink struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresSink 创建 PostgreSQL sink
func NewPostgresSink(db *sql.DB, logger *zap.Logger) *PostgresSink {
	return &PostgresSink{
		db:     db,
		logger: logger,
	}
}

// EnsureSchema 建表（幂等）
func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// Record 写入 sensor_log
func (s *PostgresSink) Record(ctx context.Context, rec models.LogRecord) error {
	query := `
		INSERT INTO sensor_log (sensor_type, location, value, status, logged_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.ExecContext(ctx, query,
		rec.SensorType,
		rec.Location,
		rec.Value,
		rec.Status,
		rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert sensor log: %w", err)
	}
	return nil
}

// Notify 写入 alarm_events（event_id 重复时忽略）
func (s *PostgresSink) Notify(ctx context.Context, alert models.Alert) error {
	metadataJSON := "{}"
	if len(alert.Metadata) > 0 {
		b, err := json.Marshal(alert.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		metadataJSON = string(b)
	}

	query := `
		INSERT INTO alarm_events (event_id, kind, severity, location, subject, body, metadata, triggered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (event_id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		alert.ID,
		string(alert.Kind),
		string(alert.Severity),
		alert.Location,
		alert.Subject,
		alert.Body,
		metadataJSON,
		alert.Time,
	)
	if err != nil {
		return fmt.Errorf("failed to insert alarm event: %w", err)
	}

	s.logger.Debug("Alarm event stored", zap.String("event_id", alert.ID))
	return nil
}
