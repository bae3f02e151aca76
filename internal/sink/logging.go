package sink

import (
	"context"

	"senior-connect/internal/models"

	"go.uber.org/zap"
)

// LoggingSink 写入服务日志；其它 sink 都不可用时仍保留记录
type LoggingSink struct {
	logger *zap.Logger
}

// NewLoggingSink 创建日志 sink
func NewLoggingSink(logger *zap.Logger) *LoggingSink {
	return &LoggingSink{logger: logger}
}

// Record 记录传感器日志
func (s *LoggingSink) Record(_ context.Context, rec models.LogRecord) error {
	s.logger.Debug("Sensor record",
		zap.String("sensor_type", rec.SensorType),
		zap.String("location", rec.Location),
		zap.String("value", rec.Value),
		zap.String("status", rec.Status),
		zap.Time("timestamp", rec.Timestamp),
	)
	return nil
}

// Notify 记录告警
func (s *LoggingSink) Notify(_ context.Context, alert models.Alert) error {
	s.logger.Warn("ALERT",
		zap.String("alert_id", alert.ID),
		zap.String("severity", string(alert.Severity)),
		zap.String("location", alert.Location),
		zap.String("subject", alert.Subject),
		zap.Time("time", alert.Time),
	)
	return nil
}
