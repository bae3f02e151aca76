package sink

import (
	"context"
	"fmt"
	"time"

	rediscommon "senior-connect/common/redis"
	"senior-connect/internal/models"

	"github.com/go-redis/redis/v8"
)

// RedisStreamSink 告警与日志写入 Redis Streams（供看板等下游消费）
type RedisStreamSink struct {
	client      *redis.Client
	alertStream string
	logStream   string
	maxLen      int64
}

// NewRedisStreamSink 创建 Redis Streams sink
func NewRedisStreamSink(client *redis.Client, alertStream, logStream string, maxLen int64) *RedisStreamSink {
	return &RedisStreamSink{
		client:      client,
		alertStream: alertStream,
		logStream:   logStream,
		maxLen:      maxLen,
	}
}

// Record 日志记录以 JSON 写入日志流
func (s *RedisStreamSink) Record(ctx context.Context, rec models.LogRecord) error {
	if _, err := rediscommon.PublishJSONToStream(ctx, s.client, s.logStream, s.maxLen, rec); err != nil {
		return fmt.Errorf("failed to publish log record: %w", err)
	}
	return nil
}

// Notify 告警按字段写入告警流
func (s *RedisStreamSink) Notify(ctx context.Context, alert models.Alert) error {
	values := map[string]interface{}{
		"id":       alert.ID,
		"kind":     string(alert.Kind),
		"severity": string(alert.Severity),
		"location": alert.Location,
		"subject":  alert.Subject,
		"body":     alert.Body,
		"time":     alert.Time.Format(time.RFC3339),
	}
	if len(alert.Metadata) > 0 {
		values["metadata"] = alert.Metadata
	}

	if _, err := rediscommon.PublishToStream(ctx, s.client, s.alertStream, s.maxLen, values); err != nil {
		return fmt.Errorf("failed to publish alert: %w", err)
	}
	return nil
}
