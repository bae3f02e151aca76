package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// StreamMessage Redis Streams 消息
type StreamMessage struct {
	Stream string
	ID     string
	Values map[string]interface{}
}

// PublishToStream 发布消息到 Redis Streams
// maxLen > 0 时按近似长度裁剪，避免日志流无限增长
func PublishToStream(ctx context.Context, client *redis.Client, stream string, maxLen int64, values map[string]interface{}) (string, error) {
	streamValues := make(map[string]interface{}, len(values))
	for k, v := range values {
		strValue, err := toStreamValue(v)
		if err != nil {
			return "", fmt.Errorf("failed to encode field %s: %w", k, err)
		}
		streamValues[k] = strValue
	}

	args := &redis.XAddArgs{
		Stream: stream,
		Values: streamValues,
	}
	if maxLen > 0 {
		args.MaxLen = maxLen
		args.Approx = true
	}

	return client.XAdd(ctx, args).Result()
}

// PublishJSONToStream 发布 JSON 消息到 Redis Streams（data + timestamp 两个字段）
func PublishJSONToStream(ctx context.Context, client *redis.Client, stream string, maxLen int64, data interface{}) (string, error) {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return "", err
	}

	return PublishToStream(ctx, client, stream, maxLen, map[string]interface{}{
		"data":      string(jsonBytes),
		"timestamp": time.Now().Unix(),
	})
}

// ReadRange 读取流中的全部消息（XRANGE - +），用于调试和测试
func ReadRange(ctx context.Context, client *redis.Client, stream string) ([]StreamMessage, error) {
	msgs, err := client.XRange(ctx, stream, "-", "+").Result()
	if err != nil {
		return nil, err
	}

	out := make([]StreamMessage, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, StreamMessage{
			Stream: stream,
			ID:     msg.ID,
			Values: msg.Values,
		})
	}
	return out, nil
}

func toStreamValue(v interface{}) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case []byte:
		return string(val), nil
	case int:
		return strconv.Itoa(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(val), nil
	default:
		jsonBytes, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(jsonBytes), nil
	}
}
