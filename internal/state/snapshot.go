package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// errSnapshotNotFound 快照不存在（未写入或已过期）
var errSnapshotNotFound = errors.New("snapshot not found")

// SnapshotWriter 房间快照写入 Redis（带 TTL，进程退出后自然过期）
type SnapshotWriter struct {
	redisClient *redis.Client
	keyPrefix   string
	ttl         time.Duration
	logger      *zap.Logger
}

// NewSnapshotWriter 创建快照写入器
func NewSnapshotWriter(redisClient *redis.Client, keyPrefix string, ttl time.Duration, logger *zap.Logger) *SnapshotWriter {
	return &SnapshotWriter{
		redisClient: redisClient,
		keyPrefix:   keyPrefix,
		ttl:         ttl,
		logger:      logger,
	}
}

// Key 构建快照键
func (w *SnapshotWriter) Key(location string) string {
	return w.keyPrefix + location
}

// Write 批量写入快照
func (w *SnapshotWriter) Write(ctx context.Context, snaps []RoomSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	pipe := w.redisClient.Pipeline()
	for _, snap := range snaps {
		jsonData, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("failed to marshal snapshot %s: %w", snap.Location, err)
		}
		pipe.Set(ctx, w.Key(snap.Location), jsonData, w.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write snapshots: %w", err)
	}

	w.logger.Debug("Room snapshots written", zap.Int("count", len(snaps)))
	return nil
}

// get 读取快照
func (w *SnapshotWriter) get(ctx context.Context, location string) (*RoomSnapshot, error) {
	val, err := w.redisClient.Get(ctx, w.Key(location)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("%w: %s", errSnapshotNotFound, location)
		}
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	var snap RoomSnapshot
	if err := json.Unmarshal([]byte(val), &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snap, nil
}
