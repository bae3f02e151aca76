package consumer

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// TickFunc 周期任务
type TickFunc func(ctx context.Context, now time.Time) error

// Ticker 周期任务循环（升级计时、快照、报告）
type Ticker struct {
	name     string
	interval time.Duration
	fn       TickFunc
	now      func() time.Time
	logger   *zap.Logger
}

// NewTicker 创建周期任务
func NewTicker(name string, interval time.Duration, fn TickFunc, logger *zap.Logger) *Ticker {
	return &Ticker{
		name:     name,
		interval: interval,
		fn:       fn,
		now:      time.Now,
		logger:   logger.With(zap.String("ticker", name)),
	}
}

// WithClock 替换时钟（测试用）
func (t *Ticker) WithClock(now func() time.Time) *Ticker {
	t.now = now
	return t
}

// Run 按周期执行，阻塞到 ctx 取消
// 错过的周期不补执行，下一次执行时按当前时间判断
func (t *Ticker) Run(ctx context.Context) {
	if t.interval <= 0 {
		t.logger.Warn("Ticker disabled, non-positive interval", zap.Duration("interval", t.interval))
		return
	}
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.logger.Info("Ticker started", zap.Duration("interval", t.interval))

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("Ticker stopped")
			return
		case <-ticker.C:
			t.RunOnce(ctx)
		}
	}
}

// RunOnce 执行一次；错误与 panic 只记录
func (t *Ticker) RunOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("Ticker panic", zap.Any("panic", r))
		}
	}()

	if err := t.fn(ctx, t.now()); err != nil {
		t.logger.Error("Ticker run failed", zap.Error(err))
	}
}
