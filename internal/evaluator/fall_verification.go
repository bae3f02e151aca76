package evaluator

import (
	"time"

	"senior-connect/internal/config"
	"senior-connect/internal/models"
	"senior-connect/internal/state"

	"go.uber.org/zap"
)

// FallEvaluator 跌倒确认
// 跌倒信号只开启确认窗口；窗口内同位置 PIR 动作视为误报，窗口结束无动作则确认
type FallEvaluator struct {
	evaluator *Evaluator
}

// NewFallEvaluator 创建跌倒评估器
func NewFallEvaluator(evaluator *Evaluator) *FallEvaluator {
	return &FallEvaluator{
		evaluator: evaluator,
	}
}

// OnSignature 收到跌倒信号
func (f *FallEvaluator) OnSignature(rules *config.Rules, ev models.Event, location string, out *outbox) {
	logger := f.evaluator.logger

	f.evaluator.withRoom(rules, location, func(r *state.RoomState) {
		// 防刷：上次跌倒告警后 Cooldown 内的重复信号直接忽略
		if r.Fall.Verify.CoolingDown(ev.Time, rules.Fall.Cooldown) {
			logger.Info("Duplicate fall signature suppressed", zap.String("location", location))
			return
		}
		if r.Fall.Verify.Arm(ev.Time) {
			logger.Info("Fall signature received, verification started",
				zap.String("location", location),
				zap.Duration("verify_window", rules.Fall.VerifyWindow),
			)
		}
	})
}

// OnMotion 同位置 PIR 动作：取消待确认的跌倒，或对已确认跌倒发出恢复通知
// 调用方已持有房间锁
func (f *FallEvaluator) OnMotion(rules *config.Rules, r *state.RoomState, now time.Time, out *outbox) {
	if r.Fall.Verify.Pending() {
		r.Fall.Verify.Cancel()
		f.evaluator.logger.Info("Fall verification cancelled by motion", zap.String("location", r.Location))
	}

	if r.Fall.Confirmed {
		r.Fall.Confirmed = false
		out.alert(f.evaluator.builder.FallRecovery(r.Location, now))
	}
}

// Tick 确认窗口到期且无动作时确认跌倒（调用方已持有房间锁）
func (f *FallEvaluator) Tick(rules *config.Rules, r *state.RoomState, now time.Time, out *outbox) {
	if !r.Fall.Verify.Confirmed(now, rules.Fall.VerifyWindow) {
		return
	}

	detectedAt := r.Fall.Verify.Since()
	r.Fall.Verify.Fire(now)
	r.Fall.Confirmed = true
	out.alert(f.evaluator.builder.Fall(r.Location, detectedAt, now))
}
