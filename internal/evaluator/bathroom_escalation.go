package evaluator

import (
	"time"

	"senior-connect/internal/config"
	"senior-connect/internal/models"
	"senior-connect/internal/state"

	"go.uber.org/zap"
)

// BathroomEvaluator 卫生间规则
// 两个独立计时：无动作升级（minimal -> moderate -> critical）与高湿度持续
type BathroomEvaluator struct {
	evaluator *Evaluator
}

// NewBathroomEvaluator 创建卫生间评估器
func NewBathroomEvaluator(evaluator *Evaluator) *BathroomEvaluator {
	return &BathroomEvaluator{
		evaluator: evaluator,
	}
}

// OnMotion 占用期间的动作：重置无动作计时；未到 critical 时级别归零
func (b *BathroomEvaluator) OnMotion(r *state.RoomState, now time.Time) {
	r.LastMotionTime = now
	if !r.CriticalSent {
		r.AlertLevel = state.LevelNone
	}
	b.evaluator.logger.Debug("Motion timer reset", zap.String("location", r.Location))
}

// OnHumidity 记录湿度读数，上升沿开始计时，回落到阈值以下时清除计时与一次性标记
func (b *BathroomEvaluator) OnHumidity(rules *config.Rules, ev models.Event, out *outbox) {
	if ev.Numeric == nil {
		return
	}
	humidity := *ev.Numeric

	b.evaluator.withRoom(rules, ev.Location, func(r *state.RoomState) {
		r.Humidity = &humidity
		if r.Kind != state.RoomBathroom {
			return
		}

		if humidity > rules.Bathroom.HumidityThreshold {
			if r.HumidityGate.Arm(ev.Time) {
				b.evaluator.logger.Info("High humidity detected, timer started",
					zap.String("location", r.Location),
					zap.Float64("humidity", humidity),
				)
			}
			return
		}

		if r.HumidityGate.Pending() || r.HumidityAlertSent {
			b.evaluator.logger.Info("Humidity normalized, timer reset",
				zap.String("location", r.Location),
				zap.Float64("humidity", humidity),
			)
		}
		r.HumidityGate.Cancel()
		r.HumidityAlertSent = false
	})
}

// Tick 占用期间按时间评估（调用方已持有房间锁）
func (b *BathroomEvaluator) Tick(rules *config.Rules, r *state.RoomState, now time.Time, out *outbox) {
	if !r.Occupied {
		return
	}

	noMotion := now.Sub(r.LastMotionTime)
	br := rules.Bathroom

	// 高湿度：持续超过 HumidityDuration，且最近 HumidityMotionQuiet 内无动作
	if r.HumidityGate.Pending() && !r.HumidityAlertSent &&
		r.HumidityGate.Held(now) > br.HumidityDuration && noMotion > br.HumidityMotionQuiet {
		r.HumidityAlertSent = true
		out.alert(b.evaluator.builder.BathroomHumidity(r.Location, br.HumidityThreshold, r.HumidityGate.Held(now), now))
	}

	// 无动作升级：每次 tick 最多前进一级
	switch {
	case r.AlertLevel == state.LevelNone && noMotion >= br.MinimalAfter:
		r.AlertLevel = state.LevelMinimal
		out.alert(b.evaluator.builder.BathroomNoMotion(r.Location, models.SeverityMinimal, br.MinimalAfter, now))

	case r.AlertLevel == state.LevelMinimal && noMotion >= br.ModerateAfter:
		r.AlertLevel = state.LevelModerate
		out.alert(b.evaluator.builder.BathroomNoMotion(r.Location, models.SeverityModerate, br.ModerateAfter, now))

	case r.AlertLevel == state.LevelModerate && noMotion >= br.CriticalAfter && !r.CriticalSent:
		r.AlertLevel = state.LevelCritical
		r.CriticalSent = true
		out.alert(b.evaluator.builder.BathroomNoMotion(r.Location, models.SeverityCritical, br.CriticalAfter, now))
	}
}
