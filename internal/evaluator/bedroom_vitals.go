package evaluator

import (
	"strconv"
	"time"

	"senior-connect/internal/config"
	"senior-connect/internal/models"
	"senior-connect/internal/state"

	"go.uber.org/zap"
)

// BedroomEvaluator 卧室体征确认
// 仅在 占用 且 在床 时跟踪；低体征需持续 ConfirmWindow 才告警，告警间隔受 Cooldown 限制
type BedroomEvaluator struct {
	evaluator *Evaluator
}

// NewBedroomEvaluator 创建卧室评估器
func NewBedroomEvaluator(evaluator *Evaluator) *BedroomEvaluator {
	return &BedroomEvaluator{
		evaluator: evaluator,
	}
}

// Evaluate 处理卧室 mmWave 体征流事件
func (b *BedroomEvaluator) Evaluate(rules *config.Rules, ev models.Event, signal models.Signal, out *outbox) {
	logger := b.evaluator.logger
	location := rules.Rooms.Bedroom
	now := ev.Time

	for _, rec := range vitalsRecords(ev, signal, location) {
		out.log(rec)
	}

	b.evaluator.withRoom(rules, location, func(r *state.RoomState) {
		switch signal {
		case models.SignalBedIn:
			r.Bed = state.BedIn
		case models.SignalBedOut:
			r.Bed = state.BedOut
		}

		hasReading := ev.HeartRate != nil || ev.BreathRate != nil
		hrLow := ev.HeartRate != nil && *ev.HeartRate < rules.Bedroom.HeartRateLow
		brLow := ev.BreathRate != nil && *ev.BreathRate < rules.Bedroom.BreathRateLow
		tracking := r.Occupied && r.Bed == state.BedIn

		if tracking && (hrLow || brLow) {
			r.LowHeartRate = copyRate(ev.HeartRate)
			r.LowBreathRate = copyRate(ev.BreathRate)
			if r.LowVitals.Arm(now) {
				logger.Info("Low vitals detected, confirmation pending",
					zap.String("location", location),
					zap.Duration("confirm_window", rules.Bedroom.ConfirmWindow),
				)
				return
			}
			b.confirm(rules, r, now, out)
			return
		}

		// 无读数且仍在床时保持 pending
		if tracking && !hasReading {
			return
		}
		if r.LowVitals.Pending() {
			logger.Info("Low vitals pending cancelled",
				zap.String("location", location),
				zap.Bool("occupied", r.Occupied),
				zap.String("bed", r.Bed.String()),
			)
		}
		r.LowVitals.Cancel()
	})
}

// Tick 无新事件时按最近一次低体征读数继续确认
func (b *BedroomEvaluator) Tick(rules *config.Rules, r *state.RoomState, now time.Time, out *outbox) {
	if !r.Occupied || r.Bed != state.BedIn || !r.LowVitals.Pending() {
		return
	}
	b.confirm(rules, r, now, out)
}

// confirm 低体征持续满确认窗口后告警；冷却期内清除 pending，下一次告警需要重新确认
func (b *BedroomEvaluator) confirm(rules *config.Rules, r *state.RoomState, now time.Time, out *outbox) {
	if !r.LowVitals.Confirmed(now, rules.Bedroom.ConfirmWindow) {
		return
	}

	if r.LowVitals.CoolingDown(now, rules.Bedroom.Cooldown) {
		b.evaluator.logger.Info("Vitals alert suppressed, cooldown active", zap.String("location", r.Location))
		r.LowVitals.Cancel()
		return
	}

	hrLow := r.LowHeartRate != nil && *r.LowHeartRate < rules.Bedroom.HeartRateLow
	brLow := r.LowBreathRate != nil && *r.LowBreathRate < rules.Bedroom.BreathRateLow
	r.LowVitals.Fire(now)
	out.alert(b.evaluator.builder.BedroomVitals(r.Location, r.LowHeartRate, r.LowBreathRate, hrLow, brLow, rules.Bedroom, now))
}

func copyRate(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// vitalsRecords 体征流拆分为 mmWave(InBed) / mmWave(HR) / mmWave(BR) 记录
func vitalsRecords(ev models.Event, signal models.Signal, location string) []models.LogRecord {
	status := ev.Status
	if status == "" {
		status = "Active"
	}
	record := func(sensorType, value string) models.LogRecord {
		return models.LogRecord{
			SensorType: sensorType,
			Location:   location,
			Value:      value,
			Status:     status,
			Timestamp:  ev.Time,
		}
	}

	var recs []models.LogRecord
	switch signal {
	case models.SignalBedIn:
		recs = append(recs, record("mmWave(InBed)", state.BedIn.String()))
	case models.SignalBedOut:
		recs = append(recs, record("mmWave(InBed)", state.BedOut.String()))
	}
	if ev.HeartRate != nil {
		recs = append(recs, record("mmWave(HR)", formatRate(*ev.HeartRate)))
	}
	if ev.BreathRate != nil {
		recs = append(recs, record("mmWave(BR)", formatRate(*ev.BreathRate)))
	}
	if len(recs) == 0 {
		rec := ev.RawRecord()
		rec.Location = location
		recs = append(recs, rec)
	}
	return recs
}

func formatRate(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
