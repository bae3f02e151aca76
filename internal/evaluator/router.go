package evaluator

import (
	"strings"

	"senior-connect/internal/config"
	"senior-connect/internal/models"
	"senior-connect/internal/state"

	"go.uber.org/zap"
)

// Route 分类事件并分派到对应规则
// 不返回错误：无法识别的事件只记录原始日志
func (e *Evaluator) Route(ev models.Event) {
	rules := e.Rules()
	signal := models.Classify(ev)
	var out outbox

	switch ev.SensorType {
	case models.SensorPIR:
		out.log(ev.RawRecord())
		e.routeMotion(rules, ev, signal, &out)

	case models.SensorProximity:
		out.log(ev.RawRecord())
		room, ok := rules.Rooms.DoorRoom(ev.Location)
		if !ok {
			e.logger.Debug("Proximity event from unmapped door",
				zap.String("location", ev.Location),
				zap.String("value", ev.Value),
			)
			break
		}
		e.door.Evaluate(rules, ev, signal, room, &out)

	case models.SensorHumidity:
		out.log(ev.RawRecord())
		e.bathroom.OnHumidity(rules, ev, &out)

	case models.SensorMMWaveVitals:
		if signal == models.SignalFall {
			out.log(ev.RawRecord())
			e.fall.OnSignature(rules, ev, rules.Rooms.Bedroom, &out)
			break
		}
		e.bedroom.Evaluate(rules, ev, signal, &out)

	case models.SensorMMWavePresence:
		if signal == models.SignalFall {
			out.log(ev.RawRecord())
			e.fall.OnSignature(rules, ev, ev.Location, &out)
			break
		}
		out.log(presenceRecord(ev, signal))

	case models.SensorCamera:
		out.log(ev.RawRecord())
		out.capture(ev.ImageCapture())

	default:
		// Temperature 及未知类型只透传
		out.log(ev.RawRecord())
		if signal == models.SignalUnrecognized {
			e.logger.Debug("Event passed through without rules",
				zap.String("type", ev.RawType),
				zap.String("location", ev.Location),
			)
		}
	}

	e.flush(&out)
}

// routeMotion PIR 事件：跌倒取消/恢复 + 占用房间的动作计时
func (e *Evaluator) routeMotion(rules *config.Rules, ev models.Event, signal models.Signal, out *outbox) {
	if signal != models.SignalMotion && signal != models.SignalRecovery {
		return
	}

	e.withRoom(rules, ev.Location, func(r *state.RoomState) {
		e.fall.OnMotion(rules, r, ev.Time, out)

		if !r.Occupied {
			e.logger.Debug("Motion in unoccupied room ignored", zap.String("location", r.Location))
			return
		}
		e.bathroom.OnMotion(r, ev.Time)
	})
}

// presenceRecord 普通 mmWave 在场记录：PRESENCE / NO_PRESENCE / 原值
func presenceRecord(ev models.Event, signal models.Signal) models.LogRecord {
	rec := ev.RawRecord()
	switch signal {
	case models.SignalPresence:
		rec.Value = "PRESENCE"
	case models.SignalNoPresence:
		rec.Value = "NO_PRESENCE"
	default:
		rec.Value = strings.ToUpper(ev.Value)
		if rec.Value == "" {
			rec.Value = "UNKNOWN"
		}
	}
	if rec.Status == "" {
		rec.Status = "Active"
	}
	return rec
}
