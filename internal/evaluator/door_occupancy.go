package evaluator

import (
	"senior-connect/internal/config"
	"senior-connect/internal/models"
	"senior-connect/internal/state"

	"go.uber.org/zap"
)

// DoorEvaluator 门/占用状态机
// Clear -> Entering(去抖) -> Occupied -> Exiting(去抖 + 最短停留) -> Clear
type DoorEvaluator struct {
	evaluator *Evaluator
}

// NewDoorEvaluator 创建门状态评估器
func NewDoorEvaluator(evaluator *Evaluator) *DoorEvaluator {
	return &DoorEvaluator{
		evaluator: evaluator,
	}
}

// Evaluate 处理门传感器信号，room 为门所属房间
func (d *DoorEvaluator) Evaluate(rules *config.Rules, ev models.Event, signal models.Signal, room string, out *outbox) {
	logger := d.evaluator.logger
	now := ev.Time

	d.evaluator.withRoom(rules, room, func(r *state.RoomState) {
		switch signal {
		case models.SignalDoorEnter:
			if r.Occupied {
				logger.Debug("Enter ignored, room already occupied", zap.String("room", room))
				return
			}
			if now.Before(r.DoorDebounceUntil) {
				logger.Debug("Enter ignored, door debounce", zap.String("room", room))
				return
			}

			r.Occupied = true
			r.EntryTime = now
			r.LastMotionTime = now
			r.DoorDebounceUntil = now.Add(rules.DebounceWindow)
			r.ResetEscalation()

			logger.Info("Room ENTER", zap.String("room", room), zap.String("door", ev.Location))
			out.log(transitionRecord(ev, "ENTER", room))

		case models.SignalDoorExit:
			if !r.Occupied {
				// 重放的 EXIT：无状态变化
				logger.Debug("Exit ignored, room already clear", zap.String("room", room))
				return
			}
			if now.Before(r.DoorDebounceUntil) {
				logger.Debug("Exit ignored, door debounce", zap.String("room", room))
				return
			}
			if now.Sub(r.EntryTime) < rules.MinDwell {
				logger.Debug("Exit ignored, minimum dwell not reached", zap.String("room", room))
				return
			}

			r.Occupied = false
			r.DoorDebounceUntil = now.Add(rules.DebounceWindow)
			r.ResetEscalation()
			if r.LowVitals.Pending() {
				logger.Info("Low vitals pending cancelled, room left", zap.String("room", room))
			}
			r.LowVitals.Cancel()

			logger.Info("Room EXIT", zap.String("room", room), zap.String("door", ev.Location))
			out.log(transitionRecord(ev, "EXIT", room))

		default:
			logger.Debug("Unrecognized door value",
				zap.String("door", ev.Location),
				zap.String("value", ev.Value),
			)
		}
	})
}

func transitionRecord(ev models.Event, transition, room string) models.LogRecord {
	return models.LogRecord{
		SensorType: string(models.SensorProximity),
		Location:   ev.Location,
		Value:      transition,
		Status:     "User " + transition + "ED " + room,
		Timestamp:  ev.Time,
	}
}
