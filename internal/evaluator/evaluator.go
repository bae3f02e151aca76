package evaluator

import (
	"sync/atomic"
	"time"

	"senior-connect/internal/config"
	"senior-connect/internal/models"
	"senior-connect/internal/state"

	"go.uber.org/zap"
)

// Emitter 评估结果的输出端
// 实现必须是非阻塞的（入队即返回），评估器不关心投递结果
type Emitter interface {
	EmitLog(rec models.LogRecord)
	EmitAlert(alert models.Alert)
}

// CaptureEmitter 可选：接收摄像头图像（同样必须非阻塞）
type CaptureEmitter interface {
	EmitCapture(c models.Capture)
}

// Evaluator 事件关联评估器
// 事件路径（Route）与定时路径（Tick）共享同一个 Store，按房间加锁
type Evaluator struct {
	rules   atomic.Pointer[config.Rules]
	store   *state.Store
	emitter Emitter
	builder *AlertBuilder
	logger  *zap.Logger

	door     *DoorEvaluator     // 门/占用状态机
	bathroom *BathroomEvaluator // 卫生间无动作升级 + 高湿度
	bedroom  *BedroomEvaluator  // 卧室体征确认
	fall     *FallEvaluator     // 跌倒确认
}

// NewEvaluator 创建评估器
func NewEvaluator(rules config.Rules, store *state.Store, emitter Emitter, logger *zap.Logger) *Evaluator {
	e := &Evaluator{
		store:   store,
		emitter: emitter,
		builder: NewAlertBuilder(),
		logger:  logger,
	}
	e.SetRules(&rules)

	e.door = NewDoorEvaluator(e)
	e.bathroom = NewBathroomEvaluator(e)
	e.bedroom = NewBedroomEvaluator(e)
	e.fall = NewFallEvaluator(e)

	return e
}

// Rules 当前生效的规则
func (e *Evaluator) Rules() *config.Rules {
	return e.rules.Load()
}

// SetRules 原子替换规则（热加载）
func (e *Evaluator) SetRules(r *config.Rules) {
	clone := r.Clone()
	e.rules.Store(&clone)
}

// Tick 定时评估：卫生间升级、卧室体征确认、跌倒确认窗口
// 错过的 tick 只会推迟判断，不会丢失
func (e *Evaluator) Tick(now time.Time) {
	rules := e.Rules()
	var out outbox

	e.store.ForEach(func(r *state.RoomState) {
		r.Kind = roomKind(rules, r.Location)
		switch r.Kind {
		case state.RoomBathroom:
			e.bathroom.Tick(rules, r, now, &out)
		case state.RoomBedroom:
			e.bedroom.Tick(rules, r, now, &out)
		}
		e.fall.Tick(rules, r, now, &out)
	})

	e.flush(&out)
}

// roomKind 按规范房间名精确匹配
func roomKind(rules *config.Rules, location string) state.RoomKind {
	switch location {
	case rules.Rooms.Bathroom:
		return state.RoomBathroom
	case rules.Rooms.Bedroom:
		return state.RoomBedroom
	default:
		return state.RoomGeneric
	}
}

// withRoom 在房间锁内执行，并同步房间类型
func (e *Evaluator) withRoom(rules *config.Rules, location string, fn func(*state.RoomState)) {
	e.store.With(location, func(r *state.RoomState) {
		r.Kind = roomKind(rules, location)
		fn(r)
	})
}

// outbox 锁内收集输出，解锁后统一发出
type outbox struct {
	logs     []models.LogRecord
	alerts   []models.Alert
	captures []models.Capture
}

func (o *outbox) log(rec models.LogRecord) {
	o.logs = append(o.logs, rec)
}

func (o *outbox) capture(c models.Capture) {
	o.captures = append(o.captures, c)
}

// alert 告警同时写一条 System 日志
func (o *outbox) alert(a models.Alert) {
	o.alerts = append(o.alerts, a)
	o.logs = append(o.logs, a.LogRecord())
}

func (e *Evaluator) flush(o *outbox) {
	for _, rec := range o.logs {
		e.emitter.EmitLog(rec)
	}
	for _, a := range o.alerts {
		e.logger.Info("Alert emitted",
			zap.String("alert_id", a.ID),
			zap.String("kind", string(a.Kind)),
			zap.String("severity", string(a.Severity)),
			zap.String("location", a.Location),
		)
		e.emitter.EmitAlert(a)
	}
	if len(o.captures) == 0 {
		return
	}
	ce, ok := e.emitter.(CaptureEmitter)
	if !ok {
		return
	}
	for _, c := range o.captures {
		ce.EmitCapture(c)
	}
}
