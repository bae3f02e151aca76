package sink

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"senior-connect/internal/models"

	"go.uber.org/zap"
)

// LogSink 日志输出（表格、数据库、流）
type LogSink interface {
	Record(ctx context.Context, rec models.LogRecord) error
}

// AlertSink 告警输出（邮件、webhook、数据库）
type AlertSink interface {
	Notify(ctx context.Context, alert models.Alert) error
}

// CaptureSink 摄像头图像输出（邮件附件）
type CaptureSink interface {
	Forward(ctx context.Context, c models.Capture) error
}

type namedLogSink struct {
	name string
	sink LogSink
}

type namedAlertSink struct {
	name string
	sink AlertSink
}

type namedCaptureSink struct {
	name string
	sink CaptureSink
}

// Stats 投递统计
type Stats struct {
	LogsDelivered     int64
	AlertsDelivered   int64
	CapturesDelivered int64
	Dropped           int64
	Failed            int64
}

// Dispatcher 异步投递：评估器只入队，由后台 worker 调用各 sink
// 队列满时丢弃并记录；sink 失败只记录，不重试、不回传
type Dispatcher struct {
	logs     chan models.LogRecord
	alerts   chan models.Alert
	captures chan models.Capture
	timeout  time.Duration
	logger   *zap.Logger

	logSinks     []namedLogSink
	alertSinks   []namedAlertSink
	captureSinks []namedCaptureSink

	logsDelivered     atomic.Int64
	alertsDelivered   atomic.Int64
	capturesDelivered atomic.Int64
	dropped           atomic.Int64
	failed            atomic.Int64
}

// NewDispatcher 创建投递器
func NewDispatcher(queueSize int, timeout time.Duration, logger *zap.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Dispatcher{
		logs:     make(chan models.LogRecord, queueSize),
		alerts:   make(chan models.Alert, queueSize),
		captures: make(chan models.Capture, queueSize),
		timeout:  timeout,
		logger:   logger,
	}
}

// AddLogSink 注册日志 sink（须在 Run 之前调用）
func (d *Dispatcher) AddLogSink(name string, s LogSink) {
	d.logSinks = append(d.logSinks, namedLogSink{name: name, sink: s})
}

// AddAlertSink 注册告警 sink（须在 Run 之前调用）
func (d *Dispatcher) AddAlertSink(name string, s AlertSink) {
	d.alertSinks = append(d.alertSinks, namedAlertSink{name: name, sink: s})
}

// AddCaptureSink 注册图像 sink（须在 Run 之前调用）
func (d *Dispatcher) AddCaptureSink(name string, s CaptureSink) {
	d.captureSinks = append(d.captureSinks, namedCaptureSink{name: name, sink: s})
}

// CaptureSinkNames 已注册的图像 sink 名称
func (d *Dispatcher) CaptureSinkNames() []string {
	var names []string
	for _, s := range d.captureSinks {
		names = append(names, s.name)
	}
	return names
}

// SinkNames 已注册的 sink 名称
func (d *Dispatcher) SinkNames() (logSinks, alertSinks []string) {
	for _, s := range d.logSinks {
		logSinks = append(logSinks, s.name)
	}
	for _, s := range d.alertSinks {
		alertSinks = append(alertSinks, s.name)
	}
	return logSinks, alertSinks
}

// EmitLog 入队日志记录（非阻塞）
func (d *Dispatcher) EmitLog(rec models.LogRecord) {
	select {
	case d.logs <- rec:
	default:
		d.dropped.Add(1)
		d.logger.Warn("Log queue full, record dropped",
			zap.String("sensor_type", rec.SensorType),
			zap.String("location", rec.Location),
		)
	}
}

// EmitAlert 入队告警（非阻塞）
func (d *Dispatcher) EmitAlert(alert models.Alert) {
	select {
	case d.alerts <- alert:
	default:
		d.dropped.Add(1)
		d.logger.Error("Alert queue full, alert dropped",
			zap.String("alert_id", alert.ID),
			zap.String("kind", string(alert.Kind)),
			zap.String("location", alert.Location),
		)
	}
}

// EmitCapture 入队摄像头图像（非阻塞）；没有图像 sink 时直接忽略
func (d *Dispatcher) EmitCapture(c models.Capture) {
	if len(d.captureSinks) == 0 {
		return
	}
	select {
	case d.captures <- c:
	default:
		d.dropped.Add(1)
		d.logger.Warn("Capture queue full, image dropped",
			zap.String("location", c.Location),
			zap.String("filename", c.Filename),
		)
	}
}

// Stats 当前统计
func (d *Dispatcher) Stats() Stats {
	return Stats{
		LogsDelivered:     d.logsDelivered.Load(),
		AlertsDelivered:   d.alertsDelivered.Load(),
		CapturesDelivered: d.capturesDelivered.Load(),
		Dropped:           d.dropped.Load(),
		Failed:            d.failed.Load(),
	}
}

// Run 启动日志、告警、图像三个 worker，阻塞到 ctx 取消且队列排空
// 告警不排在慢速日志 sink 或图像邮件之后
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				d.drainLogs()
				return
			case rec := <-d.logs:
				d.deliverLog(context.Background(), rec)
			}
		}
	}()

	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				d.drainAlerts()
				return
			case alert := <-d.alerts:
				d.deliverAlert(context.Background(), alert)
			}
		}
	}()

	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				d.drainCaptures()
				return
			case c := <-d.captures:
				d.deliverCapture(context.Background(), c)
			}
		}
	}()

	wg.Wait()
}

func (d *Dispatcher) drainLogs() {
	for {
		select {
		case rec := <-d.logs:
			d.deliverLog(context.Background(), rec)
		default:
			return
		}
	}
}

func (d *Dispatcher) drainAlerts() {
	for {
		select {
		case alert := <-d.alerts:
			d.deliverAlert(context.Background(), alert)
		default:
			return
		}
	}
}

func (d *Dispatcher) drainCaptures() {
	for {
		select {
		case c := <-d.captures:
			d.deliverCapture(context.Background(), c)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliverLog(ctx context.Context, rec models.LogRecord) {
	for _, s := range d.logSinks {
		err := d.call(ctx, func(ctx context.Context) error {
			return s.sink.Record(ctx, rec)
		})
		if err != nil {
			d.failed.Add(1)
			d.logger.Error("Log sink failed",
				zap.String("sink", s.name),
				zap.String("sensor_type", rec.SensorType),
				zap.Error(err),
			)
			continue
		}
		d.logsDelivered.Add(1)
	}
}

func (d *Dispatcher) deliverAlert(ctx context.Context, alert models.Alert) {
	for _, s := range d.alertSinks {
		err := d.call(ctx, func(ctx context.Context) error {
			return s.sink.Notify(ctx, alert)
		})
		if err != nil {
			d.failed.Add(1)
			d.logger.Error("Alert sink failed",
				zap.String("sink", s.name),
				zap.String("alert_id", alert.ID),
				zap.Error(err),
			)
			continue
		}
		d.alertsDelivered.Add(1)
	}
}

func (d *Dispatcher) deliverCapture(ctx context.Context, c models.Capture) {
	for _, s := range d.captureSinks {
		err := d.call(ctx, func(ctx context.Context) error {
			return s.sink.Forward(ctx, c)
		})
		if err != nil {
			d.failed.Add(1)
			d.logger.Error("Capture sink failed",
				zap.String("sink", s.name),
				zap.String("filename", c.Filename),
				zap.Error(err),
			)
			continue
		}
		d.capturesDelivered.Add(1)
	}
}

// call 单次投递：超时 + panic 兜底
func (d *Dispatcher) call(ctx context.Context, fn func(context.Context) error) (err error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panic: %v", r)
		}
	}()
	return fn(ctx)
}
