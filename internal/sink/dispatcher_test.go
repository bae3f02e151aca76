package sink

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"senior-connect/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memorySink struct {
	mu      sync.Mutex
	records []models.LogRecord
	alerts  []models.Alert
	err     error
	panics  bool
}

func (m *memorySink) Record(_ context.Context, rec models.LogRecord) error {
	if m.panics {
		panic("boom")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *memorySink) Notify(_ context.Context, alert models.Alert) error {
	if m.panics {
		panic("boom")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.alerts = append(m.alerts, alert)
	return nil
}

func (m *memorySink) counts() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records), len(m.alerts)
}

// runDrained 在已取消的 ctx 上运行，worker 排空队列后返回
func runDrained(d *Dispatcher) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Run(ctx)
}

func testRecord() models.LogRecord {
	return models.LogRecord{SensorType: "PIR", Location: "Bathroom", Value: "MOTION", Status: "Active", Timestamp: time.Now()}
}

func testAlert(id string) models.Alert {
	return models.Alert{ID: id, Kind: models.AlertFall, Severity: models.SeverityEmergency, Location: "Bedroom", Subject: "FALL DETECTION ALERT", Time: time.Now()}
}

func TestDispatcher_FanOut(t *testing.T) {
	d := NewDispatcher(10, time.Second, zap.NewNop())
	a, b := &memorySink{}, &memorySink{}
	d.AddLogSink("a", a)
	d.AddLogSink("b", b)
	d.AddAlertSink("a", a)

	d.EmitLog(testRecord())
	d.EmitLog(testRecord())
	d.EmitAlert(testAlert("1"))
	runDrained(d)

	logsA, alertsA := a.counts()
	logsB, alertsB := b.counts()
	assert.Equal(t, 2, logsA)
	assert.Equal(t, 2, logsB)
	assert.Equal(t, 1, alertsA)
	assert.Equal(t, 0, alertsB)

	stats := d.Stats()
	assert.Equal(t, int64(4), stats.LogsDelivered)
	assert.Equal(t, int64(1), stats.AlertsDelivered)
	assert.Zero(t, stats.Dropped)

	logNames, alertNames := d.SinkNames()
	assert.Equal(t, []string{"a", "b"}, logNames)
	assert.Equal(t, []string{"a"}, alertNames)
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	d := NewDispatcher(1, time.Second, zap.NewNop())
	s := &memorySink{}
	d.AddLogSink("mem", s)
	d.AddAlertSink("mem", s)

	d.EmitLog(testRecord())
	d.EmitLog(testRecord())
	d.EmitAlert(testAlert("1"))
	d.EmitAlert(testAlert("2"))
	assert.Equal(t, int64(2), d.Stats().Dropped)

	runDrained(d)
	logs, alerts := s.counts()
	assert.Equal(t, 1, logs)
	assert.Equal(t, 1, alerts)
}

func TestDispatcher_FailureIsolated(t *testing.T) {
	d := NewDispatcher(10, time.Second, zap.NewNop())
	failing := &memorySink{err: errors.New("smtp down")}
	panicking := &memorySink{panics: true}
	healthy := &memorySink{}
	d.AddAlertSink("failing", failing)
	d.AddAlertSink("panicking", panicking)
	d.AddAlertSink("healthy", healthy)

	d.EmitAlert(testAlert("1"))
	runDrained(d)

	_, alerts := healthy.counts()
	assert.Equal(t, 1, alerts)
	stats := d.Stats()
	assert.Equal(t, int64(2), stats.Failed)
	assert.Equal(t, int64(1), stats.AlertsDelivered)
}

type slowSink struct{}

func (slowSink) Notify(ctx context.Context, _ models.Alert) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestDispatcher_TimeoutCountsFailure(t *testing.T) {
	d := NewDispatcher(10, 20*time.Millisecond, zap.NewNop())
	d.AddAlertSink("slow", slowSink{})

	d.EmitAlert(testAlert("1"))
	runDrained(d)

	assert.Equal(t, int64(1), d.Stats().Failed)
}

func TestDispatcher_DeliversWhileRunning(t *testing.T) {
	d := NewDispatcher(10, time.Second, zap.NewNop())
	s := &memorySink{}
	d.AddLogSink("mem", s)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	d.EmitLog(testRecord())
	require.Eventually(t, func() bool {
		logs, _ := s.counts()
		return logs == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop")
	}
}

type captureSink struct {
	mu  sync.Mutex
	got []models.Capture
}

func (c *captureSink) Forward(_ context.Context, capture models.Capture) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, capture)
	return nil
}

func TestDispatcher_ForwardsCaptures(t *testing.T) {
	d := NewDispatcher(1, time.Second, zap.NewNop())

	// 没有图像 sink 时不入队，也不计为丢弃
	d.EmitCapture(models.Capture{Location: "Living Room Main Door"})
	assert.Zero(t, d.Stats().Dropped)

	cs := &captureSink{}
	d.AddCaptureSink("email", cs)
	assert.Equal(t, []string{"email"}, d.CaptureSinkNames())

	d.EmitCapture(models.Capture{Location: "Living Room Main Door", Filename: "a.jpg", Image: []byte{1}})
	d.EmitCapture(models.Capture{Location: "Living Room Main Door", Filename: "b.jpg", Image: []byte{2}})
	runDrained(d)

	require.Len(t, cs.got, 1)
	assert.Equal(t, "a.jpg", cs.got[0].Filename)
	stats := d.Stats()
	assert.Equal(t, int64(1), stats.CapturesDelivered)
	assert.Equal(t, int64(1), stats.Dropped)
}
