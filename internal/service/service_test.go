package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"senior-connect/common/config"
	mqttcommon "senior-connect/common/mqtt"
	rediscommon "senior-connect/common/redis"
	appconfig "senior-connect/internal/config"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSubscriber struct {
	mu           sync.Mutex
	handler      mqttcommon.MessageHandler
	unsubscribed bool
}

func (f *fakeSubscriber) Subscribe(_ string, _ byte, handler mqttcommon.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = handler
	return nil
}

func (f *fakeSubscriber) Unsubscribe(...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribed = true
	return nil
}

func (f *fakeSubscriber) subscribed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handler != nil
}

func (f *fakeSubscriber) publish(payload string) error {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	return h(mqttcommon.Message{Topic: "senior_connect/sensors/test", Payload: []byte(payload)})
}

func testConfig(t *testing.T) *appconfig.Config {
	t.Helper()
	cfg := &appconfig.Config{}
	cfg.Rules = appconfig.DefaultRules()
	cfg.BaseRules = cfg.Rules.Clone()
	cfg.MQTT.QoS = 1
	cfg.Correlator.Topic = "senior_connect/sensors/#"
	cfg.Correlator.QueueSize = 16
	cfg.Correlator.TickInterval = 10 * time.Millisecond
	cfg.Sinks.QueueSize = 64
	cfg.Sinks.Timeout = time.Second
	cfg.Sinks.Excel.Enabled = true
	cfg.Sinks.Excel.Path = filepath.Join(t.TempDir(), "master_log.xlsx")
	cfg.Report.Interval = time.Minute
	return cfg
}

func TestNew_DegradesWithoutBackends(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sinks.Postgres.Enabled = true
	cfg.Sinks.RedisStream.Enabled = true
	cfg.Snapshot.Enabled = true
	cfg.Snapshot.Interval = time.Second

	s, err := New(context.Background(), cfg, Dependencies{Subscriber: &fakeSubscriber{}}, zap.NewNop())
	require.NoError(t, err)
	defer s.Stop()

	logSinks, alertSinks := s.Dispatcher().SinkNames()
	assert.Equal(t, []string{"log", "excel"}, logSinks)
	assert.Equal(t, []string{"log"}, alertSinks)
	assert.Empty(t, s.Dispatcher().CaptureSinkNames())
	// 只有升级计时；无 Redis 不写快照，无邮件不发报告
	assert.Len(t, s.tickers, 1)
}

func TestNew_RegistersConfiguredSinks(t *testing.T) {
	mr := miniredis.RunT(t)
	client := rediscommon.NewRedisClient(&config.RedisConfig{Addr: mr.Addr()})

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS alarm_events").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectClose()

	cfg := testConfig(t)
	cfg.Sinks.Postgres.Enabled = true
	cfg.Sinks.RedisStream.Enabled = true
	cfg.Sinks.RedisStream.AlertStream = "alerts"
	cfg.Sinks.RedisStream.LogStream = "logs"
	cfg.Sinks.Email.Enabled = true
	cfg.Sinks.Email.To = []string{"caregiver@example.com"}
	cfg.Sinks.Webhook.Enabled = true
	cfg.Sinks.Webhook.URL = "http://127.0.0.1:9/alerts"
	cfg.Snapshot.Enabled = true
	cfg.Snapshot.Interval = time.Second
	cfg.Snapshot.KeyPrefix = "room:"

	s, err := New(context.Background(), cfg, Dependencies{Subscriber: &fakeSubscriber{}, RedisClient: client, DB: db}, zap.NewNop())
	require.NoError(t, err)

	logSinks, alertSinks := s.Dispatcher().SinkNames()
	assert.Equal(t, []string{"log", "excel", "postgres", "redis_stream"}, logSinks)
	assert.Equal(t, []string{"log", "postgres", "redis_stream", "email", "webhook"}, alertSinks)
	assert.Equal(t, []string{"email"}, s.Dispatcher().CaptureSinkNames())
	assert.Len(t, s.tickers, 3)

	require.NoError(t, s.Stop())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNew_WebhookWithoutURL(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sinks.Excel.Enabled = false
	cfg.Sinks.Webhook.Enabled = true

	_, err := New(context.Background(), cfg, Dependencies{Subscriber: &fakeSubscriber{}}, zap.NewNop())
	assert.Error(t, err)
}

func TestService_EndToEnd(t *testing.T) {
	mr := miniredis.RunT(t)
	client := rediscommon.NewRedisClient(&config.RedisConfig{Addr: mr.Addr()})

	cfg := testConfig(t)
	cfg.Sinks.RedisStream.Enabled = true
	cfg.Sinks.RedisStream.AlertStream = "alerts"
	cfg.Sinks.RedisStream.LogStream = "logs"
	cfg.Snapshot.Enabled = true
	cfg.Snapshot.Interval = 10 * time.Millisecond
	cfg.Snapshot.TTL = time.Minute
	cfg.Snapshot.KeyPrefix = "room:"

	sub := &fakeSubscriber{}
	s, err := New(context.Background(), cfg, Dependencies{Subscriber: sub, RedisClient: client}, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	require.Eventually(t, sub.subscribed, time.Second, time.Millisecond)
	require.NoError(t, sub.publish(`{"type":"Access","location":"Bathroom Door","value":"ENTER"}`))

	// 原始记录 + 进入记录
	require.Eventually(t, func() bool {
		msgs, err := rediscommon.ReadRange(context.Background(), client, "logs")
		return err == nil && len(msgs) == 2
	}, 2*time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		return mr.Exists("room:Bathroom")
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("service did not stop")
	}

	require.NoError(t, s.Stop())
	assert.True(t, sub.unsubscribed)
	assert.Zero(t, s.Dispatcher().Stats().Dropped)
}
