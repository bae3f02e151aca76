package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"senior-connect/common/database"
	mqttcommon "senior-connect/common/mqtt"
	rediscommon "senior-connect/common/redis"
	"senior-connect/internal/config"
	"senior-connect/internal/consumer"
	"senior-connect/internal/evaluator"
	"senior-connect/internal/sink"
	"senior-connect/internal/state"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Dependencies 外部连接；为 nil 时相应组件降级关闭
type Dependencies struct {
	Subscriber  consumer.Subscriber
	RedisClient *redis.Client
	DB          *sql.DB
}

// Service 关联引擎服务（整合各层）
type Service struct {
	config *config.Config
	logger *zap.Logger

	mqttClient  *mqttcommon.Client
	redisClient *redis.Client
	db          *sql.DB

	store      *state.Store
	evaluator  *evaluator.Evaluator
	dispatcher *sink.Dispatcher
	consumer   *consumer.MQTTConsumer
	excel      *sink.ExcelSink
	snapshots  *state.SnapshotWriter
	tickers    []*consumer.Ticker

	cancelDispatch context.CancelFunc
	dispatchDone   chan struct{}
	stopOnce       sync.Once
}

// NewSeniorConnectService 连接外部依赖并创建服务
// MQTT 必须可用；Redis、PostgreSQL 不可用时只记录告警，相关 sink 不启用
func NewSeniorConnectService(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Service, error) {
	// 1. 连接 MQTT
	mqttClient, err := mqttcommon.NewClient(&cfg.MQTT, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect mqtt: %w", err)
	}
	deps := Dependencies{Subscriber: mqttClient}

	// 2. 连接 Redis（可选）
	if cfg.NeedsRedis() {
		client, err := rediscommon.Connect(ctx, &cfg.Redis, 5*time.Second)
		if err != nil {
			logger.Warn("Redis unavailable, snapshots and stream sink disabled",
				zap.String("addr", cfg.Redis.Addr),
				zap.Error(err),
			)
		} else {
			deps.RedisClient = client
		}
	}

	// 3. 连接 PostgreSQL（可选）
	if cfg.Sinks.Postgres.Enabled {
		db, err := database.NewPostgresDB(ctx, &cfg.Database)
		if err != nil {
			logger.Warn("PostgreSQL unavailable, database sink disabled",
				zap.String("host", cfg.Database.Host),
				zap.Error(err),
			)
		} else {
			deps.DB = db
		}
	}

	s, err := New(ctx, cfg, deps, logger)
	if err != nil {
		mqttClient.Disconnect()
		if deps.RedisClient != nil {
			_ = rediscommon.Close(deps.RedisClient)
		}
		_ = database.Close(deps.DB)
		return nil, err
	}
	s.mqttClient = mqttClient
	return s, nil
}

// New 用给定依赖组装服务
func New(ctx context.Context, cfg *config.Config, deps Dependencies, logger *zap.Logger) (*Service, error) {
	s := &Service{
		config:      cfg,
		logger:      logger,
		redisClient: deps.RedisClient,
		db:          deps.DB,
		store:       state.NewStore(),
	}

	// 1. 输出层
	s.dispatcher = sink.NewDispatcher(cfg.Sinks.QueueSize, cfg.Sinks.Timeout, logger)
	emailSink, err := s.registerSinks(ctx, deps)
	if err != nil {
		return nil, err
	}

	// 2. 评估层
	s.evaluator = evaluator.NewEvaluator(cfg.Rules, s.store, s.dispatcher, logger)

	// 3. 消费层
	s.consumer = consumer.NewMQTTConsumer(
		deps.Subscriber,
		s.evaluator,
		cfg.Correlator.Topic,
		cfg.MQTT.QoS,
		cfg.Correlator.QueueSize,
		logger,
	)

	// 4. 周期任务
	s.tickers = append(s.tickers, consumer.NewTicker("escalation", cfg.Correlator.TickInterval,
		func(_ context.Context, now time.Time) error {
			s.evaluator.Tick(now)
			return nil
		}, logger))

	if cfg.Snapshot.Enabled && deps.RedisClient != nil {
		s.snapshots = state.NewSnapshotWriter(deps.RedisClient, cfg.Snapshot.KeyPrefix, cfg.Snapshot.TTL, logger)
		s.tickers = append(s.tickers, consumer.NewTicker("snapshot", cfg.Snapshot.Interval,
			func(ctx context.Context, now time.Time) error {
				return s.snapshots.Write(ctx, s.store.Snapshots(now))
			}, logger))
	}

	if s.excel != nil && emailSink != nil && cfg.Report.Interval > 0 {
		reporter := sink.NewWorkbookReporter(s.excel, emailSink, logger)
		s.tickers = append(s.tickers, consumer.NewTicker("report", cfg.Report.Interval, reporter.Report, logger))
	}

	logSinks, alertSinks := s.dispatcher.SinkNames()
	logger.Info("Senior Connect service assembled",
		zap.Strings("log_sinks", logSinks),
		zap.Strings("alert_sinks", alertSinks),
		zap.Strings("capture_sinks", s.dispatcher.CaptureSinkNames()),
		zap.Int("tickers", len(s.tickers)),
	)

	return s, nil
}

// registerSinks 按配置注册 sink；返回邮件 sink 供报告任务使用
func (s *Service) registerSinks(ctx context.Context, deps Dependencies) (*sink.EmailSink, error) {
	cfg := s.config

	logging := sink.NewLoggingSink(s.logger)
	s.dispatcher.AddLogSink("log", logging)
	s.dispatcher.AddAlertSink("log", logging)

	if cfg.Sinks.Excel.Enabled {
		excel, err := sink.NewExcelSink(cfg.Sinks.Excel.Path, s.logger)
		if err != nil {
			s.logger.Error("Workbook unavailable, spreadsheet log disabled",
				zap.String("path", cfg.Sinks.Excel.Path),
				zap.Error(err),
			)
		} else {
			s.excel = excel
			s.dispatcher.AddLogSink("excel", excel)
		}
	}

	if cfg.Sinks.Postgres.Enabled && deps.DB != nil {
		pg := sink.NewPostgresSink(deps.DB, s.logger)
		schemaCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := pg.EnsureSchema(schemaCtx)
		cancel()
		if err != nil {
			s.logger.Warn("PostgreSQL schema unavailable, database sink disabled", zap.Error(err))
		} else {
			s.dispatcher.AddLogSink("postgres", pg)
			s.dispatcher.AddAlertSink("postgres", pg)
		}
	}

	if cfg.Sinks.RedisStream.Enabled && deps.RedisClient != nil {
		rs := sink.NewRedisStreamSink(
			deps.RedisClient,
			cfg.Sinks.RedisStream.AlertStream,
			cfg.Sinks.RedisStream.LogStream,
			cfg.Sinks.RedisStream.MaxLen,
		)
		s.dispatcher.AddLogSink("redis_stream", rs)
		s.dispatcher.AddAlertSink("redis_stream", rs)
	}

	var emailSink *sink.EmailSink
	if cfg.Sinks.Email.Enabled {
		e := cfg.Sinks.Email
		emailSink = sink.NewEmailSink(sink.EmailConfig{
			Host:          e.Host,
			Port:          e.Port,
			Username:      e.Username,
			Password:      e.Password,
			From:          e.From,
			To:            e.To,
			ReportTo:      e.ReportTo,
			SubjectPrefix: e.SubjectPrefix,
		}, s.logger)
		s.dispatcher.AddAlertSink("email", emailSink)
		s.dispatcher.AddCaptureSink("email", emailSink)
	}

	if cfg.Sinks.Webhook.Enabled {
		if cfg.Sinks.Webhook.URL == "" {
			return nil, fmt.Errorf("webhook sink enabled without URL")
		}
		s.dispatcher.AddAlertSink("webhook", sink.NewWebhookSink(cfg.Sinks.Webhook.URL, cfg.Sinks.Webhook.Timeout, s.logger))
	}

	return emailSink, nil
}

// Evaluator 评估器
func (s *Service) Evaluator() *evaluator.Evaluator {
	return s.evaluator
}

// Dispatcher 投递器
func (s *Service) Dispatcher() *sink.Dispatcher {
	return s.dispatcher
}

// Start 启动服务，阻塞到 ctx 取消或订阅失败
func (s *Service) Start(ctx context.Context) error {
	s.logger.Info("Starting Senior Connect service",
		zap.String("topic", s.config.Correlator.Topic),
	)

	// 投递层独立于 ctx：Stop 时先停止消费，再排空队列
	dispatchCtx, cancelDispatch := context.WithCancel(context.Background())
	s.cancelDispatch = cancelDispatch
	s.dispatchDone = make(chan struct{})
	go func() {
		defer close(s.dispatchDone)
		s.dispatcher.Run(dispatchCtx)
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for _, t := range s.tickers {
		wg.Add(1)
		go func(t *consumer.Ticker) {
			defer wg.Done()
			t.Run(runCtx)
		}(t)
	}

	if s.config.RulesFile != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := config.WatchRules(runCtx, s.config.RulesFile, s.config.BaseRules, s.evaluator.SetRules, s.logger)
			if err != nil {
				s.logger.Error("Rules watcher stopped", zap.Error(err))
			}
		}()
	}

	err := s.consumer.Start(runCtx)
	cancel()
	wg.Wait()

	if err != nil {
		return fmt.Errorf("failed to start mqtt consumer: %w", err)
	}
	return nil
}

// Stop 停止服务：取消订阅、排空投递队列、关闭连接
func (s *Service) Stop() error {
	s.stopOnce.Do(s.stop)
	return nil
}

func (s *Service) stop() {
	s.logger.Info("Stopping Senior Connect service")

	if err := s.consumer.Stop(); err != nil {
		s.logger.Error("Failed to stop consumer", zap.Error(err))
	}
	if s.mqttClient != nil {
		s.logger.Info("Disconnecting MQTT", zap.Bool("connected", s.mqttClient.IsConnected()))
		s.mqttClient.Disconnect()
	}

	if s.cancelDispatch != nil {
		s.cancelDispatch()
		select {
		case <-s.dispatchDone:
		case <-time.After(s.config.Sinks.Timeout + 5*time.Second):
			s.logger.Warn("Timed out draining sink queues")
		}
	}

	stats := s.dispatcher.Stats()
	s.logger.Info("Sink delivery summary",
		zap.Int64("logs_delivered", stats.LogsDelivered),
		zap.Int64("alerts_delivered", stats.AlertsDelivered),
		zap.Int64("captures_delivered", stats.CapturesDelivered),
		zap.Int64("dropped", stats.Dropped),
		zap.Int64("failed", stats.Failed),
	)

	if s.excel != nil {
		if err := s.excel.Close(); err != nil {
			s.logger.Error("Failed to close workbook", zap.Error(err))
		}
	}
	if err := database.Close(s.db); err != nil {
		s.logger.Error("Failed to close database", zap.Error(err))
	}
	if s.redisClient != nil {
		if err := rediscommon.Close(s.redisClient); err != nil {
			s.logger.Error("Failed to close redis", zap.Error(err))
		}
	}
}
