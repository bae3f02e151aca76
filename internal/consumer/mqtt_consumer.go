package consumer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	mqttcommon "senior-connect/common/mqtt"
	"senior-connect/internal/decoder"
	"senior-connect/internal/models"

	"go.uber.org/zap"
)

// Subscriber MQTT 订阅端（common/mqtt.Client 实现）
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error
	Unsubscribe(topics ...string) error
}

// Router 事件路由（evaluator.Evaluator 实现）
type Router interface {
	Route(ev models.Event)
}

// Stats 消费统计
type Stats struct {
	Received  int64
	Routed    int64
	Retained  int64
	Malformed int64
	Dropped   int64
	Panics    int64
}

type inbound struct {
	msg        mqttcommon.Message
	receivedAt time.Time
}

// MQTTConsumer MQTT 消息消费者
// 回调只入队，单个 worker 按到达顺序解码并路由
type MQTTConsumer struct {
	subscriber Subscriber
	router     Router
	topic      string
	qos        byte
	queue      chan inbound
	now        func() time.Time
	logger     *zap.Logger

	received  atomic.Int64
	routed    atomic.Int64
	retained  atomic.Int64
	malformed atomic.Int64
	dropped   atomic.Int64
	panics    atomic.Int64
}

// NewMQTTConsumer 创建 MQTT 消费者
func NewMQTTConsumer(
	subscriber Subscriber,
	router Router,
	topic string,
	qos byte,
	queueSize int,
	logger *zap.Logger,
) *MQTTConsumer {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &MQTTConsumer{
		subscriber: subscriber,
		router:     router,
		topic:      topic,
		qos:        qos,
		queue:      make(chan inbound, queueSize),
		now:        time.Now,
		logger:     logger,
	}
}

// WithClock 替换时钟（测试用）
func (c *MQTTConsumer) WithClock(now func() time.Time) *MQTTConsumer {
	c.now = now
	return c
}

// Start 订阅并处理消息，阻塞到 ctx 取消
func (c *MQTTConsumer) Start(ctx context.Context) error {
	if err := c.subscriber.Subscribe(c.topic, c.qos, c.handleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to sensor topic: %w", err)
	}

	c.logger.Info("MQTT consumer started",
		zap.String("topic", c.topic),
		zap.Int("queue_size", cap(c.queue)),
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case in := <-c.queue:
			c.process(in)
		}
	}
}

// Stop 取消订阅
func (c *MQTTConsumer) Stop() error {
	if err := c.subscriber.Unsubscribe(c.topic); err != nil {
		c.logger.Error("Failed to unsubscribe", zap.Error(err))
		return err
	}

	c.logger.Info("MQTT consumer stopped")
	return nil
}

// Stats 当前统计
func (c *MQTTConsumer) Stats() Stats {
	return Stats{
		Received:  c.received.Load(),
		Routed:    c.routed.Load(),
		Retained:  c.retained.Load(),
		Malformed: c.malformed.Load(),
		Dropped:   c.dropped.Load(),
		Panics:    c.panics.Load(),
	}
}

// handleMessage MQTT 回调：记录到达时间后入队，队列满时丢弃
func (c *MQTTConsumer) handleMessage(msg mqttcommon.Message) error {
	c.received.Add(1)
	select {
	case c.queue <- inbound{msg: msg, receivedAt: c.now()}:
		return nil
	default:
		c.dropped.Add(1)
		return fmt.Errorf("event queue full, dropped message on %s", msg.Topic)
	}
}

// process 解码并路由单条消息；单条消息的 panic 不影响后续处理
func (c *MQTTConsumer) process(in inbound) {
	defer func() {
		if r := recover(); r != nil {
			c.panics.Add(1)
			c.logger.Error("Panic while evaluating event",
				zap.String("topic", in.msg.Topic),
				zap.Any("panic", r),
			)
		}
	}()

	ev, err := decoder.Decode(in.msg.Topic, in.msg.Payload, in.msg.Retained, in.receivedAt)
	switch {
	case errors.Is(err, decoder.ErrRetained):
		c.retained.Add(1)
		c.logger.Debug("Ignoring retained message", zap.String("topic", in.msg.Topic))
		return
	case err != nil:
		c.malformed.Add(1)
		c.logger.Warn("Dropping malformed message",
			zap.String("topic", in.msg.Topic),
			zap.Int("payload_size", len(in.msg.Payload)),
			zap.Error(err),
		)
		return
	}

	c.logger.Debug("Received sensor event",
		zap.String("topic", ev.Topic),
		zap.String("sensor_type", string(ev.SensorType)),
		zap.String("location", ev.Location),
		zap.String("value", ev.Value),
	)

	c.router.Route(ev)
	c.routed.Add(1)
}
