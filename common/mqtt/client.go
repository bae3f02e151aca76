package mqtt

import (
	"fmt"
	"sync"
	"time"

	"senior-connect/common/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// Message 收到的 MQTT 消息（保留 retain 标记，由上层决定是否丢弃）
type Message struct {
	Topic    string
	Payload  []byte
	Retained bool
}

// MessageHandler 消息处理函数类型
type MessageHandler func(msg Message) error

type subscription struct {
	qos     byte
	handler MessageHandler
}

// Client MQTT客户端封装
type Client struct {
	client mqtt.Client
	config *config.MQTTConfig
	logger *zap.Logger

	mu   sync.Mutex
	subs map[string]subscription
}

// NewClient 创建MQTT客户端并连接
// CleanSession 下断线重连会丢失订阅，OnConnect 中重新订阅
func NewClient(cfg *config.MQTTConfig, logger *zap.Logger) (*Client, error) {
	c := &Client{
		config: cfg,
		logger: logger,
		subs:   make(map[string]subscription),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(ResolveBroker(cfg.Broker, logger))
	opts.SetClientID(cfg.ClientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	if cfg.KeepAlive > 0 {
		opts.SetKeepAlive(cfg.KeepAlive)
	}

	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.Info("MQTT connected", zap.String("broker", cfg.Broker))
		c.resubscribe()
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", zap.Error(err))
	})

	c.client = mqtt.NewClient(opts)

	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return c, nil
}

// Subscribe 订阅主题
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	c.mu.Lock()
	c.subs[topic] = subscription{qos: qos, handler: handler}
	c.mu.Unlock()

	return c.subscribe(topic, qos, handler)
}

func (c *Client) subscribe(topic string, qos byte, handler MessageHandler) error {
	token := c.client.Subscribe(topic, qos, func(_ mqtt.Client, msg mqtt.Message) {
		err := handler(Message{
			Topic:    msg.Topic(),
			Payload:  msg.Payload(),
			Retained: msg.Retained(),
		})
		if err != nil {
			// 记录错误，但不中断处理
			c.logger.Warn("Error handling MQTT message",
				zap.String("topic", msg.Topic()),
				zap.Error(err),
			)
		}
	})
	if err := waitToken(token, subscribeTimeout); err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", topic, err)
	}
	return nil
}

// subscribeTimeout 等待 SUBACK 的上限
const subscribeTimeout = 10 * time.Second

// waitToken 等待 token 完成；超时视为失败
func waitToken(token mqtt.Token, timeout time.Duration) error {
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("timed out after %s", timeout)
	}
	return token.Error()
}

func (c *Client) resubscribe() {
	c.mu.Lock()
	subs := make(map[string]subscription, len(c.subs))
	for topic, sub := range c.subs {
		subs[topic] = sub
	}
	c.mu.Unlock()

	for topic, sub := range subs {
		if err := c.subscribe(topic, sub.qos, sub.handler); err != nil {
			c.logger.Error("Failed to resubscribe", zap.String("topic", topic), zap.Error(err))
		}
	}
}

// Unsubscribe 取消订阅
func (c *Client) Unsubscribe(topics ...string) error {
	c.mu.Lock()
	for _, topic := range topics {
		delete(c.subs, topic)
	}
	c.mu.Unlock()

	token := c.client.Unsubscribe(topics...)
	token.Wait()

	if token.Error() != nil {
		return fmt.Errorf("failed to unsubscribe: %w", token.Error())
	}

	return nil
}

// Disconnect 断开连接
func (c *Client) Disconnect() {
	c.client.Disconnect(250) // 250ms等待时间
}

// IsConnected 检查连接状态
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}
