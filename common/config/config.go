package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// DatabaseConfig PostgreSQL 连接配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// RedisConfig Redis 连接配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig MQTT 连接配置
type MQTTConfig struct {
	Broker    string // tcp://host:port
	ClientID  string
	Username  string
	Password  string
	QoS       byte
	KeepAlive time.Duration
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// LoadFromEnv 从环境变量加载数据库配置（prefix 如 "DB"）
func (c *DatabaseConfig) LoadFromEnv(prefix string) {
	if host := os.Getenv(prefix + "_HOST"); host != "" {
		c.Host = host
	}
	if port, ok := envInt(prefix + "_PORT"); ok {
		c.Port = port
	}
	if user := os.Getenv(prefix + "_USER"); user != "" {
		c.User = user
	}
	if password := os.Getenv(prefix + "_PASSWORD"); password != "" {
		c.Password = password
	}
	if database := os.Getenv(prefix + "_NAME"); database != "" {
		c.Database = database
	}
	if sslMode := os.Getenv(prefix + "_SSLMODE"); sslMode != "" {
		c.SSLMode = sslMode
	}
	if maxConns, ok := envInt(prefix + "_MAX_CONNS"); ok {
		c.MaxConns = maxConns
	}
	if maxIdle, ok := envInt(prefix + "_MAX_IDLE"); ok {
		c.MaxIdle = maxIdle
	}
}

// LoadFromEnv 从环境变量加载Redis配置
func (c *RedisConfig) LoadFromEnv(prefix string) {
	if addr := os.Getenv(prefix + "_ADDR"); addr != "" {
		c.Addr = addr
	}
	if password := os.Getenv(prefix + "_PASSWORD"); password != "" {
		c.Password = password
	}
	if db, ok := envInt(prefix + "_DB"); ok {
		c.DB = db
	}
}

// LoadFromEnv 从环境变量加载MQTT配置
func (c *MQTTConfig) LoadFromEnv(prefix string) {
	if broker := os.Getenv(prefix + "_BROKER"); broker != "" {
		c.Broker = broker
	}
	if clientID := os.Getenv(prefix + "_CLIENT_ID"); clientID != "" {
		c.ClientID = clientID
	}
	if username := os.Getenv(prefix + "_USERNAME"); username != "" {
		c.Username = username
	}
	if password := os.Getenv(prefix + "_PASSWORD"); password != "" {
		c.Password = password
	}
	if qos, ok := envInt(prefix + "_QOS"); ok && qos >= 0 && qos <= 2 {
		c.QoS = byte(qos)
	}
	if keepAlive := os.Getenv(prefix + "_KEEPALIVE"); keepAlive != "" {
		if d, err := time.ParseDuration(keepAlive); err == nil {
			c.KeepAlive = d
		}
	}
}

func envInt(key string) (int, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}
