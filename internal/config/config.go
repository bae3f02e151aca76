package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"senior-connect/common/config"

	"github.com/joho/godotenv"
)

// Config 关联引擎服务配置
type Config struct {
	MQTT     config.MQTTConfig
	Redis    config.RedisConfig
	Database config.DatabaseConfig

	Correlator struct {
		Topic        string        // 订阅主题，如 "senior_connect/sensors/#"
		QueueSize    int           // 事件队列长度
		TickInterval time.Duration // 升级计时器周期
	}

	// Snapshot 房间状态快照写入 Redis（供看板读取）
	Snapshot struct {
		Enabled   bool
		Interval  time.Duration
		TTL       time.Duration
		KeyPrefix string
	}

	// Report 定时发送工作簿报告
	Report struct {
		Interval time.Duration
	}

	Rules     Rules
	RulesFile string
	// BaseRules 环境变量规则（规则文件热加载时在此基础上叠加）
	BaseRules Rules

	Sinks struct {
		QueueSize int
		Timeout   time.Duration

		Excel struct {
			Enabled bool
			Path    string
		}
		Postgres struct {
			Enabled bool
		}
		RedisStream struct {
			Enabled     bool
			AlertStream string
			LogStream   string
			MaxLen      int64
		}
		Email struct {
			Enabled       bool
			Host          string
			Port          int
			Username      string
			Password      string
			From          string
			To            []string
			ReportTo      []string
			SubjectPrefix string
		}
		Webhook struct {
			Enabled bool
			URL     string
			Timeout time.Duration
		}
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
// envFile 存在时先加载（不覆盖已有环境变量）；rulesFile 非空时叠加 YAML 规则
func Load(envFile, rulesFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	cfg := &Config{}

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://raspberrypi.local:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "senior-connect-correlator")
	cfg.MQTT.QoS = 1
	cfg.MQTT.KeepAlive = 60 * time.Second
	cfg.MQTT.LoadFromEnv("MQTT")

	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.User = "postgres"
	cfg.Database.Password = "postgres"
	cfg.Database.Database = "senior_connect"
	cfg.Database.SSLMode = "disable"
	cfg.Database.MaxConns = 4
	cfg.Database.LoadFromEnv("DB")

	cfg.Correlator.Topic = getEnv("CORRELATOR_TOPIC", "senior_connect/sensors/#")
	cfg.Correlator.QueueSize = getEnvInt("CORRELATOR_QUEUE_SIZE", 256)
	cfg.Correlator.TickInterval = getEnvDuration("CORRELATOR_TICK_INTERVAL", time.Second)

	cfg.Snapshot.Enabled = getEnvBool("SNAPSHOT_ENABLED", false)
	cfg.Snapshot.Interval = getEnvDuration("SNAPSHOT_INTERVAL", 5*time.Second)
	cfg.Snapshot.TTL = getEnvDuration("SNAPSHOT_TTL", 30*time.Second)
	cfg.Snapshot.KeyPrefix = getEnv("SNAPSHOT_KEY_PREFIX", "senior-connect:room:")

	cfg.Report.Interval = getEnvDuration("REPORT_INTERVAL", 60*time.Second)

	cfg.Rules = rulesFromEnv(DefaultRules())
	if err := cfg.Rules.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rules from environment: %w", err)
	}
	cfg.BaseRules = cfg.Rules.Clone()
	if rulesFile == "" {
		rulesFile = os.Getenv("RULES_FILE")
	}
	if rulesFile != "" {
		rules, err := LoadRulesFile(rulesFile, cfg.Rules)
		if err != nil {
			return nil, err
		}
		cfg.Rules = *rules
		cfg.RulesFile = rulesFile
	}

	cfg.Sinks.QueueSize = getEnvInt("SINK_QUEUE_SIZE", 512)
	cfg.Sinks.Timeout = getEnvDuration("SINK_TIMEOUT", 15*time.Second)

	cfg.Sinks.Excel.Enabled = getEnvBool("EXCEL_ENABLED", true)
	cfg.Sinks.Excel.Path = getEnv("EXCEL_PATH", "SeniorConnect_MasterLog.xlsx")

	cfg.Sinks.Postgres.Enabled = getEnvBool("POSTGRES_SINK_ENABLED", false)

	cfg.Sinks.RedisStream.Enabled = getEnvBool("REDIS_STREAM_ENABLED", false)
	cfg.Sinks.RedisStream.AlertStream = getEnv("REDIS_ALERT_STREAM", "senior-connect:alerts:stream")
	cfg.Sinks.RedisStream.LogStream = getEnv("REDIS_LOG_STREAM", "senior-connect:log:stream")
	cfg.Sinks.RedisStream.MaxLen = int64(getEnvInt("REDIS_STREAM_MAXLEN", 10000))

	cfg.Sinks.Email.Enabled = getEnvBool("EMAIL_ENABLED", false)
	cfg.Sinks.Email.Host = getEnv("SMTP_HOST", "smtp.gmail.com")
	cfg.Sinks.Email.Port = getEnvInt("SMTP_PORT", 587)
	cfg.Sinks.Email.Username = getEnv("SMTP_USERNAME", "")
	cfg.Sinks.Email.Password = getEnv("SMTP_PASSWORD", "")
	cfg.Sinks.Email.From = getEnv("EMAIL_FROM", cfg.Sinks.Email.Username)
	cfg.Sinks.Email.To = getEnvList("EMAIL_TO")
	cfg.Sinks.Email.ReportTo = getEnvList("EMAIL_REPORT_TO")
	cfg.Sinks.Email.SubjectPrefix = getEnv("EMAIL_SUBJECT_PREFIX", "SENIOR CONNECT: ")

	cfg.Sinks.Webhook.Enabled = getEnvBool("WEBHOOK_ENABLED", false)
	cfg.Sinks.Webhook.URL = getEnv("WEBHOOK_URL", "")
	cfg.Sinks.Webhook.Timeout = getEnvDuration("WEBHOOK_TIMEOUT", 10*time.Second)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if cfg.Sinks.Webhook.Enabled && cfg.Sinks.Webhook.URL == "" {
		return nil, errors.New("WEBHOOK_URL is required when WEBHOOK_ENABLED=true")
	}
	if cfg.Sinks.Email.Enabled && len(cfg.Sinks.Email.To) == 0 {
		return nil, errors.New("EMAIL_TO is required when EMAIL_ENABLED=true")
	}

	return cfg, nil
}

// NeedsRedis 是否有组件依赖 Redis
func (c *Config) NeedsRedis() bool {
	return c.Snapshot.Enabled || c.Sinks.RedisStream.Enabled
}

func rulesFromEnv(r Rules) Rules {
	r.DebounceWindow = getEnvDuration("RULE_DEBOUNCE_WINDOW", r.DebounceWindow)
	r.MinDwell = getEnvDuration("RULE_MIN_DWELL", r.MinDwell)

	r.Bathroom.MinimalAfter = getEnvDuration("RULE_BATHROOM_MINIMAL_AFTER", r.Bathroom.MinimalAfter)
	r.Bathroom.ModerateAfter = getEnvDuration("RULE_BATHROOM_MODERATE_AFTER", r.Bathroom.ModerateAfter)
	r.Bathroom.CriticalAfter = getEnvDuration("RULE_BATHROOM_CRITICAL_AFTER", r.Bathroom.CriticalAfter)
	r.Bathroom.HumidityThreshold = getEnvFloat("RULE_HUMIDITY_THRESHOLD", r.Bathroom.HumidityThreshold)
	r.Bathroom.HumidityDuration = getEnvDuration("RULE_HUMIDITY_DURATION", r.Bathroom.HumidityDuration)
	r.Bathroom.HumidityMotionQuiet = getEnvDuration("RULE_HUMIDITY_MOTION_QUIET", r.Bathroom.HumidityMotionQuiet)

	r.Bedroom.HeartRateLow = getEnvFloat("RULE_HEART_RATE_LOW", r.Bedroom.HeartRateLow)
	r.Bedroom.BreathRateLow = getEnvFloat("RULE_BREATH_RATE_LOW", r.Bedroom.BreathRateLow)
	r.Bedroom.ConfirmWindow = getEnvDuration("RULE_VITALS_CONFIRM_WINDOW", r.Bedroom.ConfirmWindow)
	r.Bedroom.Cooldown = getEnvDuration("RULE_VITALS_COOLDOWN", r.Bedroom.Cooldown)

	r.Fall.VerifyWindow = getEnvDuration("RULE_FALL_VERIFY_WINDOW", r.Fall.VerifyWindow)
	r.Fall.Cooldown = getEnvDuration("RULE_FALL_COOLDOWN", r.Fall.Cooldown)

	r.Rooms.Bathroom = getEnv("ROOM_BATHROOM", r.Rooms.Bathroom)
	r.Rooms.Bedroom = getEnv("ROOM_BEDROOM", r.Rooms.Bedroom)

	return r
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.Atoi(value); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.ParseBool(value); err == nil {
			return v
		}
	}
	return defaultValue
}

// getEnvDuration 接受 "20s" 形式，纯数字按秒解析
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return defaultValue
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
