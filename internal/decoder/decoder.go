package decoder

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"senior-connect/internal/models"
)

var (
	// ErrRetained 保留消息（broker 重放的旧状态），直接忽略
	ErrRetained = errors.New("retained message ignored")
	// ErrMalformed 无法解析或不符合事件结构
	ErrMalformed = errors.New("malformed event")
)

// bedroomTopicMarker 卧室 mmWave 节点的主题片段
const bedroomTopicMarker = "mmwave_bedroom"

// fieldSynonyms 兼容表：规范字段 -> 节点可能使用的字段名（按优先级）
var fieldSynonyms = map[string][]string{
	"heart_rate":  {"heart_rate", "hr", "hb"},
	"breath_rate": {"breath_rate", "br", "respiration_rate", "rr"},
}

// typeSynonyms 兼容表：type 字段（小写）-> 规范传感器类型
// mmWave 类先归为 presence，是否为卧室体征流在 Decode 中判断
var typeSynonyms = map[string]models.SensorType{
	"pir":            models.SensorPIR,
	"proximity":      models.SensorProximity,
	"access":         models.SensorProximity,
	"entrance":       models.SensorProximity,
	"humidity":       models.SensorHumidity,
	"temperature":    models.SensorTemperature,
	"camera":         models.SensorCamera,
	"mmwave":         models.SensorMMWavePresence,
	"human presence": models.SensorMMWavePresence,
	"presence":       models.SensorMMWavePresence,
}

// Decode 将 MQTT 消息解码为 Event
// now 为到达时间，由调用方注入（回放时为虚拟时钟）
func Decode(topic string, payload []byte, retained bool, now time.Time) (models.Event, error) {
	if retained {
		return models.Event{}, ErrRetained
	}

	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		return models.Event{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	rawType := text(raw["type"])
	if rawType == "" {
		return models.Event{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}

	ev := models.Event{
		Time:       now,
		Topic:      topic,
		RawType:    rawType,
		SensorType: sensorType(rawType),
		Location:   text(raw["location"]),
		Value:      text(raw["value"]),
		Status:     text(raw["status"]),
		SensorTime: text(raw["timestamp"]),
		HeartRate:  rate(raw, "heart_rate"),
		BreathRate: rate(raw, "breath_rate"),
	}
	if ev.Location == "" {
		ev.Location = "Unknown"
	}

	switch ev.SensorType {
	case models.SensorHumidity:
		ev.Numeric = number(strings.TrimSuffix(ev.Value, "%"))
	case models.SensorTemperature:
		ev.Numeric = number(strings.TrimSuffix(strings.TrimSuffix(ev.Value, "C"), "°"))
	case models.SensorCamera:
		image, err := base64.StdEncoding.DecodeString(text(raw["image"]))
		if err != nil || len(image) == 0 {
			return models.Event{}, fmt.Errorf("%w: invalid camera image", ErrMalformed)
		}
		ev.Image = image
	case models.SensorMMWavePresence:
		if isBedroomStream(topic, ev) {
			ev.SensorType = models.SensorMMWaveVitals
		}
	}

	return ev, nil
}

func sensorType(rawType string) models.SensorType {
	if t, ok := typeSynonyms[strings.ToLower(strings.TrimSpace(rawType))]; ok {
		return t
	}
	return models.SensorUnknown
}

func isBedroomStream(topic string, ev models.Event) bool {
	return strings.EqualFold(ev.Location, "bedroom") ||
		strings.Contains(strings.ToLower(topic), bedroomTopicMarker) ||
		ev.HeartRate != nil ||
		ev.BreathRate != nil
}

// rate 按兼容表查找体征字段；0 视为传感器无读数
func rate(raw map[string]any, canonical string) *float64 {
	for _, key := range fieldSynonyms[canonical] {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}
		n := number(text(v))
		if n == nil || *n == 0 {
			continue
		}
		return n
	}
	return nil
}

func number(s string) *float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	return &v
}

// text 将 JSON 值转成文本（value 字段可能是字符串、数字或布尔）
func text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
