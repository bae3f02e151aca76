package models

import (
	"strings"
	"time"
)

// SensorType 传感器类型（封闭枚举，未知类型归入 SensorUnknown）
type SensorType string

const (
	SensorPIR            SensorType = "PIR"
	SensorProximity      SensorType = "Proximity"
	SensorHumidity       SensorType = "Humidity"
	SensorTemperature    SensorType = "Temperature"
	SensorMMWavePresence SensorType = "mmWavePresence"
	SensorMMWaveVitals   SensorType = "mmWaveVitals"
	SensorCamera         SensorType = "Camera"
	SensorUnknown        SensorType = "Unknown"
)

// LogName 写入日志时使用的类型名（与节点发布的名称一致）
func (t SensorType) LogName() string {
	switch t {
	case SensorMMWavePresence, SensorMMWaveVitals:
		return "mmWave"
	default:
		return string(t)
	}
}

// Event 解码后的传感器事件（不可变）
type Event struct {
	Time       time.Time  // 到达时间
	Topic      string     // MQTT 主题
	RawType    string     // 节点发布的原始 type 字段
	SensorType SensorType // 规范化类型
	Location   string
	Value      string   // value 字段的文本形式
	Numeric    *float64 // Humidity/Temperature 解析出的数值
	Status     string
	HeartRate  *float64
	BreathRate *float64
	Image      []byte // Camera 图像（base64 解码后）
	SensorTime string // 节点自带的 timestamp 字段，仅透传
}

// LogRecord 写入 LogSink 的一条记录
type LogRecord struct {
	SensorType string    `json:"sensor_type"`
	Location   string    `json:"location"`
	Value      string    `json:"value"`
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
}

// RawRecord 事件的原样透传记录
func (e Event) RawRecord() LogRecord {
	value, status := e.Value, e.Status
	if e.SensorType == SensorCamera {
		value = "Image Captured"
		if status == "" {
			status = "Active"
		}
	}
	sensorType := e.SensorType.LogName()
	if e.SensorType == SensorUnknown && e.RawType != "" {
		sensorType = e.RawType
	}
	return LogRecord{
		SensorType: sensorType,
		Location:   e.Location,
		Value:      value,
		Status:     status,
		Timestamp:  e.Time,
	}
}

// Capture 摄像头图像，转发给 CaptureSink（如邮件附件）
type Capture struct {
	Location string
	Filename string
	Image    []byte
	Time     time.Time
}

// ImageCapture 摄像头事件对应的图像转发；文件名形如 LivingRoomMainDoor_20250304_080000.jpg
func (e Event) ImageCapture() Capture {
	return Capture{
		Location: e.Location,
		Filename: strings.ReplaceAll(e.Location, " ", "") + "_" + e.Time.Format("20060102_150405") + ".jpg",
		Image:    e.Image,
		Time:     e.Time,
	}
}
