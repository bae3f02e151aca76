package models

import (
	"time"
)

// Severity 告警级别
type Severity string

const (
	SeverityMinimal   Severity = "minimal"
	SeverityModerate  Severity = "moderate"
	SeverityCritical  Severity = "critical"
	SeverityEmergency Severity = "emergency"
)

// Label 大写标签（用于日志表的 Value 列）
func (s Severity) Label() string {
	switch s {
	case SeverityMinimal:
		return "MINIMAL"
	case SeverityModerate:
		return "MODERATE"
	case SeverityCritical:
		return "CRITICAL"
	case SeverityEmergency:
		return "EMERGENCY"
	default:
		return "UNKNOWN"
	}
}

// AlertKind 告警来源规则
type AlertKind string

const (
	AlertBathroomNoMotion AlertKind = "bathroom_no_motion"
	AlertBathroomHumidity AlertKind = "bathroom_humidity"
	AlertBedroomVitals    AlertKind = "bedroom_vitals"
	AlertFall             AlertKind = "fall"
	AlertFallRecovery     AlertKind = "fall_recovery"
)

// Alert 告警（发出后所有权交给 AlertSink）
type Alert struct {
	ID       string            `json:"id"`
	Kind     AlertKind         `json:"kind"`
	Severity Severity          `json:"severity"`
	Subject  string            `json:"subject"`
	Body     string            `json:"body"`
	Summary  string            `json:"summary,omitempty"` // 日志表中的一行摘要
	Location string            `json:"location"`
	Time     time.Time         `json:"time"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// LogRecord 告警对应的 System 日志记录
func (a Alert) LogRecord() LogRecord {
	status := a.Summary
	if status == "" {
		status = a.Subject
	}
	return LogRecord{
		SensorType: "System",
		Location:   a.Location,
		Value:      a.Severity.Label(),
		Status:     status,
		Timestamp:  a.Time,
	}
}
