package evaluator

import (
	"fmt"
	"strings"
	"time"

	"senior-connect/internal/config"
	"senior-connect/internal/models"

	"github.com/google/uuid"
)

const timeLayout = "2006-01-02 15:04:05"

// AlertBuilder 告警构建器
type AlertBuilder struct{}

// NewAlertBuilder 创建告警构建器
func NewAlertBuilder() *AlertBuilder {
	return &AlertBuilder{}
}

// Build 构建告警
func (b *AlertBuilder) Build(
	kind models.AlertKind,
	severity models.Severity,
	location string,
	subject string,
	body string,
	summary string,
	now time.Time,
	metadata map[string]string,
) models.Alert {
	return models.Alert{
		ID:       uuid.New().String(),
		Kind:     kind,
		Severity: severity,
		Subject:  subject,
		Body:     body,
		Summary:  summary,
		Location: location,
		Time:     now,
		Metadata: metadata,
	}
}

// BathroomNoMotion 无动作升级告警
func (b *AlertBuilder) BathroomNoMotion(location string, severity models.Severity, after time.Duration, now time.Time) models.Alert {
	label := severity.Label()
	msg := fmt.Sprintf("%s ALERT: %s occupied, no motion > %s.", label, location, seconds(after))

	subjectLevel := strings.ToUpper(label[:1]) + strings.ToLower(label[1:])
	if severity == models.SeverityCritical {
		subjectLevel = label
	}

	return b.Build(
		models.AlertBathroomNoMotion,
		severity,
		location,
		fmt.Sprintf("%s %s Alert", location, subjectLevel),
		msg,
		msg,
		now,
		map[string]string{"no_motion_after": seconds(after)},
	)
}

// BathroomHumidity 高湿度且无动作告警
func (b *AlertBuilder) BathroomHumidity(location string, threshold float64, held time.Duration, now time.Time) models.Alert {
	msg := fmt.Sprintf("%s Humidity > %g%% for %s with NO MOTION. Alerting.", location, threshold, seconds(held))
	return b.Build(
		models.AlertBathroomHumidity,
		models.SeverityModerate,
		location,
		"High Humidity Alert",
		msg,
		msg,
		now,
		map[string]string{"humidity_threshold": fmt.Sprintf("%g", threshold)},
	)
}

// BedroomVitals 低体征告警（正文为给照护人的信件）
func (b *AlertBuilder) BedroomVitals(
	location string,
	heartRate, breathRate *float64,
	hrLow, brLow bool,
	rules config.BedroomRules,
	now time.Time,
) models.Alert {
	var issues, parts []string
	if hrLow {
		issues = append(issues, fmt.Sprintf("Low Heart Rate (HR: %s bpm, threshold < %g)", rateText(heartRate), rules.HeartRateLow))
		parts = append(parts, fmt.Sprintf("HR low (%s < %g)", rateText(heartRate), rules.HeartRateLow))
	}
	if brLow {
		issues = append(issues, fmt.Sprintf("Low Breathing Rate (BR: %s breaths/min, threshold < %g)", rateText(breathRate), rules.BreathRateLow))
		parts = append(parts, fmt.Sprintf("BR low (%s < %g)", rateText(breathRate), rules.BreathRateLow))
	}
	condition := strings.Join(issues, "; ")
	if condition == "" {
		condition = "Abnormal vital signs detected"
	}

	var body strings.Builder
	body.WriteString("Dear Caregiver,\n\n")
	body.WriteString("This is an automated alert from the Senior Connect monitoring system.\n")
	fmt.Fprintf(&body, "Potential medical emergency indicators were detected in the %s and require immediate attention.\n\n", location)
	body.WriteString("Alert Details:\n")
	fmt.Fprintf(&body, "- Location: %s\n", location)
	fmt.Fprintf(&body, "- Time: %s\n", now.Format(timeLayout))
	fmt.Fprintf(&body, "- Condition: %s\n", condition)
	fmt.Fprintf(&body, "- Heart Rate (HR): %s bpm\n", rateText(heartRate))
	fmt.Fprintf(&body, "- Breathing Rate (BR): %s breaths/min\n\n", rateText(breathRate))
	body.WriteString("Recommended Actions:\n")
	body.WriteString("1) Check on the senior immediately.\n")
	body.WriteString("2) If unresponsive or symptoms appear serious, call emergency services.\n")
	body.WriteString("3) Continue monitoring for further updates.\n\n")
	body.WriteString("Regards,\n")
	body.WriteString("Senior Connect Alert System")

	return b.Build(
		models.AlertBedroomVitals,
		models.SeverityCritical,
		location,
		"BEDROOM VITAL SIGNS ALERT",
		body.String(),
		strings.Join(parts, " | "),
		now,
		map[string]string{
			"heart_rate":  rateText(heartRate),
			"breath_rate": rateText(breathRate),
		},
	)
}

// Fall 跌倒确认告警
func (b *AlertBuilder) Fall(location string, detectedAt, now time.Time) models.Alert {
	msg := fmt.Sprintf("EMERGENCY: Fall Detected at %s at %s (no movement since).", location, detectedAt.Format("15:04:05"))
	return b.Build(
		models.AlertFall,
		models.SeverityEmergency,
		location,
		"FALL DETECTION ALERT",
		msg,
		"FALL_DETECTED",
		now,
		map[string]string{"detected_at": detectedAt.Format(time.RFC3339)},
	)
}

// FallRecovery 跌倒后检测到动作
func (b *AlertBuilder) FallRecovery(location string, now time.Time) models.Alert {
	msg := fmt.Sprintf("Movement detected at %s at %s after a confirmed fall.", location, now.Format("15:04:05"))
	return b.Build(
		models.AlertFallRecovery,
		models.SeverityMinimal,
		location,
		"FALL RECOVERY",
		msg,
		"RECOVERY_DETECTION",
		now,
		nil,
	)
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%ds", int(d.Seconds()))
}

func rateText(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return formatRate(*v)
}
