package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func floatPtr(v float64) *float64 { return &v }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want Signal
	}{
		{"pir motion", Event{SensorType: SensorPIR, Value: "Motion Detected"}, SignalMotion},
		{"pir motion lower case", Event{SensorType: SensorPIR, Value: "motion detected"}, SignalMotion},
		{"pir no motion", Event{SensorType: SensorPIR, Value: "No Motion"}, SignalNoMotion},
		{"pir recovery", Event{SensorType: SensorPIR, Value: "RECOVERY_DETECTION"}, SignalRecovery},
		{"pir garbage", Event{SensorType: SensorPIR, Value: "???"}, SignalUnrecognized},
		{"door enter", Event{SensorType: SensorProximity, Value: "DETECTED"}, SignalDoorEnter},
		{"door blocked", Event{SensorType: SensorProximity, Value: "blocked"}, SignalDoorEnter},
		{"door exit", Event{SensorType: SensorProximity, Value: "CLEAR"}, SignalDoorExit},
		{"door unknown", Event{SensorType: SensorProximity, Value: "AJAR"}, SignalUnrecognized},
		{"humidity", Event{SensorType: SensorHumidity, Value: "91.0%"}, SignalReading},
		{"temperature", Event{SensorType: SensorTemperature, Value: "24.1C"}, SignalReading},
		{"camera", Event{SensorType: SensorCamera}, SignalImage},
		{"vitals in bed", Event{SensorType: SensorMMWaveVitals, Value: "In Bed", Status: "Occupied"}, SignalBedIn},
		{"vitals out of bed", Event{SensorType: SensorMMWaveVitals, Value: "Out of Bed", Status: "Empty"}, SignalBedOut},
		{"vitals status only", Event{SensorType: SensorMMWaveVitals, Value: "?", Status: "OCCUPIED"}, SignalBedIn},
		{"vitals reading", Event{SensorType: SensorMMWaveVitals, Value: "", HeartRate: floatPtr(60)}, SignalReading},
		{"vitals fall", Event{SensorType: SensorMMWaveVitals, Value: "FALL_DETECTED"}, SignalFall},
		{"presence fall", Event{SensorType: SensorMMWavePresence, Value: "fall_detected"}, SignalFall},
		{"presence on", Event{SensorType: SensorMMWavePresence, Value: "PRESENCE_DETECTED"}, SignalPresence},
		{"presence off", Event{SensorType: SensorMMWavePresence, Value: "NO_MOTION_DETECTED"}, SignalNoPresence},
		{"presence unknown", Event{SensorType: SensorMMWavePresence, Value: "42"}, SignalUnrecognized},
		{"unknown type", Event{SensorType: SensorUnknown, Value: "x"}, SignalUnrecognized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.ev))
		})
	}
}

func TestSignal_String(t *testing.T) {
	assert.Equal(t, "door_enter", SignalDoorEnter.String())
	assert.Equal(t, "unrecognized", Signal(99).String())
}

func TestEvent_RawRecord(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	rec := Event{Time: now, SensorType: SensorCamera, Location: "Living Room", Value: "ignored", Status: "Active"}.RawRecord()
	assert.Equal(t, "Camera", rec.SensorType)
	assert.Equal(t, "Image Captured", rec.Value)
	assert.Equal(t, now, rec.Timestamp)

	rec = Event{SensorType: SensorMMWavePresence, Value: "PRESENCE_DETECTED"}.RawRecord()
	assert.Equal(t, "mmWave", rec.SensorType)

	rec = Event{SensorType: SensorUnknown, RawType: "Gas"}.RawRecord()
	assert.Equal(t, "Gas", rec.SensorType)
}

func TestAlert_LogRecord(t *testing.T) {
	now := time.Now()
	a := Alert{Severity: SeverityCritical, Subject: "CRITICAL: no motion", Location: "Bathroom", Time: now}
	rec := a.LogRecord()
	assert.Equal(t, "System", rec.SensorType)
	assert.Equal(t, "CRITICAL", rec.Value)
	assert.Equal(t, "CRITICAL: no motion", rec.Status)
	assert.Equal(t, "Bathroom", rec.Location)

	a.Summary = "CRITICAL ALERT: Bathroom occupied, no motion > 60s."
	assert.Equal(t, a.Summary, a.LogRecord().Status)
}

func TestEvent_ImageCapture(t *testing.T) {
	now := time.Date(2025, 3, 4, 8, 0, 5, 0, time.UTC)
	c := Event{Time: now, SensorType: SensorCamera, Location: "Living Room Main Door", Image: []byte{0xff, 0xd8}}.ImageCapture()

	assert.Equal(t, "Living Room Main Door", c.Location)
	assert.Equal(t, "LivingRoomMainDoor_20250304_080005.jpg", c.Filename)
	assert.Equal(t, []byte{0xff, 0xd8}, c.Image)
	assert.Equal(t, now, c.Time)
}
