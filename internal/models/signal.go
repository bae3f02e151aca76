package models

import (
	"strings"
)

// Signal 事件分类结果（对每种 SensorType 全覆盖，无法识别时为 SignalUnrecognized）
type Signal int

const (
	SignalUnrecognized Signal = iota
	SignalMotion
	SignalNoMotion
	SignalRecovery
	SignalDoorEnter
	SignalDoorExit
	SignalBedIn
	SignalBedOut
	SignalFall
	SignalPresence
	SignalNoPresence
	SignalReading
	SignalImage
)

var signalNames = map[Signal]string{
	SignalUnrecognized: "unrecognized",
	SignalMotion:       "motion",
	SignalNoMotion:     "no_motion",
	SignalRecovery:     "recovery",
	SignalDoorEnter:    "door_enter",
	SignalDoorExit:     "door_exit",
	SignalBedIn:        "bed_in",
	SignalBedOut:       "bed_out",
	SignalFall:         "fall",
	SignalPresence:     "presence",
	SignalNoPresence:   "no_presence",
	SignalReading:      "reading",
	SignalImage:        "image",
}

func (s Signal) String() string {
	if name, ok := signalNames[s]; ok {
		return name
	}
	return "unrecognized"
}

const fallSignature = "FALL_DETECTED"

var (
	doorEnterValues = []string{"ENTER", "DETECTED", "BLOCKED"}
	doorExitValues  = []string{"EXIT", "CLEAR"}

	occupiedValues = []string{"IN BED", "1", "TRUE", "YES", "PRESENCE", "DETECTED", "PRESENCE_DETECTED"}
	emptyValues    = []string{"OUT OF BED", "0", "FALSE", "NO", "NO_PRESENCE", "NO_MOTION_DETECTED"}
)

// Classify 按 (SensorType, value/status) 分类事件，状态字符串比较不区分大小写
func Classify(ev Event) Signal {
	value := strings.ToUpper(strings.TrimSpace(ev.Value))
	status := strings.ToUpper(strings.TrimSpace(ev.Status))

	switch ev.SensorType {
	case SensorPIR:
		switch {
		case strings.Contains(value, "RECOVERY"):
			return SignalRecovery
		case strings.Contains(value, "MOTION") && !strings.Contains(value, "NO"):
			return SignalMotion
		case strings.Contains(value, "MOTION"):
			return SignalNoMotion
		}
		return SignalUnrecognized

	case SensorProximity:
		switch {
		case oneOf(value, doorEnterValues):
			return SignalDoorEnter
		case oneOf(value, doorExitValues):
			return SignalDoorExit
		}
		return SignalUnrecognized

	case SensorHumidity, SensorTemperature:
		return SignalReading

	case SensorCamera:
		return SignalImage

	case SensorMMWaveVitals:
		if value == fallSignature {
			return SignalFall
		}
		switch bedState(value, status) {
		case SignalPresence:
			return SignalBedIn
		case SignalNoPresence:
			return SignalBedOut
		}
		if ev.HeartRate != nil || ev.BreathRate != nil {
			return SignalReading
		}
		return SignalUnrecognized

	case SensorMMWavePresence:
		if value == fallSignature {
			return SignalFall
		}
		return bedState(value, status)

	default:
		return SignalUnrecognized
	}
}

// bedState 在床/离床 与 有人/无人 共用同一组取值
func bedState(value, status string) Signal {
	switch {
	case oneOf(value, occupiedValues) || status == "OCCUPIED":
		return SignalPresence
	case oneOf(value, emptyValues) || status == "EMPTY":
		return SignalNoPresence
	}
	return SignalUnrecognized
}

func oneOf(value string, candidates []string) bool {
	for _, c := range candidates {
		if value == c {
			return true
		}
	}
	return false
}
