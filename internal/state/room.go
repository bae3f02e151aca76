package state

import (
	"time"
)

// AlertLevel 卫生间无动作升级级别（只升不降，离开或有动作时归零）
type AlertLevel int

const (
	LevelNone AlertLevel = iota
	LevelMinimal
	LevelModerate
	LevelCritical
)

func (l AlertLevel) String() string {
	switch l {
	case LevelMinimal:
		return "minimal"
	case LevelModerate:
		return "moderate"
	case LevelCritical:
		return "critical"
	default:
		return "none"
	}
}

// BedState 卧室在床状态
type BedState int

const (
	BedUnknown BedState = iota
	BedIn
	BedOut
)

func (b BedState) String() string {
	switch b {
	case BedIn:
		return "In Bed"
	case BedOut:
		return "Out of Bed"
	default:
		return "Unknown"
	}
}

// RoomKind 房间类型，决定启用哪些规则
type RoomKind int

const (
	RoomGeneric RoomKind = iota
	RoomBathroom
	RoomBedroom
)

func (k RoomKind) String() string {
	switch k {
	case RoomBathroom:
		return "bathroom"
	case RoomBedroom:
		return "bedroom"
	default:
		return "generic"
	}
}

// FallState 跌倒确认状态
// Verify 的计时即确认窗口，Verify 的触发时间即上次跌倒告警时间
type FallState struct {
	Verify    Gate
	Confirmed bool // 已确认跌倒，直到检测到动作（恢复）
}

// RoomState 单个位置的状态（首次出现时创建，进程生命周期内有效）
type RoomState struct {
	Location string
	Kind     RoomKind

	Occupied          bool
	EntryTime         time.Time
	LastMotionTime    time.Time
	DoorDebounceUntil time.Time

	// 卫生间
	Humidity          *float64
	HumidityGate      Gate
	HumidityAlertSent bool
	AlertLevel        AlertLevel
	CriticalSent      bool

	// 卧室
	Bed       BedState
	LowVitals Gate
	// 最近一次低体征读数；节点只在数值变化时发布，Tick 据此确认
	LowHeartRate  *float64
	LowBreathRate *float64

	Fall FallState
}

// ResetEscalation 清除本次占用期间的升级状态
func (r *RoomState) ResetEscalation() {
	r.AlertLevel = LevelNone
	r.CriticalSent = false
	r.HumidityGate.Cancel()
	r.HumidityAlertSent = false
}

// RoomSnapshot 房间状态快照（写入 Redis 供看板读取）
type RoomSnapshot struct {
	Location          string     `json:"location"`
	Kind              string     `json:"kind"`
	Occupied          bool       `json:"occupied"`
	EntryTime         *time.Time `json:"entry_time,omitempty"`
	LastMotionTime    *time.Time `json:"last_motion_time,omitempty"`
	Humidity          *float64   `json:"humidity,omitempty"`
	AlertLevel        string     `json:"alert_level"`
	CriticalSent      bool       `json:"critical_sent"`
	HumidityAlertSent bool       `json:"humidity_alert_sent"`
	Bed               string     `json:"bed,omitempty"`
	LowVitalsPending  bool       `json:"low_vitals_pending"`
	LastVitalsAlert   *time.Time `json:"last_vitals_alert,omitempty"`
	FallPending       bool       `json:"fall_pending"`
	Fallen            bool       `json:"fallen"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Snapshot 生成快照
func (r *RoomState) Snapshot(now time.Time) RoomSnapshot {
	snap := RoomSnapshot{
		Location:          r.Location,
		Kind:              r.Kind.String(),
		Occupied:          r.Occupied,
		EntryTime:         timePtr(r.EntryTime),
		LastMotionTime:    timePtr(r.LastMotionTime),
		AlertLevel:        r.AlertLevel.String(),
		CriticalSent:      r.CriticalSent,
		HumidityAlertSent: r.HumidityAlertSent,
		LowVitalsPending:  r.LowVitals.Pending(),
		FallPending:       r.Fall.Verify.Pending(),
		Fallen:            r.Fall.Confirmed,
		UpdatedAt:         now,
	}
	if r.Humidity != nil {
		h := *r.Humidity
		snap.Humidity = &h
	}
	if r.Kind == RoomBedroom {
		snap.Bed = r.Bed.String()
		if last, ok := r.LowVitals.LastFired(); ok {
			snap.LastVitalsAlert = timePtr(last)
		}
	}
	return snap
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
