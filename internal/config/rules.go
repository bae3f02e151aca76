package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Rules 规则阈值（全部可通过环境变量或 YAML 规则文件调整）
type Rules struct {
	// DebounceWindow 同一房间两次门状态切换之间的最小间隔
	DebounceWindow time.Duration `yaml:"debounce_window"`
	// MinDwell 进入后至少停留多久才接受离开信号
	MinDwell time.Duration `yaml:"min_dwell"`

	Bathroom BathroomRules `yaml:"bathroom"`
	Bedroom  BedroomRules  `yaml:"bedroom"`
	Fall     FallRules     `yaml:"fall"`
	Rooms    RoomRules     `yaml:"rooms"`
}

// BathroomRules 卫生间无动作升级 + 高湿度规则
type BathroomRules struct {
	MinimalAfter        time.Duration `yaml:"minimal_after"`
	ModerateAfter       time.Duration `yaml:"moderate_after"`
	CriticalAfter       time.Duration `yaml:"critical_after"`
	HumidityThreshold   float64       `yaml:"humidity_threshold"`
	HumidityDuration    time.Duration `yaml:"humidity_duration"`
	HumidityMotionQuiet time.Duration `yaml:"humidity_motion_quiet"`
}

// BedroomRules 卧室生命体征确认规则
type BedroomRules struct {
	HeartRateLow  float64       `yaml:"heart_rate_low"`
	BreathRateLow float64       `yaml:"breath_rate_low"`
	ConfirmWindow time.Duration `yaml:"confirm_window"`
	Cooldown      time.Duration `yaml:"cooldown"`
}

// FallRules 跌倒确认规则
type FallRules struct {
	VerifyWindow time.Duration `yaml:"verify_window"`
	Cooldown     time.Duration `yaml:"cooldown"`
}

// RoomRules 房间命名：规范房间名 + 门传感器位置到房间的映射
type RoomRules struct {
	Bathroom string            `yaml:"bathroom"`
	Bedroom  string            `yaml:"bedroom"`
	Doors    map[string]string `yaml:"doors"`
}

var (
	errNonPositive   = errors.New("must be positive")
	errLevelOrdering = errors.New("bathroom thresholds must satisfy minimal < moderate < critical")
)

// DefaultRules 默认阈值
func DefaultRules() Rules {
	return Rules{
		DebounceWindow: 2 * time.Second,
		MinDwell:       2 * time.Second,
		Bathroom: BathroomRules{
			MinimalAfter:        20 * time.Second,
			ModerateAfter:       40 * time.Second,
			CriticalAfter:       60 * time.Second,
			HumidityThreshold:   90,
			HumidityDuration:    20 * time.Second,
			HumidityMotionQuiet: 5 * time.Second,
		},
		Bedroom: BedroomRules{
			HeartRateLow:  70,
			BreathRateLow: 5,
			ConfirmWindow: 30 * time.Second,
			Cooldown:      120 * time.Second,
		},
		Fall: FallRules{
			VerifyWindow: 15 * time.Second,
			Cooldown:     60 * time.Second,
		},
		Rooms: RoomRules{
			Bathroom: "Bathroom",
			Bedroom:  "Bedroom",
			Doors: map[string]string{
				"Bathroom Door":         "Bathroom",
				"Bedroom Door":          "Bedroom",
				"Bedroom":               "Bedroom",
				"Living Room Main Door": "Living Room",
			},
		},
	}
}

// Validate 校验规则
func (r *Rules) Validate() error {
	durations := map[string]time.Duration{
		"debounce_window":                r.DebounceWindow,
		"min_dwell":                      r.MinDwell,
		"bathroom.minimal_after":         r.Bathroom.MinimalAfter,
		"bathroom.moderate_after":        r.Bathroom.ModerateAfter,
		"bathroom.critical_after":        r.Bathroom.CriticalAfter,
		"bathroom.humidity_duration":     r.Bathroom.HumidityDuration,
		"bathroom.humidity_motion_quiet": r.Bathroom.HumidityMotionQuiet,
		"bedroom.confirm_window":         r.Bedroom.ConfirmWindow,
		"bedroom.cooldown":               r.Bedroom.Cooldown,
		"fall.verify_window":             r.Fall.VerifyWindow,
		"fall.cooldown":                  r.Fall.Cooldown,
	}
	for name, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s: %w", name, errNonPositive)
		}
	}

	if !(r.Bathroom.MinimalAfter < r.Bathroom.ModerateAfter && r.Bathroom.ModerateAfter < r.Bathroom.CriticalAfter) {
		return errLevelOrdering
	}
	if r.Bathroom.HumidityThreshold <= 0 || r.Bathroom.HumidityThreshold > 100 {
		return fmt.Errorf("bathroom.humidity_threshold out of range: %v", r.Bathroom.HumidityThreshold)
	}
	if r.Bedroom.HeartRateLow <= 0 || r.Bedroom.BreathRateLow <= 0 {
		return fmt.Errorf("bedroom vitals thresholds: %w", errNonPositive)
	}
	if r.Rooms.Bathroom == "" || r.Rooms.Bedroom == "" {
		return errors.New("rooms.bathroom and rooms.bedroom are required")
	}

	return nil
}

// DoorRoom 根据门传感器位置查找所属房间
func (r RoomRules) DoorRoom(location string) (string, bool) {
	room, ok := r.Doors[location]
	return room, ok
}

// Clone 深拷贝（Doors 是 map，热加载时避免共享）
func (r Rules) Clone() Rules {
	out := r
	out.Rooms.Doors = make(map[string]string, len(r.Rooms.Doors))
	for k, v := range r.Rooms.Doors {
		out.Rooms.Doors[k] = v
	}
	return out
}

// LoadRulesFile 在 base 的基础上叠加 YAML 规则文件
// 文件中未出现的字段保留 base 的值
func LoadRulesFile(path string, base Rules) (*Rules, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}

	rules := base.Clone()
	if err := yaml.Unmarshal(contents, &rules); err != nil {
		return nil, fmt.Errorf("unmarshal rules: %w", err)
	}

	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rules: %w", err)
	}

	return &rules, nil
}
