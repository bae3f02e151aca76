package state

import (
	"time"
)

// Gate 持续条件确认门：pending -> confirm -> cooldown
// 卫生间湿度、卧室体征、跌倒确认共用
type Gate struct {
	pending   bool
	since     time.Time
	fired     bool
	lastFired time.Time
}

// Arm 条件首次成立时开始计时；已在计时中则保持原起点
// 返回是否为新开始的计时
func (g *Gate) Arm(now time.Time) bool {
	if g.pending {
		return false
	}
	g.pending = true
	g.since = now
	return true
}

// Cancel 取消计时（不影响冷却）
func (g *Gate) Cancel() {
	g.pending = false
	g.since = time.Time{}
}

// Pending 是否在计时中
func (g *Gate) Pending() bool {
	return g.pending
}

// Since 计时起点（未计时时为零值）
func (g *Gate) Since() time.Time {
	return g.since
}

// Held 条件已持续的时间
func (g *Gate) Held(now time.Time) time.Duration {
	if !g.pending {
		return 0
	}
	return now.Sub(g.since)
}

// Confirmed 条件是否已持续满 window
func (g *Gate) Confirmed(now time.Time, window time.Duration) bool {
	return g.pending && g.Held(now) >= window
}

// CoolingDown 上次触发距今是否不足 cooldown
func (g *Gate) CoolingDown(now time.Time, cooldown time.Duration) bool {
	return g.fired && now.Sub(g.lastFired) < cooldown
}

// Fire 记录一次触发并结束本轮计时
func (g *Gate) Fire(now time.Time) {
	g.fired = true
	g.lastFired = now
	g.Cancel()
}

// LastFired 上次触发时间
func (g *Gate) LastFired() (time.Time, bool) {
	return g.lastFired, g.fired
}
