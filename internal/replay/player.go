package replay

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"senior-connect/internal/decoder"
	"senior-connect/internal/models"

	"go.uber.org/zap"
)

const maxLineSize = 16 << 20

// Record 录制文件中的一行（JSON lines）
type Record struct {
	At       time.Time       `json:"at"`
	Topic    string          `json:"topic"`
	Retained bool            `json:"retained,omitempty"`
	Payload  json.RawMessage `json:"payload"`
}

// Correlator 回放目标（evaluator.Evaluator 实现）
type Correlator interface {
	Route(ev models.Event)
	Tick(now time.Time)
}

// Result 回放统计
type Result struct {
	Lines     int
	Routed    int
	Retained  int
	Malformed int
	Ticks     int
	Start     time.Time
	End       time.Time
}

// Player 在虚拟时钟上回放录制的事件流
// 每条记录之前先按 tick 周期推进时钟，保证计时器与在线运行时一致
type Player struct {
	correlator Correlator
	tick       time.Duration
	tail       time.Duration
	logger     *zap.Logger
}

// NewPlayer 创建回放器；tail 为最后一条记录之后继续推进的时长
func NewPlayer(correlator Correlator, tick, tail time.Duration, logger *zap.Logger) *Player {
	if tick <= 0 {
		tick = time.Second
	}
	return &Player{
		correlator: correlator,
		tick:       tick,
		tail:       tail,
		logger:     logger,
	}
}

// Play 回放 r 中的全部记录
func (p *Player) Play(ctx context.Context, r io.Reader) (Result, error) {
	var (
		res      Result
		clock    time.Time
		started  bool
		lastTick time.Time
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Lines++

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil || rec.At.IsZero() {
			res.Malformed++
			p.logger.Warn("Skipping unreadable replay line", zap.Int("line", res.Lines), zap.Error(err))
			continue
		}

		if !started {
			started = true
			clock = rec.At
			lastTick = rec.At
			res.Start = rec.At
		}
		if rec.At.Before(clock) {
			p.logger.Warn("Replay record out of order, using current clock",
				zap.Int("line", res.Lines),
				zap.Time("at", rec.At),
				zap.Time("clock", clock),
			)
		} else {
			clock = rec.At
		}
		res.Ticks += p.advance(&lastTick, clock)

		ev, err := decoder.Decode(rec.Topic, rec.Payload, rec.Retained, clock)
		switch {
		case errors.Is(err, decoder.ErrRetained):
			res.Retained++
			continue
		case err != nil:
			res.Malformed++
			p.logger.Warn("Skipping malformed replay event", zap.Int("line", res.Lines), zap.Error(err))
			continue
		}

		p.correlator.Route(ev)
		res.Routed++
	}
	if err := scanner.Err(); err != nil {
		return res, fmt.Errorf("failed to read recording: %w", err)
	}

	if started {
		clock = clock.Add(p.tail)
		res.Ticks += p.advance(&lastTick, clock)
	}
	res.End = clock

	return res, nil
}

// advance 从上次 tick 推进到 until，每个周期 tick 一次
func (p *Player) advance(lastTick *time.Time, until time.Time) int {
	n := 0
	for next := lastTick.Add(p.tick); !next.After(until); next = next.Add(p.tick) {
		p.correlator.Tick(next)
		*lastTick = next
		n++
	}
	return n
}
