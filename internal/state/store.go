package state

import (
	"sort"
	"sync"
	"time"
)

type room struct {
	mu    sync.Mutex
	state RoomState
}

// Store 房间状态存储
// 每个房间一把锁，不同房间互不阻塞；map 本身由读写锁保护
type Store struct {
	mu    sync.RWMutex
	rooms map[string]*room
}

// NewStore 创建状态存储
func NewStore() *Store {
	return &Store{rooms: make(map[string]*room)}
}

func (s *Store) get(location string) *room {
	s.mu.RLock()
	r, ok := s.rooms[location]
	s.mu.RUnlock()
	if ok {
		return r
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok = s.rooms[location]; ok {
		return r
	}
	r = &room{state: RoomState{Location: location}}
	s.rooms[location] = r
	return r
}

// With 在房间锁内执行 fn（房间不存在时创建）
// fn 内不得做外部 I/O
func (s *Store) With(location string, fn func(*RoomState)) {
	r := s.get(location)
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.state)
}

// Peek 返回房间状态副本
func (s *Store) Peek(location string) (RoomState, bool) {
	s.mu.RLock()
	r, ok := s.rooms[location]
	s.mu.RUnlock()
	if !ok {
		return RoomState{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state, true
}

// Locations 已知位置（排序）
func (s *Store) Locations() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.rooms))
	for loc := range s.rooms {
		out = append(out, loc)
	}
	sort.Strings(out)
	return out
}

// ForEach 依次在各房间锁内执行 fn
func (s *Store) ForEach(fn func(*RoomState)) {
	for _, loc := range s.Locations() {
		s.With(loc, fn)
	}
}

// Snapshots 所有房间的快照
func (s *Store) Snapshots(now time.Time) []RoomSnapshot {
	var out []RoomSnapshot
	s.ForEach(func(r *RoomState) {
		out = append(out, r.Snapshot(now))
	})
	return out
}
