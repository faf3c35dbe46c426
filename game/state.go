package game

import (
	"sort"
	"time"

	"github.com/KyleDunbarDev/networking-basic/protocol"
)

// State 权威世界状态：玩家 id → PlayerState。
// 不加锁，只允许权威 Tick 协程访问。
type State struct {
	rules      Rules
	players    map[string]protocol.PlayerState
	lastUpdate protocol.Timestamp
	now        func() protocol.Timestamp
}

func NewState(rules Rules) *State {
	return &State{
		rules:      rules,
		players:    make(map[string]protocol.PlayerState),
		lastUpdate: protocol.Now(),
		now:        protocol.Now,
	}
}

// SetClock 替换时间源（测试用）
func (s *State) SetClock(now func() protocol.Timestamp) {
	if now != nil {
		s.now = now
	}
}

func (s *State) Rules() Rules { return s.rules }

// SetRules 在两次 Update 之间替换规则
func (s *State) SetRules(r Rules) { s.rules = r }

func (s *State) LastUpdate() protocol.Timestamp { return s.lastUpdate }

// AddPlayer 不存在时以零位置/零速度创建玩家，已存在则保持原状态
func (s *State) AddPlayer(id string) bool {
	if _, ok := s.players[id]; ok {
		return false
	}
	s.players[id] = protocol.PlayerState{LastUpdate: s.now()}
	return true
}

// PutPlayer 直接写入玩家状态
func (s *State) PutPlayer(id string, ps protocol.PlayerState) {
	s.players[id] = ps
}

// SetVelocity 立即设置速度；未加入的玩家返回 false
func (s *State) SetVelocity(id string, v protocol.Vector2) bool {
	p, ok := s.players[id]
	if !ok {
		return false
	}
	p.Velocity = v
	p.LastUpdate = s.now()
	s.players[id] = p
	return true
}

func (s *State) RemovePlayer(id string) bool {
	if _, ok := s.players[id]; !ok {
		return false
	}
	delete(s.players, id)
	return true
}

func (s *State) Player(id string) (protocol.PlayerState, bool) {
	p, ok := s.players[id]
	return p, ok
}

func (s *State) HasPlayer(id string) bool {
	_, ok := s.players[id]
	return ok
}

func (s *State) Len() int { return len(s.players) }

// IDs 按字典序返回所有玩家 id
func (s *State) IDs() []string {
	ids := make([]string, 0, len(s.players))
	for id := range s.players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Snapshot 返回玩家表的副本，可安全交给序列化
func (s *State) Snapshot() map[string]protocol.PlayerState {
	out := make(map[string]protocol.PlayerState, len(s.players))
	for id, p := range s.players {
		out[id] = p
	}
	return out
}

// Update 每个 tick 调用一次：先积分并钳制，再解决碰撞
func (s *State) Update(dt time.Duration) {
	now := s.now()
	secs := float32(dt.Seconds())
	ids := s.IDs()

	for _, id := range ids {
		p := s.players[id]
		p.Position = p.Position.Add(p.Velocity.Scale(secs))
		p.Position = s.clampPosition(p.Position)
		p.Velocity = s.clampVelocity(p.Velocity)
		p.LastUpdate = now
		s.players[id] = p
	}

	s.resolveCollisions(ids)
	s.lastUpdate = now
}

func (s *State) clampPosition(v protocol.Vector2) protocol.Vector2 {
	return protocol.Vector2{
		X: clamp(v.X, s.rules.MinBound, s.rules.MaxBound),
		Y: clamp(v.Y, s.rules.MinBound, s.rules.MaxBound),
	}
}

func (s *State) clampVelocity(v protocol.Vector2) protocol.Vector2 {
	return protocol.Vector2{
		X: clamp(v.X, -s.rules.MaxVelocity, s.rules.MaxVelocity),
		Y: clamp(v.Y, -s.rules.MaxVelocity, s.rules.MaxVelocity),
	}
}
