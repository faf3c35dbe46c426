package protocol

import "time"

// Vector2 二维向量（不可变值类型）
type Vector2 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// Add 返回 v + o
func (v Vector2) Add(o Vector2) Vector2 {
	return Vector2{X: v.X + o.X, Y: v.Y + o.Y}
}

// Scale 返回 v * f
func (v Vector2) Scale(f float32) Vector2 {
	return Vector2{X: v.X * f, Y: v.Y * f}
}

// Timestamp 自 Unix 纪元起的毫秒数，只用于加入/更新记账，模拟顺序以 tick 为准
type Timestamp uint64

// Now 当前墙钟时间的毫秒时间戳
func Now() Timestamp {
	return FromTime(time.Now())
}

// FromTime 将 time.Time 转为毫秒时间戳（纪元前的时间视为 0）
func FromTime(t time.Time) Timestamp {
	ms := t.UnixMilli()
	if ms < 0 {
		return 0
	}
	return Timestamp(ms)
}

// Since 返回 t 距 earlier 的时长，不会为负
func (t Timestamp) Since(earlier Timestamp) time.Duration {
	if t <= earlier {
		return 0
	}
	return time.Duration(t-earlier) * time.Millisecond
}

// PlayerState 单个玩家的权威状态，同时也是快照中的线上格式
type PlayerState struct {
	Position   Vector2   `json:"position"`
	Velocity   Vector2   `json:"velocity"`
	LastUpdate Timestamp `json:"last_update"`
}
