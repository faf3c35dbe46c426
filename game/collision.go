package game

import (
	"math"

	"github.com/KyleDunbarDev/networking-basic/protocol"
)

// correction 一个玩家在本 tick 内累计的位置/速度修正
type correction struct {
	dx, dy   float64
	dvx, dvy float64
}

// 写回 float32 后的舍入缺口上限（相对半径）；超过它的缺口来自多体挤压或边界，不做微调
const roundingSlack = 1e-4

// 单个碰撞对最多按 ulp 外推的次数
const maxNudges = 64

type collisionPair struct {
	a, b   string
	ux, uy float64 // 从 b 指向 a 的分离方向
}

// separation 与快照比较一致：先做 float32 相减再求距离
func separation(a, b protocol.Vector2) (dx, dy, dist float64) {
	dx = float64(a.X - b.X)
	dy = float64(a.Y - b.Y)
	return dx, dy, math.Hypot(dx, dy)
}

// resolveCollisions 所有碰撞对都基于同一份积分后的快照计算，
// 修正先累计再统一写回，结果与遍历顺序无关。
func (s *State) resolveCollisions(ids []string) {
	if len(ids) < 2 {
		return
	}
	radius := float64(s.rules.CollisionRadius)
	pending := make(map[string]*correction)
	get := func(id string) *correction {
		c, ok := pending[id]
		if !ok {
			c = &correction{}
			pending[id] = c
		}
		return c
	}

	var pairs []collisionPair
	for i := 0; i < len(ids); i++ {
		a := s.players[ids[i]]
		for j := i + 1; j < len(ids); j++ {
			b := s.players[ids[j]]

			dx, dy, dist := separation(a.Position, b.Position)
			if dist >= radius {
				continue
			}

			// 完全重合时 atan2(0,0) 无意义：固定沿 x 轴分离，字典序小的 id 向 -x
			ux, uy := -1.0, 0.0
			if dist > 0 {
				angle := math.Atan2(dy, dx)
				ux, uy = math.Cos(angle), math.Sin(angle)
			}
			push := (radius - dist) * 0.5
			pairs = append(pairs, collisionPair{a: ids[i], b: ids[j], ux: ux, uy: uy})

			ca, cb := get(ids[i]), get(ids[j])
			ca.dx += ux * push
			ca.dy += uy * push
			cb.dx -= ux * push
			cb.dy -= uy * push

			// 速度互换，以差值累计
			dvx := float64(b.Velocity.X) - float64(a.Velocity.X)
			dvy := float64(b.Velocity.Y) - float64(a.Velocity.Y)
			ca.dvx += dvx
			ca.dvy += dvy
			cb.dvx -= dvx
			cb.dvy -= dvy
		}
	}

	for id, c := range pending {
		p := s.players[id]
		p.Position = s.clampPosition(protocol.Vector2{
			X: float32(float64(p.Position.X) + c.dx),
			Y: float32(float64(p.Position.Y) + c.dy),
		})
		p.Velocity = s.clampVelocity(protocol.Vector2{
			X: float32(float64(p.Velocity.X) + c.dvx),
			Y: float32(float64(p.Velocity.Y) + c.dvy),
		})
		s.players[id] = p
	}

	for _, pr := range pairs {
		s.closeRoundingGap(pr, radius)
	}
}

// closeRoundingGap 写回 float32 后距离可能比半径少几个 ulp，
// 否则下一 tick 会再次判定碰撞并把速度换回去。逐 ulp 外推直到不小于半径。
func (s *State) closeRoundingGap(pr collisionPair, radius float64) {
	a, b := s.players[pr.a], s.players[pr.b]
	for n := 0; n < maxNudges; n++ {
		_, _, dist := separation(a.Position, b.Position)
		gap := radius - dist
		if gap <= 0 || gap > radius*roundingSlack {
			break
		}
		a.Position = s.clampPosition(nudge(a.Position, pr.ux, pr.uy))
		b.Position = s.clampPosition(nudge(b.Position, -pr.ux, -pr.uy))
	}
	s.players[pr.a], s.players[pr.b] = a, b
}

// nudge 沿 (ux, uy) 的符号把每个分量移动一个 ulp
func nudge(v protocol.Vector2, ux, uy float64) protocol.Vector2 {
	return protocol.Vector2{X: step32(v.X, ux), Y: step32(v.Y, uy)}
}

func step32(x float32, dir float64) float32 {
	switch {
	case dir > 1e-9:
		return math.Nextafter32(x, float32(math.Inf(1)))
	case dir < -1e-9:
		return math.Nextafter32(x, float32(math.Inf(-1)))
	default:
		return x
	}
}
