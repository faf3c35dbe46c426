package server

import (
	"context"
	"sort"
	"time"

	"github.com/KyleDunbarDev/networking-basic/protocol"
)

// loop 固定频率调度：不足一个 tick 间隔就睡到下一次，与输入到达速率无关
func (a *Authority) loop(ctx context.Context) {
	timer := time.NewTimer(a.tickRate)
	defer timer.Stop()

	last := a.clock()
	for {
		now := a.clock()
		elapsed := now.Sub(last)
		if elapsed < a.tickRate {
			timer.Reset(a.tickRate - elapsed)
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			}
			continue
		}
		// 核心循环：处理输入 → 更新世界 → 广播结果
		a.step(elapsed, now)
		last = now

		if ctx.Err() != nil {
			return
		}
	}
}

// step 执行一个完整 Tick；每个 Tick 是共享状态变更的原子单位
func (a *Authority) step(dt time.Duration, now time.Time) {
	start := time.Now()

	a.drainEvents()
	a.ProcessInputs()
	a.UpdateWorld(dt)
	a.Broadcast(now)
	a.flushRemovals()

	a.lastTick.Store(a.tickSeq)
	a.tickSeq++
	a.connGauge.Store(int64(len(a.players)))
	a.playerGauge.Store(int64(a.world.Len()))
	a.metrics.AddTick(time.Since(start).Nanoseconds())
}

// drainEvents 非阻塞地取出当前已到达的全部事件，然后停止；
// 本 Tick 期间新到的事件留给下一个 Tick
func (a *Authority) drainEvents() {
	for n := len(a.events); n > 0; n-- {
		a.handleEvent(<-a.events)
	}
}

func (a *Authority) handleEvent(ev any) {
	switch e := ev.(type) {
	case registerEvent:
		a.players[e.id] = newPlayer(e.id, e.conn, a.maxPending)
	case inputEvent:
		p, ok := a.players[e.id]
		if !ok {
			// 断开与在途输入之间的竞态是正常的
			return
		}
		if p.pending.Push(e.input) {
			a.metrics.IncDropped()
			p.dropped++
			if n := p.dropped; n&(n-1) == 0 {
				p.Conn.log.Warnf("[backpressure] dropping oldest input count=%d limit=%d", n, a.maxPending)
			}
		}
	case rulesEvent:
		a.world.SetRules(e.rules)
		r := e.rules
		a.rules.Store(&r)
		a.log.Infof("rules updated: bounds=[%.2f,%.2f] max_velocity=%.2f collision_radius=%.2f",
			r.MinBound, r.MaxBound, r.MaxVelocity, r.CollisionRadius)
	}
}

// ProcessInputs 按玩家逐个应用本 Tick 的输入（单个玩家内保持到达顺序）
func (a *Authority) ProcessInputs() {
	ids := make([]string, 0, len(a.players))
	for id, p := range a.players {
		if p.pending.Len() > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	for _, id := range ids {
		p, ok := a.players[id]
		if !ok {
			continue
		}
		for _, in := range p.pending.Drain() {
			if !a.apply(p, in) {
				break
			}
		}
	}
}

// apply 应用一条输入；玩家被移除后返回 false
func (a *Authority) apply(p *Player, in PlayerInput) bool {
	switch in.Message.Kind {
	case protocol.ClientJoin:
		if a.world.AddPlayer(p.ID) {
			p.joined = true
			a.metrics.IncJoins()
			p.Conn.log.Info("player joined")
		}
		b, err := protocol.Encode(protocol.JoinAccepted(p.ID))
		if err != nil {
			a.log.Errorf("encode JoinAccepted: %v", err)
			return true
		}
		if !p.Conn.Enqueue(b) {
			a.metrics.IncBroadcastFailures()
			a.scheduleRemoval(p.ID, "join reply failed")
		}
	case protocol.ClientMove:
		if a.world.SetVelocity(p.ID, in.Message.Direction) {
			a.metrics.IncAccepted()
		}
	case protocol.ClientDisconnect:
		a.removePlayer(p.ID, "disconnect")
		return false
	}
	return true
}

// UpdateWorld 推进物理：积分、边界钳制、碰撞
func (a *Authority) UpdateWorld(dt time.Duration) {
	a.world.Update(dt)
}

// Broadcast 序列化一次完整快照，压入每个连接的发送队列；
// 入队失败的连接在本 Tick 结束时移除
func (a *Authority) Broadcast(now time.Time) {
	update := protocol.GameStateUpdate{
		Tick:       a.tickSeq,
		Players:    a.world.Snapshot(),
		ServerTime: protocol.FromTime(now),
	}
	b, err := protocol.Encode(protocol.GameState(update))
	if err != nil {
		a.log.Errorf("encode snapshot: %v", err)
		return
	}
	for id, p := range a.players {
		if st, ok := update.Players[id]; ok {
			p.last = st
		}
		if !p.Conn.Enqueue(b) {
			a.metrics.IncBroadcastFailures()
			a.scheduleRemoval(id, "send failed")
		}
	}
}

func (a *Authority) scheduleRemoval(id, reason string) {
	if _, ok := a.doomed[id]; !ok {
		a.doomed[id] = reason
	}
}

func (a *Authority) flushRemovals() {
	for id, reason := range a.doomed {
		a.removePlayer(id, reason)
		delete(a.doomed, id)
	}
}

// removePlayer 在同一 Tick 内同时从连接登记表与世界状态中移除
func (a *Authority) removePlayer(id, reason string) {
	a.world.RemovePlayer(id)
	p, ok := a.players[id]
	if !ok {
		return
	}
	delete(a.players, id)
	p.Conn.Close()
	a.metrics.IncRemovals()
	if p.joined {
		p.Conn.log.Infof("player left: reason=%s last_pos=(%.2f,%.2f)", reason, p.last.Position.X, p.last.Position.Y)
	} else {
		p.Conn.log.Infof("connection closed before join: reason=%s", reason)
	}
}
