package server

import "github.com/KyleDunbarDev/networking-basic/protocol"

// Player 连接登记表中的一条记录，由权威循环独占
type Player struct {
	ID string

	Conn    *ClientConn // 网络连接的发送端（写协程）
	pending *inputQueue // 本 Tick 待应用的输入，按到达顺序

	// 最近一次广播时的状态，仅用于日志
	last    protocol.PlayerState
	joined  bool
	dropped uint64 // 溢出丢弃计数，按 2 的幂打印日志
}

func newPlayer(id string, conn *ClientConn, maxPending int) *Player {
	return &Player{
		ID:      id,
		Conn:    conn,
		pending: newInputQueue(maxPending),
	}
}
