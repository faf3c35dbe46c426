package server

import (
	"github.com/KyleDunbarDev/networking-basic/game"
	"github.com/KyleDunbarDev/networking-basic/protocol"
)

// PlayerInput 客户端输入（意图），在下一次 Tick 中按到达顺序解释
type PlayerInput struct {
	Timestamp protocol.Timestamp
	Message   protocol.ClientMessage
}

// 进入权威循环的事件，统一走 Authority.events
type (
	// registerEvent 监听器接受新连接后登记（区别于客户端消息）
	registerEvent struct {
		id   string
		conn *ClientConn
	}
	inputEvent struct {
		id    string
		input PlayerInput
	}
	// rulesEvent 管理接口的规则热更新
	rulesEvent struct {
		rules game.Rules
	}
)

// inputQueue 固定容量环形队列。满时优先丢弃最旧的 Move；
// Join/Disconnect 只有在队列里没有 Move 时才会被挤掉。
type inputQueue struct {
	data  []PlayerInput
	head  int
	count int
}

func newInputQueue(capacity int) *inputQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &inputQueue{data: make([]PlayerInput, capacity)}
}

func (q *inputQueue) at(i int) *PlayerInput {
	return &q.data[(q.head+i)%len(q.data)]
}

// Push 入队；若因溢出挤掉了一条旧输入则返回 true
func (q *inputQueue) Push(in PlayerInput) (dropped bool) {
	if q.count == len(q.data) {
		victim := 0
		for i := 0; i < q.count; i++ {
			if q.at(i).Message.Kind == protocol.ClientMove {
				victim = i
				break
			}
		}
		// victim 之前的元素整体后移一格，再前移队头
		for i := victim; i > 0; i-- {
			*q.at(i) = *q.at(i - 1)
		}
		q.head = (q.head + 1) % len(q.data)
		q.count--
		dropped = true
	}
	*q.at(q.count) = in
	q.count++
	return dropped
}

// Drain 按 FIFO 顺序取出全部输入并清空
func (q *inputQueue) Drain() []PlayerInput {
	if q.count == 0 {
		return nil
	}
	out := make([]PlayerInput, q.count)
	for i := 0; i < q.count; i++ {
		out[i] = q.data[(q.head+i)%len(q.data)]
	}
	q.head = 0
	q.count = 0
	return out
}

func (q *inputQueue) Len() int { return q.count }
