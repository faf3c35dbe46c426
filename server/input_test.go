package server

import (
	"testing"

	"github.com/KyleDunbarDev/networking-basic/protocol"
)

func moveInput(x float32) PlayerInput {
	return PlayerInput{Message: protocol.Move(protocol.Vector2{X: x})}
}

func TestInputQueueFIFO(t *testing.T) {
	q := newInputQueue(4)
	for i := 1; i <= 3; i++ {
		if q.Push(moveInput(float32(i))) {
			t.Fatalf("push %d dropped below capacity", i)
		}
	}
	got := q.Drain()
	if len(got) != 3 {
		t.Fatalf("drained %d, want 3", len(got))
	}
	for i, in := range got {
		if in.Message.Direction.X != float32(i+1) {
			t.Fatalf("order broken at %d: %v", i, in.Message.Direction.X)
		}
	}
	if q.Len() != 0 || q.Drain() != nil {
		t.Fatalf("queue not empty after drain")
	}
}

func TestInputQueueDropsOldest(t *testing.T) {
	q := newInputQueue(3)
	dropped := 0
	for i := 1; i <= 5; i++ {
		if q.Push(moveInput(float32(i))) {
			dropped++
		}
	}
	if dropped != 2 {
		t.Fatalf("dropped = %d, want 2", dropped)
	}
	got := q.Drain()
	want := []float32{3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("drained %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Message.Direction.X != want[i] {
			t.Fatalf("got[%d] = %v, want %v", i, got[i].Message.Direction.X, want[i])
		}
	}

	// 清空后环形下标从头开始
	q.Push(moveInput(9))
	if got := q.Drain(); len(got) != 1 || got[0].Message.Direction.X != 9 {
		t.Fatalf("reuse after drain: %+v", got)
	}
}

func TestInputQueueKeepsJoinUnderFlood(t *testing.T) {
	q := newInputQueue(3)
	q.Push(PlayerInput{Message: protocol.Join()})
	for i := 1; i <= 6; i++ {
		q.Push(moveInput(float32(i)))
	}
	q.Push(PlayerInput{Message: protocol.Disconnect()})

	got := q.Drain()
	if len(got) != 3 {
		t.Fatalf("drained %d, want 3", len(got))
	}
	if got[0].Message.Kind != protocol.ClientJoin {
		t.Fatalf("first = %v, want Join kept at the front", got[0].Message.Kind)
	}
	if got[1].Message.Direction.X != 6 {
		t.Fatalf("second = %+v, want newest Move", got[1].Message)
	}
	if got[2].Message.Kind != protocol.ClientDisconnect {
		t.Fatalf("last = %v, want Disconnect", got[2].Message.Kind)
	}
}

func TestInputQueueEvictsControlWhenNoMoveLeft(t *testing.T) {
	q := newInputQueue(2)
	q.Push(PlayerInput{Message: protocol.Join()})
	q.Push(PlayerInput{Message: protocol.Disconnect()})
	if !q.Push(moveInput(1)) {
		t.Fatalf("overflow not reported")
	}
	got := q.Drain()
	if got[0].Message.Kind != protocol.ClientDisconnect || got[1].Message.Kind != protocol.ClientMove {
		t.Fatalf("got %+v, want oldest entry evicted", got)
	}
}
