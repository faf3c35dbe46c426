package client

import (
	"bufio"
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/KyleDunbarDev/networking-basic/protocol"
)

// fakeServer 接受一个连接，读到 Join 后按 reply 回写
func fakeServer(t *testing.T, reply func(net.Conn)) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		line, err := r.ReadBytes('\n')
		if err != nil {
			return
		}
		msg, err := protocol.DecodeClient(line)
		if err != nil || msg.Kind != protocol.ClientJoin {
			return
		}
		reply(conn)
		// 保持连接直到对端关闭
		_, _ = r.ReadBytes(0)
	}()
	return ln.Addr().String()
}

func writeMsg(t *testing.T, conn net.Conn, msg protocol.ServerMessage) {
	b, err := protocol.Encode(msg)
	if err != nil {
		t.Errorf("encode: %v", err)
		return
	}
	_, _ = conn.Write(b)
}

func TestDialAccepted(t *testing.T) {
	addr := fakeServer(t, func(conn net.Conn) {
		// 握手前的快照与垃圾行都应被跳过
		writeMsg(t, conn, protocol.GameState(protocol.GameStateUpdate{Tick: 1}))
		_, _ = conn.Write([]byte("not json\n"))
		writeMsg(t, conn, protocol.JoinAccepted("7"))
		writeMsg(t, conn, protocol.GameState(protocol.GameStateUpdate{Tick: 2}))
	})

	c, err := DialTimeout(context.Background(), addr, 2*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()
	if c.PlayerID != "7" {
		t.Fatalf("player id = %q, want 7", c.PlayerID)
	}

	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	msg, err := c.Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if msg.Kind != protocol.ServerGameState || msg.State.Tick != 2 {
		t.Fatalf("unexpected message %+v", msg)
	}
}

func TestDialTimeout(t *testing.T) {
	addr := fakeServer(t, func(net.Conn) {})

	start := time.Now()
	_, err := DialTimeout(context.Background(), addr, 100*time.Millisecond)
	if !errors.Is(err, ErrJoinTimeout) {
		t.Fatalf("err = %v, want ErrJoinTimeout", err)
	}
	if el := time.Since(start); el > 2*time.Second {
		t.Fatalf("timeout took %v", el)
	}
}

func TestDialRejected(t *testing.T) {
	addr := fakeServer(t, func(conn net.Conn) {
		writeMsg(t, conn, protocol.Error("server full"))
	})

	_, err := DialTimeout(context.Background(), addr, 2*time.Second)
	if !errors.Is(err, ErrJoinRejected) {
		t.Fatalf("err = %v, want ErrJoinRejected", err)
	}
}

func TestDialContextCanceled(t *testing.T) {
	addr := fakeServer(t, func(net.Conn) {})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)
	_, err := DialTimeout(ctx, addr, 5*time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
