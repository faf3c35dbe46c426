package server

import (
	"bytes"
	"errors"
	"io"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/KyleDunbarDev/networking-basic/protocol"
)

// transport 一条客户端字节流；一次只允许一个读协程和一个写协程
type transport interface {
	// ReadMessage 读取一行（一帧）消息
	ReadMessage() ([]byte, error)
	// WriteMessage 完整写出并刷新
	WriteMessage(b []byte) error
	Close() error
	RemoteAddr() string
}

// ClientConn 负责发送（写）数据到客户端的轻量包装
type ClientConn struct {
	t    transport
	send chan []byte
	dead chan struct{} // 写协程退出后关闭

	closeOnce sync.Once
	log       *zap.SugaredLogger
}

func newClientConn(t transport, buffer int, log *zap.SugaredLogger) *ClientConn {
	if buffer < 1 {
		buffer = 1
	}
	return &ClientConn{
		t:    t,
		send: make(chan []byte, buffer),
		dead: make(chan struct{}),
		log:  log,
	}
}

// Enqueue 将已序列化的消息压入发送队列（非阻塞）。
// 写协程已退出或队列已满时返回 false，由权威循环移除该玩家。
func (c *ClientConn) Enqueue(b []byte) bool {
	select {
	case <-c.dead:
		return false
	default:
	}
	select {
	case c.send <- b:
		return true
	default:
		return false
	}
}

// Close 关闭发送队列；写协程写完已入队的数据后关闭底层连接。
// 只能由权威循环调用。
func (c *ClientConn) Close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// writePump 独立协程，按入队顺序逐条写出
func (c *ClientConn) writePump() {
	defer close(c.dead)
	defer c.t.Close()
	for msg := range c.send {
		if err := c.t.WriteMessage(msg); err != nil {
			c.log.Debugw("write failed, stopping writer", "err", err)
			return
		}
	}
}

// readPump 读取客户端消息并转交权威循环；流结束或出错时合成 Disconnect
func (c *ClientConn) readPump(a *Authority, playerID string) {
	// 读泵退出时，通知权威循环在 Tick 中移除该玩家
	defer a.RequestLeave(playerID)

	for {
		line, err := c.t.ReadMessage()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				c.log.Debugw("connection closed", "err", err)
			} else {
				c.log.Warnw("read failed", "err", err)
			}
			return
		}
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		msg, err := protocol.DecodeClient(line)
		if err != nil {
			a.metrics.IncDecodeErrors()
			c.log.Warnw("discarding undecodable line", "err", err)
			continue
		}
		if !a.OnInput(playerID, msg) {
			return
		}
	}
}
