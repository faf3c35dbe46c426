package server

import (
	"bufio"
	"context"
	"errors"
	"net"
	"time"

	"github.com/KyleDunbarDev/networking-basic/protocol"
)

// tcpTransport 换行分隔 JSON 的 TCP 连接
type tcpTransport struct {
	conn         net.Conn
	lines        *protocol.LineReader
	w            *bufio.Writer
	writeTimeout time.Duration
}

func newTCPTransport(conn net.Conn, maxLineBytes int, writeTimeout time.Duration) *tcpTransport {
	return &tcpTransport{
		conn:         conn,
		lines:        protocol.NewLineReader(conn, maxLineBytes),
		w:            bufio.NewWriter(conn),
		writeTimeout: writeTimeout,
	}
}

func (t *tcpTransport) ReadMessage() ([]byte, error) {
	return t.lines.ReadLine()
}

func (t *tcpTransport) WriteMessage(b []byte) error {
	if t.writeTimeout > 0 {
		_ = t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	}
	if _, err := t.w.Write(b); err != nil {
		return err
	}
	return t.w.Flush()
}

func (t *tcpTransport) Close() error {
	return t.conn.Close()
}

func (t *tcpTransport) RemoteAddr() string {
	if addr := t.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return "unknown"
}

// acceptLoop 持续接受新连接，直到监听器关闭。
// 单次 accept 失败只记录并退避，不会结束循环。
func (a *Authority) acceptLoop(ctx context.Context, ln net.Listener) {
	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return
			}
			if backoff == 0 {
				backoff = 5 * time.Millisecond
			} else if backoff *= 2; backoff > time.Second {
				backoff = time.Second
			}
			a.log.Warnf("accept error: %v; retrying in %v", err, backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			continue
		}
		backoff = 0
		if tc, ok := conn.(*net.TCPConn); ok {
			_ = tc.SetNoDelay(true)
		}
		a.attach(newTCPTransport(conn, a.maxLineBytes, a.writeTimeout))
	}
}
