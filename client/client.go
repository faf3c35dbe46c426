// Package client 协议的客户端一侧：建立连接并完成 Join 握手
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/KyleDunbarDev/networking-basic/protocol"
)

// JoinTimeout 未在此时限内收到 JoinAccepted 即视为连接失败
const JoinTimeout = 5 * time.Second

var (
	ErrJoinTimeout  = errors.New("client: no JoinAccepted within deadline")
	ErrJoinRejected = errors.New("client: join rejected")
)

// Client 一条已完成握手的连接。Send/Move 可并发调用；Next 只允许一个读者。
type Client struct {
	PlayerID string

	conn  net.Conn
	lines *protocol.LineReader

	wmu       sync.Mutex
	closeOnce sync.Once
}

// Dial 连接并在 JoinTimeout 内完成握手
func Dial(ctx context.Context, addr string) (*Client, error) {
	return DialTimeout(ctx, addr, JoinTimeout)
}

// DialTimeout 同 Dial，握手时限可调
func DialTimeout(ctx context.Context, addr string, timeout time.Duration) (*Client, error) {
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	var d net.Dialer
	dialCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()
	conn, err := d.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("dial %s: %w", addr, ErrJoinTimeout)
		}
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	c := &Client{
		conn:  conn,
		lines: protocol.NewLineReader(conn, protocol.DefaultMaxLineBytes),
	}
	if err := c.handshake(ctx, deadline); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) handshake(ctx context.Context, deadline time.Time) error {
	// ctx 取消时让阻塞中的读立即返回
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	_ = c.conn.SetDeadline(deadline)
	if err := c.Send(protocol.Join()); err != nil {
		return c.handshakeErr(ctx, err)
	}
	for {
		line, err := c.lines.ReadLine()
		if err != nil {
			return c.handshakeErr(ctx, err)
		}
		msg, err := protocol.DecodeServer(line)
		if err != nil {
			// 无法解析的行直接丢弃
			continue
		}
		switch msg.Kind {
		case protocol.ServerJoinAccepted:
			c.PlayerID = msg.PlayerID
			_ = c.conn.SetDeadline(time.Time{})
			return nil
		case protocol.ServerError:
			return fmt.Errorf("%w: %s", ErrJoinRejected, msg.Message)
		}
		// 握手完成前的快照忽略
	}
}

func (c *Client) handshakeErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return ErrJoinTimeout
	}
	return fmt.Errorf("join: %w", err)
}

// Send 编码并写出一条消息
func (c *Client) Send(msg protocol.ClientMessage) error {
	b, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_, err = c.conn.Write(b)
	return err
}

// Move 发送移动意图；direction 即速度向量
func (c *Client) Move(direction protocol.Vector2) error {
	return c.Send(protocol.Move(direction))
}

// Next 阻塞读取下一条服务端消息；无法解析的行被跳过
func (c *Client) Next() (protocol.ServerMessage, error) {
	for {
		line, err := c.lines.ReadLine()
		if err != nil {
			return protocol.ServerMessage{}, err
		}
		msg, err := protocol.DecodeServer(line)
		if err != nil {
			continue
		}
		return msg, nil
	}
}

// SetReadDeadline 给 Next 设置时限；超时后该连接不可再读
func (c *Client) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

// Close 尽力发送 Disconnect 后关闭连接
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
		_ = c.Send(protocol.Disconnect())
		err = c.conn.Close()
	})
	return err
}
