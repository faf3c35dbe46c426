package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// wsTransport 每个文本帧承载一行协议消息
type wsTransport struct {
	ws           *websocket.Conn
	writeTimeout time.Duration
}

func newWSTransport(ws *websocket.Conn, maxLineBytes int, writeTimeout time.Duration) *wsTransport {
	if maxLineBytes > 0 {
		ws.SetReadLimit(int64(maxLineBytes))
	}
	return &wsTransport{ws: ws, writeTimeout: writeTimeout}
}

func (t *wsTransport) ReadMessage() ([]byte, error) {
	for {
		mt, payload, err := t.ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		if mt == websocket.TextMessage || mt == websocket.BinaryMessage {
			return payload, nil
		}
	}
}

func (t *wsTransport) WriteMessage(b []byte) error {
	if t.writeTimeout > 0 {
		_ = t.ws.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	}
	return t.ws.WriteMessage(websocket.TextMessage, b)
}

func (t *wsTransport) Close() error {
	return t.ws.Close()
}

func (t *wsTransport) RemoteAddr() string {
	return t.ws.RemoteAddr().String()
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 没有鉴权要求，允许所有来源
		return true
	},
}

// HandleWS WebSocket 接入：与 TCP 连接走同一套登记与读写泵
func (a *Authority) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.log.Warnf("upgrade error: %v", err)
		return
	}
	a.attach(newWSTransport(ws, a.maxLineBytes, a.writeTimeout))
}
