package protocol

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// DefaultMaxLineBytes 单行消息上限
const DefaultMaxLineBytes = 64 * 1024

var (
	ErrEmptyMessage = errors.New("protocol: empty message")
	ErrUnknownTag   = errors.New("protocol: unknown message tag")
	ErrAmbiguousTag = errors.New("protocol: message must carry exactly one tag")
)

// DecodeError 无法解析的一行；调用方记录并丢弃，不断开连接
type DecodeError struct {
	Line string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %q: %v", e.Line, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Encode 序列化为一行 JSON（以 '\n' 结尾）。JSON 字符串转义保证行内不会出现裸换行。
func Encode(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// DecodeClient 解析一行客户端消息
func DecodeClient(line []byte) (ClientMessage, error) {
	var m ClientMessage
	if err := decodeLine(line, &m); err != nil {
		return ClientMessage{}, err
	}
	return m, nil
}

// DecodeServer 解析一行服务端消息
func DecodeServer(line []byte) (ServerMessage, error) {
	var m ServerMessage
	if err := decodeLine(line, &m); err != nil {
		return ServerMessage{}, err
	}
	return m, nil
}

func decodeLine(line []byte, v any) error {
	line = trimLine(line)
	if len(line) == 0 {
		return &DecodeError{Err: ErrEmptyMessage}
	}
	if err := json.Unmarshal(line, v); err != nil {
		return &DecodeError{Line: string(line), Err: err}
	}
	return nil
}

func trimLine(line []byte) []byte {
	return bytes.TrimSpace(line)
}

// LineReader 按 '\n' 切分字节流，单行超过上限视为传输错误
type LineReader struct {
	sc *bufio.Scanner
}

func NewLineReader(r io.Reader, maxLineBytes int) *LineReader {
	if maxLineBytes <= 0 {
		maxLineBytes = DefaultMaxLineBytes
	}
	sc := bufio.NewScanner(r)
	initial := 4096
	if initial > maxLineBytes {
		initial = maxLineBytes
	}
	sc.Buffer(make([]byte, 0, initial), maxLineBytes)
	return &LineReader{sc: sc}
}

// ReadLine 返回下一行（不含换行符），仅在下次调用前有效；流结束返回 io.EOF
func (r *LineReader) ReadLine() ([]byte, error) {
	if r.sc.Scan() {
		return r.sc.Bytes(), nil
	}
	if err := r.sc.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

type moveBody struct {
	Direction *Vector2 `json:"direction"`
}

type joinAcceptedBody struct {
	PlayerID string `json:"player_id"`
}

type errorBody struct {
	Message string `json:"message"`
}

// MarshalJSON 外部标签编码：{"Join":null} / {"Move":{"direction":{...}}} / {"Disconnect":null}
func (m ClientMessage) MarshalJSON() ([]byte, error) {
	switch m.Kind {
	case ClientJoin:
		return []byte(`{"Join":null}`), nil
	case ClientDisconnect:
		return []byte(`{"Disconnect":null}`), nil
	case ClientMove:
		d := m.Direction
		return json.Marshal(map[string]moveBody{TagMove: {Direction: &d}})
	default:
		return nil, fmt.Errorf("%w: client kind %d", ErrUnknownTag, m.Kind)
	}
}

// UnmarshalJSON 也接受裸字符串形式的单元变体（"Join"）
func (m *ClientMessage) UnmarshalJSON(data []byte) error {
	tag, body, err := splitTag(data)
	if err != nil {
		return err
	}
	switch tag {
	case TagJoin:
		*m = Join()
	case TagDisconnect:
		*m = Disconnect()
	case TagMove:
		var mb moveBody
		if err := unmarshalBody(body, &mb); err != nil {
			return fmt.Errorf("Move: %w", err)
		}
		if mb.Direction == nil {
			return fmt.Errorf("Move: missing direction")
		}
		*m = Move(*mb.Direction)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTag, tag)
	}
	return nil
}

func (m ServerMessage) MarshalJSON() ([]byte, error) {
	switch m.Kind {
	case ServerJoinAccepted:
		return json.Marshal(map[string]joinAcceptedBody{TagJoinAccepted: {PlayerID: m.PlayerID}})
	case ServerGameState:
		st := m.State
		if st == nil {
			st = &GameStateUpdate{}
		}
		if st.Players == nil {
			cp := *st
			cp.Players = map[string]PlayerState{}
			st = &cp
		}
		return json.Marshal(map[string]*GameStateUpdate{TagGameState: st})
	case ServerError:
		return json.Marshal(map[string]errorBody{TagError: {Message: m.Message}})
	default:
		return nil, fmt.Errorf("%w: server kind %d", ErrUnknownTag, m.Kind)
	}
}

func (m *ServerMessage) UnmarshalJSON(data []byte) error {
	tag, body, err := splitTag(data)
	if err != nil {
		return err
	}
	switch tag {
	case TagJoinAccepted:
		var b joinAcceptedBody
		if err := unmarshalBody(body, &b); err != nil {
			return fmt.Errorf("JoinAccepted: %w", err)
		}
		*m = JoinAccepted(b.PlayerID)
	case TagGameState:
		var st GameStateUpdate
		if err := unmarshalBody(body, &st); err != nil {
			return fmt.Errorf("GameState: %w", err)
		}
		*m = GameState(st)
	case TagError:
		var b errorBody
		if err := unmarshalBody(body, &b); err != nil {
			return fmt.Errorf("Error: %w", err)
		}
		*m = Error(b.Message)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTag, tag)
	}
	return nil
}

// splitTag 拆出唯一的标签与其载荷
func splitTag(data []byte) (string, json.RawMessage, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return "", nil, ErrEmptyMessage
	}
	if data[0] == '"' {
		var tag string
		if err := json.Unmarshal(data, &tag); err != nil {
			return "", nil, err
		}
		return tag, nil, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return "", nil, err
	}
	switch len(obj) {
	case 0:
		return "", nil, ErrEmptyMessage
	case 1:
	default:
		return "", nil, ErrAmbiguousTag
	}
	for tag, body := range obj {
		return tag, body, nil
	}
	return "", nil, ErrEmptyMessage
}

func unmarshalBody(body json.RawMessage, v any) error {
	if len(body) == 0 || bytes.Equal(bytes.TrimSpace(body), []byte("null")) {
		return errors.New("missing payload")
	}
	return json.Unmarshal(body, v)
}
