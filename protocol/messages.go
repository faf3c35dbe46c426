package protocol

// ClientKind 客户端消息的标签
type ClientKind int

const (
	ClientJoin ClientKind = iota + 1
	ClientMove
	ClientDisconnect
)

// 线上标签名，稳定且互斥
const (
	TagJoin         = "Join"
	TagMove         = "Move"
	TagDisconnect   = "Disconnect"
	TagJoinAccepted = "JoinAccepted"
	TagGameState    = "GameState"
	TagError        = "Error"
)

func (k ClientKind) String() string {
	switch k {
	case ClientJoin:
		return TagJoin
	case ClientMove:
		return TagMove
	case ClientDisconnect:
		return TagDisconnect
	default:
		return "Unknown"
	}
}

// ClientMessage 客户端 → 服务端：Join | Move{direction} | Disconnect
type ClientMessage struct {
	Kind ClientKind
	// Direction 仅 Move 使用；直接作为速度向量（未归一化，由钳制兜底）
	Direction Vector2
}

func Join() ClientMessage       { return ClientMessage{Kind: ClientJoin} }
func Disconnect() ClientMessage { return ClientMessage{Kind: ClientDisconnect} }

func Move(direction Vector2) ClientMessage {
	return ClientMessage{Kind: ClientMove, Direction: direction}
}

// ServerKind 服务端消息的标签
type ServerKind int

const (
	ServerJoinAccepted ServerKind = iota + 1
	ServerGameState
	ServerError
)

func (k ServerKind) String() string {
	switch k {
	case ServerJoinAccepted:
		return TagJoinAccepted
	case ServerGameState:
		return TagGameState
	case ServerError:
		return TagError
	default:
		return "Unknown"
	}
}

// ServerMessage 服务端 → 客户端：JoinAccepted{player_id} | GameState(update) | Error{message}
type ServerMessage struct {
	Kind     ServerKind
	PlayerID string           // JoinAccepted
	State    *GameStateUpdate // GameState
	Message  string           // Error
}

// GameStateUpdate 每个 tick 广播一次的完整世界快照
type GameStateUpdate struct {
	Tick       uint64                 `json:"tick"`
	Players    map[string]PlayerState `json:"players"`
	ServerTime Timestamp              `json:"server_time"`
}

func JoinAccepted(playerID string) ServerMessage {
	return ServerMessage{Kind: ServerJoinAccepted, PlayerID: playerID}
}

func GameState(update GameStateUpdate) ServerMessage {
	return ServerMessage{Kind: ServerGameState, State: &update}
}

func Error(message string) ServerMessage {
	return ServerMessage{Kind: ServerError, Message: message}
}
