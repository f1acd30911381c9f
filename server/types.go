package server

// PlayerColor 玩家颜色：红方先入座
type PlayerColor string

const (
	ColorRed  PlayerColor = "red"
	ColorBlue PlayerColor = "blue"
)

// Opponent 对方颜色
func (c PlayerColor) Opponent() PlayerColor {
	if c == ColorRed {
		return ColorBlue
	}
	return ColorRed
}

// GamePhase 房间阶段状态机：waiting → planning → moving → planning ... → gameover
type GamePhase string

const (
	PhaseWaiting  GamePhase = "waiting"
	PhasePlanning GamePhase = "planning"
	PhaseMoving   GamePhase = "moving"
	PhaseGameOver GamePhase = "gameover"
)

// PlayerRole 每回合互斥角色：只有 escaper 会掉血
type PlayerRole string

const (
	RoleAttacker PlayerRole = "attacker"
	RoleEscaper  PlayerRole = "escaper"
)

// MatchType 对局类型
type MatchType string

const (
	MatchFriend MatchType = "friend"
	MatchRandom MatchType = "random"
	MatchAI     MatchType = "ai"
)

// Position 5×5 棋盘坐标，行列均在 [0,4]
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// PlayerStats 胜负计数
type PlayerStats struct {
	Wins   int `json:"wins"`
	Losses int `json:"losses"`
}

// Session 出站事件通道（由传输层实现；AI 座位为 nil）
type Session interface {
	ID() string
	Send(event string, data any)
	Ack(seq int64, data any)
}

// PlayerState 服务端权威玩家状态，归属其 GameRoom 独占
type PlayerState struct {
	ID            string
	AccountID     *string // 持久账号，访客为 nil
	Session       Session
	Nickname      string
	Color         PlayerColor
	HP            int
	Position      Position
	PlannedPath   []Position
	PathSubmitted bool
	Role          PlayerRole
	Stats         PlayerStats
}

// ClientPlayer 客户端安全投影：显式字段映射，去除会话句柄
type ClientPlayer struct {
	ID            string      `json:"id"`
	Nickname      string      `json:"nickname"`
	Color         PlayerColor `json:"color"`
	HP            int         `json:"hp"`
	Position      Position    `json:"position"`
	PathSubmitted bool        `json:"pathSubmitted"`
	Role          PlayerRole  `json:"role"`
	Stats         PlayerStats `json:"stats"`
}

// ToClientPlayer 服务端状态 → 客户端投影
func ToClientPlayer(p *PlayerState) ClientPlayer {
	return ClientPlayer{
		ID:            p.ID,
		Nickname:      p.Nickname,
		Color:         p.Color,
		HP:            p.HP,
		Position:      p.Position,
		PathSubmitted: p.PathSubmitted,
		Role:          p.Role,
		Stats:         p.Stats,
	}
}

// ClientGameState 广播给客户端的完整房间快照
type ClientGameState struct {
	RoomID        string      `json:"roomId"`
	Code          string      `json:"code"`
	Turn          int         `json:"turn"`
	Phase         GamePhase   `json:"phase"`
	PathPoints    int         `json:"pathPoints"`
	Obstacles     []Position  `json:"obstacles"`
	Players       ClientPair  `json:"players"`
	AttackerColor PlayerColor `json:"attackerColor"`
}

// ClientPair 双方投影
type ClientPair struct {
	Red  ClientPlayer `json:"red"`
	Blue ClientPlayer `json:"blue"`
}

// RoundStartPayload round_start 事件载荷
type RoundStartPayload struct {
	Turn          int         `json:"turn"`
	PathPoints    int         `json:"pathPoints"`
	AttackerColor PlayerColor `json:"attackerColor"`
	RedPosition   Position    `json:"redPosition"`
	BluePosition  Position    `json:"bluePosition"`
	Obstacles     []Position  `json:"obstacles"`
	TimeLimit     int         `json:"timeLimit"` // 秒
	ServerTime    int64       `json:"serverTime"`
}

// PathsRevealPayload paths_reveal 事件载荷
type PathsRevealPayload struct {
	RedPath    []Position       `json:"redPath"`
	BluePath   []Position       `json:"bluePath"`
	RedStart   Position         `json:"redStart"`
	BlueStart  Position         `json:"blueStart"`
	Collisions []CollisionEvent `json:"collisions"`
}
