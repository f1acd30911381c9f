package server

import (
	"context"
	"fmt"
	"time"
)

// 房间节奏默认值（可经 /admin/config 热更新，对新建房间生效）
const (
	defaultPlanningTime = 7 * time.Second
	defaultSubmitGrace  = 350 * time.Millisecond
	defaultRoundPause   = 500 * time.Millisecond
	defaultStartDelay   = 500 * time.Millisecond
	defaultAIStartDelay = 300 * time.Millisecond
	maxChatRunes        = 200
)

// Pacing 房间节奏配置
type Pacing struct {
	PlanningTime time.Duration
	SubmitGrace  time.Duration
	RoundPause   time.Duration
	StartDelay   time.Duration
	AIStartDelay time.Duration
}

// DefaultPacing 原版节奏：规划 7s、宽限 350ms、回合间停顿 500ms
func DefaultPacing() Pacing {
	return Pacing{
		PlanningTime: defaultPlanningTime,
		SubmitGrace:  defaultSubmitGrace,
		RoundPause:   defaultRoundPause,
		StartDelay:   defaultStartDelay,
		AIStartDelay: defaultAIStartDelay,
	}
}

// GameRoom 单场对局的状态机：权威状态仅在事件循环中变更，无锁
// 组合 GameEngine（规则）、AiPlanner（机器人）与 ServerTimer（规划限时）
type GameRoom struct {
	RoomID    string
	Code      string
	MatchKind MatchType

	sched    *Scheduler
	timer    *ServerTimer
	pacing   Pacing
	metrics  *Metrics
	recorder ResultRecorder

	players       map[PlayerColor]*PlayerState
	phase         GamePhase
	turn          int
	attackerColor PlayerColor
	obstacles     []Position
	rematchSet    map[string]struct{}
	aiColor       PlayerColor // "" 表示无 AI 座位
}

// NewGameRoom 创建房间；首个加入者为红方
func NewGameRoom(roomID, code string, kind MatchType, sched *Scheduler, pacing Pacing, metrics *Metrics, recorder ResultRecorder) *GameRoom {
	return &GameRoom{
		RoomID:        roomID,
		Code:          code,
		MatchKind:     kind,
		sched:         sched,
		timer:         NewServerTimer(sched),
		pacing:        pacing,
		metrics:       metrics,
		recorder:      recorder,
		players:       make(map[PlayerColor]*PlayerState),
		phase:         PhaseWaiting,
		turn:          1,
		attackerColor: ColorRed,
		rematchSet:    make(map[string]struct{}),
	}
}

// PlayerCount 当前占座数
func (r *GameRoom) PlayerCount() int { return len(r.players) }

// IsFull 房间容量恒为 2
func (r *GameRoom) IsFull() bool { return len(r.players) == 2 }

// HasHumanPlayers 是否仍有人类占座（决定房间是否该被拆除）
func (r *GameRoom) HasHumanPlayers() bool {
	for _, p := range r.players {
		if p.Color != r.aiColor {
			return true
		}
	}
	return false
}

// AddPlayer 人类入座：先红后蓝，满员拒绝
func (r *GameRoom) AddPlayer(sess Session, profile Profile) (PlayerColor, bool) {
	if r.IsFull() {
		return "", false
	}
	color := ColorRed
	if len(r.players) > 0 {
		color = ColorBlue
	}
	p := r.newPlayerState(color, sess.ID(), profile.Nickname)
	p.Session = sess
	p.AccountID = profile.AccountID
	p.Stats = profile.Stats
	r.players[color] = p
	return color, true
}

// AddAiPlayer 机器人入座
func (r *GameRoom) AddAiPlayer(nickname string) (PlayerColor, bool) {
	if r.IsFull() {
		return "", false
	}
	color := ColorRed
	if len(r.players) > 0 {
		color = ColorBlue
	}
	id := fmt.Sprintf("ai_%s_%s", r.RoomID, color)
	r.players[color] = r.newPlayerState(color, id, nickname)
	r.aiColor = color
	return color, true
}

// RemovePlayer 按会话移除玩家：缺一侧无法推进，取消规划截止
func (r *GameRoom) RemovePlayer(sessionID string) {
	for color, p := range r.players {
		if p.ID == sessionID {
			delete(r.players, color)
			if r.aiColor == color {
				r.aiColor = ""
			}
			r.timer.Clear()
			return
		}
	}
}

// ─── 对局流程 ───────────────────────────────────────────────

// StartGame 开局：回合 1、红方进攻、血量与位置复位，广播完整状态后进入首回合
func (r *GameRoom) StartGame() {
	r.startGameAs("game_start")
}

func (r *GameRoom) startGameAs(event string) {
	if !r.IsFull() {
		return
	}
	r.phase = PhasePlanning
	r.turn = 1
	r.attackerColor = ColorRed
	r.resetPositions()
	r.updateRoles()
	r.metrics.IncMatchStarted()
	r.Broadcast(event, r.ClientState())
	r.startRound()
}

// startRound 进入 planning：清空双方规划，重算障碍，广播回合参数并武装截止
func (r *GameRoom) startRound() {
	red, blue := r.players[ColorRed], r.players[ColorBlue]
	if red == nil || blue == nil {
		return
	}
	r.phase = PhasePlanning
	red.PlannedPath, red.PathSubmitted = nil, false
	blue.PlannedPath, blue.PathSubmitted = nil, false
	r.obstacles = GenerateObstacles(r.RoomID, r.turn, red.Position, blue.Position)
	r.metrics.IncRoundPlayed()

	r.Broadcast("round_start", RoundStartPayload{
		Turn:          r.turn,
		PathPoints:    PathPoints(r.turn),
		AttackerColor: r.attackerColor,
		RedPosition:   red.Position,
		BluePosition:  blue.Position,
		Obstacles:     r.obstacles,
		TimeLimit:     int(r.pacing.PlanningTime / time.Second),
		ServerTime:    r.sched.Now().UnixMilli(),
	})

	r.timer.Start(r.pacing.PlanningTime, r.onPlanningTimeout)
}

// onPlanningTimeout 截止触发：机器人先交，宽限窗后强制未交者按已知最优路径结算
func (r *GameRoom) onPlanningTimeout() {
	r.submitAiPath()

	// 宽限窗：容忍恰在截止前发出、仍在途中的合法提交
	r.sched.After(r.pacing.SubmitGrace, func() {
		if r.phase != PhasePlanning {
			return
		}
		maxPoints := PathPoints(r.turn)
		for _, p := range r.players {
			if p.PathSubmitted {
				continue
			}
			if !IsValidPath(p.Position, p.PlannedPath, maxPoints, r.obstacles) {
				p.PlannedPath = nil
			}
			p.PathSubmitted = true
			r.metrics.IncForcedSubmit()
		}
		r.revealPaths()
	})
}

// UpdatePlannedPath 规划阶段的非权威预览：合法则覆盖暂存
func (r *GameRoom) UpdatePlannedPath(sessionID string, path []Position) {
	if r.phase != PhasePlanning {
		return
	}
	p := r.playerBySession(sessionID)
	if p == nil || p.PathSubmitted {
		return
	}
	if !IsValidPath(p.Position, path, PathPoints(r.turn), r.obstacles) {
		return
	}
	p.PlannedPath = path
}

// SubmitPath 每色一回合只许提交一次；非法提交降级为最近合法预览，再降为空路径
func (r *GameRoom) SubmitPath(sessionID string, path []Position) bool {
	if r.phase != PhasePlanning {
		return false
	}
	p := r.playerBySession(sessionID)
	if p == nil || p.PathSubmitted {
		return false
	}

	maxPoints := PathPoints(r.turn)
	if IsValidPath(p.Position, path, maxPoints, r.obstacles) {
		p.PlannedPath = path
	} else if !IsValidPath(p.Position, p.PlannedPath, maxPoints, r.obstacles) {
		p.PlannedPath = nil
	}
	p.PathSubmitted = true

	// 只告知对手"已提交"，内容保密
	r.EmitToOpponent(sessionID, "opponent_submitted", struct{}{})

	allSubmitted := true
	for _, q := range r.players {
		if !q.PathSubmitted {
			allSubmitted = false
		}
	}
	if allSubmitted {
		r.timer.Clear()
		r.revealPaths()
	}
	return true
}

// revealPaths 进入 moving：结算碰撞并广播，推进位置，等回放时长后收尾
// phase 守卫保证每回合最多结算一次；迟到的截止触发自然空转
func (r *GameRoom) revealPaths() {
	if r.phase != PhasePlanning {
		return
	}
	red, blue := r.players[ColorRed], r.players[ColorBlue]
	if red == nil || blue == nil {
		return
	}
	r.phase = PhaseMoving

	escaper := blue
	if r.attackerColor == ColorBlue {
		escaper = red
	}
	collisions := DetectCollisions(
		red.PlannedPath, blue.PlannedPath,
		red.Position, blue.Position,
		r.attackerColor, escaper.HP,
	)
	r.metrics.AddCollisions(len(collisions))

	r.Broadcast("paths_reveal", PathsRevealPayload{
		RedPath:    red.PlannedPath,
		BluePath:   blue.PlannedPath,
		RedStart:   red.Position,
		BlueStart:  blue.Position,
		Collisions: collisions,
	})

	// 净血量变化：取最后一次碰撞后的血量
	if len(collisions) > 0 {
		escaper.HP = collisions[len(collisions)-1].NewHP
	}

	// 位置推进到路径末格（空路径原地不动）
	if len(red.PlannedPath) > 0 {
		red.Position = red.PlannedPath[len(red.PlannedPath)-1]
	}
	if len(blue.PlannedPath) > 0 {
		blue.Position = blue.PlannedPath[len(blue.PlannedPath)-1]
	}

	longer := len(red.PlannedPath)
	if len(blue.PlannedPath) > longer {
		longer = len(blue.PlannedPath)
	}
	r.sched.After(CalcAnimationDuration(longer), r.onMovingComplete)
}

// onMovingComplete 回放结束：判终局或换边进入下一回合
func (r *GameRoom) onMovingComplete() {
	red, blue := r.players[ColorRed], r.players[ColorBlue]
	if red == nil || blue == nil || r.phase != PhaseMoving {
		return
	}

	if red.HP <= 0 || blue.HP <= 0 {
		r.phase = PhaseGameOver
		winner, loser := red, blue
		if red.HP <= 0 {
			winner, loser = blue, red
		}
		winner.Stats.Wins++
		loser.Stats.Losses++
		r.metrics.IncMatchFinished()

		r.Broadcast("game_over", struct {
			Winner PlayerColor `json:"winner"`
		}{winner.Color})

		// 赛果持久化是外部协作方，异步执行、失败只记日志，绝不阻塞对局
		if winner.AccountID != nil && loser.AccountID != nil {
			winID, loseID := *winner.AccountID, *loser.AccountID
			rec := r.recorder
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := rec.RecordResult(ctx, winID, loseID); err != nil {
					Log.Warnf("record result failed: room=%s err=%v", r.RoomID, err)
				}
			}()
		}
		return
	}

	r.turn++
	r.attackerColor = r.attackerColor.Opponent()
	r.updateRoles()

	r.Broadcast("round_end", struct {
		RedPosition  Position `json:"redPosition"`
		BluePosition Position `json:"bluePosition"`
		NewTurn      int      `json:"newTurn"`
	}{red.Position, blue.Position, r.turn})

	r.sched.After(r.pacing.RoundPause, r.startRound)
}

// ─── 再战 ───────────────────────────────────────────────────

// RequestRematch 终局后的再战协商：有机器人则立即重开（机器人总是同意）；
// 否则进入协商集合，第一人通知对手，第二人达成一致后重开
func (r *GameRoom) RequestRematch(sessionID string) {
	if r.phase != PhaseGameOver {
		return
	}
	if r.aiColor != "" {
		clear(r.rematchSet)
		r.resetGame()
		r.startGameAs("rematch_start")
		return
	}
	if _, dup := r.rematchSet[sessionID]; dup {
		return
	}
	r.rematchSet[sessionID] = struct{}{}

	if len(r.rematchSet) == 1 {
		r.EmitToOpponent(sessionID, "rematch_requested", struct{}{})
		return
	}
	clear(r.rematchSet)
	r.resetGame()
	r.startGameAs("rematch_start")
}

// ─── 聊天 ───────────────────────────────────────────────────

// SendChat 透传聊天（截断到 200 字符），带发送者颜色与服务器时间戳
func (r *GameRoom) SendChat(sessionID, message string) {
	p := r.playerBySession(sessionID)
	if p == nil {
		return
	}
	runes := []rune(message)
	if len(runes) > maxChatRunes {
		runes = runes[:maxChatRunes]
	}
	r.metrics.IncChatMessage()
	r.Broadcast("chat_receive", struct {
		Sender    string      `json:"sender"`
		Color     PlayerColor `json:"color"`
		Message   string      `json:"message"`
		Timestamp int64       `json:"timestamp"`
	}{p.Nickname, p.Color, string(runes), r.sched.Now().UnixMilli()})
}

// ─── 辅助 ───────────────────────────────────────────────────

func (r *GameRoom) resetGame() {
	r.turn = 1
	r.attackerColor = ColorRed
	r.phase = PhaseWaiting
	r.obstacles = nil
	r.resetPositions()
	for _, p := range r.players {
		p.HP = initialHP
		p.PlannedPath = nil
		p.PathSubmitted = false
	}
	r.updateRoles()
}

func (r *GameRoom) resetPositions() {
	redPos, bluePos := InitialPositions()
	if red := r.players[ColorRed]; red != nil {
		red.Position = redPos
	}
	if blue := r.players[ColorBlue]; blue != nil {
		blue.Position = bluePos
	}
}

func (r *GameRoom) updateRoles() {
	for color, p := range r.players {
		if color == r.attackerColor {
			p.Role = RoleAttacker
		} else {
			p.Role = RoleEscaper
		}
	}
}

func (r *GameRoom) playerBySession(sessionID string) *PlayerState {
	for _, p := range r.players {
		if p.ID == sessionID {
			return p
		}
	}
	return nil
}

// EmitToOpponent 定向发给对手；对手是机器人则丢弃
func (r *GameRoom) EmitToOpponent(sessionID, event string, data any) {
	for _, p := range r.players {
		if p.ID == sessionID {
			continue
		}
		if p.Color == r.aiColor || p.Session == nil {
			return
		}
		p.Session.Send(event, data)
		return
	}
}

// Broadcast 房间内全员广播（跳过机器人座位）
func (r *GameRoom) Broadcast(event string, data any) {
	for _, p := range r.players {
		if p.Session != nil {
			p.Session.Send(event, data)
		}
	}
}

// ClientState 完整房间快照的客户端投影
func (r *GameRoom) ClientState() ClientGameState {
	red, blue := r.players[ColorRed], r.players[ColorBlue]
	state := ClientGameState{
		RoomID:        r.RoomID,
		Code:          r.Code,
		Turn:          r.turn,
		Phase:         r.phase,
		PathPoints:    PathPoints(r.turn),
		Obstacles:     r.obstacles,
		AttackerColor: r.attackerColor,
	}
	if red != nil {
		state.Players.Red = ToClientPlayer(red)
	}
	if blue != nil {
		state.Players.Blue = ToClientPlayer(blue)
	}
	return state
}

// PlayerColorOf 会话对应的座位颜色
func (r *GameRoom) PlayerColorOf(sessionID string) (PlayerColor, bool) {
	if p := r.playerBySession(sessionID); p != nil {
		return p.Color, true
	}
	return "", false
}

// OpponentNickname 对手昵称（给 room_joined 用）
func (r *GameRoom) OpponentNickname(color PlayerColor) string {
	if p := r.players[color.Opponent()]; p != nil {
		return p.Nickname
	}
	return ""
}

// submitAiPath 机器人按角色合成路径并提交（每回合一次）
func (r *GameRoom) submitAiPath() {
	if r.aiColor == "" || r.phase != PhasePlanning {
		return
	}
	ai := r.players[r.aiColor]
	if ai == nil || ai.PathSubmitted {
		return
	}
	opponent := r.players[r.aiColor.Opponent()]
	if opponent == nil {
		return
	}
	ai.PlannedPath = PlanPath(ai.Role, ai.Position, opponent.Position, PathPoints(r.turn), r.obstacles)
	ai.PathSubmitted = true
}

func (r *GameRoom) newPlayerState(color PlayerColor, id, nickname string) *PlayerState {
	redPos, bluePos := InitialPositions()
	pos := redPos
	role := RoleAttacker
	if color == ColorBlue {
		pos = bluePos
		role = RoleEscaper
	}
	return &PlayerState{
		ID:       id,
		Nickname: nickname,
		Color:    color,
		HP:       initialHP,
		Position: pos,
		Role:     role,
	}
}
