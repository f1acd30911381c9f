package server

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

const resolveTimeout = 3 * time.Second

// Gate 入站事件调度：解析在读泵协程完成，状态变更统一投递到事件循环。
// 身份解析等协作方调用也留在读泵协程，绝不阻塞循环
type Gate struct {
	loop     *Loop
	sched    *Scheduler
	store    *RoomStore
	resolver ProfileResolver
	recorder ResultRecorder
	metrics  *Metrics
	pacing   Pacing // 仅在事件循环中读写（admin 写入也经循环投递）
}

// NewGate 显式注入依赖（注册表、调度器、协作方）
func NewGate(loop *Loop, sched *Scheduler, store *RoomStore, resolver ProfileResolver, recorder ResultRecorder, metrics *Metrics) *Gate {
	return &Gate{
		loop:     loop,
		sched:    sched,
		store:    store,
		resolver: resolver,
		recorder: recorder,
		metrics:  metrics,
		pacing:   DefaultPacing(),
	}
}

// Dispatch 读泵入口：按事件类型解析载荷并投递处理闭包
func (g *Gate) Dispatch(sess Session, env Envelope) {
	switch env.Type {
	case "create_room", "join_ai", "join_room", "join_random":
		var p JoinPayload
		_ = json.Unmarshal(env.Data, &p)
		profile := g.resolveProfile(p.Auth, p.Nickname)
		g.loop.Post(func() { g.handleJoin(sess, env.Type, p.Code, profile) })
	case "account_sync":
		// 不触及房间状态，直接在读泵协程应答
		var p AccountSyncPayload
		_ = json.Unmarshal(env.Data, &p)
		g.handleAccountSync(sess, env.Seq, p.Auth)
	default:
		g.loop.Post(func() { g.handleRoomEvent(sess, env) })
	}
}

// Disconnect 读泵退出时调用
func (g *Gate) Disconnect(sess Session) {
	g.loop.Post(func() { g.handleDisconnect(sess) })
}

// ─── 加入类事件 ─────────────────────────────────────────────

func (g *Gate) handleJoin(sess Session, kind, code string, profile Profile) {
	switch kind {
	case "create_room":
		g.handleCreateRoom(sess, profile)
	case "join_ai":
		g.handleJoinAI(sess, profile)
	case "join_room":
		g.handleJoinRoom(sess, code, profile)
	case "join_random":
		g.handleJoinRandom(sess, profile)
	}
}

func (g *Gate) handleCreateRoom(sess Session, profile Profile) {
	room := g.newRoom(MatchFriend)
	color, _ := room.AddPlayer(sess, profile)
	g.store.Add(room)
	g.store.RegisterSession(sess.ID(), room.RoomID)
	Log.Infof("room created: id=%s code=%s by=%s", room.RoomID, room.Code, sess.ID())

	sess.Send("room_created", struct {
		RoomID string      `json:"roomId"`
		Code   string      `json:"code"`
		Color  PlayerColor `json:"color"`
	}{room.RoomID, room.Code, color})
}

func (g *Gate) handleJoinAI(sess Session, profile Profile) {
	room := g.newRoom(MatchAI)
	g.store.Add(room)

	humanColor, ok := room.AddPlayer(sess, profile)
	if !ok {
		sess.Send("join_error", errorMessage("AI room creation failed."))
		return
	}
	room.AddAiPlayer("PathClash AI")
	g.store.RegisterSession(sess.ID(), room.RoomID)

	sess.Send("room_joined", struct {
		RoomID           string      `json:"roomId"`
		Color            PlayerColor `json:"color"`
		OpponentNickname string      `json:"opponentNickname"`
	}{room.RoomID, humanColor, room.OpponentNickname(humanColor)})

	g.sched.After(g.pacing.AIStartDelay, room.StartGame)
}

func (g *Gate) handleJoinRoom(sess Session, code string, profile Profile) {
	room := g.store.ByCode(strings.ToUpper(code))
	if room == nil || room.IsFull() {
		sess.Send("join_error", errorMessage("Room not found or already full."))
		return
	}

	color, ok := room.AddPlayer(sess, profile)
	if !ok {
		sess.Send("join_error", errorMessage("Unable to join this room."))
		return
	}
	g.store.RegisterSession(sess.ID(), room.RoomID)

	sess.Send("room_joined", struct {
		RoomID           string      `json:"roomId"`
		Color            PlayerColor `json:"color"`
		OpponentNickname string      `json:"opponentNickname"`
	}{room.RoomID, color, room.OpponentNickname(color)})
	room.EmitToOpponent(sess.ID(), "opponent_joined", struct {
		Nickname string `json:"nickname"`
	}{profile.Nickname})

	g.sched.After(g.pacing.StartDelay, room.StartGame)
}

func (g *Gate) handleJoinRandom(sess Session, profile Profile) {
	queued, ok := g.store.DequeueRandom()
	if !ok || queued.Session.ID() == sess.ID() {
		if ok {
			g.store.EnqueueRandom(queued) // 自己撞自己：放回，继续等待
		}
		g.store.EnqueueRandom(QueueEntry{
			Session:   sess,
			Nickname:  profile.Nickname,
			AccountID: profile.AccountID,
			Stats:     profile.Stats,
		})
		sess.Send("matchmaking_waiting", struct{}{})
		return
	}

	room := g.newRoom(MatchRandom)
	g.store.Add(room)

	// 队首先入座（红方）
	room.AddPlayer(queued.Session, Profile{
		AccountID: queued.AccountID,
		Nickname:  queued.Nickname,
		Stats:     queued.Stats,
	})
	g.store.RegisterSession(queued.Session.ID(), room.RoomID)
	queued.Session.Send("room_joined", struct {
		RoomID           string      `json:"roomId"`
		Color            PlayerColor `json:"color"`
		OpponentNickname string      `json:"opponentNickname"`
	}{room.RoomID, ColorRed, profile.Nickname})

	room.AddPlayer(sess, profile)
	g.store.RegisterSession(sess.ID(), room.RoomID)
	sess.Send("room_joined", struct {
		RoomID           string      `json:"roomId"`
		Color            PlayerColor `json:"color"`
		OpponentNickname string      `json:"opponentNickname"`
	}{room.RoomID, ColorBlue, queued.Nickname})

	g.sched.After(g.pacing.StartDelay, room.StartGame)
}

// ─── 房间内事件 ─────────────────────────────────────────────

func (g *Gate) handleRoomEvent(sess Session, env Envelope) {
	switch env.Type {
	case "cancel_random":
		g.store.RemoveFromQueue(sess.ID())
	case "path_update":
		var p PathPayload
		_ = json.Unmarshal(env.Data, &p)
		if room := g.store.BySession(sess.ID()); room != nil {
			room.UpdatePlannedPath(sess.ID(), p.Path)
		}
	case "submit_path":
		var p PathPayload
		_ = json.Unmarshal(env.Data, &p)
		ok := false
		if room := g.store.BySession(sess.ID()); room != nil {
			ok = room.SubmitPath(sess.ID(), p.Path)
		}
		sess.Ack(env.Seq, AckOK{OK: ok})
	case "request_rematch":
		if room := g.store.BySession(sess.ID()); room != nil {
			room.RequestRematch(sess.ID())
		}
	case "chat_send":
		var p ChatPayload
		_ = json.Unmarshal(env.Data, &p)
		if room := g.store.BySession(sess.ID()); room != nil {
			room.SendChat(sess.ID(), p.Message)
		}
	default:
		Log.Debugf("unknown event: type=%s session=%s", env.Type, sess.ID())
	}
}

func (g *Gate) handleDisconnect(sess Session) {
	Log.Infof("session disconnected: %s", sess.ID())
	g.store.RemoveFromQueue(sess.ID())
	room := g.store.RemoveSession(sess.ID())
	if room != nil && room.PlayerCount() > 0 {
		room.Broadcast("opponent_disconnected", struct{}{})
	}
}

// ─── 协作方 ────────────────────────────────────────────────

// resolveProfile 身份解析失败一律降级为访客档案
func (g *Gate) resolveProfile(auth *AuthPayload, fallback string) Profile {
	nick := normalizeNickname(fallback)
	token := ""
	if auth != nil {
		token = auth.AccessToken
	}
	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()
	profile, err := g.resolver.ResolveProfile(ctx, token, nick)
	if err != nil {
		Log.Warnf("profile resolve failed, degrading to guest: %v", err)
		return Profile{Nickname: nick}
	}
	profile.Nickname = normalizeNickname(profile.Nickname)
	return profile
}

func (g *Gate) handleAccountSync(sess Session, seq int64, auth *AuthPayload) {
	token := ""
	if auth != nil {
		token = auth.AccessToken
	}
	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()
	status, profile, err := g.resolver.ResolveAccount(ctx, token)
	if err != nil {
		Log.Warnf("account sync failed: session=%s err=%v", sess.ID(), err)
		status, profile = AuthInvalid, nil
	}
	sess.Ack(seq, AccountSyncAck{Status: status, Profile: profile})
}

func (g *Gate) newRoom(kind MatchType) *GameRoom {
	g.metrics.IncRoomCreated()
	return NewGameRoom(g.store.NewRoomID(), g.store.GenerateCode(), kind, g.sched, g.pacing, g.metrics, g.recorder)
}

func errorMessage(msg string) any {
	return struct {
		Message string `json:"message"`
	}{msg}
}
