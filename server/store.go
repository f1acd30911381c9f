package server

import (
	"math/rand"
	"strings"

	"github.com/google/uuid"
)

// 邀请码：去除易混字符（0/O、1/I）的定长字母表
const (
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength   = 6
)

// QueueEntry 随机匹配队列项（FIFO）
type QueueEntry struct {
	Session   Session
	Nickname  string
	AccountID *string
	Stats     PlayerStats
}

// RoomStore 进程级注册表：房间、邀请码、会话归属与匹配队列
// 仅在事件循环中访问（见 Loop），因此不加锁；跨进程共享不在范围内
type RoomStore struct {
	rooms         map[string]*GameRoom
	codeToRoom    map[string]string // code → roomId
	sessionToRoom map[string]string // sessionId → roomId
	matchQueue    []QueueEntry
}

// NewRoomStore 显式构造并注入使用，不做包级单例，便于多实例测试
func NewRoomStore() *RoomStore {
	return &RoomStore{
		rooms:         make(map[string]*GameRoom),
		codeToRoom:    make(map[string]string),
		sessionToRoom: make(map[string]string),
	}
}

// Add 登记房间与其邀请码
func (s *RoomStore) Add(room *GameRoom) {
	s.rooms[room.RoomID] = room
	s.codeToRoom[room.Code] = room.RoomID
}

// ByID 按房间 id 查找；未知返回 nil
func (s *RoomStore) ByID(roomID string) *GameRoom {
	return s.rooms[roomID]
}

// ByCode 按邀请码查找；未知返回 nil
func (s *RoomStore) ByCode(code string) *GameRoom {
	roomID, ok := s.codeToRoom[strings.ToUpper(code)]
	if !ok {
		return nil
	}
	return s.rooms[roomID]
}

// BySession 按会话查找归属房间；未知返回 nil
func (s *RoomStore) BySession(sessionID string) *GameRoom {
	roomID, ok := s.sessionToRoom[sessionID]
	if !ok {
		return nil
	}
	return s.rooms[roomID]
}

// RegisterSession 绑定会话到房间
func (s *RoomStore) RegisterSession(sessionID, roomID string) {
	s.sessionToRoom[sessionID] = roomID
}

// RemoveSession 解绑会话并把玩家移出房间；没有人类占座的房间就地拆除
// 返回受影响的房间（可能已拆除），未命中返回 nil
func (s *RoomStore) RemoveSession(sessionID string) *GameRoom {
	roomID, ok := s.sessionToRoom[sessionID]
	delete(s.sessionToRoom, sessionID)
	if !ok {
		return nil
	}
	room := s.rooms[roomID]
	if room == nil {
		return nil
	}
	room.RemovePlayer(sessionID)
	if room.PlayerCount() == 0 || !room.HasHumanPlayers() {
		delete(s.rooms, roomID)
		delete(s.codeToRoom, room.Code)
	}
	return room
}

// GenerateCode 生成 6 位邀请码，与在用码冲突则重生成
func (s *RoomStore) GenerateCode() string {
	for {
		b := make([]byte, codeLength)
		for i := range b {
			b[i] = codeAlphabet[rand.Intn(len(codeAlphabet))]
		}
		code := string(b)
		if _, taken := s.codeToRoom[code]; !taken {
			return code
		}
	}
}

// NewRoomID 房间 id
func (s *RoomStore) NewRoomID() string {
	return "room_" + uuid.NewString()
}

// EnqueueRandom 入队等待随机匹配
func (s *RoomStore) EnqueueRandom(e QueueEntry) {
	s.matchQueue = append(s.matchQueue, e)
}

// DequeueRandom 取出队首
func (s *RoomStore) DequeueRandom() (QueueEntry, bool) {
	if len(s.matchQueue) == 0 {
		return QueueEntry{}, false
	}
	e := s.matchQueue[0]
	s.matchQueue = s.matchQueue[1:]
	return e, true
}

// RemoveFromQueue 按会话移出队列（取消匹配、断线）
func (s *RoomStore) RemoveFromQueue(sessionID string) {
	filtered := s.matchQueue[:0]
	for _, e := range s.matchQueue {
		if e.Session.ID() != sessionID {
			filtered = append(filtered, e)
		}
	}
	s.matchQueue = filtered
}

// RoomCount 在册房间数
func (s *RoomStore) RoomCount() int { return len(s.rooms) }

// QueueLen 匹配队列长度
func (s *RoomStore) QueueLen() int { return len(s.matchQueue) }
