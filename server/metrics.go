package server

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
)

// Metrics 运行期关键指标（监控与调试用）
type Metrics struct {
	RoomsCreated       int64 // 创建过的房间数
	MatchesStarted     int64 // 开局数（含再战）
	MatchesFinished    int64 // 打完的对局数
	RoundsPlayed       int64 // 进入过 planning 的回合数
	CollisionsDetected int64 // 结算出的碰撞事件数
	ForcedSubmits      int64 // 超时被强制提交的次数
	ChatMessages       int64 // 转发的聊天条数
}

func NewMetrics() *Metrics { return &Metrics{} }

func (m *Metrics) IncRoomCreated()   { atomic.AddInt64(&m.RoomsCreated, 1) }
func (m *Metrics) IncMatchStarted()  { atomic.AddInt64(&m.MatchesStarted, 1) }
func (m *Metrics) IncMatchFinished() { atomic.AddInt64(&m.MatchesFinished, 1) }
func (m *Metrics) IncRoundPlayed()   { atomic.AddInt64(&m.RoundsPlayed, 1) }
func (m *Metrics) IncForcedSubmit()  { atomic.AddInt64(&m.ForcedSubmits, 1) }
func (m *Metrics) IncChatMessage()   { atomic.AddInt64(&m.ChatMessages, 1) }

func (m *Metrics) AddCollisions(n int) {
	atomic.AddInt64(&m.CollisionsDetected, int64(n))
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *Metrics) Snapshot() map[string]any {
	return map[string]any{
		"rooms_created":       atomic.LoadInt64(&m.RoomsCreated),
		"matches_started":     atomic.LoadInt64(&m.MatchesStarted),
		"matches_finished":    atomic.LoadInt64(&m.MatchesFinished),
		"rounds_played":       atomic.LoadInt64(&m.RoundsPlayed),
		"collisions_detected": atomic.LoadInt64(&m.CollisionsDetected),
		"forced_submits":      atomic.LoadInt64(&m.ForcedSubmits),
		"chat_messages":       atomic.LoadInt64(&m.ChatMessages),
	}
}

// HandleMetrics 输出运行指标与实时规模
// GET /metrics
func (g *Gate) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	// 房间与队列规模只能在事件循环中读取
	type sizes struct{ rooms, queue int }
	ch := make(chan sizes, 1)
	g.loop.Post(func() { ch <- sizes{g.store.RoomCount(), g.store.QueueLen()} })
	s := <-ch

	payload := map[string]any{
		"rooms":   s.rooms,
		"queue":   s.queue,
		"metrics": g.metrics.Snapshot(),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
