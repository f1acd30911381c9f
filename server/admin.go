package server

import (
	"encoding/json"
	"net/http"
	"time"
)

// pacingConfig /admin/config 的 JSON 视图（毫秒）；指针字段支持部分更新
type pacingConfig struct {
	PlanningTimeMs *int `json:"planningTimeMs,omitempty"`
	SubmitGraceMs  *int `json:"submitGraceMs,omitempty"`
	RoundPauseMs   *int `json:"roundPauseMs,omitempty"`
	StartDelayMs   *int `json:"startDelayMs,omitempty"`
	AIStartDelayMs *int `json:"aiStartDelayMs,omitempty"`
}

// HandleAdminConfig 读取与热更新房间节奏（对之后创建的房间生效）
// GET  /admin/config 返回当前配置
// POST /admin/config 以 JSON 载荷更新部分字段
func (g *Gate) HandleAdminConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		// 配置只在事件循环中读写
		ch := make(chan Pacing, 1)
		g.loop.Post(func() { ch <- g.pacing })
		p := <-ch

		planning := int(p.PlanningTime / time.Millisecond)
		grace := int(p.SubmitGrace / time.Millisecond)
		pause := int(p.RoundPause / time.Millisecond)
		start := int(p.StartDelay / time.Millisecond)
		aiStart := int(p.AIStartDelay / time.Millisecond)
		cur := pacingConfig{
			PlanningTimeMs: &planning,
			SubmitGraceMs:  &grace,
			RoundPauseMs:   &pause,
			StartDelayMs:   &start,
			AIStartDelayMs: &aiStart,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(cur)

	case http.MethodPost:
		var body pacingConfig
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		done := make(chan struct{})
		g.loop.Post(func() {
			defer close(done)
			if body.PlanningTimeMs != nil {
				g.pacing.PlanningTime = time.Duration(*body.PlanningTimeMs) * time.Millisecond
			}
			if body.SubmitGraceMs != nil {
				g.pacing.SubmitGrace = time.Duration(*body.SubmitGraceMs) * time.Millisecond
			}
			if body.RoundPauseMs != nil {
				g.pacing.RoundPause = time.Duration(*body.RoundPauseMs) * time.Millisecond
			}
			if body.StartDelayMs != nil {
				g.pacing.StartDelay = time.Duration(*body.StartDelayMs) * time.Millisecond
			}
			if body.AIStartDelayMs != nil {
				g.pacing.AIStartDelay = time.Duration(*body.AIStartDelayMs) * time.Millisecond
			}
			Log.Infof("pacing updated: planning=%v grace=%v pause=%v start=%v aiStart=%v",
				g.pacing.PlanningTime, g.pacing.SubmitGrace, g.pacing.RoundPause, g.pacing.StartDelay, g.pacing.AIStartDelay)
		})
		<-done
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}
