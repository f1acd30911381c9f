package server

import "time"

// ServerTimer 单个可取消的截止时间，仅用于规划阶段限时
// Start 会替换未触发的旧截止；Clear 取消；同一实例最多一个待触发任务
// 仅在事件循环中使用，无需加锁
type ServerTimer struct {
	sched *Scheduler
	id    int64
	armed bool
}

// NewServerTimer 绑定调度器
func NewServerTimer(sched *Scheduler) *ServerTimer {
	return &ServerTimer{sched: sched}
}

// Start 重新武装截止时间，到期在事件循环中执行 onExpire
func (t *ServerTimer) Start(d time.Duration, onExpire func()) {
	t.Clear()
	var id int64
	id = t.sched.After(d, func() {
		if t.id == id {
			t.armed = false
		}
		onExpire()
	})
	t.id = id
	t.armed = true
}

// Clear 取消未触发的截止时间
func (t *ServerTimer) Clear() {
	if t.armed {
		t.sched.Cancel(t.id)
		t.armed = false
	}
}
