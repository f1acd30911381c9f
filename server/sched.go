package server

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Loop 单事件循环：入站会话事件与定时回调全部在此串行执行，
// 房间与注册表内部因此无需加锁
type Loop struct {
	tasks chan func()
	quit  chan struct{}
	done  chan struct{}
}

// NewLoop 创建事件循环（需调用 Start 启动）
func NewLoop() *Loop {
	return &Loop{
		tasks: make(chan func(), 1024),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Start 启动循环协程
func (l *Loop) Start() {
	go l.run()
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		select {
		case fn := <-l.tasks:
			fn()
		case <-l.quit:
			// 退出前清空已排队任务
			for {
				select {
				case fn := <-l.tasks:
					fn()
				default:
					return
				}
			}
		}
	}
}

// Post 投递任务到循环执行；读泵协程调用，容量内不阻塞
func (l *Loop) Post(fn func()) {
	select {
	case <-l.quit:
	case l.tasks <- fn:
	}
}

// Stop 停止循环并等待退出
func (l *Loop) Stop() {
	close(l.quit)
	<-l.done
}

// Scheduler 可取消的延时任务调度器：每个延时动作持有 id，可枚举、可取消，
// 回调统一回贴到事件循环执行；时钟可注入（测试用 mock）
type Scheduler struct {
	clk  clock.Clock
	post func(func())

	mu      sync.Mutex // 定时器在时钟协程触发，注册表需要保护
	nextID  int64
	pending map[int64]*clock.Timer
}

// NewScheduler post 为回调投递函数，生产环境传 loop.Post
func NewScheduler(clk clock.Clock, post func(func())) *Scheduler {
	return &Scheduler{
		clk:     clk,
		post:    post,
		pending: make(map[int64]*clock.Timer),
	}
}

// After 在 d 之后把 fn 投递到事件循环，返回任务 id
func (s *Scheduler) After(d time.Duration, fn func()) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.pending[id] = s.clk.AfterFunc(d, func() {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
		s.post(fn)
	})
	return id
}

// Cancel 取消未触发的任务；已触发或未知 id 返回 false
func (s *Scheduler) Cancel(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.pending[id]
	if !ok {
		return false
	}
	t.Stop()
	delete(s.pending, id)
	return true
}

// Pending 未触发任务数
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Now 当前时钟时间（serverTime、聊天时间戳用）
func (s *Scheduler) Now() time.Time {
	return s.clk.Now()
}
