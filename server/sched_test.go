package server

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMockScheduler 测试用：mock 时钟 + 回调就地执行（等价于单线程循环）
func newMockScheduler() (*Scheduler, *clock.Mock) {
	mock := clock.NewMock()
	return NewScheduler(mock, func(fn func()) { fn() }), mock
}

func TestSchedulerAfterFires(t *testing.T) {
	sched, mock := newMockScheduler()
	fired := 0
	sched.After(100*time.Millisecond, func() { fired++ })

	mock.Add(99 * time.Millisecond)
	assert.Equal(t, 0, fired)
	mock.Add(1 * time.Millisecond)
	assert.Equal(t, 1, fired)
	assert.Equal(t, 0, sched.Pending())
}

func TestSchedulerCancel(t *testing.T) {
	sched, mock := newMockScheduler()
	fired := false
	id := sched.After(time.Second, func() { fired = true })

	assert.Equal(t, 1, sched.Pending())
	assert.True(t, sched.Cancel(id))
	assert.False(t, sched.Cancel(id)) // 二次取消无效

	mock.Add(2 * time.Second)
	assert.False(t, fired)
	assert.Equal(t, 0, sched.Pending())
}

func TestSchedulerPendingEnumerable(t *testing.T) {
	sched, mock := newMockScheduler()
	sched.After(time.Second, func() {})
	sched.After(2*time.Second, func() {})
	sched.After(3*time.Second, func() {})
	assert.Equal(t, 3, sched.Pending())

	mock.Add(2 * time.Second)
	assert.Equal(t, 1, sched.Pending())
}

func TestServerTimerStartReplaces(t *testing.T) {
	sched, mock := newMockScheduler()
	timer := NewServerTimer(sched)

	firstFired, secondFired := false, false
	timer.Start(time.Second, func() { firstFired = true })
	timer.Start(2*time.Second, func() { secondFired = true })

	mock.Add(time.Second)
	assert.False(t, firstFired, "replaced deadline must not fire")
	mock.Add(time.Second)
	assert.True(t, secondFired)
	assert.Equal(t, 0, sched.Pending())
}

func TestServerTimerClear(t *testing.T) {
	sched, mock := newMockScheduler()
	timer := NewServerTimer(sched)

	fired := false
	timer.Start(time.Second, func() { fired = true })
	timer.Clear()
	timer.Clear() // 重复 Clear 无害

	mock.Add(5 * time.Second)
	assert.False(t, fired)
}

func TestLoopRunsTasksInOrder(t *testing.T) {
	loop := NewLoop()
	loop.Start()

	var got []int
	done := make(chan struct{})
	for i := 1; i <= 3; i++ {
		i := i
		loop.Post(func() { got = append(got, i) })
	}
	loop.Post(func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not drain tasks")
	}
	require.Equal(t, []int{1, 2, 3}, got)
	loop.Stop()
}
