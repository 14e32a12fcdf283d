// File: internal/gwconcurrency/scheduler.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Heap-based timer scheduler for recurring background jobs: rate-limiter
// idle-bucket sweeps, auth-registry sweeps, and stats snapshot emission.

package gwconcurrency

import (
	"container/heap"
	"sync"
	"time"

	"github.com/momentics/hiogate/api"
)

type timerTask struct {
	deadline time.Time
	period   time.Duration // 0 for one-shot
	fn       func()
	index    int
	canceled bool
}

type taskHeap []*timerTask

func (h taskHeap) Len() int            { return len(h) }
func (h taskHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h taskHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *taskHeap) Push(x any) {
	t := x.(*timerTask)
	t.index = len(*h)
	*h = append(*h, t)
}
func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

// Scheduler runs delayed and periodic callbacks on a single driver goroutine.
type Scheduler struct {
	mu     sync.Mutex
	timerQ taskHeap
	notify chan struct{}
	stop   chan struct{}
	wg     sync.WaitGroup
}

// cancelHandle implements api.Cancelable for a scheduled timerTask.
type cancelHandle struct {
	s    *Scheduler
	task *timerTask
	done chan struct{}
}

func (c *cancelHandle) Cancel() error {
	c.s.mu.Lock()
	c.task.canceled = true
	if c.task.index >= 0 {
		heap.Remove(&c.s.timerQ, c.task.index)
	}
	c.s.mu.Unlock()
	return nil
}

// Done returns the handle's done channel. The scheduler never closes it:
// neither a fired task nor Cancel signals on it.
func (c *cancelHandle) Done() <-chan struct{} { return c.done }

var _ api.Cancelable = (*cancelHandle)(nil)
var _ api.Scheduler = (*Scheduler)(nil)

// NewScheduler starts the driver goroutine.
func NewScheduler() *Scheduler {
	s := &Scheduler{
		notify: make(chan struct{}, 1),
		stop:   make(chan struct{}),
	}
	heap.Init(&s.timerQ)
	s.wg.Add(1)
	go s.run()
	return s
}

// Schedule runs fn once after delayNanos elapse.
func (s *Scheduler) Schedule(delayNanos int64, fn func()) (api.Cancelable, error) {
	return s.schedule(time.Duration(delayNanos), 0, fn)
}

// ScheduleEvery runs fn repeatedly every periodNanos until canceled.
func (s *Scheduler) ScheduleEvery(periodNanos int64, fn func()) (api.Cancelable, error) {
	period := time.Duration(periodNanos)
	return s.schedule(period, period, fn)
}

func (s *Scheduler) schedule(delay, period time.Duration, fn func()) (api.Cancelable, error) {
	task := &timerTask{deadline: time.Now().Add(delay), period: period, fn: fn}
	s.mu.Lock()
	heap.Push(&s.timerQ, task)
	s.mu.Unlock()
	s.wakeup()
	return &cancelHandle{s: s, task: task, done: make(chan struct{})}, nil
}

// Cancel stops a previously scheduled callback.
func (s *Scheduler) Cancel(c api.Cancelable) error {
	return c.Cancel()
}

// Now returns the current Unix time in nanoseconds.
func (s *Scheduler) Now() int64 {
	return time.Now().UnixNano()
}

func (s *Scheduler) wakeup() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Scheduler) run() {
	defer s.wg.Done()
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		s.mu.Lock()
		var wait time.Duration
		if s.timerQ.Len() == 0 {
			wait = time.Hour
		} else {
			wait = time.Until(s.timerQ[0].deadline)
			if wait < 0 {
				wait = 0
			}
		}
		s.mu.Unlock()

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-s.stop:
			return
		case <-s.notify:
			continue
		case <-timer.C:
			s.fireDue()
		}
	}
}

func (s *Scheduler) fireDue() {
	now := time.Now()
	var due []*timerTask
	s.mu.Lock()
	for s.timerQ.Len() > 0 && !s.timerQ[0].deadline.After(now) {
		t := heap.Pop(&s.timerQ).(*timerTask)
		if t.canceled {
			continue
		}
		due = append(due, t)
		if t.period > 0 {
			t.deadline = now.Add(t.period)
			heap.Push(&s.timerQ, t)
		}
	}
	s.mu.Unlock()

	for _, t := range due {
		go t.fn()
	}
}

// Close stops the driver goroutine. Pending one-shot and periodic tasks are
// discarded without running.
func (s *Scheduler) Close() {
	close(s.stop)
	s.wg.Wait()
}
