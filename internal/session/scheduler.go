package session

import (
	"sync"
	"time"
)

// Scheduler runs assistant replies some time after they were requested.
// Replies handed to one Scheduler run in the order they were scheduled.
type Scheduler interface {
	Schedule(fn func())
}

// ImmediateScheduler runs fn on the calling goroutine.
type ImmediateScheduler struct{}

func (ImmediateScheduler) Schedule(fn func()) { fn() }

// DelayScheduler runs each fn once delay has passed since it was scheduled.
// Work is queued first in, first out and run by a single goroutine per lane,
// which exits when its queue is empty.
type DelayScheduler struct {
	delay time.Duration
	wg    sync.WaitGroup
	main  *delayQueue
}

func NewDelayScheduler(delay time.Duration) *DelayScheduler {
	s := &DelayScheduler{delay: delay}
	s.main = s.newQueue()
	return s
}

func (s *DelayScheduler) Schedule(fn func()) {
	s.main.Schedule(fn)
}

// Lane returns a scheduler with its own queue. Lanes keep their own order,
// do not wait on each other and are covered by Wait.
func (s *DelayScheduler) Lane() Scheduler {
	return s.newQueue()
}

// Wait blocks until every scheduled reply, in every lane, has run.
func (s *DelayScheduler) Wait() {
	s.wg.Wait()
}

func (s *DelayScheduler) newQueue() *delayQueue {
	return &delayQueue{parent: s}
}

type delayedTask struct {
	at time.Time
	fn func()
}

type delayQueue struct {
	parent  *DelayScheduler
	mu      sync.Mutex
	tasks   []delayedTask
	running bool
}

func (q *delayQueue) Schedule(fn func()) {
	q.parent.wg.Add(1)

	q.mu.Lock()
	q.tasks = append(q.tasks, delayedTask{at: time.Now().Add(q.parent.delay), fn: fn})
	start := !q.running
	q.running = true
	q.mu.Unlock()

	if start {
		go q.run()
	}
}

func (q *delayQueue) run() {
	for {
		q.mu.Lock()
		if len(q.tasks) == 0 {
			q.running = false
			q.mu.Unlock()
			return
		}
		task := q.tasks[0]
		q.tasks[0] = delayedTask{}
		q.tasks = q.tasks[1:]
		q.mu.Unlock()

		// deadlines grow with queue position, so sleeping on the head is enough
		if d := time.Until(task.at); d > 0 {
			time.Sleep(d)
		}
		task.fn()
		q.parent.wg.Done()
	}
}
