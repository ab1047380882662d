// Package sched owns all periodic work in the client pipeline so that
// teardown cancels every timer through one path.
package sched

import (
	"sync"
	"time"
)

// Task is a handle to one periodic job.
type Task struct {
	stop chan struct{}
	once sync.Once
}

// Stop cancels the task. Safe to call more than once.
func (t *Task) Stop() {
	t.once.Do(func() { close(t.stop) })
}

// Scheduler runs periodic jobs on their own tickers and cancels them all
// on Close.
type Scheduler struct {
	mu     sync.Mutex
	tasks  []*Task
	closed bool
}

// New creates an empty scheduler.
func New() *Scheduler {
	return &Scheduler{}
}

// Every runs fn on a fixed interval until the returned task or the
// scheduler is stopped. The first run happens after one interval.
func (s *Scheduler) Every(interval time.Duration, fn func(now time.Time)) *Task {
	t := &Task{stop: make(chan struct{})}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		t.Stop()
		return t
	}
	s.tasks = append(s.tasks, t)
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				fn(now)
			case <-t.stop:
				return
			}
		}
	}()

	return t
}

// Close stops every task. The scheduler accepts no new work afterwards.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	tasks := s.tasks
	s.tasks = nil
	s.mu.Unlock()

	for _, t := range tasks {
		t.Stop()
	}
}
