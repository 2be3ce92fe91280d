// Package sched runs deferred one-shot actions (standup close, delayed
// message reveal) on cancellable timers. A task fires at most once;
// CancelAll revokes every outstanding task so a workspace reset can
// guarantee no stale callback touches post-reset state.
//
// Cancellation here closes only the scheduler-side race. Callbacks still
// re-enter the app's mutation lock and must re-validate the state they
// are about to change, because a task that has already passed its
// cancelled check may be waiting on that lock while a reset runs.
package sched

import (
	"sync"
	"time"
)

type Scheduler struct {
	mu     sync.Mutex
	nextID int
	tasks  map[int]*Task
}

type Task struct {
	id    int
	s     *Scheduler
	timer *time.Timer
	done  bool
}

func New() *Scheduler {
	return &Scheduler{tasks: make(map[int]*Task)}
}

// After arms a one-shot task firing fn after d. The returned handle can
// cancel it. fn runs on the timer goroutine.
func (s *Scheduler) After(d time.Duration, fn func()) *Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	t := &Task{id: s.nextID, s: s}
	s.tasks[t.id] = t
	t.timer = time.AfterFunc(d, func() {
		if !t.claim() {
			return
		}
		fn()
	})
	return t
}

// claim marks the task fired if it is still pending. Exactly one of
// claim and Cancel wins.
func (t *Task) claim() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	delete(t.s.tasks, t.id)
	return true
}

// Cancel revokes the task if it has not fired. Idempotent.
func (t *Task) Cancel() {
	if t == nil {
		return
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.done {
		return
	}
	t.done = true
	t.timer.Stop()
	delete(t.s.tasks, t.id)
}

// CancelAll revokes every outstanding task.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.tasks {
		t.done = true
		t.timer.Stop()
		delete(s.tasks, id)
	}
}

// Pending reports the number of armed tasks.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}
