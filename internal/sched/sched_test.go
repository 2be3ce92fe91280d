package sched

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestTaskFiresOnce(t *testing.T) {
	s := New()
	var fired atomic.Int32

	s.After(10*time.Millisecond, func() { fired.Add(1) })

	time.Sleep(50 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Fatalf("fired %d times, want 1", got)
	}
	if s.Pending() != 0 {
		t.Fatalf("Pending() = %d after fire, want 0", s.Pending())
	}
}

func TestCancelPreventsFire(t *testing.T) {
	s := New()
	var fired atomic.Int32

	task := s.After(20*time.Millisecond, func() { fired.Add(1) })
	task.Cancel()
	task.Cancel() // idempotent

	time.Sleep(60 * time.Millisecond)
	if got := fired.Load(); got != 0 {
		t.Fatalf("cancelled task fired %d times", got)
	}
}

func TestCancelAll(t *testing.T) {
	s := New()
	var fired atomic.Int32

	for i := 0; i < 5; i++ {
		s.After(20*time.Millisecond, func() { fired.Add(1) })
	}
	if s.Pending() != 5 {
		t.Fatalf("Pending() = %d, want 5", s.Pending())
	}
	s.CancelAll()
	if s.Pending() != 0 {
		t.Fatalf("Pending() = %d after CancelAll, want 0", s.Pending())
	}

	time.Sleep(60 * time.Millisecond)
	if got := fired.Load(); got != 0 {
		t.Fatalf("%d tasks fired after CancelAll", got)
	}
}

func TestCancelAfterFireIsNoop(t *testing.T) {
	s := New()
	var fired atomic.Int32

	task := s.After(5*time.Millisecond, func() { fired.Add(1) })
	time.Sleep(40 * time.Millisecond)
	task.Cancel()

	if got := fired.Load(); got != 1 {
		t.Fatalf("fired %d times, want 1", got)
	}
}
