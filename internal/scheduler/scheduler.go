// Package scheduler is a virtual clock with a queue of timed callbacks.
//
// Nothing here reads the wall clock. Owners move time forward with AdvanceTo,
// which runs every due callback in order on the caller's goroutine, so a
// Scheduler must only be used from one goroutine.
package scheduler

import (
	"container/heap"
	"time"
)

type Timer struct {
	at     time.Time
	seq    uint64
	period time.Duration
	fn     func()
	index  int
	s      *Scheduler
}

// Stop cancels the timer. It reports whether the timer was still pending.
// Stop on a nil timer is a no-op.
func (t *Timer) Stop() bool {
	if t == nil || t.index < 0 {
		return false
	}
	heap.Remove(&t.s.q, t.index)
	t.index = -1
	return true
}

// Pending reports whether the timer will still fire.
func (t *Timer) Pending() bool {
	return t != nil && t.index >= 0
}

type Scheduler struct {
	now time.Time
	seq uint64
	q   timerQueue
}

func New(start time.Time) *Scheduler {
	return &Scheduler{now: start}
}

func (s *Scheduler) Now() time.Time { return s.now }

// After runs fn once, d after the current virtual time.
func (s *Scheduler) After(d time.Duration, fn func()) *Timer {
	return s.push(s.now.Add(d), 0, fn)
}

// Every runs fn each period, first at now+period, until stopped.
func (s *Scheduler) Every(period time.Duration, fn func()) *Timer {
	if period <= 0 {
		panic("scheduler: non-positive period")
	}
	return s.push(s.now.Add(period), period, fn)
}

// AdvanceTo moves the clock to t, firing due timers in due-time order. Timers
// due at the same instant fire in the order they were scheduled. The clock
// reads each timer's due time while its callback runs. It returns the number
// of callbacks run.
func (s *Scheduler) AdvanceTo(t time.Time) int {
	fired := 0
	for len(s.q) > 0 {
		next := s.q[0]
		if next.at.After(t) {
			break
		}
		heap.Pop(&s.q)
		if next.at.After(s.now) {
			s.now = next.at
		}
		if next.period > 0 {
			s.seq++
			next.at = next.at.Add(next.period)
			next.seq = s.seq
			heap.Push(&s.q, next)
		}
		next.fn()
		fired++
	}
	if t.After(s.now) {
		s.now = t
	}
	return fired
}

// Pending returns the number of timers waiting to fire.
func (s *Scheduler) Pending() int { return len(s.q) }

func (s *Scheduler) push(at time.Time, period time.Duration, fn func()) *Timer {
	s.seq++
	t := &Timer{at: at, seq: s.seq, period: period, fn: fn, s: s}
	heap.Push(&s.q, t)
	return t
}

type timerQueue []*Timer

func (q timerQueue) Len() int { return len(q) }

func (q timerQueue) Less(i, j int) bool {
	if q[i].at.Equal(q[j].at) {
		return q[i].seq < q[j].seq
	}
	return q[i].at.Before(q[j].at)
}

func (q timerQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *timerQueue) Push(x any) {
	t := x.(*Timer)
	t.index = len(*q)
	*q = append(*q, t)
}

func (q *timerQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*q = old[:n-1]
	return t
}
