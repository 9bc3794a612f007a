package clock

import (
	"sort"
	"sync"
	"time"
)

// Clock allows injecting time into the pipeline and scheduler.
type Clock interface {
	Now() time.Time
	// AfterFunc schedules fn to run once d has elapsed. The returned Timer
	// can be stopped or pushed forward.
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer is a scheduled callback handle.
type Timer interface {
	// Stop cancels the timer. It reports whether the callback was still
	// pending; stopping an already-fired timer is a no-op.
	Stop() bool
	// Reset reschedules the callback to fire after d from now.
	Reset(d time.Duration) bool
}

type systemClock struct{}

// NewSystem returns a clock backed by time.Now.
func NewSystem() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

func (systemClock) AfterFunc(d time.Duration, fn func()) Timer {
	return systemTimer{t: time.AfterFunc(d, fn)}
}

type systemTimer struct {
	t *time.Timer
}

func (s systemTimer) Stop() bool                 { return s.t.Stop() }
func (s systemTimer) Reset(d time.Duration) bool { return s.t.Reset(d) }

// Manual is a test clock whose time only moves when Advance is called.
// Timers due at or before the new time fire synchronously, in deadline
// order, on the goroutine calling Advance.
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

// NewManual returns a manual clock pinned at t.
func NewManual(t time.Time) *Manual {
	return &Manual{now: t.UTC()}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) AfterFunc(d time.Duration, fn func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTimer{clock: m, fn: fn, deadline: m.now.Add(d)}
	m.timers = append(m.timers, t)
	return t
}

// Advance moves the clock forward by d and fires every pending timer whose
// deadline has been reached.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	now := m.now

	var due []*manualTimer
	remaining := m.timers[:0]
	for _, t := range m.timers {
		if !t.deadline.After(now) {
			due = append(due, t)
		} else {
			remaining = append(remaining, t)
		}
	}
	m.timers = remaining
	m.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].deadline.Before(due[j].deadline) })
	for _, t := range due {
		t.fn()
	}
}

type manualTimer struct {
	clock    *Manual
	fn       func()
	deadline time.Time
	stopped  bool
}

// Stop removes the timer from the clock's pending set, so stopped timers do
// not accumulate across long-lived clocks.
func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped {
		return false
	}
	t.stopped = true
	for i, existing := range t.clock.timers {
		if existing == t {
			t.clock.timers = append(t.clock.timers[:i], t.clock.timers[i+1:]...)
			break
		}
	}
	return true
}

func (t *manualTimer) Reset(d time.Duration) bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	wasPending := !t.stopped
	t.stopped = false
	t.deadline = t.clock.now.Add(d)
	for _, existing := range t.clock.timers {
		if existing == t {
			return wasPending
		}
	}
	t.clock.timers = append(t.clock.timers, t)
	return wasPending
}
