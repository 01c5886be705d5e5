package mock

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/encodeous/gsqr/state"
)

// ManualClock only moves when a test advances it.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// ScheduledTask is one pending timer of a ManualScheduler.
type ScheduledTask struct {
	Due       time.Time
	Fn        func(*state.State) error
	cancelled atomic.Bool
}

func (t *ScheduledTask) Cancel() bool {
	return !t.cancelled.Swap(true)
}

// ManualScheduler collects timers against a ManualClock and fires them
// only when a test calls RunDue, directly on the caller's goroutine.
type ManualScheduler struct {
	Clock *ManualClock

	mu    sync.Mutex
	tasks []*ScheduledTask
}

func NewManualScheduler(clock *ManualClock) *ManualScheduler {
	return &ManualScheduler{Clock: clock}
}

func (m *ManualScheduler) ScheduleAfter(delay time.Duration, fun func(*state.State) error) state.TimerHandle {
	t := &ScheduledTask{
		Due: m.Clock.Now().Add(delay),
		Fn:  fun,
	}
	m.mu.Lock()
	m.tasks = append(m.tasks, t)
	m.mu.Unlock()
	return t
}

// Pending reports the number of live timers.
func (m *ManualScheduler) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tasks {
		if !t.cancelled.Load() {
			n++
		}
	}
	return n
}

// RunDue fires every task due at or before the clock's current reading, in
// due order. A fired task may schedule another; newly due work runs in the
// same call. Returns how many tasks ran and the first error raised.
func (m *ManualScheduler) RunDue(s *state.State) (int, error) {
	ran := 0
	for {
		now := m.Clock.Now()
		m.mu.Lock()
		var due []*ScheduledTask
		m.tasks = slices.DeleteFunc(m.tasks, func(t *ScheduledTask) bool {
			if t.cancelled.Load() {
				return true
			}
			if !t.Due.After(now) {
				due = append(due, t)
				return true
			}
			return false
		})
		m.mu.Unlock()
		if len(due) == 0 {
			return ran, nil
		}
		slices.SortStableFunc(due, func(a, b *ScheduledTask) int {
			return a.Due.Compare(b.Due)
		})
		for _, t := range due {
			if t.cancelled.Load() {
				continue
			}
			ran++
			if err := t.Fn(s); err != nil {
				return ran, err
			}
		}
	}
}
