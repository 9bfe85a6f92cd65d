package testing

import (
	"sort"
	"sync"
	"time"

	"github.com/arloliu/primary/types"
)

// FakeClock is a types.Clock and types.Scheduler whose time only moves when
// Advance is called. Timers due during an Advance fire synchronously, in
// deadline order, on the goroutine calling Advance.
type FakeClock struct {
	mu     sync.Mutex
	now    time.Time
	seq    uint64
	timers []*fakeTimer
}

var (
	_ types.Clock     = (*FakeClock)(nil)
	_ types.Scheduler = (*FakeClock)(nil)
)

type fakeTimer struct {
	clock    *FakeClock
	id       uint64
	deadline time.Time
	fn       func()
}

// NewFakeClock creates a clock starting at start.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

// AfterFunc schedules fn to run once the fake time reaches now+d.
func (c *FakeClock) AfterFunc(d time.Duration, fn func()) types.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	t := &fakeTimer{clock: c, id: c.seq, deadline: c.now.Add(d), fn: fn}
	c.timers = append(c.timers, t)

	return t
}

// Pending returns the number of armed timers.
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.timers)
}

// NextDeadline returns the delay until the earliest armed timer.
func (c *FakeClock) NextDeadline() (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.timers) == 0 {
		return 0, false
	}
	earliest := c.timers[0].deadline
	for _, t := range c.timers[1:] {
		if t.deadline.Before(earliest) {
			earliest = t.deadline
		}
	}

	return earliest.Sub(c.now), true
}

// Advance moves time forward by d, firing every timer that becomes due.
// Timers armed by fired callbacks fire too if they fall within the window.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		sort.SliceStable(c.timers, func(i, j int) bool {
			if c.timers[i].deadline.Equal(c.timers[j].deadline) {
				return c.timers[i].id < c.timers[j].id
			}
			return c.timers[i].deadline.Before(c.timers[j].deadline)
		})
		if len(c.timers) == 0 || c.timers[0].deadline.After(target) {
			c.now = target
			c.mu.Unlock()

			return
		}
		next := c.timers[0]
		c.timers = c.timers[1:]
		c.now = next.deadline
		c.mu.Unlock()

		next.fn()
	}
}

// Stop removes the timer if it has not fired yet.
func (t *fakeTimer) Stop() bool {
	c := t.clock
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, other := range c.timers {
		if other == t {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			return true
		}
	}

	return false
}
