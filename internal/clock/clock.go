// Package clock provides the wall-clock and timer defaults used by the elector.
package clock

import (
	"time"

	"github.com/arloliu/primary/types"
)

// System is the real wall clock.
type System struct{}

// Compile-time assertions that System implements Clock and Scheduler.
var (
	_ types.Clock     = System{}
	_ types.Scheduler = System{}
)

// Now returns time.Now().
func (System) Now() time.Time {
	return time.Now()
}

// AfterFunc wraps time.AfterFunc.
func (System) AfterFunc(d time.Duration, fn func()) types.Timer {
	return time.AfterFunc(d, fn)
}
