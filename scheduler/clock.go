package scheduler

import "time"

// Clock is the single source of "now" and of delayed callbacks for the
// scheduler. Tests swap it for a manual clock.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	// Stop reports whether the call stopped the timer before it fired.
	Stop() bool
}

type systemClock struct{}

// SystemClock is backed by the time package.
func SystemClock() Clock { return systemClock{} }

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
