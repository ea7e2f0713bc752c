package bridge

import "time"

// Clock abstracts time for everything in this package that schedules
// delayed work (sync settle delay, reconnect retries, cooldown checks), so
// tests can simulate time deterministically instead of sleeping on real
// timers.
type Clock interface {
	Now() time.Time

	// AfterFunc runs f once after d elapses. The returned Timer cancels
	// the pending call.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellable delayed task.
type Timer interface {
	// Stop cancels the task. It reports whether the call was still pending.
	Stop() bool
}

// systemClock is the real-time Clock.
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemClock returns the real-time Clock.
func SystemClock() Clock { return systemClock{} }
