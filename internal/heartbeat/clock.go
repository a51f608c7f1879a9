package heartbeat

import "time"

// Clock abstracts wall time so tests can drive the scheduler deterministically.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RealClock returns the system clock.
func RealClock() Clock { return realClock{} }
