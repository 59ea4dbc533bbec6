package clock

import "time"

// Clock supplies the current time so that day-of-week and same-day checks
// stay deterministic under test.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

func Real() Clock { return realClock{} }

type fixedClock time.Time

func (c fixedClock) Now() time.Time { return time.Time(c) }

// FixedAt returns a Clock frozen at t.
func FixedAt(t time.Time) Clock { return fixedClock(t) }
