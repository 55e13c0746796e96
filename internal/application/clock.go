package application

import "time"

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// FixedClock returns the same instant; handy for tests and replays.
type FixedClock struct{ T time.Time }

func (c FixedClock) Now() time.Time { return c.T }
