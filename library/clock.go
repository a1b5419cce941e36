package library

import "time"

// Clock supplies the current time to lending and timestamping. Tests swap in
// a fixed clock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
