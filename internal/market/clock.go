package market

import "time"

// Clock supplies the timestamp an operation runs under. Markets read it
// exactly once per operation so every check and event inside that
// operation sees the same instant.
type Clock interface {
	// Now returns epoch microseconds.
	Now() int64
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() int64 { return time.Now().UnixMicro() }
