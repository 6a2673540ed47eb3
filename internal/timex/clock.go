// Package timex holds time helpers shared by the server: an injectable
// Clock and a Duration type that decodes from JSON strings.
package timex

import "time"

// Clock supplies the current time. Services take a Clock instead of calling
// time.Now directly so expiry logic can be exercised deterministically.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// ClockFunc adapts a plain function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }
