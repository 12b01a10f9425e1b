// Package utils provides utility functions for the application.
package utils

import (
	"time"
)

// Clock returns the current time. Flows take one so tests can pin "now".
type Clock func() time.Time

// UTCNow returns the current time in UTC
func UTCNow() time.Time {
	return time.Now().UTC()
}

// FixedClock returns a Clock that always reports t.
func FixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}
