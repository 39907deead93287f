package data

import "time"

// TimeProvider abstracts clock access so repository tests can pin time.
type TimeProvider interface {
	Now() time.Time
}

// RealTimeProvider returns the current UTC time.
type RealTimeProvider struct{}

// Now implements TimeProvider.
func (RealTimeProvider) Now() time.Time { return time.Now().UTC() }
