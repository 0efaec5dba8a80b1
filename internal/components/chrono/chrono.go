package chrono

import "time"

// API is the source of the current time for anything that records timestamps.
//
// note: fault injection point
type API interface {
	Now() time.Time
}

// StandardImpl reads the system clock in UTC.
type StandardImpl struct{}

func (StandardImpl) Now() time.Time {
	return time.Now().UTC()
}

// FixedImpl always returns the same instant.
type FixedImpl struct {
	At time.Time
}

func (f FixedImpl) Now() time.Time {
	return f.At
}
