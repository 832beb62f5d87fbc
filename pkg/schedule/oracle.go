package schedule

import (
	"context"
	"time"
)

// Oracle answers whether a time window is free.
type Oracle interface {
	IsFree(ctx context.Context, start, end time.Time) (bool, error)
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(ctx context.Context, start, end time.Time) (bool, error)

// IsFree calls f.
func (f OracleFunc) IsFree(ctx context.Context, start, end time.Time) (bool, error) {
	return f(ctx, start, end)
}

// Clock supplies the reference instant.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in a fixed location.
type SystemClock struct {
	Location *time.Location
}

// Now returns the current time in c.Location (local time when nil).
func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}

// FixedClock always returns the same instant.
type FixedClock time.Time

// Now returns the fixed instant.
func (c FixedClock) Now() time.Time {
	return time.Time(c)
}
