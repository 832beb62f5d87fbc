package schedule

import (
	"time"
)

// SlotStep is the granularity of slot start times.
const SlotStep = 30 * time.Minute

// Interval is a half-open [Start, End) span of civil time.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Duration returns End - Start.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Aligned reports whether Start sits on a 30-minute boundary with no
// seconds.
func (i Interval) Aligned() bool {
	return i.Start.Minute()%30 == 0 && i.Start.Second() == 0 && i.Start.Nanosecond() == 0
}

// FloorToSlot rounds t down to the previous 30-minute boundary of its
// own location's wall clock. The remainder is subtracted as a duration so
// the UTC offset is kept inside a repeated DST hour; the result is never
// after t.
func FloorToSlot(t time.Time) time.Time {
	rem := time.Duration(t.Minute()%30)*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond())
	return t.Add(-rem)
}

// Slot is the result of a successful search.
type Slot struct {
	Interval

	// Attempt is the zero-based attempt that produced the slot.
	Attempt int

	// Unverified is set when the oracle failed and the slot was taken
	// without an availability answer.
	Unverified bool
}
