package schedule

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrNoSlot is returned when every attempt found the calendar busy.
	ErrNoSlot = errors.New("schedule: no free slot found")

	// ErrInvalidUrgency is returned by ParseTierStrict for unknown input.
	ErrInvalidUrgency = errors.New("schedule: invalid urgency")

	// ErrNilOracle is returned when Find is called without an oracle.
	ErrNilOracle = errors.New("schedule: availability oracle required")
)

// UrgencyError carries the rejected urgency word.
type UrgencyError struct {
	Input string
}

// Error implements the error interface.
func (e *UrgencyError) Error() string {
	return fmt.Sprintf("schedule: invalid urgency %q (want urgent, moyen or faible)", e.Input)
}

// Is makes errors.Is(err, ErrInvalidUrgency) hold.
func (e *UrgencyError) Is(target error) bool {
	return target == ErrInvalidUrgency
}

// ExhaustedError reports how many attempts a failed search made.
type ExhaustedError struct {
	Tier     Tier
	Attempts int
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("schedule: no free %s slot after %d attempts", e.Tier, e.Attempts)
}

// Unwrap returns ErrNoSlot.
func (e *ExhaustedError) Unwrap() error {
	return ErrNoSlot
}
