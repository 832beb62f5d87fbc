// Package schedule finds free calendar slots for maintenance
// interventions.
//
// A search draws a random start offset inside the tier's window, floors
// it to a 30-minute boundary and asks an Oracle whether the resulting
// interval is free. Each retry adds another 30 minutes to the draw, so
// the probes move strictly later and a busy stretch is eventually passed.
// An oracle error is treated as "free": the assistant keeps working when
// the calendar is unreachable.
package schedule

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/teslashibe/go-orion/internal/log"
)

// DefaultMaxAttempts bounds a search when no option overrides it.
const DefaultMaxAttempts = 20

// Rand is the random source used to draw start offsets.
// Implementations used by concurrent searches must be goroutine-safe.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// Finder searches for free slots. A Finder holds no per-search state and
// may be shared between goroutines when its Rand is goroutine-safe.
type Finder struct {
	rng         Rand
	maxAttempts int
	logger      *slog.Logger
}

// Option configures a Finder.
type Option func(*Finder)

// WithRand sets the random source.
func WithRand(r Rand) Option {
	return func(f *Finder) {
		if r != nil {
			f.rng = r
		}
	}
}

// WithMaxAttempts sets the retry budget. Non-positive values are ignored.
func WithMaxAttempts(n int) Option {
	return func(f *Finder) {
		if n > 0 {
			f.maxAttempts = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Finder) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewFinder creates a Finder.
func NewFinder(opts ...Option) *Finder {
	f := &Finder{
		rng:         globalRand{},
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = log.OrComponent(f.logger, "schedule")
	return f
}

// MaxAttempts returns the retry budget.
func (f *Finder) MaxAttempts() int {
	return f.maxAttempts
}

// Candidate computes the interval probed at the given attempt for a
// drawn offset (in minutes, already inside the tier window).
func Candidate(tier Tier, now time.Time, drawnMinutes, attempt int) Interval {
	p := tier.Policy()
	offset := time.Duration(drawnMinutes)*time.Minute + time.Duration(attempt)*SlotStep
	start := FloorToSlot(now.Add(offset))
	return Interval{Start: start, End: start.Add(p.Duration)}
}

// draw returns a uniform offset in whole minutes within [MinOffset, MaxOffset].
func (f *Finder) draw(p Policy) int {
	lo := int(p.MinOffset / time.Minute)
	hi := int(p.MaxOffset / time.Minute)
	return lo + f.rng.IntN(hi-lo+1)
}

// Find searches for a free interval for tier, starting from now.
//
// It returns the first interval the oracle reports free, or the current
// candidate as an unverified slot when the oracle fails. After
// MaxAttempts busy answers it returns an *ExhaustedError wrapping
// ErrNoSlot. A done context stops the search with ctx.Err().
func (f *Finder) Find(ctx context.Context, tier Tier, now time.Time, oracle Oracle) (Slot, error) {
	if oracle == nil {
		return Slot{}, ErrNilOracle
	}
	p := tier.Policy()

	for attempt := 0; attempt < f.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Slot{}, err
		}

		iv := Candidate(tier, now, f.draw(p), attempt)

		free, err := oracle.IsFree(ctx, iv.Start, iv.End)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Slot{}, ctxErr
			}
			f.logger.WarnContext(ctx, "availability check failed, taking slot unverified",
				"tier", tier.String(),
				"attempt", attempt,
				"start", iv.Start,
				"error", err,
			)
			return Slot{Interval: iv, Attempt: attempt, Unverified: true}, nil
		}
		if free {
			f.logger.InfoContext(ctx, "slot found",
				"tier", tier.String(),
				"attempt", attempt,
				"start", iv.Start,
				"end", iv.End,
			)
			return Slot{Interval: iv, Attempt: attempt}, nil
		}
		f.logger.DebugContext(ctx, "slot busy",
			"tier", tier.String(),
			"attempt", attempt,
			"start", iv.Start,
		)
	}

	return Slot{}, &ExhaustedError{Tier: tier, Attempts: f.maxAttempts}
}

// FindNow is Find with now taken from clock.
func (f *Finder) FindNow(ctx context.Context, tier Tier, clock Clock, oracle Oracle) (Slot, error) {
	return f.Find(ctx, tier, clock.Now(), oracle)
}
