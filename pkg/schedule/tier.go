package schedule

import (
	"strings"
	"time"
)

// Tier is the urgency of a maintenance intervention.
type Tier int

const (
	// Low is the default tier: start within a day, three hours of work.
	Low Tier = iota
	// Medium starts within one to three hours and lasts two hours.
	Medium
	// Urgent starts within half an hour and lasts one hour.
	Urgent
)

// Policy is the fixed scheduling window and duration of a tier.
type Policy struct {
	MinOffset time.Duration
	MaxOffset time.Duration
	Duration  time.Duration
}

var policies = map[Tier]Policy{
	Urgent: {MinOffset: 5 * time.Minute, MaxOffset: 30 * time.Minute, Duration: 60 * time.Minute},
	Medium: {MinOffset: 60 * time.Minute, MaxOffset: 180 * time.Minute, Duration: 120 * time.Minute},
	Low:    {MinOffset: 300 * time.Minute, MaxOffset: 1440 * time.Minute, Duration: 180 * time.Minute},
}

// Policy returns the tier's policy. Unknown tiers get the Low policy.
func (t Tier) Policy() Policy {
	if p, ok := policies[t]; ok {
		return p
	}
	return policies[Low]
}

// String returns the tier name.
func (t Tier) String() string {
	switch t {
	case Urgent:
		return "urgent"
	case Medium:
		return "moyen"
	default:
		return "faible"
	}
}

// ParseTier maps a spoken urgency to a tier, case-insensitively:
// "urgent"/"haute" → Urgent, "moyen"/"moyenne" → Medium, anything else
// → Low. The boolean reports whether the input was one of the known
// words, so callers can log the implicit downgrade.
func ParseTier(s string) (Tier, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "urgent", "haute":
		return Urgent, true
	case "moyen", "moyenne":
		return Medium, true
	case "faible", "basse":
		return Low, true
	}
	return Low, false
}

// ParseTierStrict is ParseTier without the Low fallback: unknown input
// yields ErrInvalidUrgency.
func ParseTierStrict(s string) (Tier, error) {
	t, ok := ParseTier(s)
	if !ok {
		return Low, &UrgencyError{Input: s}
	}
	return t, nil
}
