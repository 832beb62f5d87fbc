package maintenance

import (
	"regexp"
	"strings"
	"time"

	"github.com/teslashibe/go-orion/pkg/calendar"
)

// Unknown marks a field that could not be recovered from an event.
const Unknown = "?"

// Intervention is a booked maintenance read back from the calendar.
type Intervention struct {
	Title   string
	Line    string
	Machine string
	Problem string
	Urgency string
	Start   time.Time
	End     time.Time
	AllDay  bool
}

var (
	lineRe    = regexp.MustCompile(`Ligne de production\s*:\s*(\d+)`)
	machineRe = regexp.MustCompile(`Machine\s*:\s*([^\n]+)`)
	problemRe = regexp.MustCompile(`Problème\s*:\s*([^\n]+)`)
	urgencyRe = regexp.MustCompile(`Urgence\s*:\s*([\p{L}\p{N}_]+)`)
)

// ParseIntervention recovers the intervention fields from an event's
// description, falling back to the "MAINTENANCE - problem - machine"
// title when the description lacks them.
func ParseIntervention(ev calendar.Event) Intervention {
	in := Intervention{
		Title:   ev.Title,
		Line:    Unknown,
		Machine: Unknown,
		Problem: Unknown,
		Urgency: Unknown,
		Start:   ev.Start,
		End:     ev.End,
		AllDay:  ev.AllDay,
	}
	if in.Title == "" {
		in.Title = "Sans titre"
	}

	if d := ev.Description; d != "" {
		if m := lineRe.FindStringSubmatch(d); m != nil {
			in.Line = m[1]
		}
		if m := machineRe.FindStringSubmatch(d); m != nil {
			in.Machine = strings.TrimSpace(m[1])
		}
		if m := problemRe.FindStringSubmatch(d); m != nil {
			in.Problem = strings.TrimSpace(m[1])
		}
		if m := urgencyRe.FindStringSubmatch(d); m != nil {
			in.Urgency = m[1]
		}
	}

	if in.Machine == Unknown && strings.Contains(ev.Title, " - ") {
		parts := strings.Split(ev.Title, " - ")
		if len(parts) >= 3 {
			if in.Problem == Unknown {
				in.Problem = strings.TrimSpace(parts[1])
			}
			in.Machine = strings.TrimSpace(parts[2])
		}
	}
	return in
}
