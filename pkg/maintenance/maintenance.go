// Package maintenance plans maintenance interventions on the production
// lines: it picks a free slot in the maintenance calendar according to
// the reported urgency, books it in the maintenance and line calendars
// and notifies the maintenance team by e-mail.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/teslashibe/go-orion/internal/config"
	"github.com/teslashibe/go-orion/internal/log"
	"github.com/teslashibe/go-orion/pkg/calendar"
	"github.com/teslashibe/go-orion/pkg/schedule"
)

// Sentinel errors.
var (
	ErrInvalidLine            = errors.New("maintenance: production line must be 1 or 2")
	ErrCalendarsNotConfigured = errors.New("maintenance: production calendars not configured")
)

const (
	titleProblemRunes = 50

	// DefaultDays and MaxUpcoming bound Upcoming.
	DefaultDays = 7
	MaxUpcoming = 20
)

// Calendar is the subset of calendar.Client the service needs.
type Calendar interface {
	Oracle(calendarID string) schedule.Oracle
	Insert(ctx context.Context, calendarID string, ev calendar.Event) (calendar.Event, error)
	List(ctx context.Context, calendarID string, from, to time.Time, max int) ([]calendar.Event, error)
}

// Mailer sends a plain text e-mail and returns the message ID.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) (string, error)
}

// Config configures a Service.
type Config struct {
	Calendars     config.Calendars
	Email         string // maintenance team address
	StrictUrgency bool   // reject unknown urgency words instead of treating them as low
}

// Request is an incident reported by an operator.
type Request struct {
	Line    string
	Machine string
	Problem string
	Urgency string
}

// Report describes a booked intervention.
type Report struct {
	Request
	Tier             schedule.Tier
	Slot             schedule.Slot
	ReportedAt       time.Time
	MaintenanceEvent calendar.Event
	LineEvent        calendar.Event
	Email            string
	MessageID        string
}

// Service books maintenance interventions.
type Service struct {
	cal    Calendar
	mail   Mailer
	finder *schedule.Finder
	clock  schedule.Clock
	cfg    Config
	logger *slog.Logger
}

// NewService creates a Service. A nil finder uses the default search
// settings; a nil clock reads the system clock in the local zone.
func NewService(cal Calendar, mail Mailer, finder *schedule.Finder, clock schedule.Clock, cfg Config) *Service {
	logger := log.Component("maintenance")
	if finder == nil {
		finder = schedule.NewFinder(schedule.WithLogger(logger))
	}
	if clock == nil {
		clock = schedule.SystemClock{}
	}
	return &Service{
		cal:    cal,
		mail:   mail,
		finder: finder,
		clock:  clock,
		cfg:    cfg,
		logger: logger,
	}
}

// Schedule finds a slot for req, creates the event in both calendars and
// e-mails the maintenance team.
func (s *Service) Schedule(ctx context.Context, req Request) (Report, error) {
	req.Line = strings.TrimSpace(req.Line)
	if req.Line != "1" && req.Line != "2" {
		return Report{}, fmt.Errorf("%w: %q", ErrInvalidLine, req.Line)
	}

	tier, err := s.tier(req.Urgency)
	if err != nil {
		return Report{}, err
	}

	maintCal := s.cfg.Calendars.Maintenance
	lineCal := s.cfg.Calendars.Line(req.Line)
	if maintCal == "" || lineCal == "" {
		return Report{}, ErrCalendarsNotConfigured
	}

	now := s.clock.Now()
	s.logger.Info("scheduling maintenance",
		"line", req.Line, "machine", req.Machine, "urgency", req.Urgency, "tier", tier.String())

	slot, err := s.finder.Find(ctx, tier, now, s.cal.Oracle(maintCal))
	if err != nil {
		return Report{}, err
	}

	event := calendar.Event{
		Title:       EventTitle(req.Problem, req.Machine),
		Description: EventDescription(req, now),
		Start:       slot.Start,
		End:         slot.End,
	}

	report := Report{
		Request:    req,
		Tier:       tier,
		Slot:       slot,
		ReportedAt: now,
		Email:      s.cfg.Email,
	}

	report.MaintenanceEvent, err = s.cal.Insert(ctx, maintCal, event)
	if err != nil {
		return Report{}, err
	}
	report.LineEvent, err = s.cal.Insert(ctx, lineCal, event)
	if err != nil {
		return report, err
	}

	report.MessageID, err = s.mail.Send(ctx, s.cfg.Email, EmailSubject(req), EmailBody(req, slot.Interval, now))
	if err != nil {
		return report, err
	}

	s.logger.Info("maintenance scheduled",
		"start", slot.Start, "end", slot.End, "attempt", slot.Attempt,
		"unverified", slot.Unverified, "message", report.MessageID)
	return report, nil
}

func (s *Service) tier(urgency string) (schedule.Tier, error) {
	if s.cfg.StrictUrgency {
		return schedule.ParseTierStrict(urgency)
	}
	tier, known := schedule.ParseTier(urgency)
	if !known {
		s.logger.Warn("unknown urgency, treating as low", "urgency", urgency)
	}
	return tier, nil
}

// Upcoming returns the interventions of the next days days (DefaultDays
// when days <= 0), at most MaxUpcoming.
func (s *Service) Upcoming(ctx context.Context, days int) ([]Intervention, error) {
	if s.cfg.Calendars.Maintenance == "" {
		return nil, ErrCalendarsNotConfigured
	}
	if days <= 0 {
		days = DefaultDays
	}
	now := s.clock.Now()
	events, err := s.cal.List(ctx, s.cfg.Calendars.Maintenance, now, now.AddDate(0, 0, days), MaxUpcoming)
	if err != nil {
		return nil, err
	}
	out := make([]Intervention, 0, len(events))
	for _, ev := range events {
		out = append(out, ParseIntervention(ev))
	}
	return out, nil
}

// Now returns the service clock's current time.
func (s *Service) Now() time.Time { return s.clock.Now() }

// EventTitle builds "MAINTENANCE - <problem> - <machine>" with the
// problem cut to 50 characters.
func EventTitle(problem, machine string) string {
	return fmt.Sprintf("MAINTENANCE - %s - %s", truncate(problem, titleProblemRunes), machine)
}

// EventDescription is the structured description parsed back by
// ParseIntervention.
func EventDescription(req Request, reported time.Time) string {
	return fmt.Sprintf("Ligne de production : %s\nMachine : %s\nProblème : %s\nUrgence : %s\nSignalé le : %s",
		req.Line, req.Machine, req.Problem, req.Urgency, frenchStamp(reported))
}

// EmailSubject builds "[URGENCY] Maintenance requise - Ligne N - machine".
func EmailSubject(req Request) string {
	return fmt.Sprintf("[%s] Maintenance requise - Ligne %s - %s", strings.ToUpper(req.Urgency), req.Line, req.Machine)
}

// EmailBody is the notification sent to the maintenance team.
func EmailBody(req Request, slot schedule.Interval, reported time.Time) string {
	var b strings.Builder
	b.WriteString("Bonjour,\n\n")
	b.WriteString("Une intervention de maintenance a été planifiée :\n\n")
	fmt.Fprintf(&b, "Ligne de production : %s\n", req.Line)
	fmt.Fprintf(&b, "Machine : %s\n", req.Machine)
	fmt.Fprintf(&b, "Problème : %s\n", req.Problem)
	fmt.Fprintf(&b, "Urgence : %s\n\n", req.Urgency)
	fmt.Fprintf(&b, "Date d'intervention : %s\n", slot.Start.Format(dayLayout))
	fmt.Fprintf(&b, "Heure de début : %s\n", slot.Start.Format(clockLayout))
	fmt.Fprintf(&b, "Heure de fin prévue : %s\n\n", slot.End.Format(clockLayout))
	fmt.Fprintf(&b, "Signalé le %s\n\n", frenchStamp(reported))
	b.WriteString("Cordialement,\n")
	b.WriteString("Système Orion - Gestion de Production")
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
