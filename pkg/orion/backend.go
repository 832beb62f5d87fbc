package orion

import (
	"context"
	"time"

	"github.com/teslashibe/go-orion/internal/config"
	"github.com/teslashibe/go-orion/internal/log"
	"github.com/teslashibe/go-orion/pkg/calendar"
	"github.com/teslashibe/go-orion/pkg/contacts"
	"github.com/teslashibe/go-orion/pkg/gmail"
	"github.com/teslashibe/go-orion/pkg/google"
	"github.com/teslashibe/go-orion/pkg/maintenance"
	"github.com/teslashibe/go-orion/pkg/schedule"
)

// The interfaces below are defined where they are consumed; the Google
// clients satisfy them and tests substitute fakes.

// MaintenanceService books and lists interventions.
type MaintenanceService interface {
	Schedule(ctx context.Context, req maintenance.Request) (maintenance.Report, error)
	Upcoming(ctx context.Context, days int) ([]maintenance.Intervention, error)
	Now() time.Time
}

// CalendarService is the calendar surface used by the tools.
type CalendarService interface {
	Resolve(name string) (string, error)
	ParseDate(s string) (time.Time, error)
	AddEvent(ctx context.Context, calendarID string, ev calendar.NewEvent) (calendar.Event, error)
	ListDay(ctx context.Context, calendarID string, date time.Time) ([]calendar.Event, error)
	DeleteByTitle(ctx context.Context, calendarID string, date time.Time, title string) (int, error)
}

// MailService manages drafts.
type MailService interface {
	CreateDraft(ctx context.Context, to, subject, body string) (gmail.Draft, error)
	FindDraft(ctx context.Context, recipient, subject string) (gmail.Draft, error)
	SendDraft(ctx context.Context, draftID string) (string, error)
}

// ContactService manages the address book.
type ContactService interface {
	Create(ctx context.Context, ct contacts.Contact) (contacts.Contact, error)
	Delete(ctx context.Context, first, last string) (contacts.Contact, error)
	Update(ctx context.Context, first, last string, patch contacts.Patch) (contacts.Contact, error)
	Search(ctx context.Context, cr contacts.Criteria) ([]contacts.Contact, error)
}

// Backend groups the services behind the tools. It is rebuilt when the
// Google account is connected or disconnected.
type Backend struct {
	Maintenance MaintenanceService
	Calendar    CalendarService
	Mail        MailService
	Contacts    ContactService
}

// NewBackend builds the Google-backed services for cfg.
func NewBackend(svc *google.Services, cfg config.Config) *Backend {
	cal := calendar.New(svc.Calendar, cfg.Calendars.Aliases(), cfg.Location)
	mail := gmail.New(svc.Gmail)

	finder := schedule.NewFinder(
		schedule.WithMaxAttempts(cfg.MaxAttempts),
		schedule.WithLogger(log.Component("schedule")),
	)
	maint := maintenance.NewService(cal, mail, finder, schedule.SystemClock{Location: cfg.Location}, maintenance.Config{
		Calendars:     cfg.Calendars,
		Email:         cfg.MaintenanceEmail,
		StrictUrgency: cfg.StrictUrgency,
	})

	return &Backend{
		Maintenance: maint,
		Calendar:    cal,
		Mail:        mail,
		Contacts:    contacts.New(svc.People),
	}
}
