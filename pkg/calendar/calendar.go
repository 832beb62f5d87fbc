// Package calendar wraps the Google Calendar API for Orion's production
// calendars: resolving spoken calendar names, creating and listing
// events, deleting by title and answering availability for the slot
// finder.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	gcal "google.golang.org/api/calendar/v3"

	"github.com/teslashibe/go-orion/internal/log"
	"github.com/teslashibe/go-orion/pkg/schedule"
)

const (
	dateLayout = "2006-01-02"
	hourLayout = "15:04"
)

// Sentinel errors.
var (
	ErrUnknownCalendar = errors.New("calendar: unknown calendar")
	ErrNoEvents        = errors.New("calendar: no events on that day")
	ErrNoMatch         = errors.New("calendar: no event matches that title")
	ErrBadDate         = errors.New("calendar: invalid date, expected YYYY-MM-DD")
	ErrBadTime         = errors.New("calendar: invalid time, expected HH:MM")
)

// Event is a calendar event in Orion's terms.
type Event struct {
	ID          string
	Title       string
	Description string
	Link        string
	Start       time.Time
	End         time.Time
	AllDay      bool
}

// NewEvent describes an event as the voice assistant receives it.
type NewEvent struct {
	Title     string
	Date      string // YYYY-MM-DD
	StartTime string // HH:MM
	EndTime   string // HH:MM
}

// Client talks to Google Calendar.
type Client struct {
	svc     *gcal.Service
	aliases map[string]string
	loc     *time.Location
	logger  *slog.Logger
}

// New creates a Client. aliases maps lower-case spoken names to calendar
// IDs; loc is the timezone timed events are written in.
func New(svc *gcal.Service, aliases map[string]string, loc *time.Location) *Client {
	if loc == nil {
		loc = time.Local
	}
	lower := make(map[string]string, len(aliases))
	for k, v := range aliases {
		lower[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return &Client{
		svc:     svc,
		aliases: lower,
		loc:     loc,
		logger:  log.Component("calendar"),
	}
}

// Location returns the client's timezone.
func (c *Client) Location() *time.Location { return c.loc }

// Resolve maps a calendar name to its ID. Known aliases win; raw IDs
// (anything with an "@", or "primary") pass through unchanged.
func (c *Client) Resolve(name string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if id, ok := c.aliases[key]; ok {
		return id, nil
	}
	if key == "primary" || strings.Contains(key, "@") {
		return strings.TrimSpace(name), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCalendar, name)
}

// ParseDate parses a YYYY-MM-DD date at midnight in the client's timezone.
func (c *Client) ParseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(dateLayout, strings.TrimSpace(s), c.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadDate, s)
	}
	return d, nil
}

// AddEvent creates ev in calendarID. An event from 00:00 to 23:59 is
// created as an all-day event.
func (c *Client) AddEvent(ctx context.Context, calendarID string, ev NewEvent) (Event, error) {
	day, err := c.ParseDate(ev.Date)
	if err != nil {
		return Event{}, err
	}
	start, err := clockOn(day, ev.StartTime)
	if err != nil {
		return Event{}, err
	}
	end, err := clockOn(day, ev.EndTime)
	if err != nil {
		return Event{}, err
	}

	allDay := strings.TrimSpace(ev.StartTime) == "00:00" && strings.TrimSpace(ev.EndTime) == "23:59"
	if allDay {
		start, end = day, day.AddDate(0, 0, 1)
	}
	return c.Insert(ctx, calendarID, Event{
		Title:  ev.Title,
		Start:  start,
		End:    end,
		AllDay: allDay,
	})
}

// Insert writes ev to calendarID and returns the stored event.
func (c *Client) Insert(ctx context.Context, calendarID string, ev Event) (Event, error) {
	created, err := c.svc.Events.Insert(calendarID, c.toAPI(ev)).Context(ctx).Do()
	if err != nil {
		return Event{}, fmt.Errorf("calendar: insert into %s: %w", calendarID, err)
	}
	out := c.fromAPI(created)
	c.logger.Info("event created", "calendar", calendarID, "id", out.ID, "title", out.Title, "link", out.Link)
	return out, nil
}

// List returns single events in [from, to) ordered by start time. max <= 0
// leaves the page size to the API.
func (c *Client) List(ctx context.Context, calendarID string, from, to time.Time, max int) ([]Event, error) {
	call := c.svc.Events.List(calendarID).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime")
	if max > 0 {
		call = call.MaxResults(int64(max))
	}
	res, err := call.Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("calendar: list %s: %w", calendarID, err)
	}
	events := make([]Event, 0, len(res.Items))
	for _, item := range res.Items {
		events = append(events, c.fromAPI(item))
	}
	return events, nil
}

// ListDay returns the events of one civil day, from 00:00:01 to 23:59:59.
func (c *Client) ListDay(ctx context.Context, calendarID string, date time.Time) ([]Event, error) {
	from, to := dayBounds(date.In(c.loc))
	return c.List(ctx, calendarID, from, to, 0)
}

// DeleteByTitle deletes every event on date whose trimmed title equals
// title, ignoring case. It returns how many were deleted.
func (c *Client) DeleteByTitle(ctx context.Context, calendarID string, date time.Time, title string) (int, error) {
	events, err := c.ListDay(ctx, calendarID, date)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, ErrNoEvents
	}

	want := strings.ToLower(strings.TrimSpace(title))
	deleted := 0
	for _, ev := range events {
		if strings.ToLower(strings.TrimSpace(ev.Title)) != want {
			continue
		}
		if err := c.svc.Events.Delete(calendarID, ev.ID).Context(ctx).Do(); err != nil {
			return deleted, fmt.Errorf("calendar: delete %s: %w", ev.ID, err)
		}
		c.logger.Info("event deleted", "calendar", calendarID, "id", ev.ID, "title", ev.Title)
		deleted++
	}
	if deleted == 0 {
		return 0, fmt.Errorf("%w: %q", ErrNoMatch, title)
	}
	return deleted, nil
}

// Oracle answers availability for calendarID: a window is free when the
// calendar has no event overlapping it.
func (c *Client) Oracle(calendarID string) schedule.Oracle {
	return schedule.OracleFunc(func(ctx context.Context, start, end time.Time) (bool, error) {
		events, err := c.List(ctx, calendarID, start, end, 1)
		if err != nil {
			return false, err
		}
		return len(events) == 0, nil
	})
}

// DayURL links to the Google Calendar day view of date for calendarID.
func DayURL(calendarID string, date time.Time) string {
	return fmt.Sprintf("https://calendar.google.com/calendar/u/0/r/day/%d/%02d/%02d?cid=%s",
		date.Year(), int(date.Month()), date.Day(), url.QueryEscape(calendarID))
}

func (c *Client) toAPI(ev Event) *gcal.Event {
	out := &gcal.Event{
		Summary:     ev.Title,
		Description: ev.Description,
	}
	if ev.AllDay {
		out.Start = &gcal.EventDateTime{Date: ev.Start.Format(dateLayout)}
		out.End = &gcal.EventDateTime{Date: ev.End.Format(dateLayout)}
		return out
	}
	tz := c.loc.String()
	out.Start = &gcal.EventDateTime{DateTime: ev.Start.In(c.loc).Format(time.RFC3339), TimeZone: tz}
	out.End = &gcal.EventDateTime{DateTime: ev.End.In(c.loc).Format(time.RFC3339), TimeZone: tz}
	return out
}

func (c *Client) fromAPI(e *gcal.Event) Event {
	out := Event{
		ID:          e.Id,
		Title:       e.Summary,
		Description: e.Description,
		Link:        e.HtmlLink,
	}
	if e.Start != nil {
		out.Start, out.AllDay = c.parseDateTime(e.Start)
	}
	if e.End != nil {
		out.End, _ = c.parseDateTime(e.End)
	}
	return out
}

// parseDateTime reads either form of an event boundary. The bool reports
// a date-only (all-day) value.
func (c *Client) parseDateTime(dt *gcal.EventDateTime) (time.Time, bool) {
	if dt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, dt.DateTime)
		if err != nil {
			c.logger.Warn("unparseable event time", "value", dt.DateTime, "error", err)
			return time.Time{}, false
		}
		return t.In(c.loc), false
	}
	if dt.Date != "" {
		t, err := time.ParseInLocation(dateLayout, dt.Date, c.loc)
		if err != nil {
			c.logger.Warn("unparseable event date", "value", dt.Date, "error", err)
			return time.Time{}, true
		}
		return t, true
	}
	return time.Time{}, false
}

func clockOn(day time.Time, hhmm string) (time.Time, error) {
	t, err := time.Parse(hourLayout, strings.TrimSpace(hhmm))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadTime, hhmm)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, day.Location()), nil
}

func dayBounds(d time.Time) (time.Time, time.Time) {
	y, m, day := d.Date()
	return time.Date(y, m, day, 0, 0, 1, 0, d.Location()),
		time.Date(y, m, day, 23, 59, 59, 0, d.Location())
}
