package orion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/teslashibe/go-orion/internal/log"
	"github.com/teslashibe/go-orion/pkg/calendar"
	"github.com/teslashibe/go-orion/pkg/contacts"
	"github.com/teslashibe/go-orion/pkg/gmail"
	"github.com/teslashibe/go-orion/pkg/maintenance"
	"github.com/teslashibe/go-orion/pkg/realtime"
	"github.com/teslashibe/go-orion/pkg/schedule"
)

// MsgNotConnected is returned by every tool while no Google account is
// linked.
const MsgNotConnected = "Erreur : compte Google non connecté."

// ToolsConfig configures Tools.
type ToolsConfig struct {
	// Backend returns the current services, or nil when Google is not
	// connected.
	Backend func() *Backend
	Logger  *slog.Logger
}

type toolSet struct {
	backend func() *Backend
	logger  *slog.Logger
}

// Tools returns the assistant's function tools.
func Tools(cfg ToolsConfig) []realtime.Tool {
	ts := &toolSet{backend: cfg.Backend, logger: log.OrComponent(cfg.Logger, "tools")}
	if ts.backend == nil {
		ts.backend = func() *Backend { return nil }
	}

	return []realtime.Tool{
		{
			Name: "schedule_maintenance",
			Description: "Planifie une intervention de maintenance sur une ligne de production : " +
				"trouve un créneau libre selon l'urgence, crée l'événement dans les calendriers " +
				"maintenance et ligne, puis prévient l'équipe maintenance par email.",
			Parameters: map[string]interface{}{
				"ligne_production":     stringParam("Numéro de la ligne de production concernée (1 ou 2)"),
				"machine_name":         stringParam("Nom ou identifiant de la machine concernée"),
				"probleme_description": stringParam("Description détaillée du problème rencontré"),
				"urgence":              stringParam("Niveau d'urgence : 'urgent', 'moyen' ou 'faible'"),
			},
			Required: []string{"ligne_production", "machine_name", "probleme_description", "urgence"},
			Handler:  ts.with(ts.scheduleMaintenance),
		},
		{
			Name:        "get_maintenance_schedule",
			Description: "Récupère les prochaines interventions de maintenance depuis le calendrier maintenance.",
			Parameters: map[string]interface{}{
				"nombre_jours": map[string]interface{}{
					"type":        "integer",
					"description": "Nombre de jours à consulter dans le futur (par défaut : 7)",
				},
			},
			Handler: ts.with(ts.maintenanceSchedule),
		},
		{
			Name:        "add_event",
			Description: "Creates an event in Google Calendar. Use 00:00 and 23:59 for an all-day event.",
			Parameters: map[string]interface{}{
				"calendar_name": stringParam("The calendar to add the event to"),
				"title":         stringParam("The title of the event"),
				"date":          stringParam("The date of the event in YYYY-MM-DD format"),
				"start_time":    stringParam("The start time of the event in HH:MM format"),
				"end_time":      stringParam("The end time of the event in HH:MM format"),
			},
			Required: []string{"calendar_name", "title", "date", "start_time", "end_time"},
			Handler:  ts.with(ts.addEvent),
		},
		{
			Name:        "list_event",
			Description: "Lists the events of a calendar for one day.",
			Parameters: map[string]interface{}{
				"calendar_name": stringParam("The calendar to list the events from"),
				"date":          stringParam("The day to list, in YYYY-MM-DD format"),
			},
			Required: []string{"calendar_name", "date"},
			Handler:  ts.with(ts.listEvent),
		},
		{
			Name:        "delete_event",
			Description: "Deletes the events of a day whose title matches.",
			Parameters: map[string]interface{}{
				"calendar_name": stringParam("The calendar to delete the event from"),
				"title":         stringParam("The title of the event to delete"),
				"date":          stringParam("The date of the event to delete in YYYY-MM-DD format"),
				"start_time":    stringParam("The start time of the event to delete in HH:MM format"),
				"end_time":      stringParam("The end time of the event to delete in HH:MM format"),
			},
			Required: []string{"calendar_name", "title", "date"},
			Handler:  ts.with(ts.deleteEvent),
		},
		{
			Name:        "create_draft",
			Description: "Creates a Gmail draft.",
			Parameters: map[string]interface{}{
				"recipient": stringParam("The recipient email address"),
				"subject":   stringParam("The subject of the email draft"),
				"body":      stringParam("The body content of the email draft"),
			},
			Required: []string{"recipient", "subject", "body"},
			Handler:  ts.with(ts.createDraft),
		},
		{
			Name:        "send_draft",
			Description: "Sends the Gmail draft matching a recipient and a subject.",
			Parameters: map[string]interface{}{
				"recipient": stringParam("The recipient email address"),
				"subject":   stringParam("The subject of the email draft"),
			},
			Required: []string{"recipient", "subject"},
			Handler:  ts.with(ts.sendDraft),
		},
		{
			Name:        "create_contact",
			Description: "Creates a Google contact.",
			Parameters: map[string]interface{}{
				"first_name":   stringParam("First name of the contact to create"),
				"last_name":    stringParam("Last name of the contact to create"),
				"email":        stringParam("Email address of the contact to create (optional)"),
				"phone_number": stringParam("Phone number of the contact to create (optional)"),
				"notes":        stringParam("Infos of the contact to create (optional)"),
			},
			Required: []string{"first_name", "last_name"},
			Handler:  ts.with(ts.createContact),
		},
		{
			Name:        "delete_contact",
			Description: "Deletes a Google contact by first and last name.",
			Parameters: map[string]interface{}{
				"first_name": stringParam("First name of the contact to delete"),
				"last_name":  stringParam("Last name of the contact to delete"),
			},
			Required: []string{"first_name", "last_name"},
			Handler:  ts.with(ts.deleteContact),
		},
		{
			Name:        "modify_contact",
			Description: "Updates the email, phone number or notes of a Google contact.",
			Parameters: map[string]interface{}{
				"first_name":   stringParam("First name of the contact to modify"),
				"last_name":    stringParam("Last name of the contact to modify"),
				"email":        stringParam("Email address of the contact to modify (optional)"),
				"phone_number": stringParam("Phone number of the contact to modify (optional)"),
				"notes":        stringParam("Infos of the contact to modify (optional)"),
			},
			Required: []string{"first_name", "last_name"},
			Handler:  ts.with(ts.modifyContact),
		},
		{
			Name:        "research_contact",
			Description: "Searches Google contacts by name, nickname or a word from their notes.",
			Parameters: map[string]interface{}{
				"first_name": stringParam("First name of the contact to research"),
				"last_name":  stringParam("Last name of the contact to research"),
				"nickname":   stringParam("Nickname of the contact to research"),
				"notes":      stringParam("Infos of the contact to research"),
			},
			Handler: ts.with(ts.researchContact),
		},
	}
}

func stringParam(desc string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": desc}
}

type backendHandler func(ctx context.Context, b *Backend, args map[string]interface{}) string

// with resolves the backend before each call. Tool failures are spoken
// back to the user, so handlers return text and never an error.
func (ts *toolSet) with(h backendHandler) func(context.Context, map[string]interface{}) (string, error) {
	return func(ctx context.Context, args map[string]interface{}) (string, error) {
		b := ts.backend()
		if b == nil {
			return MsgNotConnected, nil
		}
		return h(ctx, b, args), nil
	}
}

func (ts *toolSet) scheduleMaintenance(ctx context.Context, b *Backend, args map[string]interface{}) string {
	req := maintenance.Request{
		Line:    argString(args, "ligne_production"),
		Machine: argString(args, "machine_name"),
		Problem: argString(args, "probleme_description"),
		Urgency: argString(args, "urgence"),
	}

	report, err := b.Maintenance.Schedule(ctx, req)
	var exhausted *schedule.ExhaustedError
	switch {
	case err == nil:
		return maintenance.FormatReport(report)
	case errors.Is(err, maintenance.ErrInvalidLine):
		return "Erreur : ligne de production invalide (doit être 1 ou 2)"
	case errors.Is(err, maintenance.ErrCalendarsNotConfigured):
		return "Erreur : calendriers de production non configurés"
	case errors.Is(err, schedule.ErrInvalidUrgency):
		return "Erreur : niveau d'urgence invalide (urgent, moyen ou faible)"
	case errors.As(err, &exhausted):
		return fmt.Sprintf("Erreur : impossible de trouver un créneau disponible dans les %d prochaines tentatives", exhausted.Attempts)
	}
	ts.logger.Error("schedule maintenance failed", "error", err, "line", req.Line, "machine", req.Machine)
	if report.MaintenanceEvent.ID != "" {
		return fmt.Sprintf("Intervention réservée le %s de %s à %s, mais une étape a échoué : %v",
			report.Slot.Start.Format("02/01/2006"), report.Slot.Start.Format("15:04"), report.Slot.End.Format("15:04"), err)
	}
	return fmt.Sprintf("Erreur lors de la planification : %v", err)
}

func (ts *toolSet) maintenanceSchedule(ctx context.Context, b *Backend, args map[string]interface{}) string {
	days := argInt(args, "nombre_jours", maintenance.DefaultDays)
	items, err := b.Maintenance.Upcoming(ctx, days)
	if err != nil {
		if errors.Is(err, maintenance.ErrCalendarsNotConfigured) {
			return "Erreur : calendrier de maintenance non configuré"
		}
		ts.logger.Error("maintenance schedule failed", "error", err)
		return fmt.Sprintf("Erreur lors de la récupération du planning : %v", err)
	}
	return maintenance.FormatUpcoming(items, b.Maintenance.Now(), days)
}

func (ts *toolSet) addEvent(ctx context.Context, b *Backend, args map[string]interface{}) string {
	name := argString(args, "calendar_name")
	id, err := b.Calendar.Resolve(name)
	if err != nil {
		return fmt.Sprintf("Erreur lors de la création de l'événement : L'ID pour le calendrier %s n'a pas été trouvé.", name)
	}
	ev, err := b.Calendar.AddEvent(ctx, id, calendar.NewEvent{
		Title:     argString(args, "title"),
		Date:      argString(args, "date"),
		StartTime: argString(args, "start_time"),
		EndTime:   argString(args, "end_time"),
	})
	if err != nil {
		ts.logger.Error("add event failed", "error", err, "calendar", name)
		return fmt.Sprintf("Erreur lors de la création de l'événement : %v", err)
	}
	ts.logger.Info("event created", "calendar", name, "link", ev.Link)
	return fmt.Sprintf("L'événement %s a été créé avec succès : %s", ev.Title, ev.Link)
}

func (ts *toolSet) listEvent(ctx context.Context, b *Backend, args map[string]interface{}) string {
	name := argString(args, "calendar_name")
	date := argString(args, "date")
	id, err := b.Calendar.Resolve(name)
	if err != nil {
		return fmt.Sprintf("Erreur lors du listage des événements : L'ID pour le calendrier '%s' n'a pas été trouvé.", name)
	}
	day, err := b.Calendar.ParseDate(date)
	if err != nil {
		return fmt.Sprintf("Erreur lors du listage des événements : %v", err)
	}
	events, err := b.Calendar.ListDay(ctx, id, day)
	if err != nil {
		ts.logger.Error("list events failed", "error", err, "calendar", name)
		return fmt.Sprintf("Erreur lors du listage des événements : %v", err)
	}
	ts.logger.Debug("day view", "url", calendar.DayURL(id, day))
	if len(events) == 0 {
		return fmt.Sprintf("Aucun événement trouvé pour le calendrier %s le %s.", name, date)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Événements trouvés pour le calendrier %s le %s :\n", name, date)
	for _, ev := range events {
		if ev.AllDay {
			fmt.Fprintf(&sb, "- %s (Toute la journée)\n", ev.Title)
			continue
		}
		fmt.Fprintf(&sb, "- %s (Début : %s, Fin : %s)\n", ev.Title, ev.Start.Format("15:04"), ev.End.Format("15:04"))
	}
	return sb.String()
}

func (ts *toolSet) deleteEvent(ctx context.Context, b *Backend, args map[string]interface{}) string {
	name := argString(args, "calendar_name")
	title := argString(args, "title")
	date := argString(args, "date")
	id, err := b.Calendar.Resolve(name)
	if err != nil {
		return fmt.Sprintf("Erreur lors de la suppression de l'événement : L'ID pour le calendrier %s n'a pas été trouvé.", name)
	}
	day, err := b.Calendar.ParseDate(date)
	if err != nil {
		return fmt.Sprintf("Erreur lors de la suppression de l'événement : %v", err)
	}

	n, err := b.Calendar.DeleteByTitle(ctx, id, day, title)
	switch {
	case errors.Is(err, calendar.ErrNoEvents):
		return fmt.Sprintf("Aucun événement trouvé pour le calendrier '%s' à la date %s.", name, date)
	case errors.Is(err, calendar.ErrNoMatch):
		return fmt.Sprintf("L'événement '%s' n'a pas pu être supprimé.", title)
	case err != nil:
		ts.logger.Error("delete event failed", "error", err, "calendar", name, "title", title)
		return fmt.Sprintf("Erreur lors de la suppression de l'événement : %v", err)
	}
	ts.logger.Info("events deleted", "calendar", name, "title", title, "count", n)
	return fmt.Sprintf("Événement '%s' supprimé avec succès.", title)
}

func (ts *toolSet) createDraft(ctx context.Context, b *Backend, args map[string]interface{}) string {
	subject := argString(args, "subject")
	_, err := b.Mail.CreateDraft(ctx, argString(args, "recipient"), subject, argString(args, "body"))
	if err != nil {
		ts.logger.Error("create draft failed", "error", err)
		return fmt.Sprintf("Erreur lors de la création du brouillon : %v", err)
	}
	ts.logger.Debug("draft search", "url", gmail.SearchURL("subject:"+subject+" in:drafts"))
	return "Brouillon créé."
}

func (ts *toolSet) sendDraft(ctx context.Context, b *Backend, args map[string]interface{}) string {
	subject := argString(args, "subject")
	draft, err := b.Mail.FindDraft(ctx, argString(args, "recipient"), subject)
	switch {
	case errors.Is(err, gmail.ErrNoDrafts):
		return "Aucun brouillon trouvé."
	case errors.Is(err, gmail.ErrDraftNotFound):
		return "Aucun brouillon correspondant trouvé."
	case err != nil:
		ts.logger.Error("find draft failed", "error", err)
		return fmt.Sprintf("Erreur lors de l'envoi du brouillon : %v", err)
	}

	id, err := b.Mail.SendDraft(ctx, draft.ID)
	if err != nil {
		ts.logger.Error("send draft failed", "error", err, "draft", draft.ID)
		return fmt.Sprintf("Erreur lors de l'envoi du brouillon : %v", err)
	}
	ts.logger.Debug("sent mail", "url", gmail.SentURL(id))
	return "Brouillon envoyé."
}

func (ts *toolSet) createContact(ctx context.Context, b *Backend, args map[string]interface{}) string {
	first, last := argString(args, "first_name"), argString(args, "last_name")
	ct, err := b.Contacts.Create(ctx, contacts.Contact{
		FirstName: first,
		LastName:  last,
		Email:     argString(args, "email"),
		Phone:     argString(args, "phone_number"),
		Notes:     argString(args, "notes"),
	})
	if err != nil {
		ts.logger.Error("create contact failed", "error", err)
		return fmt.Sprintf("Erreur lors de la création du contact %s %s : %v", first, last, err)
	}
	ts.logger.Debug("contact", "url", ct.URL())
	return "Contact créé."
}

func (ts *toolSet) deleteContact(ctx context.Context, b *Backend, args map[string]interface{}) string {
	first, last := argString(args, "first_name"), argString(args, "last_name")
	_, err := b.Contacts.Delete(ctx, first, last)
	switch {
	case errors.Is(err, contacts.ErrNotFound):
		return fmt.Sprintf("Aucun contact trouvé avec le nom %s %s.", first, last)
	case err != nil:
		ts.logger.Error("delete contact failed", "error", err)
		return fmt.Sprintf("Erreur lors de la suppression du contact %s %s : %v", first, last, err)
	}
	return "Contact supprimé."
}

func (ts *toolSet) modifyContact(ctx context.Context, b *Backend, args map[string]interface{}) string {
	first, last := argString(args, "first_name"), argString(args, "last_name")
	ct, err := b.Contacts.Update(ctx, first, last, contacts.Patch{
		Email: argString(args, "email"),
		Phone: argString(args, "phone_number"),
		Notes: argString(args, "notes"),
	})
	switch {
	case errors.Is(err, contacts.ErrNotFound):
		return fmt.Sprintf("Aucun contact trouvé avec le nom %s %s.", first, last)
	case err != nil:
		ts.logger.Error("modify contact failed", "error", err)
		return fmt.Sprintf("Erreur lors de la modification du contact : %v", err)
	}
	ts.logger.Debug("contact", "url", ct.URL())
	return "Contact modifié."
}

func (ts *toolSet) researchContact(ctx context.Context, b *Backend, args map[string]interface{}) string {
	cr := contacts.Criteria{
		FirstName: argString(args, "first_name"),
		LastName:  argString(args, "last_name"),
		Nickname:  argString(args, "nickname"),
		Notes:     argString(args, "notes"),
	}
	found, err := b.Contacts.Search(ctx, cr)
	if err != nil {
		ts.logger.Error("research contact failed", "error", err)
		return fmt.Sprintf("Erreur lors de la recherche du contact : %v", err)
	}
	return contacts.FormatResults(found, cr)
}

// argString returns a trimmed string argument. Numbers are accepted
// since the model sometimes sends "ligne_production": 1.
func argString(args map[string]interface{}, key string) string {
	switch v := args[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func argInt(args map[string]interface{}, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		if v > 0 {
			return int(v)
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			return n
		}
	}
	return def
}
