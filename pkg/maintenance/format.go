package maintenance

import (
	"fmt"
	"strings"
	"time"
)

const (
	dayLayout   = "02/01/2006"
	clockLayout = "15:04"
)

// frenchStamp renders "dd/mm/yyyy à HH:MM".
func frenchStamp(t time.Time) string {
	return t.Format(dayLayout) + " à " + t.Format(clockLayout)
}

// FormatReport renders a booked intervention for the voice assistant.
func FormatReport(r Report) string {
	var b strings.Builder
	b.WriteString("Maintenance planifiée avec succès !\n\n")
	fmt.Fprintf(&b, "Ligne %s - %s\n", r.Line, r.Machine)
	fmt.Fprintf(&b, "Problème : %s\n", r.Problem)
	fmt.Fprintf(&b, "Urgence : %s\n\n", r.Urgency)
	fmt.Fprintf(&b, "Intervention prévue le %s de %s à %s\n\n",
		r.Slot.Start.Format(dayLayout), r.Slot.Start.Format(clockLayout), r.Slot.End.Format(clockLayout))
	fmt.Fprintf(&b, "Email envoyé à %s\n", r.Email)
	fmt.Fprintf(&b, "Événements créés dans les calendriers (maintenance + ligne %s)", r.Line)
	if r.Slot.Unverified {
		b.WriteString("\n\nAttention : la disponibilité du calendrier n'a pas pu être vérifiée.")
	}
	return b.String()
}

// FormatUpcoming renders the maintenance schedule. Dates equal to today
// or tomorrow (relative to now) are spoken as such.
func FormatUpcoming(items []Intervention, now time.Time, days int) string {
	if days <= 0 {
		days = DefaultDays
	}
	if len(items) == 0 {
		return fmt.Sprintf("Aucune intervention de maintenance planifiée dans les %d prochains jours.", days)
	}

	today := now.Format(dayLayout)
	tomorrow := now.AddDate(0, 0, 1).Format(dayLayout)

	var b strings.Builder
	fmt.Fprintf(&b, "Prochaines interventions de maintenance (%d) :\n\n", len(items))
	for i, in := range items {
		fmt.Fprintf(&b, "%d. Ligne %s - %s\n", i+1, in.Line, in.Machine)
		if in.Urgency != Unknown {
			fmt.Fprintf(&b, "   Urgence : %s\n", in.Urgency)
		}
		fmt.Fprintf(&b, "   Problème : %s\n", in.Problem)

		start := in.Start.In(now.Location())
		date := start.Format(dayLayout)
		switch date {
		case today:
			date = "aujourd'hui"
		case tomorrow:
			date = "demain"
		}
		fmt.Fprintf(&b, "   Date : %s\n", date)

		if in.AllDay {
			b.WriteString("   Horaire : Toute la journée\n")
		} else {
			fmt.Fprintf(&b, "   Horaire : %s - %s\n",
				start.Format(clockLayout), in.End.In(now.Location()).Format(clockLayout))
		}
		b.WriteString("\n")
	}
	return b.String()
}
