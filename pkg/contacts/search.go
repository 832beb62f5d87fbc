package contacts

import (
	"fmt"
	"strings"
)

// Criteria filters a contact search. Names and nickname match exactly,
// ignoring case; Notes matches as a case-insensitive substring. Empty
// fields are not filtered on.
type Criteria struct {
	FirstName string
	LastName  string
	Nickname  string
	Notes     string
}

// Empty reports whether no field is set.
func (cr Criteria) Empty() bool {
	return cr.FirstName == "" && cr.LastName == "" && cr.Nickname == "" && cr.Notes == ""
}

// String renders the set fields, e.g. "first_name='Jean', notes='presse'".
func (cr Criteria) String() string {
	var parts []string
	add := func(key, v string) {
		if v != "" {
			parts = append(parts, fmt.Sprintf("%s='%s'", key, v))
		}
	}
	add("first_name", cr.FirstName)
	add("last_name", cr.LastName)
	add("nickname", cr.Nickname)
	add("notes", cr.Notes)
	if len(parts) == 0 {
		return "no criteria"
	}
	return strings.Join(parts, ", ")
}

// Match reports whether ct satisfies every set field of cr.
func Match(ct Contact, cr Criteria) bool {
	if cr.FirstName != "" && !strings.EqualFold(ct.FirstName, cr.FirstName) {
		return false
	}
	if cr.LastName != "" && !strings.EqualFold(ct.LastName, cr.LastName) {
		return false
	}
	if cr.Nickname != "" && !strings.EqualFold(ct.Nickname, cr.Nickname) {
		return false
	}
	if cr.Notes != "" && !strings.Contains(strings.ToLower(ct.Notes), strings.ToLower(cr.Notes)) {
		return false
	}
	return true
}

// FormatResults renders search results for the voice assistant. When
// several contacts match, it asks which one to use.
func FormatResults(found []Contact, cr Criteria) string {
	if len(found) == 0 {
		return "No contacts found matching the criteria: " + cr.String()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d contact(s)", len(found))
	if cr.Notes != "" {
		fmt.Fprintf(&b, " matching '%s'", cr.Notes)
	}
	b.WriteString(":\n\n")

	for i, ct := range found {
		name := ct.FullName()
		if name == "" {
			name = "Unknown"
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, name)
		if ct.Email != "" {
			fmt.Fprintf(&b, "   Email: %s\n", ct.Email)
		} else {
			b.WriteString("   Email: (no email address)\n")
		}
		if ct.Notes != "" {
			fmt.Fprintf(&b, "   Description: %s\n", ct.Notes)
		}
		if ct.Nickname != "" {
			fmt.Fprintf(&b, "   Nickname: %s\n", ct.Nickname)
		}
		b.WriteString("\n")
	}

	if len(found) > 1 {
		b.WriteString("Which contact would you like to use?")
	}
	return b.String()
}
