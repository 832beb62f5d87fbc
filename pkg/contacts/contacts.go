// Package contacts manages Google Contacts through the People API.
package contacts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/api/people/v1"

	"github.com/teslashibe/go-orion/internal/log"
)

const (
	self         = "people/me"
	listPageSize = 1000
	fieldsFull   = "names,nicknames,emailAddresses,phoneNumbers,biographies"
	updateFields = "emailAddresses,phoneNumbers,biographies"
)

// ErrNotFound is returned when no contact has the requested name.
var ErrNotFound = errors.New("contacts: contact not found")

// Contact is the flattened view of a People API person.
type Contact struct {
	ResourceName string
	Etag         string
	FirstName    string
	LastName     string
	Nickname     string
	Email        string
	Phone        string
	Notes        string
}

// FullName joins the first and last names.
func (c Contact) FullName() string {
	return strings.TrimSpace(strings.Join([]string{c.FirstName, c.LastName}, " "))
}

// URL links to the contact in the Google Contacts web UI.
func (c Contact) URL() string {
	return "https://contacts.google.com/person/" + strings.TrimPrefix(c.ResourceName, "people/")
}

// Patch holds the fields to change. Empty fields keep their value.
type Patch struct {
	Email string
	Phone string
	Notes string
}

// Client wraps the People API.
type Client struct {
	svc    *people.Service
	logger *slog.Logger
}

// New creates a Client.
func New(svc *people.Service) *Client {
	return &Client{svc: svc, logger: log.Component("contacts")}
}

// Create adds a contact. Empty email, phone and notes are omitted.
func (c *Client) Create(ctx context.Context, ct Contact) (Contact, error) {
	p := &people.Person{
		Names: []*people.Name{{GivenName: ct.FirstName, FamilyName: ct.LastName}},
	}
	applyPatch(p, Patch{Email: ct.Email, Phone: ct.Phone, Notes: ct.Notes})
	if ct.Nickname != "" {
		p.Nicknames = []*people.Nickname{{Value: ct.Nickname}}
	}

	created, err := c.svc.People.CreateContact(p).Context(ctx).Do()
	if err != nil {
		return Contact{}, fmt.Errorf("contacts: create %s: %w", ct.FullName(), err)
	}
	out := fromPerson(created)
	c.logger.Info("contact created", "name", out.FullName(), "resource", out.ResourceName)
	return out, nil
}

// FindByName returns the first contact whose given and family names
// equal first and last.
func (c *Client) FindByName(ctx context.Context, first, last string) (Contact, error) {
	persons, err := c.list(ctx)
	if err != nil {
		return Contact{}, err
	}
	first, last = strings.TrimSpace(first), strings.TrimSpace(last)
	for _, p := range persons {
		for _, n := range p.Names {
			if n.GivenName == first && n.FamilyName == last {
				return fromPerson(p), nil
			}
		}
	}
	return Contact{}, fmt.Errorf("%w: %s %s", ErrNotFound, first, last)
}

// Delete removes the contact named first last.
func (c *Client) Delete(ctx context.Context, first, last string) (Contact, error) {
	ct, err := c.FindByName(ctx, first, last)
	if err != nil {
		return Contact{}, err
	}
	if _, err := c.svc.People.DeleteContact(ct.ResourceName).Context(ctx).Do(); err != nil {
		return Contact{}, fmt.Errorf("contacts: delete %s: %w", ct.ResourceName, err)
	}
	c.logger.Info("contact deleted", "name", ct.FullName(), "resource", ct.ResourceName)
	return ct, nil
}

// Update applies patch to the contact named first last. Names are never
// changed.
func (c *Client) Update(ctx context.Context, first, last string, patch Patch) (Contact, error) {
	ct, err := c.FindByName(ctx, first, last)
	if err != nil {
		return Contact{}, err
	}

	merged := ct
	if patch.Email != "" {
		merged.Email = patch.Email
	}
	if patch.Phone != "" {
		merged.Phone = patch.Phone
	}
	if patch.Notes != "" {
		merged.Notes = patch.Notes
	}

	p := &people.Person{
		ResourceName: ct.ResourceName,
		Etag:         ct.Etag,
	}
	applyPatch(p, Patch{Email: merged.Email, Phone: merged.Phone, Notes: merged.Notes})

	updated, err := c.svc.People.UpdateContact(ct.ResourceName, p).
		UpdatePersonFields(updateFields).
		Context(ctx).Do()
	if err != nil {
		return Contact{}, fmt.Errorf("contacts: update %s: %w", ct.ResourceName, err)
	}
	out := fromPerson(updated)
	if out.FirstName == "" && out.LastName == "" {
		out.FirstName, out.LastName = ct.FirstName, ct.LastName
	}
	c.logger.Info("contact updated", "name", ct.FullName(), "resource", ct.ResourceName)
	return out, nil
}

// Search returns the contacts matching cr. An empty cr matches everyone.
func (c *Client) Search(ctx context.Context, cr Criteria) ([]Contact, error) {
	persons, err := c.list(ctx)
	if err != nil {
		return nil, err
	}
	var out []Contact
	for _, p := range persons {
		ct := fromPerson(p)
		if Match(ct, cr) {
			out = append(out, ct)
		}
	}
	return out, nil
}

func (c *Client) list(ctx context.Context) ([]*people.Person, error) {
	var persons []*people.Person
	err := c.svc.People.Connections.List(self).
		PersonFields(fieldsFull).
		PageSize(listPageSize).
		Pages(ctx, func(resp *people.ListConnectionsResponse) error {
			persons = append(persons, resp.Connections...)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("contacts: list: %w", err)
	}
	return persons, nil
}

func applyPatch(p *people.Person, patch Patch) {
	if patch.Email != "" {
		p.EmailAddresses = []*people.EmailAddress{{Value: patch.Email}}
	}
	if patch.Phone != "" {
		p.PhoneNumbers = []*people.PhoneNumber{{Value: patch.Phone}}
	}
	if patch.Notes != "" {
		p.Biographies = []*people.Biography{{Value: patch.Notes, ContentType: "TEXT_PLAIN"}}
	}
}

// fromPerson keeps the first value of each field.
func fromPerson(p *people.Person) Contact {
	ct := Contact{ResourceName: p.ResourceName, Etag: p.Etag}
	if len(p.Names) > 0 {
		ct.FirstName = p.Names[0].GivenName
		ct.LastName = p.Names[0].FamilyName
	}
	if len(p.Nicknames) > 0 {
		ct.Nickname = p.Nicknames[0].Value
	}
	if len(p.EmailAddresses) > 0 {
		ct.Email = p.EmailAddresses[0].Value
	}
	if len(p.PhoneNumbers) > 0 {
		ct.Phone = p.PhoneNumbers[0].Value
	}
	if len(p.Biographies) > 0 {
		ct.Notes = p.Biographies[0].Value
	}
	return ct
}
