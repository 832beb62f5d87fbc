// Package gmail sends mail and manages drafts through the Gmail API.
package gmail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	gm "google.golang.org/api/gmail/v1"

	"github.com/teslashibe/go-orion/internal/log"
)

const me = "me"

// Sentinel errors.
var (
	ErrEmptyBody     = errors.New("gmail: message body is empty")
	ErrNoRecipient   = errors.New("gmail: recipient is empty")
	ErrNoDrafts      = errors.New("gmail: no drafts")
	ErrDraftNotFound = errors.New("gmail: no draft matches recipient and subject")
)

// Draft is a stored Gmail draft.
type Draft struct {
	ID        string
	MessageID string
	To        string
	Subject   string
}

// Client wraps the Gmail API for the authenticated user.
type Client struct {
	svc    *gm.Service
	logger *slog.Logger
}

// New creates a Client.
func New(svc *gm.Service) *Client {
	return &Client{svc: svc, logger: log.Component("gmail")}
}

// Send sends a plain text message and returns its Gmail message ID.
func (c *Client) Send(ctx context.Context, to, subject, body string) (string, error) {
	raw, err := Compose(to, subject, body)
	if err != nil {
		return "", err
	}
	msg, err := c.svc.Users.Messages.Send(me, &gm.Message{Raw: raw}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("gmail: send: %w", err)
	}
	c.logger.Info("message sent", "to", to, "subject", subject, "id", msg.Id)
	return msg.Id, nil
}

// CreateDraft stores a plain text draft.
func (c *Client) CreateDraft(ctx context.Context, to, subject, body string) (Draft, error) {
	raw, err := Compose(to, subject, body)
	if err != nil {
		return Draft{}, err
	}
	d, err := c.svc.Users.Drafts.Create(me, &gm.Draft{Message: &gm.Message{Raw: raw}}).Context(ctx).Do()
	if err != nil {
		return Draft{}, fmt.Errorf("gmail: create draft: %w", err)
	}
	out := Draft{ID: d.Id, To: to, Subject: subject}
	if d.Message != nil {
		out.MessageID = d.Message.Id
	}
	c.logger.Info("draft created", "id", out.ID, "to", to, "subject", subject)
	return out, nil
}

// FindDraft returns the first draft addressed to recipient with exactly
// subject. The recipient is compared on the bare address, so a draft to
// "Jean <jean@x.fr>" matches "jean@x.fr".
func (c *Client) FindDraft(ctx context.Context, recipient, subject string) (Draft, error) {
	list, err := c.svc.Users.Drafts.List(me).Context(ctx).Do()
	if err != nil {
		return Draft{}, fmt.Errorf("gmail: list drafts: %w", err)
	}
	if len(list.Drafts) == 0 {
		return Draft{}, ErrNoDrafts
	}

	wantTo := Address(recipient)
	wantSubject := strings.TrimSpace(subject)
	for _, ref := range list.Drafts {
		d, err := c.svc.Users.Drafts.Get(me, ref.Id).
			Format("metadata").
			Context(ctx).Do()
		if err != nil {
			return Draft{}, fmt.Errorf("gmail: get draft %s: %w", ref.Id, err)
		}
		if d.Message == nil || d.Message.Payload == nil {
			continue
		}
		to := Address(header(d.Message.Payload.Headers, "To"))
		subj := strings.TrimSpace(header(d.Message.Payload.Headers, "Subject"))
		if to == wantTo && subj == wantSubject {
			return Draft{ID: d.Id, MessageID: d.Message.Id, To: to, Subject: subj}, nil
		}
	}
	return Draft{}, ErrDraftNotFound
}

// SendDraft sends a stored draft and returns the sent message ID.
func (c *Client) SendDraft(ctx context.Context, draftID string) (string, error) {
	msg, err := c.svc.Users.Drafts.Send(me, &gm.Draft{Id: draftID}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("gmail: send draft %s: %w", draftID, err)
	}
	c.logger.Info("draft sent", "draft", draftID, "id", msg.Id)
	return msg.Id, nil
}

var angleAddr = regexp.MustCompile(`<(.*?)>`)

// Address extracts the bare address from "Name <addr>" forms.
func Address(s string) string {
	s = strings.TrimSpace(s)
	if m := angleAddr.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return s
}

// SearchURL links to a Gmail web search, e.g. "subject:X in:drafts".
func SearchURL(query string) string {
	return "https://mail.google.com/mail/u/0/#search/" + strings.ReplaceAll(url.QueryEscape(query), "+", "%20")
}

// SentURL links to a sent message in the Gmail web UI.
func SentURL(messageID string) string {
	return "https://mail.google.com/mail/u/0/#sent/" + messageID
}

func header(headers []*gm.MessagePartHeader, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}
