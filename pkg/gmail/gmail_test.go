package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"strings"
	"sync"
	"testing"

	gm "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

func decodeRaw(t *testing.T, raw string) *mail.Message {
	t.Helper()
	data, err := base64.URLEncoding.DecodeString(raw)
	if err != nil {
		t.Fatalf("raw is not base64url: %v", err)
	}
	msg, err := mail.ReadMessage(strings.NewReader(string(data)))
	if err != nil {
		t.Fatalf("raw is not a mail message: %v", err)
	}
	return msg
}

func TestCompose(t *testing.T) {
	raw, err := Compose("maintenance@orion.com", "[URGENT] Maintenance requise - Ligne 1 - Presse", "Bonjour,\n\nProblème détecté.")
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}

	msg := decodeRaw(t, raw)
	if got := msg.Header.Get("To"); got != "maintenance@orion.com" {
		t.Errorf("To = %q", got)
	}

	subject, err := new(mime.WordDecoder).DecodeHeader(msg.Header.Get("Subject"))
	if err != nil {
		t.Fatal(err)
	}
	if subject != "[URGENT] Maintenance requise - Ligne 1 - Presse" {
		t.Errorf("Subject = %q", subject)
	}
	if !strings.Contains(msg.Header.Get("Content-Type"), "utf-8") {
		t.Errorf("Content-Type = %q", msg.Header.Get("Content-Type"))
	}

	body, _ := io.ReadAll(msg.Body)
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(string(body), "\r\n", ""))
	if err != nil {
		t.Fatalf("body not base64: %v", err)
	}
	if string(decoded) != "Bonjour,\n\nProblème détecté." {
		t.Errorf("body = %q", decoded)
	}
}

func TestComposeEncodesNonASCIISubject(t *testing.T) {
	raw, err := Compose("a@b.c", "Problème urgent", "x")
	if err != nil {
		t.Fatal(err)
	}
	msg := decodeRaw(t, raw)
	if !strings.HasPrefix(msg.Header.Get("Subject"), "=?utf-8?b?") {
		t.Errorf("non-ASCII subject should be B-encoded: %q", msg.Header.Get("Subject"))
	}
}

func TestComposeRejects(t *testing.T) {
	if _, err := Compose("a@b.c", "s", ""); !errors.Is(err, ErrEmptyBody) {
		t.Errorf("empty body err = %v", err)
	}
	if _, err := Compose(" ", "s", "b"); !errors.Is(err, ErrNoRecipient) {
		t.Errorf("empty recipient err = %v", err)
	}
}

func TestComposeStripsHeaderInjection(t *testing.T) {
	raw, err := Compose("a@b.c\r\nBcc: evil@x.y", "s", "b")
	if err != nil {
		t.Fatal(err)
	}
	msg := decodeRaw(t, raw)
	if msg.Header.Get("Bcc") != "" {
		t.Error("header injection not stripped")
	}
}

func TestAddress(t *testing.T) {
	tests := map[string]string{
		"Jean Dupont <jean@orion.com>": "jean@orion.com",
		" jean@orion.com ":             "jean@orion.com",
		"<a@b.c>":                      "a@b.c",
		"":                             "",
	}
	for in, want := range tests {
		if got := Address(in); got != want {
			t.Errorf("Address(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSearchURL(t *testing.T) {
	got := SearchURL("subject:Rapport in:drafts")
	want := "https://mail.google.com/mail/u/0/#search/subject%3ARapport%20in%3Adrafts"
	if got != want {
		t.Errorf("SearchURL() = %q, want %q", got, want)
	}
}

// fakeGmail serves messages.send and the drafts endpoints.
type fakeGmail struct {
	mu     sync.Mutex
	sent   []*gm.Message
	drafts map[string]*gm.Draft
	order  []string
	sentID []string
}

func (f *fakeGmail) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(path, "/messages/send"):
		var m gm.Message
		json.NewDecoder(r.Body).Decode(&m)
		f.sent = append(f.sent, &m)
		writeJSON(w, &gm.Message{Id: "msg-1"})

	case r.Method == http.MethodPost && strings.HasSuffix(path, "/drafts/send"):
		var d gm.Draft
		json.NewDecoder(r.Body).Decode(&d)
		f.sentID = append(f.sentID, d.Id)
		writeJSON(w, &gm.Message{Id: "sent-" + d.Id})

	case r.Method == http.MethodPost && strings.HasSuffix(path, "/drafts"):
		var d gm.Draft
		json.NewDecoder(r.Body).Decode(&d)
		d.Id = "draft-new"
		d.Message.Id = "msg-draft-new"
		writeJSON(w, &d)

	case r.Method == http.MethodGet && strings.HasSuffix(path, "/drafts"):
		list := &gm.ListDraftsResponse{}
		for _, id := range f.order {
			list.Drafts = append(list.Drafts, &gm.Draft{Id: id})
		}
		writeJSON(w, list)

	case r.Method == http.MethodGet && strings.Contains(path, "/drafts/"):
		id := path[strings.LastIndex(path, "/")+1:]
		d, ok := f.drafts[id]
		if !ok {
			http.Error(w, `{"error":{"code":404}}`, http.StatusNotFound)
			return
		}
		writeJSON(w, d)

	default:
		http.NotFound(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (f *fakeGmail) addDraft(id, to, subject string) {
	if f.drafts == nil {
		f.drafts = map[string]*gm.Draft{}
	}
	f.drafts[id] = &gm.Draft{
		Id: id,
		Message: &gm.Message{
			Id: "m-" + id,
			Payload: &gm.MessagePart{Headers: []*gm.MessagePartHeader{
				{Name: "to", Value: to},
				{Name: "Subject", Value: subject},
			}},
		},
	}
	f.order = append(f.order, id)
}

func newTestClient(t *testing.T, fake *fakeGmail) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	svc, err := gm.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatal(err)
	}
	return New(svc)
}

func TestSend(t *testing.T) {
	fake := &fakeGmail{}
	c := newTestClient(t, fake)

	id, err := c.Send(context.Background(), "maintenance@orion.com", "Sujet", "Corps")
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if id != "msg-1" {
		t.Errorf("id = %q", id)
	}
	if len(fake.sent) != 1 {
		t.Fatalf("sent %d messages", len(fake.sent))
	}
	if got := decodeRaw(t, fake.sent[0].Raw).Header.Get("To"); got != "maintenance@orion.com" {
		t.Errorf("To = %q", got)
	}
}

func TestCreateDraft(t *testing.T) {
	c := newTestClient(t, &fakeGmail{})
	d, err := c.CreateDraft(context.Background(), "a@b.c", "Sujet", "Corps")
	if err != nil {
		t.Fatalf("CreateDraft() error = %v", err)
	}
	if d.ID != "draft-new" || d.MessageID != "msg-draft-new" {
		t.Errorf("draft = %+v", d)
	}

	if _, err := c.CreateDraft(context.Background(), "a@b.c", "Sujet", ""); !errors.Is(err, ErrEmptyBody) {
		t.Errorf("err = %v, want ErrEmptyBody", err)
	}
}

func TestFindAndSendDraft(t *testing.T) {
	fake := &fakeGmail{}
	fake.addDraft("d1", "other@orion.com", "Rapport")
	fake.addDraft("d2", "Jean Dupont <jean@orion.com>", " Rapport ")
	fake.addDraft("d3", "jean@orion.com", "Rapport hebdo")
	c := newTestClient(t, fake)
	ctx := context.Background()

	d, err := c.FindDraft(ctx, "jean@orion.com", "Rapport")
	if err != nil {
		t.Fatalf("FindDraft() error = %v", err)
	}
	if d.ID != "d2" {
		t.Errorf("found %q, want d2", d.ID)
	}

	id, err := c.SendDraft(ctx, d.ID)
	if err != nil {
		t.Fatalf("SendDraft() error = %v", err)
	}
	if id != "sent-d2" || len(fake.sentID) != 1 || fake.sentID[0] != "d2" {
		t.Errorf("sent %q, drafts sent %v", id, fake.sentID)
	}

	if _, err := c.FindDraft(ctx, "jean@orion.com", "Absent"); !errors.Is(err, ErrDraftNotFound) {
		t.Errorf("err = %v, want ErrDraftNotFound", err)
	}
}

func TestFindDraftEmpty(t *testing.T) {
	c := newTestClient(t, &fakeGmail{})
	if _, err := c.FindDraft(context.Background(), "a@b.c", "s"); !errors.Is(err, ErrNoDrafts) {
		t.Errorf("err = %v, want ErrNoDrafts", err)
	}
}
