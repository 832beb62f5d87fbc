package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"

	"github.com/teslashibe/go-orion/internal/log"
	"github.com/teslashibe/go-orion/pkg/google"
	"github.com/teslashibe/go-orion/pkg/hub"
	"github.com/teslashibe/go-orion/pkg/realtime"
)

type fakeTools struct {
	tools []realtime.Tool
}

func (f *fakeTools) Tools() []realtime.Tool { return f.tools }

func (f *fakeTools) Invoke(ctx context.Context, name string, args map[string]interface{}) (string, error) {
	for _, t := range f.tools {
		if t.Name == name {
			return t.Handler(ctx, args)
		}
	}
	return "", errors.New("unknown tool")
}

type fakeAuth struct {
	connected   bool
	code        string
	callbackErr error
	disconnects int
}

func (f *fakeAuth) Status() google.Status {
	if f.connected {
		return google.Status{Connected: true}
	}
	return google.Status{AuthURL: f.AuthURL()}
}

func (f *fakeAuth) AuthURL() string { return "https://accounts.google.com/o/oauth2/auth?client_id=x" }

func (f *fakeAuth) CheckState(state string) error {
	if state != "ok" {
		return errors.New("google: invalid OAuth state")
	}
	return nil
}

func (f *fakeAuth) HandleCallback(ctx context.Context, code string) error {
	if f.callbackErr != nil {
		return f.callbackErr
	}
	f.code = code
	f.connected = true
	return nil
}

func (f *fakeAuth) Disconnect() error {
	f.disconnects++
	f.connected = false
	return nil
}

func testTools() *fakeTools {
	return &fakeTools{tools: []realtime.Tool{
		{
			Name:        "list_event",
			Description: "Lists the events of a calendar for one day.",
			Required:    []string{"calendar_name", "date"},
			Handler: func(ctx context.Context, args map[string]interface{}) (string, error) {
				return "Aucun événement trouvé pour le calendrier " + args["calendar_name"].(string) + ".", nil
			},
		},
		{
			Name: "broken",
			Handler: func(ctx context.Context, args map[string]interface{}) (string, error) {
				return "", errors.New("backend down")
			},
		},
	}}
}

func newTestDashboard(auth GoogleAuth, onChange func(context.Context) error) *Dashboard {
	return NewDashboard(DashboardConfig{
		Tools:           testTools(),
		Google:          auth,
		Activity:        hub.New("test", 10),
		OnGoogleChanged: onChange,
		Status: func() AgentStatus {
			return AgentStatus{RealtimeConnected: true, Model: "gpt-4o-realtime-preview"}
		},
		Logger: log.Discard(),
	})
}

func TestDashboardStatus(t *testing.T) {
	d := newTestDashboard(&fakeAuth{}, nil)
	status, body := doJSON(t, d.App(), httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if status != http.StatusOK || body["realtime_connected"] != true {
		t.Fatalf("status=%d body=%v", status, body)
	}
	g := body["google"].(map[string]interface{})
	if g["connected"] != false || !strings.Contains(g["auth_url"].(string), "client_id") {
		t.Errorf("google = %v", g)
	}
}

func TestDashboardListTools(t *testing.T) {
	d := newTestDashboard(nil, nil)
	resp, err := d.App().Test(httptest.NewRequest(http.MethodGet, "/api/tools", nil))
	if err != nil {
		t.Fatal(err)
	}
	var tools []ToolInfo
	if err := json.NewDecoder(resp.Body).Decode(&tools); err != nil {
		t.Fatal(err)
	}
	if len(tools) != 2 || tools[0].Name != "list_event" || len(tools[0].Required) != 2 {
		t.Errorf("tools = %+v", tools)
	}
}

func TestDashboardTriggerTool(t *testing.T) {
	d := newTestDashboard(nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/tools/list_event",
		strings.NewReader(`{"args":{"calendar_name":"maintenance","date":"2024-07-01"}}`))
	req.Header.Set("Content-Type", "application/json")
	status, body := doJSON(t, d.App(), req)
	if status != http.StatusOK || body["result"] != "Aucun événement trouvé pour le calendrier maintenance." {
		t.Fatalf("status=%d body=%v", status, body)
	}

	recent := d.Activity().Recent()
	if len(recent) != 1 {
		t.Fatalf("activity = %+v", recent)
	}
	if ev := recent[0]; ev.Kind != hub.KindToolCall || ev.Source != "dashboard" || ev.Tool != "list_event" {
		t.Errorf("event = %+v", ev)
	}
}

func TestDashboardTriggerToolErrors(t *testing.T) {
	d := newTestDashboard(nil, nil)

	status, _ := doJSON(t, d.App(), httptest.NewRequest(http.MethodPost, "/api/tools/missing", nil))
	if status != http.StatusNotFound {
		t.Errorf("unknown tool status = %d", status)
	}

	status, body := doJSON(t, d.App(), httptest.NewRequest(http.MethodPost, "/api/tools/broken", nil))
	if status != http.StatusInternalServerError || body["error"] != "backend down" {
		t.Errorf("status=%d body=%v", status, body)
	}
	if recent := d.Activity().Recent(); len(recent) != 1 || recent[0].Error != "backend down" {
		t.Errorf("activity = %+v", recent)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/tools/list_event", strings.NewReader(`{not json`))
	req.Header.Set("Content-Type", "application/json")
	if status, _ := doJSON(t, d.App(), req); status != http.StatusBadRequest {
		t.Errorf("bad body status = %d", status)
	}
}

func TestDashboardActivity(t *testing.T) {
	d := newTestDashboard(nil, nil)
	d.Activity().Publish(hub.Event{Kind: hub.KindTranscript, Text: "La presse fuit"})

	resp, err := d.App().Test(httptest.NewRequest(http.MethodGet, "/api/activity", nil))
	if err != nil {
		t.Fatal(err)
	}
	var events []hub.Event
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Text != "La presse fuit" {
		t.Errorf("events = %+v", events)
	}
}

func TestGoogleAuthRedirect(t *testing.T) {
	d := newTestDashboard(&fakeAuth{}, nil)
	resp, err := d.App().Test(httptest.NewRequest(http.MethodGet, "/api/google/auth", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); !strings.HasPrefix(loc, "https://accounts.google.com/") {
		t.Errorf("Location = %q", loc)
	}

	connected := newTestDashboard(&fakeAuth{connected: true}, nil)
	status, body := doJSON(t, connected.App(), httptest.NewRequest(http.MethodGet, "/api/google/auth", nil))
	if status != http.StatusOK || body["connected"] != true {
		t.Errorf("status=%d body=%v", status, body)
	}
}

func TestGoogleCallback(t *testing.T) {
	auth := &fakeAuth{}
	rebuilt := 0
	d := newTestDashboard(auth, func(ctx context.Context) error {
		rebuilt++
		return nil
	})

	resp, err := d.App().Test(httptest.NewRequest(http.MethodGet, "/api/google/callback?state=ok&code=4/abc", nil))
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "connected") {
		t.Fatalf("status=%d body=%s", resp.StatusCode, body)
	}
	if auth.code != "4/abc" || rebuilt != 1 {
		t.Errorf("code=%q rebuilt=%d", auth.code, rebuilt)
	}

	status, body2 := doJSON(t, d.App(), httptest.NewRequest(http.MethodDelete, "/api/google", nil))
	if status != http.StatusOK || body2["connected"] != false || auth.disconnects != 1 || rebuilt != 2 {
		t.Errorf("disconnect: status=%d body=%v disconnects=%d rebuilt=%d", status, body2, auth.disconnects, rebuilt)
	}
}

func TestGoogleCallbackErrors(t *testing.T) {
	d := newTestDashboard(&fakeAuth{}, nil)
	if status, _ := doJSON(t, d.App(), httptest.NewRequest(http.MethodGet, "/api/google/callback?state=forged&code=x", nil)); status != http.StatusBadRequest {
		t.Errorf("bad state status = %d", status)
	}

	failing := newTestDashboard(&fakeAuth{callbackErr: google.ErrMissingCode}, nil)
	if status, _ := doJSON(t, failing.App(), httptest.NewRequest(http.MethodGet, "/api/google/callback?state=ok", nil)); status != http.StatusBadRequest {
		t.Errorf("missing code status = %d", status)
	}

	rebuildFails := newTestDashboard(&fakeAuth{}, func(ctx context.Context) error { return errors.New("no calendar") })
	if status, _ := doJSON(t, rebuildFails.App(), httptest.NewRequest(http.MethodGet, "/api/google/callback?state=ok&code=x", nil)); status != http.StatusInternalServerError {
		t.Errorf("rebuild failure status = %d", status)
	}

	none := newTestDashboard(nil, nil)
	if status, _ := doJSON(t, none.App(), httptest.NewRequest(http.MethodGet, "/api/google/auth", nil)); status != http.StatusServiceUnavailable {
		t.Errorf("unconfigured status = %d", status)
	}
}

func TestActivityWebSocket(t *testing.T) {
	d := NewDashboard(DashboardConfig{
		Port:     "18183",
		Tools:    testTools(),
		Activity: hub.New("ws-test", 10),
		Logger:   log.Discard(),
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)
	time.Sleep(100 * time.Millisecond)

	ws, _, err := gorilla.DefaultDialer.Dial("ws://localhost:18183/ws/activity", nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	defer ws.Close()
	time.Sleep(50 * time.Millisecond)

	if n := d.Activity().ClientCount(); n != 1 {
		t.Errorf("ClientCount = %d, want 1", n)
	}

	d.Activity().Publish(hub.Event{Kind: hub.KindStatus, Text: "session ready"})

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev hub.Event
	if err := ws.ReadJSON(&ev); err != nil {
		t.Fatalf("read: %v", err)
	}
	if ev.Kind != hub.KindStatus || ev.Text != "session ready" {
		t.Errorf("event = %+v", ev)
	}
}

func TestDashboardShutdownWithActivityClient(t *testing.T) {
	d := NewDashboard(DashboardConfig{
		Port:     "18185",
		Tools:    testTools(),
		Activity: hub.New("ws-shutdown", 10),
		Logger:   log.Discard(),
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	time.Sleep(100 * time.Millisecond)

	ws, _, err := gorilla.DefaultDialer.Dial("ws://localhost:18185/ws/activity", nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	defer ws.Close()
	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v", err)
		}
	case <-time.After(4 * time.Second):
		t.Fatal("dashboard shutdown waited on the activity client")
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("shutdown took %v", elapsed)
	}

	ws.SetReadDeadline(time.Now().Add(time.Second))
	if _, _, err := ws.ReadMessage(); err == nil {
		t.Error("expected the connection to be closed")
	}
}
