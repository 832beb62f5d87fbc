// Package orion assembles the Orion voice assistant: the function tools
// over the maintenance, calendar, mail and contacts services, the
// realtime model session that calls them, and the local dashboard.
package orion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-orion/internal/config"
	"github.com/teslashibe/go-orion/internal/log"
	"github.com/teslashibe/go-orion/pkg/google"
	"github.com/teslashibe/go-orion/pkg/hub"
	"github.com/teslashibe/go-orion/pkg/realtime"
	"github.com/teslashibe/go-orion/pkg/web"
)

const (
	minBackoff = time.Second
	maxBackoff = 30 * time.Second

	// promptRefresh is how often the session is checked for a date change.
	promptRefresh = time.Minute
)

// ErrSessionClosed is returned when the model closes the session.
var ErrSessionClosed = errors.New("orion: realtime session closed")

// App is the Orion agent.
type App struct {
	cfg    config.Config
	logger *slog.Logger

	auth    *google.Auth
	backend atomic.Pointer[Backend]

	tools    []realtime.Tool
	activity *hub.Hub
	dash     *web.Dashboard

	startedAt time.Time

	rtMu sync.RWMutex
	rt   *realtime.Client
}

// New creates the agent. A missing Google OAuth client is not fatal: the
// tools answer that the account is not connected until one is set up.
func New(cfg config.Config) (*App, error) {
	if err := cfg.ValidateAgent(); err != nil {
		return nil, err
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}

	a := &App{
		cfg:       cfg,
		logger:    log.Component("orion"),
		activity:  hub.New("activity", 0),
		startedAt: time.Now(),
	}

	auth, err := google.NewAuth(google.AuthConfig{
		CredentialsPath: cfg.Google.CredentialsPath,
		TokenPath:       cfg.Google.TokenPath,
		RedirectURL:     cfg.Google.RedirectURL,
	})
	switch {
	case errors.Is(err, google.ErrNoCredentials):
		a.logger.Warn("google OAuth client not found, tools disabled", "path", cfg.Google.CredentialsPath)
	case err != nil:
		return nil, err
	default:
		a.auth = auth
	}

	a.tools = Tools(ToolsConfig{Backend: a.Backend, Logger: log.Component("tools")})

	dcfg := web.DashboardConfig{
		Port:            cfg.DashboardPort,
		AllowedOrigins:  cfg.AllowedOrigins,
		Tools:           a,
		Activity:        a.activity,
		Status:          a.Status,
		OnGoogleChanged: a.connectGoogle,
	}
	if a.auth != nil {
		dcfg.Google = a.auth
	}
	a.dash = web.NewDashboard(dcfg)
	return a, nil
}

// Backend returns the Google-backed services, or nil when no account is
// connected.
func (a *App) Backend() *Backend {
	return a.backend.Load()
}

// Tools returns the assistant's tools.
func (a *App) Tools() []realtime.Tool {
	return a.tools
}

// Invoke runs a tool by name outside of a voice session.
func (a *App) Invoke(ctx context.Context, name string, args map[string]interface{}) (string, error) {
	for _, t := range a.tools {
		if t.Name == name {
			return t.Handler(ctx, args)
		}
	}
	return "", fmt.Errorf("orion: unknown tool %q", name)
}

// Status reports the agent state for the dashboard.
func (a *App) Status() web.AgentStatus {
	st := web.AgentStatus{
		Model:     a.cfg.Realtime.Model,
		StartedAt: a.startedAt,
	}
	a.rtMu.RLock()
	if a.rt != nil {
		st.RealtimeConnected = a.rt.IsConnected()
		st.SessionReady = a.rt.IsReady()
	}
	a.rtMu.RUnlock()
	return st
}

// SendText sends a typed request to the current session.
func (a *App) SendText(text string) error {
	a.rtMu.RLock()
	rt := a.rt
	a.rtMu.RUnlock()
	if rt == nil {
		return realtime.ErrNotConnected
	}
	a.activity.Publish(hub.Event{Kind: hub.KindTranscript, Source: "text", Text: text})
	return rt.SendText(text)
}

// connectGoogle rebuilds the backend from the stored token. The clients
// outlive the request that triggered the rebuild, so they get a context
// that is never cancelled.
func (a *App) connectGoogle(ctx context.Context) error {
	if a.auth == nil || !a.auth.IsAuthenticated() {
		a.backend.Store(nil)
		return nil
	}
	svc, err := a.auth.Services(context.WithoutCancel(ctx))
	if err != nil {
		a.backend.Store(nil)
		return err
	}
	a.backend.Store(NewBackend(svc, a.cfg))
	a.logger.Info("google services ready")
	return nil
}

// Run serves the dashboard and keeps a realtime session open until ctx
// is cancelled, reconnecting with backoff when the session drops.
func (a *App) Run(ctx context.Context) error {
	if err := a.connectGoogle(ctx); err != nil {
		a.logger.Warn("google services unavailable", "error", err)
	}
	if a.Backend() == nil && a.auth != nil {
		a.logger.Info("connect a Google account", "url", "http://localhost:"+a.cfg.DashboardPort+"/api/google/auth")
	}

	dashErr := make(chan error, 1)
	go func() { dashErr <- a.dash.Run(ctx) }()

	backoff := minBackoff
	for {
		start := time.Now()
		err := a.runSession(ctx)
		if ctx.Err() != nil {
			return a.stopDashboard(dashErr)
		}
		if time.Since(start) > maxBackoff {
			backoff = minBackoff
		}
		a.logger.Warn("realtime session ended", "error", err, "retry_in", backoff)
		a.activity.Publish(hub.Event{Kind: hub.KindError, Text: "realtime session ended", Error: errString(err)})

		select {
		case <-ctx.Done():
			return a.stopDashboard(dashErr)
		case err := <-dashErr:
			return fmt.Errorf("orion: dashboard: %w", err)
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

// stopDashboard waits for the dashboard to finish shutting down.
func (a *App) stopDashboard(dashErr <-chan error) error {
	select {
	case err := <-dashErr:
		if err != nil {
			a.logger.Warn("dashboard shutdown", "error", err)
		}
	case <-time.After(10 * time.Second):
		a.logger.Warn("dashboard shutdown timed out")
	}
	return nil
}

func (a *App) runSession(ctx context.Context) error {
	opts := []realtime.Option{
		realtime.WithModel(a.cfg.Realtime.Model),
		realtime.WithLogger(log.Component("realtime")),
	}
	if a.cfg.Realtime.URL != "" {
		opts = append(opts, realtime.WithURL(a.cfg.Realtime.URL))
	}
	rt := realtime.NewClient(a.cfg.Realtime.APIKey, opts...)
	for _, t := range a.tools {
		rt.RegisterTool(t)
	}
	rt.OnToolCall = func(name string, args map[string]interface{}, result string, err error) {
		a.activity.Publish(hub.ToolCall("voice", name, args, result, err))
	}
	rt.OnTranscript = func(text string, isFinal bool) {
		if isFinal {
			a.activity.Publish(hub.Event{Kind: hub.KindTranscript, Source: "voice", Text: text})
		}
	}
	rt.OnSessionCreated = func() {
		a.activity.Publish(hub.Event{Kind: hub.KindStatus, Text: "session ready"})
	}
	rt.OnError = func(err error) {
		a.activity.Publish(hub.Event{Kind: hub.KindError, Error: err.Error()})
	}

	if err := rt.Connect(ctx); err != nil {
		return err
	}
	defer rt.Close()

	day := a.now().YearDay()
	if err := rt.ConfigureSession(a.sessionConfig()); err != nil {
		return err
	}

	a.rtMu.Lock()
	a.rt = rt
	a.rtMu.Unlock()
	defer func() {
		a.rtMu.Lock()
		a.rt = nil
		a.rtMu.Unlock()
	}()

	ticker := time.NewTicker(promptRefresh)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-rt.Done():
			return ErrSessionClosed
		case <-ticker.C:
			if d := a.now().YearDay(); d != day {
				day = d
				if err := rt.ConfigureSession(a.sessionConfig()); err != nil {
					return err
				}
				a.logger.Info("session instructions refreshed for the new day")
			}
		}
	}
}

func (a *App) sessionConfig() realtime.SessionConfig {
	return realtime.SessionConfig{
		Instructions: SystemPrompt(a.now()),
		Voice:        a.cfg.Realtime.Voice,
		Temperature:  a.cfg.Realtime.Temperature,
		Modalities:   []string{"audio", "text"},
	}
}

func (a *App) now() time.Time {
	return time.Now().In(a.cfg.Location)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
