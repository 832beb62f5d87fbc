package web

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-orion/internal/log"
	"github.com/teslashibe/go-orion/pkg/google"
	"github.com/teslashibe/go-orion/pkg/hub"
	"github.com/teslashibe/go-orion/pkg/realtime"
)

// ToolRunner lists and runs the assistant's tools.
type ToolRunner interface {
	Tools() []realtime.Tool
	Invoke(ctx context.Context, name string, args map[string]interface{}) (string, error)
}

// GoogleAuth is the OAuth flow behind /api/google. *google.Auth
// satisfies it.
type GoogleAuth interface {
	Status() google.Status
	AuthURL() string
	CheckState(state string) error
	HandleCallback(ctx context.Context, code string) error
	Disconnect() error
}

// AgentStatus is served by /api/status.
type AgentStatus struct {
	RealtimeConnected bool          `json:"realtime_connected"`
	SessionReady      bool          `json:"session_ready"`
	Model             string        `json:"model,omitempty"`
	StartedAt         time.Time     `json:"started_at"`
	Google            google.Status `json:"google"`
	ActivityClients   int           `json:"activity_clients"`
}

// ToolInfo describes a tool for the dashboard.
type ToolInfo struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
	Required    []string               `json:"required,omitempty"`
}

// TriggerToolRequest is the body of POST /api/tools/:name.
type TriggerToolRequest struct {
	Args map[string]interface{} `json:"args"`
}

// DashboardConfig configures a Dashboard.
type DashboardConfig struct {
	Port           string
	AllowedOrigins []string
	Tools          ToolRunner
	Google         GoogleAuth // nil when no OAuth client is configured
	Activity       *hub.Hub
	Status         func() AgentStatus

	// OnGoogleChanged runs after the account is connected or
	// disconnected, so the caller can rebuild its Google clients.
	OnGoogleChanged func(ctx context.Context) error

	Logger *slog.Logger
}

// Dashboard is the agent's local control and activity server.
type Dashboard struct {
	app    *fiber.App
	cfg    DashboardConfig
	logger *slog.Logger
}

// NewDashboard creates the dashboard and registers its routes.
func NewDashboard(cfg DashboardConfig) *Dashboard {
	if cfg.Activity == nil {
		cfg.Activity = hub.New("activity", 0)
	}
	if cfg.Status == nil {
		cfg.Status = func() AgentStatus { return AgentStatus{} }
	}
	logger := log.OrComponent(cfg.Logger, "dashboard")
	d := &Dashboard{cfg: cfg, logger: logger}

	app := newApp("Orion Dashboard", cfg.AllowedOrigins, logger)

	api := app.Group("/api")
	api.Get("/status", d.handleStatus)
	api.Get("/tools", d.handleListTools)
	api.Post("/tools/:name", d.handleTriggerTool)
	api.Get("/activity", d.handleActivity)
	api.Get("/google/auth", d.handleGoogleAuth)
	api.Get("/google/callback", d.handleGoogleCallback)
	api.Delete("/google", d.handleGoogleDisconnect)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/activity", websocket.New(d.handleActivityWS))

	d.app = app
	return d
}

// App exposes the fiber app, mainly for tests.
func (d *Dashboard) App() *fiber.App { return d.app }

// Activity returns the activity hub.
func (d *Dashboard) Activity() *hub.Hub { return d.cfg.Activity }

// Run starts the activity hub and serves until ctx is done.
func (d *Dashboard) Run(ctx context.Context) error {
	go d.cfg.Activity.Run(ctx)

	errc := make(chan error, 1)
	go func() {
		d.logger.Info("dashboard listening", "url", "http://localhost:"+d.cfg.Port)
		errc <- d.app.Listen(":" + d.cfg.Port)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return d.app.ShutdownWithContext(shutdownCtx)
	}
}

func (d *Dashboard) handleStatus(c *fiber.Ctx) error {
	st := d.cfg.Status()
	if d.cfg.Google != nil {
		st.Google = d.cfg.Google.Status()
	}
	st.ActivityClients = d.cfg.Activity.ClientCount()
	return c.JSON(st)
}

func (d *Dashboard) handleListTools(c *fiber.Ctx) error {
	out := []ToolInfo{}
	if d.cfg.Tools != nil {
		for _, t := range d.cfg.Tools.Tools() {
			out = append(out, ToolInfo{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
				Required:    t.Required,
			})
		}
	}
	return c.JSON(out)
}

func (d *Dashboard) handleTriggerTool(c *fiber.Ctx) error {
	name := c.Params("name")
	if d.cfg.Tools == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "tools not configured"})
	}
	if !d.hasTool(name) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown tool: " + name})
	}

	var req TriggerToolRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
	}
	if req.Args == nil {
		req.Args = map[string]interface{}{}
	}

	d.logger.Info("manual tool call", "tool", name)
	result, err := d.cfg.Tools.Invoke(c.UserContext(), name, req.Args)
	d.cfg.Activity.Publish(hub.ToolCall("dashboard", name, req.Args, result, err))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"tool": name, "error": err.Error()})
	}
	return c.JSON(fiber.Map{"tool": name, "result": result})
}

func (d *Dashboard) hasTool(name string) bool {
	for _, t := range d.cfg.Tools.Tools() {
		if t.Name == name {
			return true
		}
	}
	return false
}

func (d *Dashboard) handleActivity(c *fiber.Ctx) error {
	return c.JSON(d.cfg.Activity.Recent())
}

func (d *Dashboard) handleGoogleAuth(c *fiber.Ctx) error {
	if d.cfg.Google == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Google OAuth client not configured"})
	}
	if d.cfg.Google.Status().Connected {
		return c.JSON(fiber.Map{"connected": true})
	}
	return c.Redirect(d.cfg.Google.AuthURL(), fiber.StatusTemporaryRedirect)
}

func (d *Dashboard) handleGoogleCallback(c *fiber.Ctx) error {
	if d.cfg.Google == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Google OAuth client not configured"})
	}
	if err := d.cfg.Google.CheckState(c.Query("state")); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := d.cfg.Google.HandleCallback(c.UserContext(), c.Query("code")); err != nil {
		d.logger.Error("google callback", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := d.googleChanged(c.UserContext()); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	d.cfg.Activity.Publish(hub.Event{Kind: hub.KindStatus, Text: "Google account connected"})
	return c.SendString("Google account connected. You can close this tab.")
}

func (d *Dashboard) handleGoogleDisconnect(c *fiber.Ctx) error {
	if d.cfg.Google == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Google OAuth client not configured"})
	}
	if err := d.cfg.Google.Disconnect(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if err := d.googleChanged(c.UserContext()); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	d.cfg.Activity.Publish(hub.Event{Kind: hub.KindStatus, Text: "Google account disconnected"})
	return c.JSON(fiber.Map{"connected": false})
}

func (d *Dashboard) googleChanged(ctx context.Context) error {
	if d.cfg.OnGoogleChanged == nil {
		return nil
	}
	if err := d.cfg.OnGoogleChanged(ctx); err != nil {
		d.logger.Error("rebuild google clients", "error", err)
		return err
	}
	return nil
}

func (d *Dashboard) handleActivityWS(conn *websocket.Conn) {
	c, err := hub.NewClient(d.cfg.Activity, conn)
	if err != nil {
		d.logger.Debug("activity client rejected", "error", err)
		conn.Close()
		return
	}
	c.Serve()
}
