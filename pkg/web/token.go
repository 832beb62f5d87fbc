package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-orion/internal/log"
	"github.com/teslashibe/go-orion/pkg/livekit"
)

// Participant defaults for tokens issued to the mobile app.
const (
	DefaultIdentity        = "identity"
	DefaultParticipantName = "mobile-app"
)

// TokenIssuer signs room tokens. *livekit.Issuer satisfies it.
type TokenIssuer interface {
	Token(identity, name, room string) (string, error)
}

// AgentDispatcher sends an agent into a room. *livekit.Dispatcher
// satisfies it.
type AgentDispatcher interface {
	Dispatch(ctx context.Context, room, agentName string) (string, error)
}

// TokenServerConfig configures a TokenServer.
type TokenServerConfig struct {
	Port            string
	AllowedOrigins  []string
	Room            string
	AgentName       string
	Identity        string
	ParticipantName string
	Issuer          TokenIssuer
	Dispatcher      AgentDispatcher // nil disables /dispatchAgent
	Logger          *slog.Logger
}

// TokenServer hands out LiveKit tokens and dispatches the agent.
type TokenServer struct {
	app    *fiber.App
	cfg    TokenServerConfig
	logger *slog.Logger
}

// NewTokenServer creates the server and registers its routes.
func NewTokenServer(cfg TokenServerConfig) *TokenServer {
	if cfg.Identity == "" {
		cfg.Identity = DefaultIdentity
	}
	if cfg.ParticipantName == "" {
		cfg.ParticipantName = DefaultParticipantName
	}
	logger := log.OrComponent(cfg.Logger, "token-server")
	s := &TokenServer{cfg: cfg, logger: logger}

	app := newApp("Orion Token Server", cfg.AllowedOrigins, logger)
	app.Get("/healthz", s.handleHealth)
	app.Get("/getToken", s.handleToken)
	app.Get("/dispatchAgent", s.handleDispatch)
	app.Post("/dispatchAgent", s.handleDispatch)
	s.app = app
	return s
}

// App exposes the fiber app, mainly for tests.
func (s *TokenServer) App() *fiber.App { return s.app }

// Listen blocks serving on the configured port.
func (s *TokenServer) Listen() error {
	s.logger.Info("token server listening", "port", s.cfg.Port, "room", s.cfg.Room)
	return s.app.Listen(":" + s.cfg.Port)
}

// Shutdown stops the server.
func (s *TokenServer) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *TokenServer) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *TokenServer) handleToken(c *fiber.Ctx) error {
	room := c.Query("room", s.cfg.Room)
	token, err := s.cfg.Issuer.Token(s.cfg.Identity, s.cfg.ParticipantName, room)
	if err != nil {
		s.logger.Error("issue token", "error", err, "room", room)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"token": token})
}

func (s *TokenServer) handleDispatch(c *fiber.Ctx) error {
	if s.cfg.Dispatcher == nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "agent dispatch is not configured",
		})
	}

	room := c.Query("room", s.cfg.Room)
	id, err := s.cfg.Dispatcher.Dispatch(c.UserContext(), room, s.cfg.AgentName)
	if err != nil {
		status := fiber.StatusBadGateway
		if errors.Is(err, livekit.ErrMissingRoom) || errors.Is(err, livekit.ErrMissingAgent) {
			status = fiber.StatusInternalServerError
		}
		s.logger.Error("dispatch agent", "error", err, "room", room, "agent", s.cfg.AgentName)
		return c.Status(status).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success":     true,
		"message":     fmt.Sprintf("Agent dispatched successfully to room %s", room),
		"dispatch_id": id,
	})
}
