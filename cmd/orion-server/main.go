// Orion server: issues LiveKit room tokens to the mobile client and
// dispatches the agent into the room.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/teslashibe/go-orion/internal/config"
	"github.com/teslashibe/go-orion/internal/log"
	"github.com/teslashibe/go-orion/pkg/livekit"
	"github.com/teslashibe/go-orion/pkg/web"
)

func main() {
	debug := flag.Bool("debug", false, "Enable verbose debug logging")
	port := flag.String("port", "", "Listen port (overrides PORT)")
	room := flag.String("room", "", "Default room (overrides LIVEKIT_ROOM)")
	agent := flag.String("agent", "", "Agent name to dispatch (overrides AGENT_NAME)")
	flag.Parse()

	cfg, err := config.Load()
	if *debug {
		cfg.Debug, cfg.LogLevel = true, "debug"
	}
	log.Init(cfg.LogLevel)
	if err == nil {
		err = cfg.ValidateLiveKit()
	}
	if err != nil {
		log.Error("configuration error", "error", err)
		os.Exit(1)
	}
	if *port != "" {
		cfg.Port = *port
	}
	if *room != "" {
		cfg.Room = *room
	}
	if *agent != "" {
		cfg.AgentName = *agent
	}

	issuer, err := livekit.NewIssuer(cfg.LiveKit.APIKey, cfg.LiveKit.APISecret, livekit.DefaultTokenTTL)
	if err != nil {
		log.Error("token issuer", "error", err)
		os.Exit(1)
	}
	dispatcher, err := livekit.NewDispatcher(cfg.LiveKit.URL, cfg.LiveKit.APIKey, cfg.LiveKit.APISecret)
	if err != nil {
		log.Error("agent dispatcher", "error", err)
		os.Exit(1)
	}

	srv := web.NewTokenServer(web.TokenServerConfig{
		Port:           cfg.Port,
		AllowedOrigins: cfg.AllowedOrigins,
		Room:           cfg.Room,
		AgentName:      cfg.AgentName,
		Issuer:         issuer,
		Dispatcher:     dispatcher,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- srv.Listen() }()

	select {
	case err := <-errc:
		log.Error("server error", "error", err)
		os.Exit(1)
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown", "error", err)
	}
	log.Info("orion server stopped")
}
