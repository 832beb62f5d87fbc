// Orion agent: voice assistant for production operators, backed by the
// OpenAI Realtime API and Google Workspace.
package main

import (
	"bufio"
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/teslashibe/go-orion/internal/config"
	"github.com/teslashibe/go-orion/internal/log"
	"github.com/teslashibe/go-orion/pkg/orion"
)

func main() {
	debug := flag.Bool("debug", false, "Enable verbose debug logging")
	dashPort := flag.String("dashboard-port", "", "Dashboard port (overrides DASHBOARD_PORT)")
	model := flag.String("model", "", "Realtime model (overrides OPENAI_REALTIME_MODEL)")
	text := flag.Bool("text", false, "Read requests from stdin instead of waiting for voice")
	flag.Parse()

	cfg, err := config.Load()
	if *debug {
		cfg.Debug, cfg.LogLevel = true, "debug"
	}
	log.Init(cfg.LogLevel)
	if err != nil {
		log.Error("configuration error", "error", err)
		os.Exit(1)
	}
	if *dashPort != "" {
		cfg.SetDashboardPort(*dashPort)
	}
	if *model != "" {
		cfg.Realtime.Model = *model
	}

	app, err := orion.New(cfg)
	if err != nil {
		log.Error("configuration error", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *text {
		go readStdin(ctx, app)
	}

	log.Info("orion agent starting", "model", cfg.Realtime.Model, "dashboard", "http://localhost:"+cfg.DashboardPort)
	if err := app.Run(ctx); err != nil {
		log.Error("runtime error", "error", err)
		os.Exit(1)
	}
	log.Info("orion agent stopped")
}

// readStdin forwards each typed line to the realtime session.
func readStdin(ctx context.Context, app *orion.App) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if err := app.SendText(line); err != nil {
			log.Warn("text request not sent", "error", err)
		}
	}
}
