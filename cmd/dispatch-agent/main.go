// dispatch-agent sends the Orion agent into a LiveKit room once.
//
//	dispatch-agent [room] [agent]
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/teslashibe/go-orion/internal/config"
	"github.com/teslashibe/go-orion/internal/log"
	"github.com/teslashibe/go-orion/pkg/livekit"
)

func main() {
	timeout := flag.Duration("timeout", 15*time.Second, "Dispatch request timeout")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: dispatch-agent [room] [agent]")
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load()
	log.Init(cfg.LogLevel)
	if err == nil {
		err = cfg.ValidateLiveKit()
	}
	if err != nil {
		log.Error("configuration error", "error", err)
		os.Exit(1)
	}

	room, agent := cfg.Room, cfg.AgentName
	if flag.NArg() > 0 {
		room = flag.Arg(0)
	}
	if flag.NArg() > 1 {
		agent = flag.Arg(1)
	}

	d, err := livekit.NewDispatcher(cfg.LiveKit.URL, cfg.LiveKit.APIKey, cfg.LiveKit.APISecret)
	if err != nil {
		log.Error("agent dispatcher", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	id, err := d.Dispatch(ctx, room, agent)
	if err != nil {
		log.Error("dispatch failed", "room", room, "agent", agent, "error", err)
		os.Exit(1)
	}
	log.Info("agent dispatched", "room", room, "agent", agent, "dispatch_id", id)
}
