// Package main provides the session server binary: the WebSocket acceptor,
// the room layer, and the Twitch chat bridge.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/B00147423/GuessIO/internal/config"
	"github.com/B00147423/GuessIO/internal/frontend/ws"
	"github.com/B00147423/GuessIO/internal/game/room"
	"github.com/B00147423/GuessIO/internal/gameserver"
	"github.com/B00147423/GuessIO/internal/observability"
	"github.com/B00147423/GuessIO/internal/protocol"
	"github.com/B00147423/GuessIO/internal/server"
	"github.com/B00147423/GuessIO/internal/session"
	"github.com/B00147423/GuessIO/internal/twitch"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	clock := clockwork.NewRealClock()

	registry := session.NewRegistry()
	rooms := room.NewManager(clock, logger)
	gs := gameserver.New(rooms, registry, logger)

	bots := twitch.NewManager(cfg.Twitch.Addr, gs, logger)
	rooms.SetBridge(bots)

	acceptor := ws.NewAcceptor(cfg.Server, gs, clock, logger)

	logger.Info("starting session server",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("irc_addr", cfg.Twitch.Addr),
	)

	// Optional startup bot from config credentials.
	if cfg.Twitch.SpawnAtStartup() {
		if bots.SpawnBot(cfg.Twitch.OAuth, cfg.Twitch.Nick, cfg.Twitch.Channel) {
			logger.Info("startup bridge bot spawned", zap.String("channel", cfg.Twitch.Channel))
		} else {
			logger.Warn("startup bridge bot already exists", zap.String("channel", cfg.Twitch.Channel))
		}
	}

	lifecycle := server.NewLifecycle(logger)

	lifecycle.Add("websocket", &server.FuncService{
		StartFn: acceptor.ListenAndServe,
		StopFn: func() {
			gs.Broadcast(protocol.SystemEvent("", "server shutting down"))
			acceptor.Stop()
		},
	})

	lifecycle.Add("bridge", &server.FuncService{
		StartFn: func() error { return nil },
		StopFn:  bots.StopAll,
	})

	logger.Info("session server initialized",
		zap.Duration("startup", time.Since(start)),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
