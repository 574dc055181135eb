package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/serrrfirat/iso-civ-sub000/internal/agent"
	"github.com/serrrfirat/iso-civ-sub000/internal/config"
	"github.com/serrrfirat/iso-civ-sub000/internal/game/events"
	"github.com/serrrfirat/iso-civ-sub000/internal/game/ruleset"
	"github.com/serrrfirat/iso-civ-sub000/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	flag.Parse()

	if err := config.Init(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Get()
	setupLogging(cfg.Server.LogLevel, cfg.Server.LogFormat)

	rs, err := ruleset.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load ruleset")
	}

	store, err := server.NewStore(cfg.Server.DBPath, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Server.DBPath).Msg("Failed to open store")
	}
	defer store.Close()

	svc, err := agent.NewHTTPService(
		cfg.Agent.BaseURL,
		cfg.Agent.ProbePath,
		time.Duration(cfg.Agent.TimeoutSeconds)*time.Second,
		log.Logger,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create agent client")
	}

	bus := events.NewEventBus()
	manager := server.NewManager(store, svc, rs, bus, log.Logger)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := server.New(addr, manager, bus, log.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	config.WatchConfig(func() {
		log.Info().Msg("Configuration reloaded")
	})

	if err := srv.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server exited with error")
	}
	log.Info().Msg("Server stopped")
}

func setupLogging(level, format string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	if format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}
