// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Command mediamixd serves the media assembly API, or runs a single request
// in-process with the submit subcommand.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ManuGH/mediamix/internal/config"
	"github.com/ManuGH/mediamix/internal/daemon"
	"github.com/ManuGH/mediamix/internal/health"
	xglog "github.com/ManuGH/mediamix/internal/log"
	"github.com/ManuGH/mediamix/internal/version"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "submit":
			os.Exit(runSubmitCLI(os.Args[2:], os.Stdout, os.Stderr, daemon.Overrides{}))
		case "config":
			os.Exit(runConfigCLI(os.Args[2:]))
		case "healthcheck":
			os.Exit(runHealthcheckCLI(os.Args[2:]))
		}
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		os.Exit(0)
	}

	// Safe defaults until the config is loaded.
	xglog.Configure(xglog.Config{
		Level:   "info",
		Service: daemon.ServiceName,
		Version: version.Version,
	})
	logger := xglog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	path := strings.TrimSpace(*configPath)
	loader := config.NewLoader(path, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", path).
			Msg("failed to load configuration")
	}

	xglog.Configure(xglog.Config{
		Level:   cfg.Log.Level,
		Service: daemon.ServiceName,
		Version: cfg.Version,
	})
	logger = xglog.WithComponent("daemon")

	source := "env+defaults"
	if path != "" {
		source = "file"
	}
	logger.Info().
		Str("event", "config.loaded").
		Str("source", source).
		Str("path", path).
		Msg("configuration loaded")
	for _, key := range loader.UnknownEnvKeys() {
		logger.Warn().
			Str("event", "config.unknown_env").
			Str("key", key).
			Msg("environment variable is not a known setting")
	}

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "startup.check_failed").
			Msg("Startup checks failed. Please verify configuration and permissions.")
	}

	comps, err := daemon.Build(ctx, cfg, daemon.Overrides{})
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "startup.build_failed").
			Msg("failed to build components")
	}

	logger.Info().
		Str("event", "startup").
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("build_date", version.Date).
		Str("addr", cfg.Listen).
		Str("storage", cfg.Storage.Backend).
		Str("ledger", comps.Ledger.Name()).
		Int("max_in_flight", cfg.Processing.MaxInFlight).
		Msg("starting mediamix")
	if cfg.Voiceover.APIKey == "" {
		logger.Warn().Msg("voiceover API key is not configured; synthesis will fail")
	}

	serverCfg := daemon.ServerConfigFrom(cfg)
	serverCfg.TLS, err = daemon.ServerTLSFrom(cfg, logger)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "startup.tls_failed").
			Msg("failed to prepare TLS certificate")
	}

	mgr, err := daemon.NewManager(serverCfg, daemon.Deps{
		Logger:     logger,
		APIHandler: comps.Handler,
	})
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "manager.creation.failed").
			Msg("failed to create daemon manager")
	}
	comps.RegisterShutdownHooks(mgr)

	holder := config.NewConfigHolder(cfg, loader)
	app := daemon.NewApp(logger, mgr, holder, comps.Engine)
	if err := app.Run(ctx); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "manager.failed").
			Msg("daemon app failed")
	}

	logger.Info().Msg("server exiting")
}
