package main

import (
	"log/slog"
	"os"

	"github.com/pixiworld/pixiworld/internal/app"
	"github.com/pixiworld/pixiworld/internal/config"
	"github.com/pixiworld/pixiworld/internal/kv"
	"github.com/pixiworld/pixiworld/internal/logging"
)

func main() {
	// Load or create configuration
	cfg, created, err := config.LoadOrInit()
	logger := logging.New(cfg.Log)
	slog.SetDefault(logger)
	switch {
	case created:
		logger.Info("created default config", "path", config.ConfigPath())
	case err != nil:
		logger.Warn("could not load config, using defaults", "err", err)
	}

	db, err := kv.Open(cfg.ResolvedDBPath())
	if err != nil {
		logger.Error("failed to open database", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	a, err := app.New(cfg, db, logger)
	if err != nil {
		logger.Error("failed to create app", "err", err)
		os.Exit(1)
	}
	if err := a.Startup(); err != nil {
		logger.Error("startup failed", "err", err)
		os.Exit(1)
	}

	logger.Debug("pixiworld starting", "db", cfg.ResolvedDBPath())
	newShell(a, os.Stdin, os.Stdout).Run()
}
