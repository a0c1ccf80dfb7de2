package main

import (
	"log/slog"
	"os"

	"github.com/angeloszaimis/exit-failover/config"
	"github.com/angeloszaimis/exit-failover/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, false, cfg.Server.Environment)

	root := newRootCmd(cfg, log)
	if err := root.Execute(); err != nil {
		log.Error("command failed", slog.Any("err", err))
		os.Exit(1)
	}
}
