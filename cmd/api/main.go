package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	_ "github.com/joho/godotenv/autoload"

	"crashgame/internal/config"
	"crashgame/internal/server"
)

func main() {
	var cfg config.Config
	kctx := kong.Parse(&cfg,
		kong.Name("crash-server"),
		kong.Description("Multiplayer crash betting round server"),
		kong.UsageOnError(),
	)

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Level:           cfg.Level(),
	})

	logger.Info("Starting crash server",
		"port", cfg.Port,
		"roundInterval", cfg.RoundInterval,
		"tickInterval", cfg.TickInterval,
		"crashRange", []float64{cfg.CrashMin, cfg.CrashMax},
		"redis", !cfg.RedisDisabled)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(&cfg, logger)
	if err := srv.Run(ctx); err != nil {
		logger.Error("Server stopped", "error", err)
		kctx.Exit(1)
	}
	logger.Info("Server stopped")
}
