package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	_ "github.com/joho/godotenv/autoload"

	"crashgame/internal/bot"
)

type cli struct {
	Server   string  `help:"WebSocket server URL" env:"CRASHBOT_SERVER" default:"ws://localhost:5000/ws"`
	Name     string  `help:"Display name" env:"CRASHBOT_NAME" default:"crashbot"`
	Amount   float64 `help:"Bet placed every round" env:"CRASHBOT_AMOUNT" default:"10"`
	Target   float64 `help:"Multiplier to cash out at" env:"CRASHBOT_TARGET" default:"2.0"`
	Auto     bool    `help:"Let the server cash out at the target" env:"CRASHBOT_AUTO"`
	LogLevel string  `help:"Log level" env:"LOG_LEVEL" default:"info" enum:"debug,info,warn,error"`
}

func main() {
	var c cli
	kctx := kong.Parse(&c,
		kong.Name("crashbot"),
		kong.Description("Bot player for the crash server"),
		kong.UsageOnError(),
	)

	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Level:           level,
	})

	cfg := bot.Config{
		URL:    strings.TrimSpace(c.Server),
		Name:   strings.TrimSpace(c.Name),
		Amount: c.Amount,
		Target: c.Target,
		Auto:   c.Auto,
	}
	if err := cfg.Validate(); err != nil {
		kctx.FatalIfErrorf(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting bot", "server", cfg.URL, "amount", cfg.Amount, "target", cfg.Target, "auto", cfg.Auto)
	if err := bot.New(cfg, logger).Run(ctx); err != nil {
		logger.Error("Bot stopped", "error", err)
		kctx.Exit(1)
	}
}
