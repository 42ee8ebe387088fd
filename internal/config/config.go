package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"crashgame/internal/cache"
	"crashgame/internal/game"
)

// Config is the game server's command line. Every flag can also be set from
// the environment, which godotenv fills from .env when present.
type Config struct {
	Port     int    `help:"HTTP listen port" env:"PORT" default:"5000"`
	LogLevel string `help:"Log level" env:"LOG_LEVEL" default:"info" enum:"debug,info,warn,error"`

	RedisURL      string `name:"redis-url" help:"Redis address (host:port)" env:"REDIS_URL" default:"localhost:6379"`
	RedisPassword string `name:"redis-password" help:"Redis password" env:"REDIS_PASSWORD" default:""`
	RedisDB       int    `name:"redis-db" help:"Redis database number" env:"REDIS_DB" default:"0"`
	RedisDisabled bool   `name:"redis-disabled" help:"Run without the Redis event fan-out" env:"REDIS_DISABLED"`

	RoundInterval  time.Duration `help:"Interval between round start attempts" env:"ROUND_INTERVAL" default:"35s"`
	TickInterval   time.Duration `help:"Interval between multiplier ticks" env:"TICK_INTERVAL" default:"200ms"`
	MultiplierStep float64       `help:"Multiplier increase per tick" env:"MULTIPLIER_STEP" default:"0.05"`
	WaitDelay      time.Duration `help:"Delay between a crash and the wait announcement" env:"WAIT_DELAY" default:"1s"`
	WaitSeconds    int           `help:"Advisory wait announced to clients, in seconds" env:"WAIT_SECONDS" default:"30"`
	CrashMin       float64       `help:"Lowest crash point" env:"CRASH_MIN" default:"1.5"`
	CrashMax       float64       `help:"Highest crash point" env:"CRASH_MAX" default:"10.0"`
}

func (c *Config) Validate() error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.RedisDB < 0 {
		errs = append(errs, fmt.Errorf("redis db must not be negative, got %d", c.RedisDB))
	}
	if !c.RedisDisabled && strings.TrimSpace(c.RedisURL) == "" {
		errs = append(errs, errors.New("redis url is required unless redis is disabled"))
	}
	if c.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("tick interval must be positive, got %s", c.TickInterval))
	}
	if c.RoundInterval <= c.TickInterval {
		errs = append(errs, fmt.Errorf("round interval %s must exceed tick interval %s", c.RoundInterval, c.TickInterval))
	}
	if !(c.MultiplierStep > 0) {
		errs = append(errs, fmt.Errorf("multiplier step must be positive, got %v", c.MultiplierStep))
	}
	if c.WaitDelay < 0 {
		errs = append(errs, fmt.Errorf("wait delay must not be negative, got %s", c.WaitDelay))
	}
	if c.WaitSeconds < 0 {
		errs = append(errs, fmt.Errorf("wait seconds must not be negative, got %d", c.WaitSeconds))
	}
	if !(c.CrashMin > game.START_MULTIPLIER) {
		errs = append(errs, fmt.Errorf("crash min must exceed %.2f, got %v", game.START_MULTIPLIER, c.CrashMin))
	}
	if c.CrashMax < c.CrashMin {
		errs = append(errs, fmt.Errorf("crash max %v is below crash min %v", c.CrashMax, c.CrashMin))
	}
	return errors.Join(errs...)
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Game() game.Config {
	return game.Config{
		RoundInterval:  c.RoundInterval,
		TickInterval:   c.TickInterval,
		MultiplierStep: c.MultiplierStep,
		WaitDelay:      c.WaitDelay,
		WaitSeconds:    c.WaitSeconds,
	}
}

func (c *Config) Generator() game.Generator {
	return game.NewFairGenerator(c.CrashMin, c.CrashMax)
}

func (c *Config) Redis() cache.Options {
	return cache.Options{
		Addr:     c.RedisURL,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}
}

// Level maps LogLevel to a logger level, falling back to info.
func (c *Config) Level() log.Level {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return level
}
