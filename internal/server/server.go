package server

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"golang.org/x/sync/errgroup"

	"crashgame/internal/cache"
	"crashgame/internal/config"
	"crashgame/internal/game"
)

const SHUTDOWN_TIMEOUT = 5 * time.Second

type FiberServer struct {
	*fiber.App

	cfg       *config.Config
	cache     cache.Service
	publisher *cache.Publisher
	manager   *game.Manager
	hub       *game.Hub
	logger    *log.Logger
}

type Option func(*options)

type options struct {
	clock     quartz.Clock
	generator game.Generator
}

// WithClock replaces the wall clock driving rounds and ticks.
func WithClock(clock quartz.Clock) Option {
	return func(o *options) { o.clock = clock }
}

// WithGenerator replaces the provably fair crash point generator.
func WithGenerator(gen game.Generator) Option {
	return func(o *options) { o.generator = gen }
}

// New wires the hub, the round manager and, when reachable, the Redis
// fan-out. Redis being down is not fatal; the game runs without it.
func New(cfg *config.Config, logger *log.Logger, opts ...Option) *FiberServer {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	o := options{generator: cfg.Generator()}
	for _, opt := range opts {
		opt(&o)
	}

	hub := game.NewHub(logger)
	sinks := game.Sinks{hub}

	var redisService cache.Service
	var publisher *cache.Publisher
	if cfg.RedisDisabled {
		logger.Info("Redis disabled, running without event fan-out")
	} else if svc, err := cache.New(cfg.Redis(), logger); err != nil {
		logger.Warn("Redis unavailable, running without event fan-out", "error", err)
	} else {
		redisService = svc
		publisher = cache.NewPublisher(svc.GetClient(), logger)
		sinks = append(sinks, publisher)
	}

	manager := game.NewManager(cfg.Game(), sinks, o.generator, o.clock, logger)

	server := &FiberServer{
		App: fiber.New(fiber.Config{
			ServerHeader:          "crashgame",
			AppName:               "crashgame",
			ReadTimeout:           10 * time.Second,
			WriteTimeout:          10 * time.Second,
			IdleTimeout:           120 * time.Second,
			StrictRouting:         false,
			DisableStartupMessage: true,
		}),

		cfg:       cfg,
		cache:     redisService,
		publisher: publisher,
		manager:   manager,
		hub:       hub,
		logger:    logger.WithPrefix("server"),
	}

	server.App.Use(recover.New())
	server.App.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
	}))

	server.RegisterFiberRoutes()

	return server
}

func (s *FiberServer) Manager() *game.Manager {
	return s.manager
}

func (s *FiberServer) ClientCount() int {
	return s.hub.GetClientCount()
}

// Run listens on the configured port until ctx is done.
func (s *FiberServer) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve runs the hub, the round loop, the Redis publisher and the HTTP
// server on ln. When ctx is done everything is stopped and Serve returns
// the first error any of them reported.
func (s *FiberServer) Serve(ctx context.Context, ln net.Listener) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.hub.Run(ctx) })
	g.Go(func() error { return s.manager.Run(ctx) })
	if s.publisher != nil {
		g.Go(func() error { return s.publisher.Run(ctx) })
	}
	g.Go(func() error {
		s.logger.Info("Listening", "addr", ln.Addr().String())
		return s.App.Listener(ln)
	})
	g.Go(func() error {
		<-ctx.Done()
		s.logger.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), SHUTDOWN_TIMEOUT)
		defer cancel()
		return s.App.ShutdownWithContext(shutdownCtx)
	})

	err := g.Wait()
	if s.cache != nil {
		s.cache.Close()
	}
	return err
}
