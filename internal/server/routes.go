package server

import (
	"strconv"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/google/uuid"

	"crashgame/internal/game"
)

func (s *FiberServer) RegisterFiberRoutes() {
	// Apply CORS middleware
	s.App.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "GET,OPTIONS",
		AllowHeaders:     "Accept,Content-Type",
		AllowCredentials: false, // credentials require explicit origins
		MaxAge:           300,
	}))

	s.App.Get("/health", s.healthHandler)

	api := s.App.Group("/api/v1")
	api.Get("/game/state", s.getGameStateHandler)
	api.Get("/game/verify", s.verifyHandler)

	s.App.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.App.Get("/ws", websocket.New(s.gameWebSocketHandler))
}

func (s *FiberServer) healthHandler(c *fiber.Ctx) error {
	cacheHealth := map[string]string{"status": "disabled"}
	if s.cache != nil {
		cacheHealth = s.cache.Health()
	}

	health := fiber.Map{
		"cache": cacheHealth,
		"game": fiber.Map{
			"status":            "running",
			"phase":             s.manager.Phase(),
			"connected_clients": s.hub.GetClientCount(),
		},
	}
	return c.JSON(health)
}

// getGameStateHandler returns the public round state
func (s *FiberServer) getGameStateHandler(c *fiber.Ctx) error {
	return c.JSON(s.manager.Snapshot())
}

// verifyHandler re-derives a revealed round's crash point so players can
// check it against what the server announced.
func (s *FiberServer) verifyHandler(c *fiber.Ctx) error {
	serverSeed := c.Query("server_seed")
	clientSeed := c.Query("client_seed")
	if serverSeed == "" || clientSeed == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "server_seed and client_seed are required",
		})
	}

	nonce, err := strconv.Atoi(c.Query("nonce"))
	if err != nil || nonce < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "nonce must be a positive integer",
		})
	}

	crashPoint := game.HashToCrashPoint(serverSeed, clientSeed, nonce, s.cfg.CrashMin, s.cfg.CrashMax)
	resp := fiber.Map{
		"server_seed": serverSeed,
		"client_seed": clientSeed,
		"nonce":       nonce,
		"commitment":  game.HashCommitment(serverSeed),
		"crash_point": crashPoint,
	}

	if claimed := c.Query("crash_point"); claimed != "" {
		v, err := strconv.ParseFloat(claimed, 64)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "crash_point must be a number",
			})
		}
		resp["valid"] = game.VerifyRound(serverSeed, clientSeed, nonce, s.cfg.CrashMin, s.cfg.CrashMax, v)
	}

	return c.JSON(resp)
}

// gameWebSocketHandler serves one player connection. Outbound frames are
// written by the hub; this goroutine only reads.
func (s *FiberServer) gameWebSocketHandler(conn *websocket.Conn) {
	clientID := uuid.NewString()
	session := NewSession(clientID, s.manager, s.hub, s.logger)

	stopped := s.hub.RegisterClient(conn, clientID)
	s.hub.Send(clientID, game.EventInitialState, s.manager.Snapshot())

	defer func() {
		s.hub.UnregisterClient(clientID)
		session.Close()
		<-stopped
	}()

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			s.logger.Debug("Read error", "client", clientID, "error", err)
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		session.Handle(message)
	}
}
