package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/log"

	"crashgame/internal/game"
)

const MAX_NAME_LENGTH = 32

var errBadRequest = errors.New("malformed message")

// Replier sends a unicast message to one client.
type Replier interface {
	Send(clientID string, eventType game.EventType, data interface{})
}

type clientMessage struct {
	Type        string  `json:"type"`
	Name        string  `json:"name,omitempty"`
	Amount      float64 `json:"amount,omitempty"`
	AutoCashout float64 `json:"auto_cashout,omitempty"`
}

// Session turns the frames of one websocket connection into manager
// commands. It is used from the connection's read loop only.
type Session struct {
	clientID string
	name     string
	manager  *game.Manager
	out      Replier
	logger   *log.Logger
}

func NewSession(clientID string, manager *game.Manager, out Replier, logger *log.Logger) *Session {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Session{
		clientID: clientID,
		manager:  manager,
		out:      out,
		logger:   logger,
	}
}

func (s *Session) ClientID() string {
	return s.clientID
}

func (s *Session) Name() string {
	return s.name
}

// Handle processes one inbound frame. Rejections are answered to the
// client; nothing is returned to the read loop.
func (s *Session) Handle(raw []byte) {
	var msg clientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		s.reject(fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	switch msg.Type {
	case "join":
		s.join(msg.Name)

	case "place_bet":
		if err := s.placeBet(msg.Amount, msg.AutoCashout); err != nil {
			s.out.Send(s.clientID, game.EventBetPlaced, game.BetPlacedData{
				Success: false,
				Error:   game.NewErrorData(err),
			})
		}

	case "cash_out":
		if err := s.cashOut(); err != nil {
			s.out.Send(s.clientID, game.EventCashedOut, game.CashedOutData{
				Success: false,
				Error:   game.NewErrorData(err),
			})
		}

	case "ping":
		s.out.Send(s.clientID, game.EventPong, nil)

	default:
		s.reject(fmt.Errorf("%w: unknown type %q", errBadRequest, msg.Type))
	}
}

// Close drops the client's bet for the running round.
func (s *Session) Close() {
	s.manager.OnDisconnect(s.clientID)
}

func (s *Session) join(name string) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > MAX_NAME_LENGTH {
		s.out.Send(s.clientID, game.EventJoined, game.JoinedData{
			Success: false,
			Error:   game.NewErrorData(fmt.Errorf("%w: 1-%d characters", game.ErrInvalidName, MAX_NAME_LENGTH)),
		})
		return
	}

	s.name = name
	s.logger.Info("Player joined", "client", s.clientID, "name", name)
	s.out.Send(s.clientID, game.EventJoined, game.JoinedData{Success: true})
}

func (s *Session) placeBet(amount, autoCashout float64) error {
	if s.name == "" {
		return game.ErrUnknownClient
	}
	return s.manager.PlaceBet(game.BetRequest{
		ClientID:    s.clientID,
		DisplayName: s.name,
		Amount:      amount,
		AutoCashout: autoCashout,
	})
}

func (s *Session) cashOut() error {
	if s.name == "" {
		return game.ErrUnknownClient
	}
	_, err := s.manager.CashOut(s.clientID)
	return err
}

func (s *Session) reject(err error) {
	s.logger.Debug("Rejected frame", "client", s.clientID, "error", err)
	s.out.Send(s.clientID, game.EventError, game.NewErrorData(err))
}
