// Package bot is a websocket player for the crash server. It bets a fixed
// amount every round and cashes out at a target multiplier.
package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"crashgame/internal/game"
)

type Config struct {
	URL    string
	Name   string
	Amount float64
	Target float64
	// Auto hands the target to the server as an auto cash-out instead of
	// watching multiplier updates.
	Auto bool
}

func (c Config) Validate() error {
	if c.URL == "" {
		return errors.New("server url is required")
	}
	if c.Name == "" {
		return errors.New("name is required")
	}
	if !(c.Amount > 0) {
		return fmt.Errorf("amount must be positive, got %v", c.Amount)
	}
	if c.Target < game.MIN_AUTO_CASHOUT {
		return fmt.Errorf("target must be at least %.2f, got %v", game.MIN_AUTO_CASHOUT, c.Target)
	}
	return nil
}

type Stats struct {
	Rounds int
	Wins   int
	Losses int
	Profit float64
}

// Command is a frame the bot sends to the server.
type Command struct {
	Type        string  `json:"type"`
	Name        string  `json:"name,omitempty"`
	Amount      float64 `json:"amount,omitempty"`
	AutoCashout float64 `json:"auto_cashout,omitempty"`
}

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type Bot struct {
	cfg    Config
	logger *log.Logger

	mu          sync.Mutex
	inRound     bool
	cashPending bool
	betPlaced   bool
	rounds      int
	wins        int
	losses      int
	profit      decimal.Decimal
}

func New(cfg Config, logger *log.Logger) *Bot {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Bot{
		cfg:    cfg,
		logger: logger.WithPrefix("bot").With("name", cfg.Name),
	}
}

func (b *Bot) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Rounds: b.rounds,
		Wins:   b.wins,
		Losses: b.losses,
		Profit: b.profit.Round(2).InexactFloat64(),
	}
}

// Run plays until ctx is done or the connection fails.
func (b *Bot) Run(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, b.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close()

	b.logger.Info("Connected", "url", b.cfg.URL)

	if err := conn.WriteJSON(Command{Type: "join", Name: b.cfg.Name}); err != nil {
		return fmt.Errorf("join: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		conn.Close()
		return nil
	})
	g.Go(func() error {
		for {
			var f frame
			if err := conn.ReadJSON(&f); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("read: %w", err)
			}

			cmd, err := b.Handle(game.EventType(f.Type), f.Data)
			if err != nil {
				b.logger.Warn("Bad frame", "type", f.Type, "error", err)
				continue
			}
			if cmd == nil {
				continue
			}
			if err := conn.WriteJSON(cmd); err != nil {
				return fmt.Errorf("write %s: %w", cmd.Type, err)
			}
		}
	})

	err = g.Wait()
	stats := b.Stats()
	b.logger.Info("Stopped", "rounds", stats.Rounds, "profit", stats.Profit)
	return err
}

// Handle updates the bot's view of the round and returns the command to
// send in response, if any.
func (b *Bot) Handle(eventType game.EventType, data json.RawMessage) (*Command, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch eventType {
	case game.EventJoined:
		var d game.JoinedData
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, err
		}
		if !d.Success {
			b.logger.Error("Join rejected", "error", errorMessage(d.Error))
		}

	case game.EventRoundStarted:
		b.inRound = false
		b.cashPending = false
		b.betPlaced = false
		cmd := &Command{Type: "place_bet", Amount: b.cfg.Amount}
		if b.cfg.Auto {
			cmd.AutoCashout = b.cfg.Target
		}
		return cmd, nil

	case game.EventBetPlaced:
		var d game.BetPlacedData
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, err
		}
		if !d.Success {
			b.logger.Warn("Bet rejected", "error", errorMessage(d.Error))
			return nil, nil
		}
		b.inRound = true
		b.betPlaced = true

	case game.EventMultiplierUpdate:
		var d game.MultiplierData
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, err
		}
		if b.inRound && !b.cfg.Auto && !b.cashPending && d.Multiplier >= b.cfg.Target {
			b.cashPending = true
			return &Command{Type: "cash_out"}, nil
		}

	case game.EventCashedOut:
		var d game.CashedOutData
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, err
		}
		if d.Success {
			b.inRound = false
			b.logger.Info("Cashed out", "multiplier", d.Multiplier, "payout", d.Payout, "auto", d.Auto)
		} else {
			b.logger.Warn("Cash out rejected", "error", errorMessage(d.Error))
		}

	case game.EventRoundCrashed:
		var d game.RoundCrashedData
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, err
		}
		b.settle(d)

	case game.EventWait:
		var d game.WaitData
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, err
		}
		b.logger.Debug("Waiting for next round", "seconds", d.Seconds)
	}

	return nil, nil
}

// settle books the round from the crash results. Results carry display names
// only, so the bot takes the first entry under its own name, and only in a
// round where the server confirmed its bet. A namesake at the same table can
// still be mistaken for the bot.
func (b *Bot) settle(d game.RoundCrashedData) {
	placed := b.betPlaced
	b.inRound = false
	b.cashPending = false
	b.betPlaced = false
	if !placed {
		return
	}
	for _, r := range d.Results {
		if r.DisplayName != b.cfg.Name {
			continue
		}
		b.rounds++
		amount := decimal.NewFromFloat(r.Amount)
		if r.Result == game.ResultWon {
			b.wins++
			b.profit = b.profit.Add(decimal.NewFromFloat(r.Payout).Sub(amount))
		} else {
			b.losses++
			b.profit = b.profit.Sub(amount)
		}
		b.logger.Info("Round settled",
			"round", d.RoundID,
			"crashPoint", d.CrashPoint,
			"result", r.Result,
			"profit", b.profit.Round(2).InexactFloat64())
		return
	}
}

func errorMessage(e *game.ErrorData) string {
	if e == nil {
		return ""
	}
	return e.Code + ": " + e.Message
}
