package game

import (
	"time"
)

type Phase string

const (
	PhaseWaiting Phase = "WAITING"
	PhaseRunning Phase = "RUNNING"
	PhaseCrashed Phase = "CRASHED"
)

const (
	ResultWon  = "Won"
	ResultLost = "Lost"
)

type BetRequest struct {
	ClientID    string  `json:"-"`
	DisplayName string  `json:"-"`
	Amount      float64 `json:"amount"`
	AutoCashout float64 `json:"auto_cashout,omitempty"`
}

type Bet struct {
	ClientID    string    `json:"-"`
	DisplayName string    `json:"display_name"`
	Amount      float64   `json:"amount"`
	AutoCashout float64   `json:"auto_cashout,omitempty"`
	PlacedAt    time.Time `json:"placed_at"`
	CashedOut   bool      `json:"cashed_out"`
	CashedOutAt float64   `json:"cashed_out_at,omitempty"`
}

// Result is one settlement entry reported at crash time.
type Result struct {
	DisplayName string  `json:"display_name"`
	Result      string  `json:"result"`
	Multiplier  float64 `json:"multiplier"`
	Amount      float64 `json:"amount"`
	Payout      float64 `json:"payout"`
}

type RoundState struct {
	RoundID    string    `json:"round_id"`
	Nonce      int       `json:"nonce"`
	ServerSeed string    `json:"-"` // Never expose until reveal
	Commitment string    `json:"commitment"`
	ClientSeed string    `json:"client_seed"`
	CrashPoint float64   `json:"-"` // Hidden until crash
	Multiplier float64   `json:"multiplier"`
	StartTime  time.Time `json:"start_time"`
}

// RoundSnapshot is the public view of the engine handed to HTTP callers and
// freshly connected clients.
type RoundSnapshot struct {
	Phase     Phase             `json:"phase"`
	Round     *RoundState       `json:"round,omitempty"`
	Bets      []Bet             `json:"bets"`
	LastCrash *RoundCrashedData `json:"last_crash,omitempty"`
}

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}
