package game

import (
	"math"

	"github.com/shopspring/decimal"
)

// Ledger holds the bets of the current round in insertion order. It does no
// locking; the Manager serialises access.
type Ledger struct {
	order []string
	bets  map[string]*Bet
}

func NewLedger() *Ledger {
	return &Ledger{bets: make(map[string]*Bet)}
}

// Add records a new bet. A client may hold a single bet per round.
func (l *Ledger) Add(bet Bet) error {
	if _, exists := l.bets[bet.ClientID]; exists {
		return ErrDuplicateBet
	}
	b := bet
	b.CashedOut = false
	b.CashedOutAt = 0
	l.bets[bet.ClientID] = &b
	l.order = append(l.order, bet.ClientID)
	return nil
}

// MarkCashedOut locks in the multiplier for the client's bet and returns the
// updated entry.
func (l *Ledger) MarkCashedOut(clientID string, at float64) (Bet, error) {
	b, ok := l.bets[clientID]
	if !ok {
		return Bet{}, ErrNoActiveBet
	}
	if b.CashedOut {
		return *b, ErrAlreadyCashedOut
	}
	b.CashedOut = true
	b.CashedOutAt = at
	return *b, nil
}

// Remove drops the client's bet if there is one.
func (l *Ledger) Remove(clientID string) {
	if _, ok := l.bets[clientID]; !ok {
		return
	}
	delete(l.bets, clientID)
	for i, id := range l.order {
		if id == clientID {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
}

func (l *Ledger) Get(clientID string) (Bet, bool) {
	b, ok := l.bets[clientID]
	if !ok {
		return Bet{}, false
	}
	return *b, true
}

func (l *Ledger) Len() int {
	return len(l.order)
}

// Bets returns a copy of all entries in insertion order.
func (l *Ledger) Bets() []Bet {
	bets := make([]Bet, 0, len(l.order))
	for _, id := range l.order {
		bets = append(bets, *l.bets[id])
	}
	return bets
}

// DueAutoCashouts lists the clients whose auto cashout target has been
// reached at multiplier and lies strictly below the crash point.
func (l *Ledger) DueAutoCashouts(multiplier, crashPoint float64) []Bet {
	var due []Bet
	for _, id := range l.order {
		b := l.bets[id]
		if b.CashedOut || b.AutoCashout <= 0 {
			continue
		}
		if b.AutoCashout <= multiplier && b.AutoCashout < crashPoint {
			due = append(due, *b)
		}
	}
	return due
}

// Settle reports every bet as Won at its cashout multiplier or Lost at the
// crash point.
func (l *Ledger) Settle(crashPoint float64) []Result {
	results := make([]Result, 0, len(l.order))
	for _, id := range l.order {
		b := l.bets[id]
		r := Result{
			DisplayName: b.DisplayName,
			Result:      ResultLost,
			Multiplier:  crashPoint,
			Amount:      b.Amount,
		}
		if b.CashedOut {
			r.Result = ResultWon
			r.Multiplier = b.CashedOutAt
			r.Payout = Payout(b.Amount, b.CashedOutAt)
		}
		results = append(results, r)
	}
	return results
}

// Reset clears all entries for a new round.
func (l *Ledger) Reset() {
	l.order = nil
	l.bets = make(map[string]*Bet)
}

// Payout is amount times multiplier rounded to cents. A product beyond the
// float64 range saturates at math.MaxFloat64 so it still encodes as JSON.
func Payout(amount, multiplier float64) float64 {
	p := decimal.NewFromFloat(amount).
		Mul(decimal.NewFromFloat(multiplier)).
		Round(2).
		InexactFloat64()
	if math.IsInf(p, 0) {
		return math.Copysign(math.MaxFloat64, p)
	}
	return p
}

// NextMultiplier advances m by step, rounded to two places.
func NextMultiplier(m, step float64) float64 {
	return decimal.NewFromFloat(m).
		Add(decimal.NewFromFloat(step)).
		Round(2).
		InexactFloat64()
}
