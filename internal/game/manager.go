package game

import (
	"context"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
)

const (
	MULTIPLIER_STEP  = 0.05
	START_MULTIPLIER = 1.00
	MIN_AUTO_CASHOUT = 1.01
	MAX_BET          = 1_000_000
	WAIT_DELAY       = 1 * time.Second
	WAIT_SECONDS     = 30
)

// Config holds the cadence of the round loop.
type Config struct {
	RoundInterval  time.Duration
	TickInterval   time.Duration
	MultiplierStep float64
	// WaitDelay is how long after a crash the wait announcement goes out.
	WaitDelay time.Duration
	// WaitSeconds is the advisory wait communicated to clients. Nothing
	// stops the round trigger from starting the next round sooner.
	WaitSeconds int
}

func DefaultConfig() Config {
	return Config{
		RoundInterval:  ROUND_INTERVAL,
		TickInterval:   TICK_INTERVAL,
		MultiplierStep: MULTIPLIER_STEP,
		WaitDelay:      WAIT_DELAY,
		WaitSeconds:    WAIT_SECONDS,
	}
}

// Manager is the round state machine. It exclusively owns the current round
// and its ledger; every mutation and every published event happens under mu,
// which gives commands and clock firings a single total order.
type Manager struct {
	cfg    Config
	sink   Sink
	gen    Generator
	clock  *RoundClock
	logger *log.Logger

	mu        sync.Mutex
	ctx       context.Context
	phase     Phase
	round     *RoundState
	ledger    *Ledger
	ticks     *Trigger
	waitTimer *quartz.Timer
	nonce     int
	lastCrash *RoundCrashedData
}

func NewManager(cfg Config, sink Sink, gen Generator, clock quartz.Clock, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if sink == nil {
		sink = Sinks{}
	}
	if gen == nil {
		gen = NewFairGenerator(MIN_CRASH_POINT, MAX_CRASH_POINT)
	}
	return &Manager{
		cfg:    cfg,
		sink:   sink,
		gen:    gen,
		clock:  NewRoundClock(clock, cfg.RoundInterval, cfg.TickInterval),
		logger: logger.WithPrefix("game"),
		ctx:    context.Background(),
		phase:  PhaseWaiting,
		ledger: NewLedger(),
	}
}

// Run drives the round trigger until ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	m.mu.Lock()
	m.ctx = ctx
	m.mu.Unlock()

	rounds := m.clock.StartRounds(ctx, func() { m.TryStartRound() })
	m.logger.Info("Game loop started",
		"roundInterval", m.cfg.RoundInterval,
		"tickInterval", m.cfg.TickInterval)

	<-ctx.Done()

	rounds.Stop()
	rounds.Wait()

	m.mu.Lock()
	ticks := m.ticks
	m.stopTicksLocked()
	if m.waitTimer != nil {
		m.waitTimer.Stop()
		m.waitTimer = nil
	}
	m.mu.Unlock()

	// A firing may be blocked on mu; it sees the cancelled context and returns.
	if ticks != nil {
		ticks.Wait()
	}

	m.logger.Info("Game loop stopped")
	return nil
}

// TryStartRound opens a new round if none is running. It reports whether a
// round was started.
func (m *Manager) TryStartRound() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseWaiting {
		m.logger.Debug("Round in progress, skipping start", "round", m.round.RoundID)
		return false
	}

	m.nonce++
	nonce := m.nonce
	draw := m.gen.Generate(nonce)
	now := m.clock.Now()

	m.ledger.Reset()
	m.round = &RoundState{
		RoundID:    fmt.Sprintf("R%d-%d", now.Unix(), nonce),
		Nonce:      nonce,
		ServerSeed: draw.ServerSeed,
		Commitment: draw.Commitment,
		ClientSeed: draw.ClientSeed,
		CrashPoint: draw.CrashPoint,
		Multiplier: START_MULTIPLIER,
		StartTime:  now,
	}
	m.phase = PhaseRunning
	m.ticks = m.clock.StartTicks(m.ctx, func() bool {
		return m.advanceRound(nonce)
	})

	m.logger.Info("Round started", "round", m.round.RoundID, "commitment", shortHash(draw.Commitment))
	m.logger.Debug("Crash point drawn", "round", m.round.RoundID, "crashPoint", draw.CrashPoint)

	m.sink.Publish(Event{
		Type: EventRoundStarted,
		Data: RoundStartedData{
			RoundID:    m.round.RoundID,
			Nonce:      nonce,
			Commitment: draw.Commitment,
			ClientSeed: draw.ClientSeed,
		},
	})
	return true
}

// Advance moves the multiplier one step. It is a no-op outside RUNNING and
// reports the multiplier after the step and whether the round crashed.
func (m *Manager) Advance() (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseRunning {
		return m.multiplierLocked(), false
	}
	return m.advanceLocked()
}

// advanceRound is the tick callback. Ticks that arrive after their round has
// crashed, or that belong to an earlier round, are dropped.
func (m *Manager) advanceRound(nonce int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx.Err() != nil || m.phase != PhaseRunning || m.round == nil || m.round.Nonce != nonce {
		return false
	}
	_, crashed := m.advanceLocked()
	return !crashed
}

func (m *Manager) advanceLocked() (float64, bool) {
	next := NextMultiplier(m.round.Multiplier, m.cfg.MultiplierStep)

	// A target already passed when the bet was placed pays at the multiplier
	// the round was at.
	for _, bet := range m.ledger.DueAutoCashouts(next, m.round.CrashPoint) {
		at := math.Max(bet.AutoCashout, m.round.Multiplier)
		if _, err := m.cashOutLocked(bet.ClientID, at, true); err != nil {
			m.logger.Warn("Auto cashout failed", "client", bet.ClientID, "error", err)
		}
	}

	// The crash tick still stores and announces the stepped value; the round
	// freezes there while losers settle at the crash point.
	m.round.Multiplier = next
	m.sink.Publish(Event{
		Type: EventMultiplierUpdate,
		Data: MultiplierData{RoundID: m.round.RoundID, Multiplier: next},
	})
	if next >= m.round.CrashPoint {
		m.crashLocked()
		return next, true
	}
	return next, false
}

func (m *Manager) crashLocked() {
	m.stopTicksLocked()
	m.phase = PhaseCrashed

	results := m.ledger.Settle(m.round.CrashPoint)
	crash := &RoundCrashedData{
		RoundID:    m.round.RoundID,
		Nonce:      m.round.Nonce,
		CrashPoint: m.round.CrashPoint,
		ServerSeed: m.round.ServerSeed,
		ClientSeed: m.round.ClientSeed,
		Results:    results,
	}
	m.lastCrash = crash
	m.sink.Publish(Event{Type: EventRoundCrashed, Data: *crash})

	won := 0
	for _, r := range results {
		if r.Result == ResultWon {
			won++
		}
	}
	m.logger.Info("Round crashed",
		"round", m.round.RoundID,
		"crashPoint", m.round.CrashPoint,
		"bets", len(results),
		"won", won)

	m.waitTimer = m.clock.After(m.cfg.WaitDelay, m.announceWait)
	m.phase = PhaseWaiting
}

func (m *Manager) announceWait() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctx.Err() != nil {
		return
	}
	m.sink.Publish(Event{Type: EventWait, Data: WaitData{Seconds: m.cfg.WaitSeconds}})
}

func (m *Manager) stopTicksLocked() {
	if m.ticks != nil {
		m.ticks.Stop()
		m.ticks = nil
	}
}

// PlaceBet records a bet for the running round.
func (m *Manager) PlaceBet(req BetRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseRunning {
		return fmt.Errorf("%w: round is %s", ErrInvalidPhase, m.phase)
	}
	if req.ClientID == "" {
		return ErrUnknownClient
	}
	if !(req.Amount > 0) || req.Amount > MAX_BET {
		return fmt.Errorf("%w: got %v", ErrInvalidAmount, req.Amount)
	}
	if req.AutoCashout != 0 && !(req.AutoCashout >= MIN_AUTO_CASHOUT && !math.IsInf(req.AutoCashout, 1)) {
		return fmt.Errorf("%w: got %v", ErrInvalidAutoCashout, req.AutoCashout)
	}

	bet := Bet{
		ClientID:    req.ClientID,
		DisplayName: req.DisplayName,
		Amount:      req.Amount,
		AutoCashout: req.AutoCashout,
		PlacedAt:    m.clock.Now(),
	}
	if err := m.ledger.Add(bet); err != nil {
		return err
	}

	m.logger.Info("Bet placed",
		"round", m.round.RoundID,
		"player", req.DisplayName,
		"amount", req.Amount,
		"autoCashout", req.AutoCashout)

	m.sink.Publish(Event{
		Type:     EventBetPlaced,
		ClientID: req.ClientID,
		Data:     BetPlacedData{Success: true, Amount: req.Amount},
	})
	return nil
}

// CashOut locks in the current multiplier for the client's bet.
func (m *Manager) CashOut(clientID string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseRunning {
		return 0, fmt.Errorf("%w: round is %s", ErrInvalidPhase, m.phase)
	}
	return m.cashOutLocked(clientID, m.round.Multiplier, false)
}

func (m *Manager) cashOutLocked(clientID string, at float64, auto bool) (float64, error) {
	bet, err := m.ledger.MarkCashedOut(clientID, at)
	if err != nil {
		return 0, err
	}
	payout := Payout(bet.Amount, at)

	m.logger.Info("Cashed out",
		"round", m.round.RoundID,
		"player", bet.DisplayName,
		"multiplier", at,
		"payout", payout,
		"auto", auto)

	m.sink.Publish(Event{
		Type:     EventCashedOut,
		ClientID: clientID,
		Data:     CashedOutData{Success: true, Multiplier: at, Payout: payout, Auto: auto},
	})
	return at, nil
}

// OnDisconnect forgets the client's bet. Valid in any phase.
func (m *Manager) OnDisconnect(clientID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.ledger.Get(clientID); ok {
		m.logger.Debug("Removing bet of disconnected client", "client", clientID)
	}
	m.ledger.Remove(clientID)
}

func (m *Manager) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Snapshot returns a copy of the public round state.
func (m *Manager) Snapshot() RoundSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := RoundSnapshot{Phase: m.phase, Bets: []Bet{}}
	if m.round != nil {
		roundCopy := *m.round
		snap.Round = &roundCopy
	}
	if m.phase == PhaseRunning {
		snap.Bets = m.ledger.Bets()
	}
	if m.lastCrash != nil {
		crashCopy := *m.lastCrash
		crashCopy.Results = append([]Result(nil), m.lastCrash.Results...)
		snap.LastCrash = &crashCopy
	}
	return snap
}

func (m *Manager) multiplierLocked() float64 {
	if m.round == nil {
		return START_MULTIPLIER
	}
	return m.round.Multiplier
}

func shortHash(h string) string {
	if len(h) > 16 {
		return h[:16] + "..."
	}
	return h
}
