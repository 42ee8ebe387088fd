package server

import (
	"strings"
	"sync"
	"testing"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crashgame/internal/game"
)

// recorder stands in for the hub: it is both the manager's sink and the
// session's replier.
type recorder struct {
	mu     sync.Mutex
	events []game.Event
}

func (r *recorder) Publish(e game.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) Send(clientID string, eventType game.EventType, data interface{}) {
	r.Publish(game.Event{Type: eventType, ClientID: clientID, Data: data})
}

func (r *recorder) last(t *testing.T) game.Event {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.events)
	return r.events[len(r.events)-1]
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func newTestSession(t *testing.T) (*Session, *game.Manager, *recorder) {
	t.Helper()
	rec := &recorder{}
	manager := game.NewManager(game.DefaultConfig(), rec, game.FixedGenerator(2), quartz.NewMock(t), nil)
	return NewSession("client-1", manager, rec, nil), manager, rec
}

func errorCodeOf(t *testing.T, e game.Event) string {
	t.Helper()
	switch data := e.Data.(type) {
	case *game.ErrorData:
		return data.Code
	case game.JoinedData:
		require.NotNil(t, data.Error)
		return data.Error.Code
	case game.BetPlacedData:
		require.NotNil(t, data.Error)
		return data.Error.Code
	case game.CashedOutData:
		require.NotNil(t, data.Error)
		return data.Error.Code
	}
	t.Fatalf("event %s carries no error", e.Type)
	return ""
}

func TestSession_MalformedFrames(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "{"},
		{"unknown type", `{"type":"dance"}`},
		{"missing type", `{}`},
		{"wrong field type", `{"type":"place_bet","amount":"ten"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, rec := newTestSession(t)
			s.Handle([]byte(tt.raw))

			e := rec.last(t)
			assert.Equal(t, game.EventError, e.Type)
			assert.Equal(t, "client-1", e.ClientID)
			assert.Equal(t, "bad_request", errorCodeOf(t, e))
		})
	}
}

func TestSession_CommandsBeforeJoin(t *testing.T) {
	s, manager, rec := newTestSession(t)
	require.True(t, manager.TryStartRound())

	s.Handle([]byte(`{"type":"place_bet","amount":10}`))
	e := rec.last(t)
	assert.Equal(t, game.EventBetPlaced, e.Type)
	assert.Equal(t, "unknown_client", errorCodeOf(t, e))

	s.Handle([]byte(`{"type":"cash_out"}`))
	e = rec.last(t)
	assert.Equal(t, game.EventCashedOut, e.Type)
	assert.Equal(t, "unknown_client", errorCodeOf(t, e))

	assert.Empty(t, manager.Snapshot().Bets)
}

func TestSession_Join(t *testing.T) {
	s, _, rec := newTestSession(t)

	s.Handle([]byte(`{"type":"join","name":"   "}`))
	assert.Equal(t, "invalid_name", errorCodeOf(t, rec.last(t)))
	assert.Empty(t, s.Name())

	s.Handle([]byte(`{"type":"join","name":"` + strings.Repeat("x", MAX_NAME_LENGTH+1) + `"}`))
	assert.Equal(t, "invalid_name", errorCodeOf(t, rec.last(t)))

	s.Handle([]byte(`{"type":"join","name":" alice "}`))
	e := rec.last(t)
	assert.Equal(t, game.EventJoined, e.Type)
	assert.Equal(t, game.JoinedData{Success: true}, e.Data)
	assert.Equal(t, "alice", s.Name())

	// the limit counts characters, not bytes
	accented := strings.Repeat("é", MAX_NAME_LENGTH)
	s.Handle([]byte(`{"type":"join","name":"` + accented + `"}`))
	assert.Equal(t, game.JoinedData{Success: true}, rec.last(t).Data)
	assert.Equal(t, accented, s.Name())

	s.Handle([]byte(`{"type":"join","name":"` + strings.Repeat("é", MAX_NAME_LENGTH+1) + `"}`))
	assert.Equal(t, "invalid_name", errorCodeOf(t, rec.last(t)))
	assert.Equal(t, accented, s.Name())
}

func TestSession_BetAndCashOut(t *testing.T) {
	s, manager, rec := newTestSession(t)
	s.Handle([]byte(`{"type":"join","name":"alice"}`))

	s.Handle([]byte(`{"type":"place_bet","amount":10}`))
	assert.Equal(t, "invalid_phase", errorCodeOf(t, rec.last(t)), "bets are refused while waiting")

	require.True(t, manager.TryStartRound())
	s.Handle([]byte(`{"type":"place_bet","amount":10,"auto_cashout":1.5}`))
	e := rec.last(t)
	assert.Equal(t, game.EventBetPlaced, e.Type)
	assert.Equal(t, game.BetPlacedData{Success: true, Amount: 10}, e.Data)

	bets := manager.Snapshot().Bets
	require.Len(t, bets, 1)
	assert.Equal(t, "alice", bets[0].DisplayName)
	assert.Equal(t, 1.5, bets[0].AutoCashout)

	s.Handle([]byte(`{"type":"place_bet","amount":10}`))
	assert.Equal(t, "duplicate_bet", errorCodeOf(t, rec.last(t)))

	manager.Advance()
	s.Handle([]byte(`{"type":"cash_out"}`))
	e = rec.last(t)
	assert.Equal(t, game.EventCashedOut, e.Type)
	data := e.Data.(game.CashedOutData)
	assert.True(t, data.Success)
	assert.Equal(t, 1.05, data.Multiplier)
	assert.Equal(t, 10.5, data.Payout)

	s.Handle([]byte(`{"type":"cash_out"}`))
	assert.Equal(t, "already_cashed_out", errorCodeOf(t, rec.last(t)))
}

func TestSession_InvalidAmounts(t *testing.T) {
	tests := []struct {
		raw  string
		code string
	}{
		{`{"type":"place_bet"}`, "invalid_amount"},
		{`{"type":"place_bet","amount":-5}`, "invalid_amount"},
		{`{"type":"place_bet","amount":5,"auto_cashout":1.001}`, "invalid_auto_cashout"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			s, manager, rec := newTestSession(t)
			s.Handle([]byte(`{"type":"join","name":"bob"}`))
			require.True(t, manager.TryStartRound())

			s.Handle([]byte(tt.raw))
			assert.Equal(t, tt.code, errorCodeOf(t, rec.last(t)))
			assert.Empty(t, manager.Snapshot().Bets)
		})
	}
}

func TestSession_Ping(t *testing.T) {
	s, _, rec := newTestSession(t)
	s.Handle([]byte(`{"type":"ping"}`))

	e := rec.last(t)
	assert.Equal(t, game.EventPong, e.Type)
	assert.Equal(t, "client-1", e.ClientID)
	assert.Equal(t, 1, rec.count())
}

func TestSession_CloseDropsBet(t *testing.T) {
	s, manager, _ := newTestSession(t)
	s.Handle([]byte(`{"type":"join","name":"carol"}`))
	require.True(t, manager.TryStartRound())
	s.Handle([]byte(`{"type":"place_bet","amount":3}`))
	require.Len(t, manager.Snapshot().Bets, 1)

	s.Close()
	assert.Empty(t, manager.Snapshot().Bets)
}
