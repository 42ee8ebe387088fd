package server

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crashgame/internal/game"
)

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func startServer(t *testing.T) (*FiberServer, string) {
	t.Helper()

	s := newTestServer(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Serve(ctx, ln) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-errc:
			assert.NoError(t, err)
		case <-time.After(10 * time.Second):
			t.Error("server did not stop")
		}
	})

	return s, "ws://" + ln.Addr().String() + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	var conn *websocket.Conn
	require.Eventually(t, func() bool {
		c, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			return false
		}
		conn = c
		return true
	}, 5*time.Second, 10*time.Millisecond)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

// readUntil skips frames until one of type want arrives.
func readUntil(t *testing.T, conn *websocket.Conn, want game.EventType) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var f frame
		require.NoError(t, conn.ReadJSON(&f), "waiting for %s", want)
		if f.Type == string(want) {
			return f
		}
	}
}

func TestWebSocket_RoundEndToEnd(t *testing.T) {
	s, url := startServer(t)
	alice := dial(t, url)
	bob := dial(t, url)

	var snap game.RoundSnapshot
	require.NoError(t, json.Unmarshal(readUntil(t, alice, game.EventInitialState).Data, &snap))
	assert.Equal(t, game.PhaseWaiting, snap.Phase)
	readUntil(t, bob, game.EventInitialState)

	send(t, alice, map[string]interface{}{"type": "join", "name": "alice"})
	send(t, bob, map[string]interface{}{"type": "join", "name": "bob"})
	var joined game.JoinedData
	require.NoError(t, json.Unmarshal(readUntil(t, alice, game.EventJoined).Data, &joined))
	assert.True(t, joined.Success)
	readUntil(t, bob, game.EventJoined)

	require.True(t, s.Manager().TryStartRound())
	readUntil(t, alice, game.EventRoundStarted)
	readUntil(t, bob, game.EventRoundStarted)

	send(t, alice, map[string]interface{}{"type": "place_bet", "amount": 10})
	send(t, bob, map[string]interface{}{"type": "place_bet", "amount": 5})
	var placed game.BetPlacedData
	require.NoError(t, json.Unmarshal(readUntil(t, alice, game.EventBetPlaced).Data, &placed))
	assert.True(t, placed.Success)
	readUntil(t, bob, game.EventBetPlaced)

	s.Manager().Advance()
	var update game.MultiplierData
	require.NoError(t, json.Unmarshal(readUntil(t, alice, game.EventMultiplierUpdate).Data, &update))
	assert.Equal(t, 1.05, update.Multiplier)

	send(t, alice, map[string]interface{}{"type": "cash_out"})
	var cashed game.CashedOutData
	require.NoError(t, json.Unmarshal(readUntil(t, alice, game.EventCashedOut).Data, &cashed))
	assert.True(t, cashed.Success)
	assert.Equal(t, 1.05, cashed.Multiplier)
	assert.Equal(t, 10.5, cashed.Payout)

	for {
		if _, crashed := s.Manager().Advance(); crashed {
			break
		}
	}

	var crash game.RoundCrashedData
	require.NoError(t, json.Unmarshal(readUntil(t, bob, game.EventRoundCrashed).Data, &crash))
	assert.Equal(t, 2.0, crash.CrashPoint)
	require.Len(t, crash.Results, 2)

	byName := map[string]game.Result{}
	for _, r := range crash.Results {
		byName[r.DisplayName] = r
	}
	assert.Equal(t, game.ResultWon, byName["alice"].Result)
	assert.Equal(t, 1.05, byName["alice"].Multiplier)
	assert.Equal(t, game.ResultLost, byName["bob"].Result)

	send(t, bob, map[string]interface{}{"type": "cash_out"})
	require.NoError(t, json.Unmarshal(readUntil(t, bob, game.EventCashedOut).Data, &cashed))
	assert.False(t, cashed.Success)
	require.NotNil(t, cashed.Error)
	assert.Equal(t, "invalid_phase", cashed.Error.Code)
}

func TestWebSocket_PingAndBadFrames(t *testing.T) {
	_, url := startServer(t)
	conn := dial(t, url)
	readUntil(t, conn, game.EventInitialState)

	send(t, conn, map[string]string{"type": "ping"})
	readUntil(t, conn, game.EventPong)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	var errData game.ErrorData
	require.NoError(t, json.Unmarshal(readUntil(t, conn, game.EventError).Data, &errData))
	assert.Equal(t, "bad_request", errData.Code)
}

func TestWebSocket_DisconnectDropsBet(t *testing.T) {
	s, url := startServer(t)
	conn := dial(t, url)
	readUntil(t, conn, game.EventInitialState)

	send(t, conn, map[string]interface{}{"type": "join", "name": "dave"})
	readUntil(t, conn, game.EventJoined)
	require.True(t, s.Manager().TryStartRound())
	readUntil(t, conn, game.EventRoundStarted)
	send(t, conn, map[string]interface{}{"type": "place_bet", "amount": 1})
	readUntil(t, conn, game.EventBetPlaced)
	require.Len(t, s.Manager().Snapshot().Bets, 1)

	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool {
		return len(s.Manager().Snapshot().Bets) == 0 && s.hub.GetClientCount() == 0
	}, 5*time.Second, 10*time.Millisecond)
}
