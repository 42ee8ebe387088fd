package game

type EventType string

const (
	EventJoined           EventType = "joined"
	EventBetPlaced        EventType = "bet_placed"
	EventRoundStarted     EventType = "game_start"
	EventMultiplierUpdate EventType = "multiplier_update"
	EventCashedOut        EventType = "cashed_out"
	EventRoundCrashed     EventType = "game_crash"
	EventWait             EventType = "game_wait"
	EventInitialState     EventType = "initial_state"
	EventPong             EventType = "pong"
	EventError            EventType = "error"
)

// Event is a notification for clients. An empty ClientID means broadcast;
// otherwise the event is delivered to that client only.
type Event struct {
	Type     EventType
	ClientID string
	Data     interface{}
}

// Message converts the event to its wire form.
func (e Event) Message() WSMessage {
	return WSMessage{Type: string(e.Type), Data: e.Data}
}

// Sink receives events from the Manager. Publish is called while the
// Manager's lock is held, so implementations must not block or call back
// into the Manager.
type Sink interface {
	Publish(Event)
}

// Sinks fans an event out to several sinks in order.
type Sinks []Sink

func (s Sinks) Publish(e Event) {
	for _, sink := range s {
		sink.Publish(e)
	}
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewErrorData(err error) *ErrorData {
	return &ErrorData{Code: ErrorCode(err), Message: err.Error()}
}

type JoinedData struct {
	Success bool       `json:"success"`
	Error   *ErrorData `json:"error,omitempty"`
}

type BetPlacedData struct {
	Success bool       `json:"success"`
	Amount  float64    `json:"amount,omitempty"`
	Error   *ErrorData `json:"error,omitempty"`
}

type RoundStartedData struct {
	RoundID    string `json:"round_id"`
	Nonce      int    `json:"nonce"`
	Commitment string `json:"commitment"`
	ClientSeed string `json:"client_seed"`
}

type MultiplierData struct {
	RoundID    string  `json:"round_id"`
	Multiplier float64 `json:"multiplier"`
}

type CashedOutData struct {
	Success    bool       `json:"success"`
	Multiplier float64    `json:"multiplier,omitempty"`
	Payout     float64    `json:"payout,omitempty"`
	Auto       bool       `json:"auto,omitempty"`
	Error      *ErrorData `json:"error,omitempty"`
}

type RoundCrashedData struct {
	RoundID    string   `json:"round_id"`
	Nonce      int      `json:"nonce"`
	CrashPoint float64  `json:"crash_point"`
	ServerSeed string   `json:"server_seed"`
	ClientSeed string   `json:"client_seed"`
	Results    []Result `json:"results"`
}

type WaitData struct {
	Seconds int `json:"seconds"`
}
