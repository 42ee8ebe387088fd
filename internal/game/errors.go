package game

import "errors"

// Command rejections. None of them mutate round state; the client may simply
// re-issue the command.
var (
	ErrInvalidPhase       = errors.New("command not allowed in current phase")
	ErrDuplicateBet       = errors.New("bet already placed this round")
	ErrInvalidAmount      = errors.New("bet amount must be positive and within the table limit")
	ErrInvalidAutoCashout = errors.New("auto cashout must be at least 1.01")
	ErrNoActiveBet        = errors.New("no active bet this round")
	ErrAlreadyCashedOut   = errors.New("already cashed out")
	ErrUnknownClient      = errors.New("client has not joined")
	ErrInvalidName        = errors.New("display name is required")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrInvalidPhase, "invalid_phase"},
	{ErrDuplicateBet, "duplicate_bet"},
	{ErrInvalidAmount, "invalid_amount"},
	{ErrInvalidAutoCashout, "invalid_auto_cashout"},
	{ErrNoActiveBet, "no_active_bet"},
	{ErrAlreadyCashedOut, "already_cashed_out"},
	{ErrUnknownClient, "unknown_client"},
	{ErrInvalidName, "invalid_name"},
}

// ErrorCode maps a rejection to the code sent to clients. Unknown errors map
// to "bad_request".
func ErrorCode(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return "bad_request"
}
