package executor

import "fmt"

// Bybit v5 return codes the executor reacts to.
const (
	retCodeOK                  = 0
	retCodeInsufficientBalance = 110007
)

// ExecutionError wraps an exchange rejection with enough context to decide
// whether to retry, cool down, or drop the trade.
type ExecutionError struct {
	Op      string // "place_order", "set_stops", "close_position", "balance"
	Symbol  string
	RetCode int
	Msg     string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s %s: retCode %d: %s", e.Op, e.Symbol, e.RetCode, e.Msg)
}

// InsufficientBalance reports whether the rejection was for lack of margin.
func (e *ExecutionError) InsufficientBalance() bool {
	return e.RetCode == retCodeInsufficientBalance
}
