package session

// Phase is the current step of the fixed query pipeline a session occupies.
type Phase string

const (
	PhaseConnecting             Phase = "connecting"
	PhaseAuthenticating         Phase = "authenticating"
	PhaseLoggingIn              Phase = "logging_in"
	PhaseConfirmingSettlement   Phase = "confirming_settlement"
	PhaseQueryingAccount        Phase = "querying_account"
	PhaseQueryingPositionDetail Phase = "querying_position_detail"
	PhaseQueryingPosition       Phase = "querying_position"
	PhaseQueryingInstrument     Phase = "querying_instrument"
	PhaseQueryingMarketData     Phase = "querying_market_data"
	PhaseQueryingOrders         Phase = "querying_orders"
	PhaseQueryingTrades         Phase = "querying_trades"
	PhaseReady                  Phase = "ready"

	// Terminal phases: the event loop has exited.
	PhaseDisconnected Phase = "disconnected"
	PhaseFailed       Phase = "failed"
	PhaseExited       Phase = "exited"
)

// Terminal reports whether the phase means the session loop has exited.
func (p Phase) Terminal() bool {
	switch p {
	case PhaseDisconnected, PhaseFailed, PhaseExited:
		return true
	}
	return false
}
