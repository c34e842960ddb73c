// Package event defines the domain events sessions publish to the external
// sink: order and trade changes plus session lifecycle transitions, carrying
// enough identity to be routed to a UI without re-querying.
package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/g3trade/futures-gateway/internal/model"
)

// Kind identifies a domain event type.
type Kind string

const (
	OrderChanged Kind = "order_changed"
	TradeFilled  Kind = "trade_filled"
	FundsUpdated Kind = "funds_updated"
	SessionReady Kind = "session_ready"
	SessionDown  Kind = "session_down"  // Venue front disconnected
	SessionFatal Kind = "session_fatal" // Authentication rejected
)

// DomainEvent is one venue-originated state change forwarded to the sink.
type DomainEvent struct {
	ID        uuid.UUID `json:"id"`
	Kind      Kind      `json:"kind"`
	BrokerID  string    `json:"broker_id"`
	AccountID string    `json:"account_id"`
	At        time.Time `json:"at"`
	Detail    string    `json:"detail,omitempty"`

	Order *model.Order         `json:"order,omitempty"`
	Trade *model.Trade         `json:"trade,omitempty"`
	Funds *model.FundsSnapshot `json:"funds,omitempty"`
}
