package model

import "time"

// AccountKey uniquely identifies a broker/account pair within the registry.
type AccountKey string

// NewAccountKey builds the canonical "{broker}:{account}" key.
func NewAccountKey(brokerID, accountID string) AccountKey {
	return AccountKey(brokerID + ":" + accountID)
}

// AccountDescriptor holds everything needed to authenticate one trading
// account against the venue. Immutable once a session is constructed from
// it; changing a field requires tearing the session down and recreating it.
type AccountDescriptor struct {
	BrokerID    string // Broker identifier (e.g. "9999")
	AccountID   string // Investor/account identifier
	Password    string // Login password
	AuthCode    string // Terminal authentication code
	ProductInfo string // User product info reported at authentication
	AppID       string // Application identifier reported at authentication
	TradeFront  string // Trade front address (e.g. "tcp://180.168.146.187:10201")
	NameServer  string // Optional name-server front, used instead of TradeFront when set
}

// Key returns the registry identity key for this descriptor.
func (d AccountDescriptor) Key() AccountKey {
	return NewAccountKey(d.BrokerID, d.AccountID)
}

// -----------------------------------------------------------------------------
// Session snapshots
// -----------------------------------------------------------------------------

// Order is a read-only projection of one working or finished order.
type Order struct {
	Key          string // Session-unique order key (front/session/order-ref)
	BrokerID     string
	AccountID    string
	InstrumentID string
	ExchangeID   string
	Direction    string // "buy" or "sell"
	Offset       string // "open", "close", "close_today"
	Price        float64
	Volume       int // Original volume
	VolumeTraded int
	VolumeLeft   int
	Status       string // Venue order status
	StatusMsg    string // Venue status description
	OrderSysID   string // Exchange-assigned id, empty until accepted
	InsertTime   string // Venue-reported insert time
	UpdatedAt    time.Time
}

// Trade is one fill reported by the venue.
type Trade struct {
	TradeID      string
	OrderKey     string
	InstrumentID string
	ExchangeID   string
	Direction    string
	Offset       string
	Price        float64
	Volume       int
	TradeTime    string
	TradingDay   string
}

// Position is one aggregated position line (per instrument and direction).
type Position struct {
	InstrumentID string
	Direction    string // "long" or "short"
	Volume       int
	TodayVolume  int
	OpenCost     float64
	PositionCost float64
	TradingDay   string
}

// PositionDetail is one open lot as reported by the position-detail query.
type PositionDetail struct {
	InstrumentID string
	Direction    string
	Volume       int
	OpenPrice    float64
	OpenDate     string
}

// Instrument describes one tradeable contract.
type Instrument struct {
	InstrumentID   string
	ExchangeID     string
	ProductID      string
	VolumeMultiple int
	PriceTick      float64
	ExpireDate     string
}

// MarketData is a depth-market-data snapshot for one instrument.
type MarketData struct {
	InstrumentID string
	LastPrice    float64
	BidPrice     float64
	BidVolume    int
	AskPrice     float64
	AskVolume    int
	UpperLimit   float64
	LowerLimit   float64
	UpdateTime   string
}

// FundsSnapshot is the trading-account funds state from the account query.
type FundsSnapshot struct {
	AccountID      string
	TradingDay     string
	Balance        float64
	Available      float64
	CurrMargin     float64
	CloseProfit    float64
	PositionProfit float64
}

// AccountStatus is the per-account row returned by registry aggregation.
type AccountStatus struct {
	BrokerID     string
	AccountID    string
	Status       string // Current session phase, or "stopped" when no session runs
	StatusDetail string // Human-readable detail (last error, stall reason)
}
