package connector

import "github.com/g3trade/futures-gateway/internal/model"

// RequestKind identifies an outbound request type.
type RequestKind string

const (
	ReqAuthenticate      RequestKind = "authenticate"
	ReqLogin             RequestKind = "login"
	ReqConfirmSettlement RequestKind = "confirm_settlement"
	ReqQryAccount        RequestKind = "qry_account"
	ReqQryPositionDetail RequestKind = "qry_position_detail"
	ReqQryPosition       RequestKind = "qry_position"
	ReqQryInstrument     RequestKind = "qry_instrument"
	ReqQryMarketData     RequestKind = "qry_market_data"
	ReqQryOrder          RequestKind = "qry_order"
	ReqQryTrade          RequestKind = "qry_trade"
)

// Request is an outbound request to the venue. Only the fields relevant to
// the Kind are populated; the instrument-wide queries carry no identity.
type Request struct {
	Kind        RequestKind
	BrokerID    string
	AccountID   string
	Password    string
	AuthCode    string
	ProductInfo string
	AppID       string
}

// EventKind identifies an inbound event type.
type EventKind string

const (
	FrontConnected       EventKind = "front_connected"
	FrontDisconnected    EventKind = "front_disconnected"
	RspAuthenticate      EventKind = "rsp_authenticate"
	RspUserLogin         EventKind = "rsp_user_login"
	RspSettlementConfirm EventKind = "rsp_settlement_confirm"
	RspQryAccount        EventKind = "rsp_qry_account"
	RspQryPositionDetail EventKind = "rsp_qry_position_detail"
	RspQryPosition       EventKind = "rsp_qry_position"
	RspQryInstrument     EventKind = "rsp_qry_instrument"
	RspQryMarketData     EventKind = "rsp_qry_market_data"
	RspQryOrder          EventKind = "rsp_qry_order"
	RspQryTrade          EventKind = "rsp_qry_trade"
	OrderUpdate          EventKind = "order_update"
	TradeUpdate          EventKind = "trade_update"
)

// Event is one inbound connector event. Query responses may arrive in
// multi-record batches; IsLast marks the final record of a batch. Record
// pointers are nil when the response carries no record.
type Event struct {
	Kind EventKind

	// Result code and message from the response payload (0 = success).
	Code    int
	Message string

	// IsLast marks the final record of a paginated response batch.
	IsLast bool

	// Reason carries the venue disconnect reason for FrontDisconnected.
	Reason int

	Funds          *model.FundsSnapshot
	Position       *model.Position
	PositionDetail *model.PositionDetail
	Instrument     *model.Instrument
	MarketData     *model.MarketData
	Order          *model.Order
	Trade          *model.Trade
}

// Connector is the opaque venue connector handle. A connector is owned
// exclusively by one session; no other component may call into it.
type Connector interface {
	// Submit sends a typed request tagged with the caller-supplied
	// correlation id. The returned code is the synchronous accept result
	// (0 = accepted); the response arrives later on Events.
	Submit(req Request, requestID int64) int

	// Events returns the inbound event stream. The channel is closed only
	// when the connector is released.
	Events() <-chan Event

	// Release frees the connector's resources. Idempotent.
	Release()
}

// Dialer constructs a connector for one account descriptor. Implementations
// must only enqueue the initial connect; they must not block on network I/O.
type Dialer func(model.AccountDescriptor) (Connector, error)
