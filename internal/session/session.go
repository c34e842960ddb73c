package session

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/g3trade/futures-gateway/internal/connector"
	"github.com/g3trade/futures-gateway/internal/event"
	"github.com/g3trade/futures-gateway/internal/model"
)

// requestIDSeed is the initial value of the correlation counter; the first
// request is tagged seed+1.
const requestIDSeed = 10

// Session drives one account through the venue query pipeline and surfaces
// the resulting domain state. It is created by the registry and torn down
// either by Shutdown or by a terminal connector event.
type Session struct {
	desc   model.AccountDescriptor
	conn   connector.Connector
	sink   chan<- event.DomainEvent
	logger *slog.Logger

	// mu guards phase, detail, requestID, and the snapshot maps. The event
	// loop is the only writer of phase and the snapshots; external readers
	// hold mu only long enough to copy.
	mu        sync.Mutex
	phase     Phase
	detail    string
	requestID int64

	funds           model.FundsSnapshot
	orders          map[string]model.Order
	trades          map[string]model.Trade
	positions       []model.Position
	positionDetails []model.PositionDetail
	instruments     map[string]model.Instrument
	marketData      map[string]model.MarketData

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}
}

// New constructs a session around an exclusively owned connector and starts
// its event loop. sink receives the session's domain events; sends block
// when the sink is full, which intentionally backpressures the pipeline.
func New(desc model.AccountDescriptor, conn connector.Connector, sink chan<- event.DomainEvent, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Session{
		desc:        desc,
		conn:        conn,
		sink:        sink,
		logger:      logger.With("broker", desc.BrokerID, "account", desc.AccountID),
		phase:       PhaseConnecting,
		requestID:   requestIDSeed,
		orders:      make(map[string]model.Order),
		trades:      make(map[string]model.Trade),
		instruments: make(map[string]model.Instrument),
		marketData:  make(map[string]model.MarketData),
		shutdown:    make(chan struct{}),
		done:        make(chan struct{}),
	}

	go s.run()
	return s
}

// Descriptor returns the immutable account descriptor.
func (s *Session) Descriptor() model.AccountDescriptor {
	return s.desc
}

// Key returns the session's registry identity key.
func (s *Session) Key() model.AccountKey {
	return s.desc.Key()
}

// Shutdown signals cooperative teardown. The loop observes the signal at
// its next scheduling point, releases the connector, and exits. Idempotent.
func (s *Session) Shutdown() {
	s.shutdownOnce.Do(func() {
		close(s.shutdown)
	})
}

// Done is closed when the event loop has exited and the connector is
// released.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Phase returns the current pipeline phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Status returns the phase as a status string.
func (s *Session) Status() string {
	return string(s.Phase())
}

// StatusDetail returns the last recorded error or stall description.
func (s *Session) StatusDetail() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detail
}

// NextRequestID increments and returns the correlation counter. The counter
// is strictly increasing for the session lifetime and is never reused.
func (s *Session) NextRequestID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requestID++
	return s.requestID
}

// Funds returns the latest trading-account funds snapshot.
func (s *Session) Funds() model.FundsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.funds
}

// Orders returns a copy of all known orders.
func (s *Session) Orders() []model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o)
	}
	return out
}

// Order returns one order by its session-unique key.
func (s *Session) Order(key string) (model.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[key]
	return o, ok
}

// Positions returns a copy of the aggregated position lines.
func (s *Session) Positions() []model.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Position, len(s.positions))
	copy(out, s.positions)
	return out
}

// run is the session event loop: it races the connector's event stream
// against the teardown signal and processes exactly one of them per
// iteration. This is the only place phase transitions occur.
func (s *Session) run() {
	defer close(s.done)

	for {
		select {
		case <-s.shutdown:
			s.logger.Info("teardown signal received, releasing connector")
			s.conn.Release()
			s.setPhase(PhaseExited, "")
			return

		case ev, ok := <-s.conn.Events():
			if !ok {
				s.logger.Warn("connector event stream closed")
				s.setPhase(PhaseExited, "event stream closed")
				return
			}
			if s.handleEvent(ev) {
				return
			}
		}
	}
}

// handleEvent processes one inbound connector event. It returns true when
// the loop must exit (disconnect or fatal authentication rejection).
func (s *Session) handleEvent(ev connector.Event) (exit bool) {
	switch ev.Kind {
	case connector.FrontConnected:
		s.logger.Info("front connected")
		s.submit(connector.Request{
			Kind:        connector.ReqAuthenticate,
			BrokerID:    s.desc.BrokerID,
			AccountID:   s.desc.AccountID,
			AuthCode:    s.desc.AuthCode,
			ProductInfo: s.desc.ProductInfo,
			AppID:       s.desc.AppID,
		}, PhaseAuthenticating)

	case connector.FrontDisconnected:
		s.logger.Warn("front disconnected", "reason", ev.Reason)
		s.publish(event.DomainEvent{
			Kind:   event.SessionDown,
			Detail: fmt.Sprintf("front disconnected: reason %d", ev.Reason),
		})
		s.conn.Release()
		s.setPhase(PhaseDisconnected, fmt.Sprintf("front disconnected: reason %d", ev.Reason))
		return true

	case connector.RspAuthenticate:
		if ev.Code != 0 {
			s.logger.Error("authentication rejected", "code", ev.Code, "message", ev.Message)
			s.publish(event.DomainEvent{
				Kind:   event.SessionFatal,
				Detail: fmt.Sprintf("authentication rejected: %s (code %d)", ev.Message, ev.Code),
			})
			s.conn.Release()
			s.setPhase(PhaseFailed, fmt.Sprintf("authentication rejected: %s (code %d)", ev.Message, ev.Code))
			return true
		}
		s.submit(connector.Request{
			Kind:      connector.ReqLogin,
			BrokerID:  s.desc.BrokerID,
			AccountID: s.desc.AccountID,
			Password:  s.desc.Password,
		}, PhaseLoggingIn)

	case connector.RspUserLogin:
		if ev.Code != 0 {
			// Login errors are logged but do not stop the pipeline.
			s.logger.Error("login failed", "code", ev.Code, "message", ev.Message)
		}
		s.submit(connector.Request{
			Kind:      connector.ReqConfirmSettlement,
			BrokerID:  s.desc.BrokerID,
			AccountID: s.desc.AccountID,
		}, PhaseConfirmingSettlement)

	case connector.RspSettlementConfirm:
		s.submit(connector.Request{
			Kind:      connector.ReqQryAccount,
			BrokerID:  s.desc.BrokerID,
			AccountID: s.desc.AccountID,
		}, PhaseQueryingAccount)

	case connector.RspQryAccount:
		if ev.Funds != nil {
			s.mu.Lock()
			s.funds = *ev.Funds
			s.mu.Unlock()
			s.logger.Info("trading account queried",
				"trading_day", ev.Funds.TradingDay,
				"balance", ev.Funds.Balance,
			)
			s.publish(event.DomainEvent{Kind: event.FundsUpdated, Funds: ev.Funds})
		}
		if ev.IsLast {
			s.submit(connector.Request{
				Kind:      connector.ReqQryPositionDetail,
				BrokerID:  s.desc.BrokerID,
				AccountID: s.desc.AccountID,
			}, PhaseQueryingPositionDetail)
		}

	case connector.RspQryPositionDetail:
		if ev.PositionDetail != nil {
			s.mu.Lock()
			s.positionDetails = append(s.positionDetails, *ev.PositionDetail)
			s.mu.Unlock()
		}
		if ev.IsLast {
			s.logger.Info("position detail query complete")
			s.submit(connector.Request{
				Kind:      connector.ReqQryPosition,
				BrokerID:  s.desc.BrokerID,
				AccountID: s.desc.AccountID,
			}, PhaseQueryingPosition)
		}

	case connector.RspQryPosition:
		if ev.Position != nil {
			s.mu.Lock()
			s.positions = append(s.positions, *ev.Position)
			s.mu.Unlock()
		}
		if ev.IsLast {
			s.logger.Info("position query complete")
			s.submit(connector.Request{Kind: connector.ReqQryInstrument}, PhaseQueryingInstrument)
		}

	case connector.RspQryInstrument:
		if ev.Instrument != nil {
			s.mu.Lock()
			s.instruments[ev.Instrument.InstrumentID] = *ev.Instrument
			s.mu.Unlock()
		}
		if ev.IsLast {
			s.logger.Info("instrument query complete", "instruments", s.instrumentCount())
			s.submit(connector.Request{Kind: connector.ReqQryMarketData}, PhaseQueryingMarketData)
		}

	case connector.RspQryMarketData:
		if ev.MarketData != nil {
			s.mu.Lock()
			s.marketData[ev.MarketData.InstrumentID] = *ev.MarketData
			s.mu.Unlock()
		}
		if ev.IsLast {
			s.logger.Info("market data query complete")
			s.submit(connector.Request{
				Kind:      connector.ReqQryOrder,
				BrokerID:  s.desc.BrokerID,
				AccountID: s.desc.AccountID,
			}, PhaseQueryingOrders)
		}

	case connector.RspQryOrder:
		if ev.Order != nil {
			s.storeOrder(*ev.Order)
		}
		if ev.IsLast {
			s.logger.Info("order query complete", "orders", s.orderCount())
			s.submit(connector.Request{
				Kind:      connector.ReqQryTrade,
				BrokerID:  s.desc.BrokerID,
				AccountID: s.desc.AccountID,
			}, PhaseQueryingTrades)
		}

	case connector.RspQryTrade:
		if ev.Trade != nil {
			s.mu.Lock()
			s.trades[ev.Trade.TradeID] = *ev.Trade
			s.mu.Unlock()
		}
		if ev.IsLast {
			s.logger.Info("trade query complete, session ready")
			s.setPhase(PhaseReady, "")
			s.publish(event.DomainEvent{Kind: event.SessionReady})
		}

	case connector.OrderUpdate:
		if ev.Order != nil {
			s.storeOrder(*ev.Order)
			s.publish(event.DomainEvent{Kind: event.OrderChanged, Order: ev.Order})
		}

	case connector.TradeUpdate:
		if ev.Trade != nil {
			s.mu.Lock()
			s.trades[ev.Trade.TradeID] = *ev.Trade
			s.mu.Unlock()
			s.publish(event.DomainEvent{Kind: event.TradeFilled, Trade: ev.Trade})
		}

	default:
		s.logger.Debug("ignoring event", "kind", ev.Kind)
	}

	return false
}

// submit tags the request with a fresh correlation id and sends it. On a
// non-zero accept code the pipeline stalls in the current phase: the error
// is logged and recorded, and no retry is attempted.
func (s *Session) submit(req connector.Request, next Phase) {
	id := s.NextRequestID()
	if code := s.conn.Submit(req, id); code != 0 {
		s.logger.Error("request submit rejected",
			"request", req.Kind,
			"request_id", id,
			"code", code,
		)
		s.setDetail(fmt.Sprintf("submit %s rejected: code %d", req.Kind, code))
		return
	}
	s.setPhase(next, "")
}

// publish forwards a domain event to the sink, stamping identity. The send
// blocks while the sink is full; teardown remains observable since the
// shutdown channel is raced alongside the send.
func (s *Session) publish(ev event.DomainEvent) {
	ev.ID = uuid.New()
	ev.BrokerID = s.desc.BrokerID
	ev.AccountID = s.desc.AccountID
	ev.At = time.Now()

	select {
	case s.sink <- ev:
	case <-s.shutdown:
	}
}

func (s *Session) storeOrder(o model.Order) {
	o.UpdatedAt = time.Now()
	s.mu.Lock()
	s.orders[o.Key] = o
	s.mu.Unlock()
}

func (s *Session) setPhase(p Phase, detail string) {
	s.mu.Lock()
	s.phase = p
	s.detail = detail
	s.mu.Unlock()
}

func (s *Session) setDetail(detail string) {
	s.mu.Lock()
	s.detail = detail
	s.mu.Unlock()
}

func (s *Session) instrumentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.instruments)
}

func (s *Session) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}
