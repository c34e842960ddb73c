package session

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/g3trade/futures-gateway/internal/connector"
	"github.com/g3trade/futures-gateway/internal/event"
	"github.com/g3trade/futures-gateway/internal/model"
)

func testDescriptor() model.AccountDescriptor {
	return model.AccountDescriptor{
		BrokerID:    "9999",
		AccountID:   "1001",
		Password:    "secret",
		AuthCode:    "0000000000000000",
		ProductInfo: "gw",
		AppID:       "gw_app_1.0",
		TradeFront:  "tcp://127.0.0.1:10201",
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSession(t *testing.T) (*Session, *connector.Fake, chan event.DomainEvent) {
	t.Helper()
	fake := connector.NewFake()
	sink := make(chan event.DomainEvent, 32)
	s := New(testDescriptor(), fake, sink, quietLogger())
	t.Cleanup(func() {
		s.Shutdown()
		select {
		case <-s.Done():
		case <-time.After(2 * time.Second):
		}
	})
	return s, fake, sink
}

func waitPhase(t *testing.T, s *Session, want Phase) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.Phase() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("phase = %q, want %q (detail %q)", s.Phase(), want, s.StatusDetail())
}

func waitDone(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session loop did not exit")
	}
}

func recvEvent(t *testing.T, sink chan event.DomainEvent) event.DomainEvent {
	t.Helper()
	select {
	case ev := <-sink:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no domain event received")
		return event.DomainEvent{}
	}
}

// drainUntilReady consumes sink events up to and including SessionReady.
func drainUntilReady(t *testing.T, sink chan event.DomainEvent) {
	t.Helper()
	for {
		if ev := recvEvent(t, sink); ev.Kind == event.SessionReady {
			return
		}
	}
}

// emitToReady scripts the full inbound response sequence from connect to
// the final trade-query page.
func emitToReady(f *connector.Fake) {
	f.Emit(connector.Event{Kind: connector.FrontConnected})
	f.Emit(connector.Event{Kind: connector.RspAuthenticate})
	f.Emit(connector.Event{Kind: connector.RspUserLogin})
	f.Emit(connector.Event{Kind: connector.RspSettlementConfirm})
	f.Emit(connector.Event{Kind: connector.RspQryAccount, IsLast: true, Funds: &model.FundsSnapshot{
		AccountID:  "1001",
		TradingDay: "20260901",
		Balance:    1_000_000,
		Available:  980_000,
	}})
	f.Emit(connector.Event{Kind: connector.RspQryPositionDetail, IsLast: true})
	f.Emit(connector.Event{Kind: connector.RspQryPosition, IsLast: true, Position: &model.Position{
		InstrumentID: "rb2610",
		Direction:    "long",
		Volume:       2,
	}})
	f.Emit(connector.Event{Kind: connector.RspQryInstrument, IsLast: true, Instrument: &model.Instrument{
		InstrumentID:   "rb2610",
		ExchangeID:     "SHFE",
		VolumeMultiple: 10,
		PriceTick:      1,
	}})
	f.Emit(connector.Event{Kind: connector.RspQryMarketData, IsLast: true, MarketData: &model.MarketData{
		InstrumentID: "rb2610",
		LastPrice:    3300,
	}})
	f.Emit(connector.Event{Kind: connector.RspQryOrder, IsLast: true})
	f.Emit(connector.Event{Kind: connector.RspQryTrade, IsLast: true})
}

func TestPipelineReachesReady(t *testing.T) {
	s, fake, sink := newTestSession(t)

	emitToReady(fake)
	waitPhase(t, s, PhaseReady)

	wantKinds := []connector.RequestKind{
		connector.ReqAuthenticate,
		connector.ReqLogin,
		connector.ReqConfirmSettlement,
		connector.ReqQryAccount,
		connector.ReqQryPositionDetail,
		connector.ReqQryPosition,
		connector.ReqQryInstrument,
		connector.ReqQryMarketData,
		connector.ReqQryOrder,
		connector.ReqQryTrade,
	}

	reqs := fake.Requests()
	if len(reqs) != len(wantKinds) {
		t.Fatalf("submitted %d requests, want %d", len(reqs), len(wantKinds))
	}
	for i, want := range wantKinds {
		if reqs[i].Request.Kind != want {
			t.Errorf("request[%d].Kind = %q, want %q", i, reqs[i].Request.Kind, want)
		}
		if wantID := int64(requestIDSeed + 1 + i); reqs[i].RequestID != wantID {
			t.Errorf("request[%d].RequestID = %d, want %d", i, reqs[i].RequestID, wantID)
		}
	}

	// The account query publishes the funds snapshot, then readiness.
	ev := recvEvent(t, sink)
	if ev.Kind != event.FundsUpdated {
		t.Errorf("first domain event kind = %q, want %q", ev.Kind, event.FundsUpdated)
	}
	if ev.Funds == nil || ev.Funds.Balance != 1_000_000 {
		t.Errorf("funds payload = %+v, want balance 1000000", ev.Funds)
	}
	if ev = recvEvent(t, sink); ev.Kind != event.SessionReady {
		t.Errorf("second domain event kind = %q, want %q", ev.Kind, event.SessionReady)
	}

	if got := s.Funds(); got.Balance != 1_000_000 || got.TradingDay != "20260901" {
		t.Errorf("funds = %+v, want balance 1000000 on 20260901", got)
	}
	if got := s.Positions(); len(got) != 1 || got[0].InstrumentID != "rb2610" {
		t.Errorf("positions = %+v, want one rb2610 line", got)
	}
}

func TestRequestIdentityFields(t *testing.T) {
	s, fake, _ := newTestSession(t)

	fake.Emit(connector.Event{Kind: connector.FrontConnected})
	waitPhase(t, s, PhaseAuthenticating)
	fake.Emit(connector.Event{Kind: connector.RspAuthenticate})
	waitPhase(t, s, PhaseLoggingIn)

	reqs := fake.Requests()
	if len(reqs) != 2 {
		t.Fatalf("submitted %d requests, want 2", len(reqs))
	}

	auth := reqs[0]
	if auth.RequestID != 11 {
		t.Errorf("authenticate request id = %d, want 11", auth.RequestID)
	}
	if auth.Request.BrokerID != "9999" || auth.Request.AuthCode != "0000000000000000" || auth.Request.AppID != "gw_app_1.0" {
		t.Errorf("authenticate request = %+v, missing identity fields", auth.Request)
	}

	login := reqs[1]
	if login.RequestID != 12 {
		t.Errorf("login request id = %d, want 12", login.RequestID)
	}
	if login.Request.AccountID != "1001" || login.Request.Password != "secret" {
		t.Errorf("login request = %+v, missing credentials", login.Request)
	}
}

func TestOrderQueryBatchAccumulates(t *testing.T) {
	s, fake, _ := newTestSession(t)

	fake.Emit(connector.Event{Kind: connector.FrontConnected})
	fake.Emit(connector.Event{Kind: connector.RspAuthenticate})
	fake.Emit(connector.Event{Kind: connector.RspUserLogin})
	fake.Emit(connector.Event{Kind: connector.RspSettlementConfirm})
	fake.Emit(connector.Event{Kind: connector.RspQryAccount, IsLast: true})
	fake.Emit(connector.Event{Kind: connector.RspQryPositionDetail, IsLast: true})
	fake.Emit(connector.Event{Kind: connector.RspQryPosition, IsLast: true})
	fake.Emit(connector.Event{Kind: connector.RspQryInstrument, IsLast: true})
	fake.Emit(connector.Event{Kind: connector.RspQryMarketData, IsLast: true})
	waitPhase(t, s, PhaseQueryingOrders)

	for i, last := range []bool{false, false, false, true} {
		fake.Emit(connector.Event{
			Kind:   connector.RspQryOrder,
			IsLast: last,
			Order:  &model.Order{Key: "1:1:" + string(rune('a'+i)), InstrumentID: "rb2610"},
		})
	}
	waitPhase(t, s, PhaseQueryingTrades)

	if got := s.Orders(); len(got) != 4 {
		t.Fatalf("orders = %d, want 4", len(got))
	}

	// Only the last batch record may advance the pipeline.
	tradeQueries := 0
	for _, r := range fake.Requests() {
		if r.Request.Kind == connector.ReqQryTrade {
			tradeQueries++
		}
	}
	if tradeQueries != 1 {
		t.Errorf("qry_trade submitted %d times, want 1", tradeQueries)
	}
}

func TestShutdownReleasesConnector(t *testing.T) {
	s, fake, _ := newTestSession(t)

	s.Shutdown()
	waitDone(t, s)

	if got := fake.ReleaseCount(); got != 1 {
		t.Errorf("release count = %d, want 1", got)
	}
	if got := s.Phase(); got != PhaseExited {
		t.Errorf("phase = %q, want %q", got, PhaseExited)
	}

	// Idempotent.
	s.Shutdown()
	if got := fake.ReleaseCount(); got != 1 {
		t.Errorf("release count after second shutdown = %d, want 1", got)
	}
}

func TestAuthenticationRejectedFailsSession(t *testing.T) {
	s, fake, sink := newTestSession(t)

	fake.Emit(connector.Event{Kind: connector.FrontConnected})
	fake.Emit(connector.Event{Kind: connector.RspAuthenticate, Code: 63, Message: "invalid auth code"})
	waitDone(t, s)

	if got := s.Phase(); got != PhaseFailed {
		t.Errorf("phase = %q, want %q", got, PhaseFailed)
	}
	if detail := s.StatusDetail(); !strings.Contains(detail, "invalid auth code") {
		t.Errorf("detail = %q, want it to mention the rejection message", detail)
	}
	if got := fake.ReleaseCount(); got != 1 {
		t.Errorf("release count = %d, want 1", got)
	}

	ev := recvEvent(t, sink)
	if ev.Kind != event.SessionFatal {
		t.Errorf("domain event kind = %q, want %q", ev.Kind, event.SessionFatal)
	}
	if ev.BrokerID != "9999" || ev.AccountID != "1001" {
		t.Errorf("event identity = %s/%s, want 9999/1001", ev.BrokerID, ev.AccountID)
	}
}

func TestDisconnectEntersTerminalPhase(t *testing.T) {
	s, fake, sink := newTestSession(t)

	emitToReady(fake)
	waitPhase(t, s, PhaseReady)
	drainUntilReady(t, sink)

	fake.Emit(connector.Event{Kind: connector.FrontDisconnected, Reason: 0x1001})
	waitDone(t, s)

	if got := s.Phase(); got != PhaseDisconnected {
		t.Errorf("phase = %q, want %q", got, PhaseDisconnected)
	}
	if got := fake.ReleaseCount(); got != 1 {
		t.Errorf("release count = %d, want 1", got)
	}
	if ev := recvEvent(t, sink); ev.Kind != event.SessionDown {
		t.Errorf("domain event kind = %q, want %q", ev.Kind, event.SessionDown)
	}
}

func TestOrderAndTradeUpdatesWhenReady(t *testing.T) {
	s, fake, sink := newTestSession(t)

	emitToReady(fake)
	waitPhase(t, s, PhaseReady)
	drainUntilReady(t, sink)

	fake.Emit(connector.Event{Kind: connector.OrderUpdate, Order: &model.Order{
		Key:          "1:1:000001",
		InstrumentID: "rb2610",
		Direction:    "buy",
		Status:       "all_traded",
	}})
	ev := recvEvent(t, sink)
	if ev.Kind != event.OrderChanged {
		t.Fatalf("domain event kind = %q, want %q", ev.Kind, event.OrderChanged)
	}
	if ev.Order == nil || ev.Order.Key != "1:1:000001" {
		t.Fatalf("event order = %+v, want key 1:1:000001", ev.Order)
	}
	if got, ok := s.Order("1:1:000001"); !ok || got.Status != "all_traded" {
		t.Errorf("snapshot order = %+v (ok=%v), want all_traded", got, ok)
	}

	fake.Emit(connector.Event{Kind: connector.TradeUpdate, Trade: &model.Trade{
		TradeID:      "T0001",
		OrderKey:     "1:1:000001",
		InstrumentID: "rb2610",
		Volume:       1,
	}})
	ev = recvEvent(t, sink)
	if ev.Kind != event.TradeFilled {
		t.Fatalf("domain event kind = %q, want %q", ev.Kind, event.TradeFilled)
	}
	if ev.Trade == nil || ev.Trade.TradeID != "T0001" {
		t.Errorf("event trade = %+v, want id T0001", ev.Trade)
	}
}

func TestSubmitRejectionStallsPipeline(t *testing.T) {
	s, fake, _ := newTestSession(t)
	fake.FailKind(connector.ReqLogin, 3)

	fake.Emit(connector.Event{Kind: connector.FrontConnected})
	fake.Emit(connector.Event{Kind: connector.RspAuthenticate})
	waitPhase(t, s, PhaseAuthenticating)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.StatusDetail() != "" {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}

	if got := s.Phase(); got != PhaseAuthenticating {
		t.Errorf("phase = %q, want stalled in %q", got, PhaseAuthenticating)
	}
	if detail := s.StatusDetail(); !strings.Contains(detail, "rejected") {
		t.Errorf("detail = %q, want a submit rejection note", detail)
	}
	if len(fake.Requests()) != 2 {
		t.Errorf("submitted %d requests, want 2 (no retry)", len(fake.Requests()))
	}
}

func TestRequestIDsStrictlyIncrease(t *testing.T) {
	s, fake, _ := newTestSession(t)

	emitToReady(fake)
	waitPhase(t, s, PhaseReady)

	var prev int64
	for i, r := range fake.Requests() {
		if r.RequestID <= prev {
			t.Errorf("request[%d] id %d not greater than previous %d", i, r.RequestID, prev)
		}
		prev = r.RequestID
	}
	if next := s.NextRequestID(); next != prev+1 {
		t.Errorf("next request id = %d, want %d", next, prev+1)
	}
}
