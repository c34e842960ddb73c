package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/g3trade/futures-gateway/internal/connector"
	"github.com/g3trade/futures-gateway/internal/event"
	"github.com/g3trade/futures-gateway/internal/model"
	"github.com/g3trade/futures-gateway/internal/session"
)

var (
	ErrDuplicateAccount = errors.New("account already exists")
	ErrAccountNotFound  = errors.New("account not found")
	ErrMissingAccountID = errors.New("account id must not be empty")
	ErrMissingBrokerID  = errors.New("broker id must not be empty")
	ErrMissingFront     = errors.New("trade front or name server must be set")
)

// Config holds registry tuning.
type Config struct {
	// EventBufferSize is the capacity of the domain-event forwarding
	// channel. Sessions block when it is full, so a sink that stops
	// draining stalls session progress.
	EventBufferSize int

	// ShutdownTimeout bounds how long Stop waits for session loops.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		EventBufferSize: 1000,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Registry owns the mapping from account key to live session.
type Registry struct {
	cfg    Config
	dial   connector.Dialer
	logger *slog.Logger

	// mu guards desired and sessions. It is held for map mutation and
	// lookups only, never across session network activity.
	mu       sync.Mutex
	desired  []model.AccountDescriptor
	sessions map[model.AccountKey]*session.Session

	events chan event.DomainEvent
}

// New creates a registry. dial is invoked once per created session to
// obtain its exclusively owned connector.
func New(cfg Config, dial connector.Dialer, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.EventBufferSize < 1 {
		cfg.EventBufferSize = def.EventBufferSize
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}

	return &Registry{
		cfg:      cfg,
		dial:     dial,
		logger:   logger,
		sessions: make(map[model.AccountKey]*session.Session),
		events:   make(chan event.DomainEvent, cfg.EventBufferSize),
	}
}

// Events returns the one-way domain-event channel for the external sink.
// Stop closes it once every session loop has exited.
func (r *Registry) Events() <-chan event.DomainEvent {
	return r.events
}

// Reconcile makes the live session set match the desired account set:
// sessions are created for new keys, left untouched for surviving keys,
// and signalled to tear down for removed keys. Invalid descriptors are
// logged and dropped; they never fail the whole reconciliation. Safe to
// call repeatedly with an unchanged set.
func (r *Registry) Reconcile(desired []model.AccountDescriptor) {
	valid := make([]model.AccountDescriptor, 0, len(desired))
	for _, d := range desired {
		if err := validateDescriptor(d); err != nil {
			r.logger.Error("skipping invalid account",
				"broker", d.BrokerID,
				"account", d.AccountID,
				"error", err,
			)
			continue
		}
		valid = append(valid, d)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.desired = valid
	r.syncLocked()
}

// AddAccount appends one account to the desired set and reconciles.
// Returns ErrDuplicateAccount when the identity key is already desired.
func (r *Registry) AddAccount(desc model.AccountDescriptor) error {
	if err := validateDescriptor(desc); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := desc.Key()
	for _, d := range r.desired {
		if d.Key() == key {
			return fmt.Errorf("%w: %s", ErrDuplicateAccount, key)
		}
	}

	r.desired = append(r.desired, desc)
	r.logger.Info("account added", "broker", desc.BrokerID, "account", desc.AccountID)
	r.syncLocked()
	return nil
}

// RemoveAccount drops one account from the desired set and reconciles,
// tearing down its session. Returns ErrAccountNotFound when absent.
func (r *Registry) RemoveAccount(brokerID, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := model.NewAccountKey(brokerID, accountID)
	idx := -1
	for i, d := range r.desired {
		if d.Key() == key {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, key)
	}

	r.desired = append(r.desired[:idx], r.desired[idx+1:]...)
	r.logger.Info("account removed", "broker", brokerID, "account", accountID)
	r.syncLocked()
	return nil
}

// syncLocked reconciles sessions against r.desired. Caller holds r.mu.
func (r *Registry) syncLocked() {
	desiredKeys := make(map[model.AccountKey]struct{}, len(r.desired))

	for _, d := range r.desired {
		key := d.Key()
		desiredKeys[key] = struct{}{}

		if _, ok := r.sessions[key]; ok {
			// Surviving sessions are never restarted on unchanged config.
			continue
		}

		conn, err := r.dial(d)
		if err != nil {
			r.logger.Error("failed to dial connector",
				"broker", d.BrokerID,
				"account", d.AccountID,
				"error", err,
			)
			continue
		}

		r.sessions[key] = session.New(d, conn, r.events, r.logger)
		r.logger.Info("session created", "broker", d.BrokerID, "account", d.AccountID)
	}

	for key, s := range r.sessions {
		if _, ok := desiredKeys[key]; ok {
			continue
		}
		// Optimistic removal: the teardown signal is sent and the entry
		// dropped without waiting for the session loop to finish releasing
		// the connector.
		s.Shutdown()
		delete(r.sessions, key)
		r.logger.Info("session teardown signalled", "key", string(key))
	}
}

// ListAccounts returns one status row per desired account. Each session's
// lock is taken independently and briefly, so rows may reflect slightly
// different instants; these are informational views, not transactional
// reads.
func (r *Registry) ListAccounts() []model.AccountStatus {
	r.mu.Lock()
	desired := make([]model.AccountDescriptor, len(r.desired))
	copy(desired, r.desired)
	sessions := make(map[model.AccountKey]*session.Session, len(r.sessions))
	for k, s := range r.sessions {
		sessions[k] = s
	}
	r.mu.Unlock()

	rows := make([]model.AccountStatus, 0, len(desired))
	for _, d := range desired {
		row := model.AccountStatus{
			BrokerID:  d.BrokerID,
			AccountID: d.AccountID,
			Status:    "stopped",
		}
		if s, ok := sessions[d.Key()]; ok {
			row.Status = s.Status()
			row.StatusDetail = s.StatusDetail()
		}
		rows = append(rows, row)
	}
	return rows
}

// ListOrders returns all orders across all live sessions.
func (r *Registry) ListOrders() []model.Order {
	var out []model.Order
	for _, s := range r.sessionList() {
		out = append(out, s.Orders()...)
	}
	return out
}

// GetOrder looks up one order by account identity and order key.
func (r *Registry) GetOrder(brokerID, accountID, key string) (model.Order, bool) {
	r.mu.Lock()
	s, ok := r.sessions[model.NewAccountKey(brokerID, accountID)]
	r.mu.Unlock()
	if !ok {
		return model.Order{}, false
	}
	return s.Order(key)
}

// SessionCount returns the number of live sessions.
func (r *Registry) SessionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Stop tears down every session, waits for their loops within the
// configured timeout (or ctx, whichever ends first), and closes the event
// channel. On timeout the channel stays open: a straggling session may
// still be publishing, and closing under it would panic the send.
func (r *Registry) Stop(ctx context.Context) error {
	r.mu.Lock()
	r.desired = nil
	sessions := make([]*session.Session, 0, len(r.sessions))
	for key, s := range r.sessions {
		sessions = append(sessions, s)
		delete(r.sessions, key)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		s.Shutdown()
	}

	deadline := time.After(r.cfg.ShutdownTimeout)
	var err error
	for _, s := range sessions {
		select {
		case <-s.Done():
		case <-deadline:
			err = errors.New("shutdown timeout waiting for sessions")
		case <-ctx.Done():
			err = ctx.Err()
		}
		if err != nil {
			break
		}
	}

	if err != nil {
		r.logger.Warn("registry stopped with pending sessions", "error", err)
		return err
	}

	close(r.events)
	r.logger.Info("registry stopped")
	return nil
}

func (r *Registry) sessionList() []*session.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*session.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// validateDescriptor checks the fields a session cannot be constructed
// without.
func validateDescriptor(d model.AccountDescriptor) error {
	if d.BrokerID == "" {
		return ErrMissingBrokerID
	}
	if d.AccountID == "" {
		return ErrMissingAccountID
	}
	if d.TradeFront == "" && d.NameServer == "" {
		return ErrMissingFront
	}
	return nil
}
