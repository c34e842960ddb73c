package journal

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/g3trade/futures-gateway/internal/event"
	"github.com/g3trade/futures-gateway/internal/queue"
)

// Config holds journal writer settings.
type Config struct {
	BatchSize     int
	FlushInterval time.Duration
	BufferSize    int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     500,
		FlushInterval: time.Second,
		BufferSize:    4096,
	}
}

// Metrics counts journal writer activity.
type Metrics struct {
	Inserts   int64
	Conflicts int64
	Flushes   int64
	Errors    int64
	Dropped   int64
}

// eventRow is one gateway_events row ready for insert.
type eventRow struct {
	ID        string
	Kind      string
	BrokerID  string
	AccountID string
	At        time.Time
	Detail    string
	Payload   []byte
}

// batcher is the part of pgxpool.Pool the writer uses, split out so the
// database can be stood in for.
type batcher interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Writer consumes domain events from its staging buffer and appends them to
// the gateway_events table in batches.
type Writer struct {
	cfg    Config
	db     batcher
	logger *slog.Logger

	input *queue.Buffer[event.DomainEvent]

	batchMu sync.Mutex
	batch   []eventRow
	metrics Metrics

	flushTicker *time.Ticker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWriter creates a journal writer backed by db.
func NewWriter(cfg Config, db *pgxpool.Pool, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.BatchSize < 1 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.BufferSize < 1 {
		cfg.BufferSize = def.BufferSize
	}

	w := &Writer{
		cfg:    cfg,
		logger: logger,
		input:  queue.New[event.DomainEvent](cfg.BufferSize),
		batch:  make([]eventRow, 0, cfg.BatchSize),
	}
	if db != nil {
		w.db = db
	}
	return w
}

// Enqueue stages one event for persistence. Never blocks the caller; events
// arriving after Stop are counted as dropped.
func (w *Writer) Enqueue(ev event.DomainEvent) {
	if !w.input.Send(ev) {
		w.batchMu.Lock()
		w.metrics.Dropped++
		w.batchMu.Unlock()
	}
}

// Start begins the consume and flush loops.
func (w *Writer) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	w.wg.Add(1)
	go w.consumeLoop()

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("journal writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop drains the staging buffer and performs a final flush under the
// caller's context. The loop context is cancelled first, so the final
// flush must not reuse it.
func (w *Writer) Stop(ctx context.Context) error {
	w.logger.Info("stopping journal writer")

	w.input.Close()
	if w.cancel != nil {
		w.cancel()
	}
	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("journal writer stop timed out")
	}

	// Anything still staged gets one last chance.
	for _, ev := range w.input.Drain(0) {
		w.stage(ctx, ev)
	}
	w.flush(ctx)

	w.logger.Info("journal writer stopped")
	return nil
}

// Stats returns current metrics.
func (w *Writer) Stats() Metrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

func (w *Writer) consumeLoop() {
	defer w.wg.Done()

	for {
		ev, ok := w.input.TryReceive()
		if !ok {
			select {
			case <-w.ctx.Done():
				return
			case <-time.After(10 * time.Millisecond):
				continue
			}
		}
		w.stage(w.ctx, ev)
	}
}

func (w *Writer) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.flush(w.ctx)
		}
	}
}

// stage transforms an event and appends it to the current batch, flushing
// when the batch is full.
func (w *Writer) stage(ctx context.Context, ev event.DomainEvent) {
	row := transform(ev)

	w.batchMu.Lock()
	w.batch = append(w.batch, row)
	shouldFlush := len(w.batch) >= w.cfg.BatchSize
	w.batchMu.Unlock()

	if shouldFlush {
		w.flush(ctx)
	}
}

// transform converts a domain event to its row form. The payload column
// carries whichever record the event references, as JSON.
func transform(ev event.DomainEvent) eventRow {
	var payload []byte
	switch {
	case ev.Order != nil:
		payload, _ = json.Marshal(ev.Order)
	case ev.Trade != nil:
		payload, _ = json.Marshal(ev.Trade)
	case ev.Funds != nil:
		payload, _ = json.Marshal(ev.Funds)
	}

	return eventRow{
		ID:        ev.ID.String(),
		Kind:      string(ev.Kind),
		BrokerID:  ev.BrokerID,
		AccountID: ev.AccountID,
		At:        ev.At,
		Detail:    ev.Detail,
		Payload:   payload,
	}
}

// flush writes the current batch to the database.
func (w *Writer) flush(ctx context.Context) {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}
	batch := w.batch
	w.batch = make([]eventRow, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	if w.db == nil {
		return
	}

	start := time.Now()
	conflicts, err := w.batchInsert(ctx, batch)
	if err != nil {
		w.logger.Error("batch insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return
	}

	w.batchMu.Lock()
	w.metrics.Inserts += int64(len(batch) - conflicts)
	w.metrics.Conflicts += int64(conflicts)
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed events",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING, so
// a replayed event id is silently skipped.
func (w *Writer) batchInsert(ctx context.Context, rows []eventRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO gateway_events (event_id, kind, broker_id, account_id, at, detail, payload)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (event_id) DO NOTHING
		`, r.ID, r.Kind, r.BrokerID, r.AccountID, r.At, r.Detail, r.Payload)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
