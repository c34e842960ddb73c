// Package journal persists domain events to Postgres as an append-only
// telemetry trail. Events are staged in an in-memory buffer and flushed in
// batches; the journal is write-only and the gateway never reads it back,
// so a journal outage degrades telemetry, not trading state.
package journal
