// Package session implements the per-account protocol state machine.
//
// A Session:
//   - Exclusively owns one venue connector handle
//   - Drives the fixed query pipeline (authenticate → login →
//     settlement-confirm → account/position/instrument/market-data/
//     order/trade queries) from asynchronous connector events
//   - Tags every outbound request with a strictly increasing
//     correlation id
//   - Publishes domain events to the registry's sink once ready
//
// All phase transitions happen on the session's own event loop; external
// readers only take the session lock briefly to copy snapshots.
package session
