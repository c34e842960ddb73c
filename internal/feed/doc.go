// Package feed exposes the gateway's domain events to external consumers
// over a websocket endpoint, plus a JSON health endpoint reporting
// per-account session status. Slow consumers are disconnected rather than
// allowed to backpressure the gateway.
package feed
