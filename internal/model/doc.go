// Package model defines the domain value types shared across the gateway:
// account descriptors, order/trade/position snapshots, and the read-only
// projections exposed to external consumers.
package model
