package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultEventBufferSize = 1000
	DefaultShutdownTimeout = 30 * time.Second
	DefaultFeedPort        = 8080
	DefaultClientBuffer    = 256
	DefaultDBPort          = 5432
	DefaultDBSSLMode       = "prefer"
	DefaultMaxConns        = 4
	DefaultMinConns        = 1
	DefaultBatchSize       = 500
	DefaultFlushInterval   = 1 * time.Second
	DefaultBufferSize      = 4096
)

func (c *GatewayConfig) applyDefaults() {
	// Registry defaults
	if c.Registry.EventBufferSize == 0 {
		c.Registry.EventBufferSize = DefaultEventBufferSize
	}
	if c.Registry.ShutdownTimeout == 0 {
		c.Registry.ShutdownTimeout = DefaultShutdownTimeout
	}

	// Feed defaults
	if c.Feed.Port == 0 {
		c.Feed.Port = DefaultFeedPort
	}
	if c.Feed.ClientBuffer == 0 {
		c.Feed.ClientBuffer = DefaultClientBuffer
	}

	// Journal defaults
	if c.Journal.BatchSize == 0 {
		c.Journal.BatchSize = DefaultBatchSize
	}
	if c.Journal.FlushInterval == 0 {
		c.Journal.FlushInterval = DefaultFlushInterval
	}
	if c.Journal.BufferSize == 0 {
		c.Journal.BufferSize = DefaultBufferSize
	}
	if c.Journal.Enabled {
		applyDBDefaults(&c.Journal.DB)
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
