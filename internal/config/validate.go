package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
// Account entries are not validated here: the registry skips invalid
// descriptors at reconciliation time without failing the whole config.
func (c *GatewayConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.Registry.EventBufferSize < 1 {
		return errors.New("registry.event_buffer_size must be >= 1")
	}

	if c.Feed.Enabled {
		if c.Feed.Port < 1 || c.Feed.Port > 65535 {
			return fmt.Errorf("feed.port must be between 1 and 65535, got %d", c.Feed.Port)
		}
		if c.Feed.ClientBuffer < 1 {
			return errors.New("feed.client_buffer must be >= 1")
		}
	}

	if c.Journal.Enabled {
		if err := c.Journal.DB.validate("journal.db"); err != nil {
			return err
		}
		if c.Journal.BatchSize < 1 {
			return errors.New("journal.batch_size must be >= 1")
		}
		if c.Journal.BufferSize < 1 {
			return errors.New("journal.buffer_size must be >= 1")
		}
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
