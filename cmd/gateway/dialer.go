package main

import (
	"errors"

	"github.com/g3trade/futures-gateway/internal/connector"
	"github.com/g3trade/futures-gateway/internal/model"
)

// venueDialer is the hook a venue connector bridge overrides at link time.
// Deployments without a bridge get sessions that fail to start, with the
// reason in the account status rather than a dead process.
var venueDialer connector.Dialer = func(model.AccountDescriptor) (connector.Connector, error) {
	return nil, errors.New("no venue connector bridge linked")
}
