// Package config loads, defaults, and validates the gateway's YAML
// configuration: the desired trading accounts plus tuning for the registry,
// the event feed, and the optional event journal.
package config
