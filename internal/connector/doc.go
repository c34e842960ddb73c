// Package connector defines the surface of the external venue connector:
// typed outbound requests submitted with caller-supplied correlation ids,
// and a stream of typed inbound events that terminates only when the
// connector is released.
//
// The wire protocol behind this surface is out of scope for the gateway;
// a concrete implementation is supplied by the embedding application. The
// package also ships a Fake implementation for tests.
package connector
