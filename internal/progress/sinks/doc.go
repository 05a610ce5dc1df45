// Package sinks contains the built-in consumers for the run event stream:
// structured logging, Prometheus collectors, an in-memory status snapshot
// for the HTTP API, and a persistence bridge to the record store.
package sinks
