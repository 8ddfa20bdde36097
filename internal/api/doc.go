// Package api defines the transport-friendly request and response types
// exchanged over the daemon's HTTP surface, plus converters from the
// internal store and workflow records.
package api
