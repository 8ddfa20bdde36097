// Package daemon wires the store, workflow manager, ingest registry, and
// HTTP API into a single long-running process with single-instance locking.
package daemon
