// Package store persists videos and playback sessions in SQLite and exposes
// helpers for driving their lifecycle.
//
// The Store manages database connections, schema migrations, stats queries,
// startup recovery, and the single-flight CPU gate that serializes heavy
// scoring work. Videos capture the manifest-to-rendition pipeline state;
// sessions capture the telemetry-to-score pipeline state and reference the
// video they were played against.
//
// Identifiers are dense and zero based: the first registered video is video 0,
// the first submitted session is session 0. Assignment happens inside the
// insert transaction so concurrent registrations never collide.
//
// Treat this package as the single source of truth for lifecycle semantics;
// when you add new statuses or columns, add a migration under migrations/.
package store
