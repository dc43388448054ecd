// Package logs keeps a bounded, queryable history of structured log entries.
//
// Entries are appended through Buffer.Log or through the slog.Handler returned
// by Buffer.Handler, so engine components can keep logging with log/slog while
// their output lands in the ring buffer. Every entry is mirrored to the console
// unless the buffer is quiet.
package logs
