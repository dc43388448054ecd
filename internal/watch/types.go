// Package watch maintains filesystem watches for literal paths and glob
// patterns and turns bursts of raw notifications into debounced, classified
// change events.
//
// Glob patterns are reduced to their longest non-wildcard base directory,
// which is watched recursively; events below it are delivered only when the
// path matches one of the patterns registered for that base. Literal files are
// watched through their parent directory so atomic saves keep working.
package watch

import (
	"log/slog"
	"os"
	"time"
)

// Kind classifies a settled change.
type Kind string

const (
	KindAdd    Kind = "add"
	KindChange Kind = "change"
	KindUnlink Kind = "unlink"
)

// FileChangeEvent is delivered once per path after the debounce window
// settles.
type FileChangeEvent struct {
	Kind      Kind      `json:"kind"`
	Path      string    `json:"path"`
	RelPath   string    `json:"relPath"`
	Timestamp time.Time `json:"timestamp"`

	// Stat is the file info observed when the event settled. Nil for unlink.
	Stat os.FileInfo `json:"-"`
}

// DefaultDebounce is the quiet window used when Options.Debounce is zero.
const DefaultDebounce = 100 * time.Millisecond

// Options configures a Watcher.
type Options struct {
	// Root resolves relative patterns and is the base for ignore matching.
	Root string

	// Debounce is the per-key quiet window.
	Debounce time.Duration

	// Ignore lists globs matched against root-relative paths.
	Ignore []string

	// Logger receives watcher diagnostics.
	Logger *slog.Logger
}
