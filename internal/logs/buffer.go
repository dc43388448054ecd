package logs

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/vango-dev/devd/internal/event"
)

// Level is the severity of a log entry.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// DefaultMaxEntries is the default ring size.
const DefaultMaxEntries = 1000

// ParseLevel converts a string into a Level. Unknown values return false.
func ParseLevel(s string) (Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, true
	case "info":
		return LevelInfo, true
	case "warn", "warning":
		return LevelWarn, true
	case "error":
		return LevelError, true
	}
	return "", false
}

// Entry is one structured log line.
type Entry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     Level          `json:"level"`
	Source    string         `json:"source"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
}

// Filter selects entries. Zero fields match everything.
type Filter struct {
	Level  Level
	Source string
	Since  time.Time
}

func (f Filter) match(e Entry) bool {
	if f.Level != "" && e.Level != f.Level {
		return false
	}
	if f.Source != "" && e.Source != f.Source {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	return true
}

// Options configures a Buffer.
type Options struct {
	// MaxEntries caps the buffer. Defaults to DefaultMaxEntries.
	MaxEntries int

	// Quiet disables console mirroring.
	Quiet bool

	// Verbose mirrors debug entries to the console.
	Verbose bool

	// Output receives mirrored lines. Defaults to os.Stderr.
	Output io.Writer
}

// Buffer is a ring of log entries trimmed from the head.
type Buffer struct {
	mu      sync.RWMutex
	entries []Entry
	max     int
	quiet   bool
	verbose bool
	out     io.Writer
	outMu   sync.Mutex
	now     func() time.Time

	// OnEntry is emitted after every append.
	OnEntry event.Emitter[Entry]

	// OnClear is emitted after Clear.
	OnClear event.Emitter[struct{}]
}

// NewBuffer creates a Buffer.
func NewBuffer(opts Options) *Buffer {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	return &Buffer{
		max:     opts.MaxEntries,
		quiet:   opts.Quiet,
		verbose: opts.Verbose,
		out:     opts.Output,
		now:     time.Now,
	}
}

// SetQuiet toggles console mirroring.
func (b *Buffer) SetQuiet(quiet bool) {
	b.mu.Lock()
	b.quiet = quiet
	b.mu.Unlock()
}

// Log appends an entry, trims the buffer, emits OnEntry and mirrors the line
// to the console.
func (b *Buffer) Log(level Level, message, source string, data map[string]any) Entry {
	entry := Entry{
		Timestamp: b.now(),
		Level:     level,
		Source:    source,
		Message:   message,
		Data:      data,
	}
	b.append(entry)
	return entry
}

// Debug logs at debug level.
func (b *Buffer) Debug(source, message string) { b.Log(LevelDebug, message, source, nil) }

// Info logs at info level.
func (b *Buffer) Info(source, message string) { b.Log(LevelInfo, message, source, nil) }

// Warn logs at warn level.
func (b *Buffer) Warn(source, message string) { b.Log(LevelWarn, message, source, nil) }

// Error logs at error level.
func (b *Buffer) Error(source, message string) { b.Log(LevelError, message, source, nil) }

func (b *Buffer) append(entry Entry) {
	b.mu.Lock()
	b.entries = append(b.entries, entry)
	if over := len(b.entries) - b.max; over > 0 {
		// Copy down so the backing array does not grow without bound.
		n := copy(b.entries, b.entries[over:])
		clear(b.entries[n:])
		b.entries = b.entries[:n]
	}
	quiet := b.quiet
	b.mu.Unlock()

	b.OnEntry.Emit(entry)

	if !quiet {
		b.mirror(entry)
	}
}

// Entries returns a copy of the entries matching filter, oldest first.
func (b *Buffer) Entries(filter Filter) []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Entry, 0, len(b.entries))
	for _, e := range b.entries {
		if filter.match(e) {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of retained entries.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// Clear empties the buffer and emits OnClear.
func (b *Buffer) Clear() {
	b.mu.Lock()
	b.entries = nil
	b.mu.Unlock()

	b.OnClear.Emit(struct{}{})
}

var (
	debugColor = color.New(color.FgHiBlack).SprintFunc()
	infoColor  = color.New(color.FgCyan).SprintFunc()
	warnColor  = color.New(color.FgYellow).SprintFunc()
	errorColor = color.New(color.FgRed, color.Bold).SprintFunc()
	dimColor   = color.New(color.FgHiBlack).SprintFunc()
)

func (b *Buffer) mirror(entry Entry) {
	var label string
	switch entry.Level {
	case LevelDebug:
		if !b.verbose {
			return
		}
		label = debugColor("DEBUG")
	case LevelWarn:
		label = warnColor("WARN ")
	case LevelError:
		label = errorColor("ERROR")
	default:
		label = infoColor("INFO ")
	}

	var line strings.Builder
	line.WriteString(dimColor(entry.Timestamp.Format("15:04:05")))
	line.WriteString(" ")
	line.WriteString(label)
	line.WriteString(" ")
	if entry.Source != "" {
		line.WriteString(dimColor("[" + entry.Source + "] "))
	}
	line.WriteString(entry.Message)
	if len(entry.Data) > 0 {
		keys := make([]string, 0, len(entry.Data))
		for k := range entry.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			line.WriteString(" ")
			line.WriteString(dimColor(fmt.Sprintf("%s=%v", k, entry.Data[k])))
		}
	}
	line.WriteString("\n")

	b.outMu.Lock()
	_, _ = io.WriteString(b.out, line.String())
	b.outMu.Unlock()
}
