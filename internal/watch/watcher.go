package watch

import (
	stderrors "errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/vango-dev/devd/internal/errors"
	"github.com/vango-dev/devd/internal/event"
	"github.com/vango-dev/devd/internal/glob"
)

// ignoreProbe is appended to a directory path to test whether everything
// below it is ignored.
const ignoreProbe = "__devd_probe__"

// base is one watched root: a directory watched recursively or a literal
// file watched through its parent. Several patterns may share a base.
type base struct {
	path     string
	file     bool
	patterns []string
	dirs     map[string]struct{}
}

// Stats reports watcher counters.
type Stats struct {
	Patterns  int    `json:"patterns"`
	Dirs      int    `json:"dirs"`
	Pending   int    `json:"pending"`
	Coalesced uint64 `json:"coalesced"`
	Delivered uint64 `json:"delivered"`
	Errors    uint64 `json:"errors"`
}

// Watcher is the watch registry plus its change debouncer.
type Watcher struct {
	fsw    *fsnotify.Watcher
	root   string
	ignore []string
	logger *slog.Logger

	mu        sync.Mutex
	closed    bool
	patterns  map[string]*base // pattern -> base
	bases     map[string]*base // base path -> base
	dirs      map[string]int   // watched dir -> reference count
	debouncer *debouncer
	done      chan struct{}
	wg        sync.WaitGroup

	coalesced atomic.Uint64
	delivered atomic.Uint64
	errCount  atomic.Uint64

	// OnChange is emitted for every settled event.
	OnChange event.Emitter[FileChangeEvent]
	// OnAdd is emitted after OnChange for KindAdd.
	OnAdd event.Emitter[FileChangeEvent]
	// OnModify is emitted after OnChange for KindChange.
	OnModify event.Emitter[FileChangeEvent]
	// OnUnlink is emitted after OnChange for KindUnlink.
	OnUnlink event.Emitter[FileChangeEvent]
	// OnError is emitted for non-fatal watch mechanism errors.
	OnError event.Emitter[error]
}

// New creates a Watcher and starts its event loop.
func New(opts Options) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.New("E220").Wrap(err)
	}

	root := opts.Root
	if root == "" {
		root = "."
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "watch")
	}

	w := &Watcher{
		fsw:       fsw,
		root:      root,
		ignore:    append([]string(nil), opts.Ignore...),
		logger:    logger,
		patterns:  make(map[string]*base),
		bases:     make(map[string]*base),
		dirs:      make(map[string]int),
		debouncer: newDebouncer(debounce),
		done:      make(chan struct{}),
	}

	w.wg.Add(1)
	go w.run()
	return w, nil
}

// Root returns the absolute root directory.
func (w *Watcher) Root() string {
	return w.root
}

// AddPattern starts watching pattern. Globs watch their base directory
// recursively; literal paths watch the file or directory itself. A missing
// target is a silent no-op, as is re-adding a known pattern. A pattern that
// shares its base with an active watch only adds a filter.
func (w *Watcher) AddPattern(pattern string) error {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return nil
	}
	if err := glob.Validate(pattern); err != nil {
		return errors.New("E125").WithDetail(pattern).Wrap(err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.New("E221").WithDetail("watcher is stopped")
	}
	if _, ok := w.patterns[pattern]; ok {
		return nil
	}

	target := w.abs(glob.Base(pattern))
	info, err := os.Stat(target)
	if err != nil {
		if os.IsNotExist(err) {
			w.logger.Debug("watch target missing", "pattern", pattern, "path", target)
			return nil
		}
		return errors.New("E221").WithDetail(pattern).Wrap(err)
	}
	isFile := !info.IsDir()

	if b, ok := w.bases[target]; ok {
		b.patterns = append(b.patterns, pattern)
		w.patterns[pattern] = b
		return nil
	}

	b := &base{path: target, file: isFile, dirs: make(map[string]struct{})}
	if isFile {
		if err := w.addDirLocked(b, filepath.Dir(target)); err != nil {
			return errors.New("E221").WithDetail(pattern).Wrap(err)
		}
	} else if err := w.addTreeLocked(b, target); err != nil {
		w.releaseLocked(b)
		return errors.New("E221").WithDetail(pattern).Wrap(err)
	}

	b.patterns = append(b.patterns, pattern)
	w.bases[target] = b
	w.patterns[pattern] = b
	w.logger.Debug("watching", "pattern", pattern, "base", target, "dirs", len(b.dirs))
	return nil
}

// RemovePattern stops watching pattern. Unknown patterns are ignored.
func (w *Watcher) RemovePattern(pattern string) {
	pattern = strings.TrimSpace(pattern)

	w.mu.Lock()
	defer w.mu.Unlock()
	b, ok := w.patterns[pattern]
	if !ok {
		return
	}
	delete(w.patterns, pattern)

	kept := b.patterns[:0]
	for _, p := range b.patterns {
		if p != pattern {
			kept = append(kept, p)
		}
	}
	b.patterns = kept
	if len(b.patterns) > 0 {
		return
	}

	delete(w.bases, b.path)
	if !w.closed {
		w.releaseLocked(b)
	}
}

// Patterns returns the registered patterns, sorted.
func (w *Watcher) Patterns() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.patterns))
	for p := range w.patterns {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Bases returns the watched base paths, sorted.
func (w *Watcher) Bases() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.bases))
	for p := range w.bases {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Stats returns current counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	s := Stats{
		Patterns: len(w.patterns),
		Dirs:     len(w.dirs),
		Pending:  w.debouncer.len(),
	}
	w.mu.Unlock()
	s.Coalesced = w.coalesced.Load()
	s.Delivered = w.delivered.Load()
	s.Errors = w.errCount.Load()
	return s
}

// Stop cancels every pending debounce timer and closes the watch. It is
// idempotent.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.debouncer.stop()
	w.mu.Unlock()

	close(w.done)
	err := w.fsw.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) run() {
	defer w.wg.Done()
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.handleError(err)
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handleError(err error) {
	if err == nil {
		return
	}
	w.errCount.Add(1)
	werr := errors.New("E222").Wrap(err)
	if stderrors.Is(err, fsnotify.ErrEventOverflow) {
		werr = werr.WithSuggestion("Raise fs.inotify.max_queued_events or narrow the watch patterns")
	}
	w.logger.Warn("watcher error", "error", err)
	w.OnError.Emit(werr)
}

// coveredLocked reports whether path belongs to a registered base and
// matches one of its patterns.
func (w *Watcher) coveredLocked(path string) bool {
	rel := w.rel(path)
	for _, b := range w.bases {
		if b.file {
			if path != b.path {
				continue
			}
			return true
		}
		if !within(path, b.path) {
			continue
		}
		for _, pattern := range b.patterns {
			if !glob.HasMeta(pattern) {
				return true
			}
			if filepath.IsAbs(pattern) {
				if glob.Match(path, pattern) {
					return true
				}
			} else if glob.Match(rel, pattern) {
				return true
			}
		}
	}
	return false
}

// watchNewDir extends recursive watches to a directory created below a
// watched base.
func (w *Watcher) watchNewDir(dir string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	for _, b := range w.bases {
		if b.file || !within(dir, b.path) {
			continue
		}
		if err := w.addTreeLocked(b, dir); err != nil {
			w.logger.Debug("watch new dir", "path", dir, "error", err)
		}
	}
}

func (w *Watcher) addTreeLocked(b *base, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != b.path && w.ignoredDir(path) {
			return filepath.SkipDir
		}
		if err := w.addDirLocked(b, path); err != nil {
			if path == root {
				return err
			}
			w.logger.Debug("watch dir", "path", path, "error", err)
		}
		return nil
	})
}

func (w *Watcher) addDirLocked(b *base, dir string) error {
	if _, ok := b.dirs[dir]; ok {
		return nil
	}
	if w.dirs[dir] == 0 {
		if err := w.fsw.Add(dir); err != nil {
			return err
		}
	}
	w.dirs[dir]++
	b.dirs[dir] = struct{}{}
	return nil
}

func (w *Watcher) releaseLocked(b *base) {
	for dir := range b.dirs {
		w.dirs[dir]--
		if w.dirs[dir] <= 0 {
			delete(w.dirs, dir)
			_ = w.fsw.Remove(dir)
		}
	}
	b.dirs = make(map[string]struct{})
}

func (w *Watcher) ignoredDir(dir string) bool {
	rel := w.rel(dir)
	return glob.MatchAny(rel, w.ignore) || glob.MatchAny(rel+"/"+ignoreProbe, w.ignore)
}

func (w *Watcher) abs(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(w.root, path)
}

func (w *Watcher) rel(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func within(path, dir string) bool {
	if path == dir {
		return true
	}
	prefix := dir
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(path, prefix)
}
