package watch

import (
	"os"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vango-dev/devd/internal/glob"
)

type debounceKey struct {
	kind Kind
	path string
}

type debounceEntry struct {
	timer *time.Timer
	gen   uint64
}

type debouncer struct {
	duration time.Duration
	entries  map[debounceKey]debounceEntry
	gen      uint64
}

func newDebouncer(duration time.Duration) *debouncer {
	return &debouncer{
		duration: duration,
		entries:  make(map[debounceKey]debounceEntry),
	}
}

// schedule restarts the timer for key. It reports whether an earlier
// notification for the same key was superseded.
func (d *debouncer) schedule(key debounceKey, flush func(debounceKey, uint64)) bool {
	entry, dropped := d.entries[key]
	if dropped {
		entry.timer.Stop()
	}
	d.gen++
	gen := d.gen
	entry.gen = gen
	entry.timer = time.AfterFunc(d.duration, func() { flush(key, gen) })
	d.entries[key] = entry
	return dropped
}

// pop removes key if gen is still its latest generation. A timer that fired
// while a newer notification rescheduled the key loses.
func (d *debouncer) pop(key debounceKey, gen uint64) bool {
	entry, ok := d.entries[key]
	if !ok || entry.gen != gen {
		return false
	}
	delete(d.entries, key)
	return true
}

// drain cancels and removes every key still pending for path, returning
// their kinds.
func (d *debouncer) drain(path string) []Kind {
	var kinds []Kind
	for _, kind := range []Kind{KindAdd, KindChange, KindUnlink} {
		key := debounceKey{kind: kind, path: path}
		if entry, ok := d.entries[key]; ok {
			entry.timer.Stop()
			delete(d.entries, key)
			kinds = append(kinds, kind)
		}
	}
	return kinds
}

func (d *debouncer) stop() {
	for key, entry := range d.entries {
		entry.timer.Stop()
		delete(d.entries, key)
	}
}

func (d *debouncer) len() int {
	return len(d.entries)
}

// rawKind maps an fsnotify operation to the kind used as debounce key.
// Pure chmod events are dropped.
func rawKind(op fsnotify.Op) (Kind, bool) {
	switch {
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return KindUnlink, true
	case op.Has(fsnotify.Create):
		return KindAdd, true
	case op.Has(fsnotify.Write):
		return KindChange, true
	}
	return "", false
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := ev.Name
	kind, ok := rawKind(ev.Op)
	if !ok {
		return
	}

	if ev.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			w.watchNewDir(path)
			return
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || !w.coveredLocked(path) {
		return
	}
	if w.debouncer.schedule(debounceKey{kind: kind, path: path}, w.flush) {
		w.coalesced.Add(1)
	}
}

// flush settles every notification pending for key.path into one event, so
// a create followed by a write reports a single add.
func (w *Watcher) flush(key debounceKey, gen uint64) {
	w.mu.Lock()
	if w.closed || !w.debouncer.pop(key, gen) {
		w.mu.Unlock()
		return
	}
	added := key.kind == KindAdd
	siblings := w.debouncer.drain(key.path)
	for _, kind := range siblings {
		if kind == KindAdd {
			added = true
		}
	}
	w.coalesced.Add(uint64(len(siblings)))

	info, err := os.Stat(key.path)
	var kind Kind
	switch {
	case err != nil:
		kind = KindUnlink
		info = nil
	case info.IsDir():
		w.mu.Unlock()
		return
	case added:
		kind = KindAdd
	default:
		kind = KindChange
	}

	rel := w.rel(key.path)
	if glob.MatchAny(rel, w.ignore) {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	evt := FileChangeEvent{
		Kind:      kind,
		Path:      key.path,
		RelPath:   rel,
		Timestamp: time.Now(),
		Stat:      info,
	}

	w.delivered.Add(1)
	w.OnChange.Emit(evt)
	switch kind {
	case KindAdd:
		w.OnAdd.Emit(evt)
	case KindChange:
		w.OnModify.Emit(evt)
	case KindUnlink:
		w.OnUnlink.Emit(evt)
	}
}
