package logs

import (
	"context"
	"log/slog"
)

// SourceKey is the slog attribute that names the entry source.
const SourceKey = "component"

// Handler returns an slog.Handler that appends records to b. Records carry
// their source in the "component" attribute; records without one use
// defaultSource. Records below minLevel are dropped.
func (b *Buffer) Handler(defaultSource string, minLevel slog.Leveler) slog.Handler {
	if minLevel == nil {
		minLevel = slog.LevelDebug
	}
	return &handler{buf: b, source: defaultSource, min: minLevel}
}

type handler struct {
	buf    *Buffer
	source string
	min    slog.Leveler
	attrs  []slog.Attr
	group  string
}

func (h *handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.min.Level()
}

func (h *handler) Handle(_ context.Context, r slog.Record) error {
	source := h.source
	var data map[string]any

	add := func(a slog.Attr) {
		a.Value = a.Value.Resolve()
		if a.Key == SourceKey && h.group == "" {
			source = a.Value.String()
			return
		}
		if a.Equal(slog.Attr{}) {
			return
		}
		if data == nil {
			data = make(map[string]any)
		}
		key := a.Key
		if h.group != "" {
			key = h.group + "." + key
		}
		data[key] = attrValue(a.Value)
	}

	for _, a := range h.attrs {
		add(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		add(a)
		return true
	})

	entry := Entry{
		Timestamp: r.Time,
		Level:     fromSlog(r.Level),
		Source:    source,
		Message:   r.Message,
		Data:      data,
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = h.buf.now()
	}
	h.buf.append(entry)
	return nil
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

func (h *handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	if clone.group != "" {
		clone.group += "." + name
	} else {
		clone.group = name
	}
	return &clone
}

func attrValue(v slog.Value) any {
	switch v.Kind() {
	case slog.KindGroup:
		m := make(map[string]any, len(v.Group()))
		for _, a := range v.Group() {
			m[a.Key] = attrValue(a.Value.Resolve())
		}
		return m
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time()
	default:
		return v.Any()
	}
}

func fromSlog(level slog.Level) Level {
	switch {
	case level >= slog.LevelError:
		return LevelError
	case level >= slog.LevelWarn:
		return LevelWarn
	case level >= slog.LevelInfo:
		return LevelInfo
	default:
		return LevelDebug
	}
}
