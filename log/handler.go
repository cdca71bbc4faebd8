package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// formatterHandler adapts a LogFormatter to the slog.Handler interface so
// that a format name ("text", "json", "color") can select one of the
// formatters in formatter.go instead of slog's built-in handlers.
type formatterHandler struct {
	mu        *sync.Mutex
	w         io.Writer
	formatter LogFormatter
	level     slog.Leveler
	attrs     []slog.Attr
	groups    []string
}

// NewFormatterHandler builds a slog.Handler that renders records through f.
func NewFormatterHandler(w io.Writer, f LogFormatter, level slog.Leveler) slog.Handler {
	return &formatterHandler{mu: &sync.Mutex{}, w: w, formatter: f, level: level}
}

func (h *formatterHandler) Enabled(_ context.Context, level slog.Level) bool {
	min := slog.LevelInfo
	if h.level != nil {
		min = h.level.Level()
	}
	return level >= min
}

func (h *formatterHandler) Handle(_ context.Context, r slog.Record) error {
	fields := make(map[string]interface{}, r.NumAttrs()+len(h.attrs))
	for _, a := range h.attrs {
		fields[qualify(h.groups, a.Key)] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		fields[qualify(h.groups, a.Key)] = a.Value.Any()
		return true
	})

	entry := LogEntry{
		Timestamp: r.Time,
		Level:     levelFromSlog(r.Level),
		Message:   r.Message,
		Fields:    fields,
	}

	line := h.formatter.Format(entry)

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := fmt.Fprintln(h.w, line)
	return err
}

func (h *formatterHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &next
}

func (h *formatterHandler) WithGroup(name string) slog.Handler {
	next := *h
	next.groups = append(append([]string{}, h.groups...), name)
	return &next
}

func qualify(groups []string, key string) string {
	if len(groups) == 0 {
		return key
	}
	prefix := ""
	for _, g := range groups {
		prefix += g + "."
	}
	return prefix + key
}

func levelFromSlog(l slog.Level) LogLevel {
	switch {
	case l < slog.LevelInfo:
		return DEBUG
	case l < slog.LevelWarn:
		return INFO
	case l < slog.LevelError:
		return WARN
	default:
		return ERROR
	}
}

// NewFromFormat creates a Logger writing to w using the named format:
// "json" (slog's native JSON handler), "text", or "color". Unknown formats
// fall back to "text". The config package has no log-format option;
// callers pass the format name directly.
func NewFromFormat(format string, level slog.Level, w io.Writer) *Logger {
	switch format {
	case "json":
		return NewWithHandler(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	case "color":
		return NewWithHandler(NewFormatterHandler(w, &ColorFormatter{}, level))
	default:
		return NewWithHandler(NewFormatterHandler(w, &TextFormatter{}, level))
	}
}
