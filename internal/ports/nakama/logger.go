package nakama

import (
	"context"
	"log/slog"

	"github.com/heroiclabs/nakama-common/runtime"
)

// logHandler is a slog.Handler writing through the Nakama runtime logger, so
// the dispatcher logs the same way inside the plugin as in the standalone server.
type logHandler struct {
	logger runtime.Logger
	level  slog.Leveler
	attrs  []slog.Attr
	group  string
}

func newLogHandler(logger runtime.Logger, level slog.Leveler) *logHandler {
	return &logHandler{logger: logger, level: level}
}

func (h *logHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *logHandler) Handle(_ context.Context, r slog.Record) error {
	fields := make(map[string]interface{}, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		fields[a.Key] = a.Value.Resolve().Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		fields[h.key(a.Key)] = a.Value.Resolve().Any()
		return true
	})

	l := h.logger
	if len(fields) > 0 {
		l = l.WithFields(fields)
	}
	switch {
	case r.Level >= slog.LevelError:
		l.Error("%s", r.Message)
	case r.Level >= slog.LevelWarn:
		l.Warn("%s", r.Message)
	case r.Level >= slog.LevelInfo:
		l.Info("%s", r.Message)
	default:
		l.Debug("%s", r.Message)
	}
	return nil
}

func (h *logHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	next.attrs = append(next.attrs, h.attrs...)
	for _, a := range attrs {
		next.attrs = append(next.attrs, slog.Attr{Key: h.key(a.Key), Value: a.Value})
	}
	return &next
}

func (h *logHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.group = h.key(name)
	return &next
}

func (h *logHandler) key(k string) string {
	if h.group == "" {
		return k
	}
	return h.group + "." + k
}
