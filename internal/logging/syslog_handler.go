package logging

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"log/syslog"
	"sync"
)

// priorityWriter is the subset of *syslog.Writer the handler drives.
type priorityWriter interface {
	Debug(string) error
	Info(string) error
	Warning(string) error
	Err(string) error
}

// syslogHandler renders records as single lines and forwards them at the
// syslog priority matching their level. Syslog stamps time and host itself.
type syslogHandler struct {
	mu     *sync.Mutex
	writer priorityWriter
	level  *slog.LevelVar
	attrs  []slog.Attr
	groups []string
}

func newSyslogHandler(tag string, lvl *slog.LevelVar) (slog.Handler, error) {
	w, err := syslog.New(syslog.LOG_DAEMON|syslog.LOG_INFO, tag)
	if err != nil {
		return nil, fmt.Errorf("connect to syslog: %w", err)
	}
	return newSyslogHandlerWithWriter(w, lvl), nil
}

func newSyslogHandlerWithWriter(w priorityWriter, lvl *slog.LevelVar) *syslogHandler {
	return &syslogHandler{mu: &sync.Mutex{}, writer: w, level: lvl}
}

func (h *syslogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *syslogHandler) Handle(_ context.Context, record slog.Record) error {
	if record.Level < h.level.Level() {
		return nil
	}
	line := splitRecord(record, h.groups, h.attrs)

	var buf bytes.Buffer
	buf.WriteString(levelLabel(record.Level))
	writeSubject(&buf, line)
	for _, field := range line.fields {
		buf.WriteByte(' ')
		buf.WriteString(field.key)
		buf.WriteByte('=')
		buf.WriteString(formatValue(field.value))
	}
	msg := buf.String()

	h.mu.Lock()
	defer h.mu.Unlock()
	switch {
	case record.Level >= slog.LevelError:
		return h.writer.Err(msg)
	case record.Level >= slog.LevelWarn:
		return h.writer.Warning(msg)
	case record.Level >= slog.LevelInfo:
		return h.writer.Info(msg)
	default:
		return h.writer.Debug(msg)
	}
}

func (h *syslogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

func (h *syslogHandler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.groups = append(append([]string{}, h.groups...), name)
	return &clone
}
