package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// LogEntry is the JSON shape every record is rendered as.
type LogEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Component string                 `json:"component,omitempty"`
}

// ringHandler is a slog.Handler that renders records in the LogEntry shape
// above and additionally feeds every Warn/Error record's message into a
// bounded ErrorRing, satisfying the embedding layer's get_last_error
// contract without every call site needing to touch the ring directly.
type ringHandler struct {
	out       io.Writer
	level     slog.Leveler
	component string
	ring      *ErrorRing
	attrs     []slog.Attr
}

// NewSlog builds a *slog.Logger for component that writes structured JSON
// to logPath (or stdout if empty) in this package's LogEntry shape, and
// records every Warn-or-above message into ring. ring may be nil, in which
// case nothing is recorded but logging still proceeds.
func NewSlog(component string, level slog.Level, logPath string, ring *ErrorRing) (*slog.Logger, error) {
	var out io.Writer = os.Stdout
	if logPath != "" {
		if dir := filepath.Dir(logPath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("logging: create log directory: %w", err)
			}
		}
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("logging: open log file: %w", err)
		}
		out = f
	}

	h := &ringHandler{out: out, level: level, component: component, ring: ring}
	return slog.New(h), nil
}

func (h *ringHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *ringHandler) Handle(_ context.Context, r slog.Record) error {
	entry := LogEntry{
		Timestamp: r.Time.UTC().Format(time.RFC3339Nano),
		Level:     r.Level.String(),
		Message:   r.Message,
		Fields:    make(map[string]interface{}),
		Component: h.component,
	}

	var errText string
	for _, a := range h.attrs {
		entry.Fields[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		entry.Fields[a.Key] = a.Value.Any()
		if a.Key == "error" {
			if e, ok := a.Value.Any().(error); ok {
				errText = e.Error()
			}
		}
		return true
	})

	data, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(h.out, "ERROR: failed to marshal log entry: %v\n", err)
		return err
	}
	fmt.Fprintf(h.out, "%s\n", data)

	if h.ring != nil && r.Level >= slog.LevelWarn {
		reason := r.Message
		if errText != "" {
			reason = r.Message + ": " + errText
		}
		h.ring.Record(reason)
	}
	return nil
}

func (h *ringHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	combined := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	combined = append(combined, h.attrs...)
	combined = append(combined, attrs...)
	return &ringHandler{out: h.out, level: h.level, component: h.component, ring: h.ring, attrs: combined}
}

func (h *ringHandler) WithGroup(_ string) slog.Handler {
	// Phase logging in this module is flat; groups aren't used anywhere,
	// so nesting is a no-op rather than prefixing keys nobody reads.
	return h
}
