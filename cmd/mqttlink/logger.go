package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/fatih/color"
)

// colorHandler is a compact slog handler for terminal diagnostics.
type colorHandler struct {
	mu     sync.Mutex
	writer io.Writer
	attrs  []slog.Attr
	level  slog.Level
}

func newColorHandler(w io.Writer, level slog.Level) *colorHandler {
	if noColor {
		color.NoColor = true
	}
	return &colorHandler{
		writer: w,
		level:  level,
	}
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	level := r.Level.String()

	switch r.Level {
	case slog.LevelDebug:
		level = color.MagentaString(level)
	case slog.LevelInfo:
		level = color.BlueString(level)
	case slog.LevelWarn:
		level = color.YellowString(level)
	case slog.LevelError:
		level = color.RedString(level)
	}

	line := fmt.Sprintf(
		"%s %-5s %s",
		color.GreenString(r.Time.Format("15:04:05.000")),
		level,
		r.Message,
	)

	for _, attr := range h.attrs {
		line += color.CyanString(fmt.Sprintf(" %s=%v", attr.Key, attr.Value))
	}
	r.Attrs(func(attr slog.Attr) bool {
		line += color.CyanString(fmt.Sprintf(" %s=%v", attr.Key, attr.Value))
		return true
	})

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := fmt.Fprintln(h.writer, line)
	return err
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	newAttrs = append(newAttrs, h.attrs...)
	newAttrs = append(newAttrs, attrs...)

	return &colorHandler{
		writer: h.writer,
		attrs:  newAttrs,
		level:  h.level,
	}
}

func (h *colorHandler) WithGroup(_ string) slog.Handler {
	return h
}
