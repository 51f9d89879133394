package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

// Handler is a compact bracketed slog handler for terminal batch runs:
//
//	[2026/02/10 14:03:55] [config] Run: 702
//
// With AddSource enabled the call site is bracketed after the level:
//
//	[2026/02/10 14:03:55] [WARN] [main.go:142] step 3 degenerate
type Handler struct {
	h         slog.Handler
	mu        *sync.Mutex
	out       io.Writer
	addSource bool
}

func NewHandler(o io.Writer, opts *slog.HandlerOptions) *Handler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &Handler{
		out:       o,
		h:         slog.NewTextHandler(o, &slog.HandlerOptions{Level: opts.Level}),
		mu:        &sync.Mutex{},
		addSource: opts.AddSource,
	}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.h.Enabled(ctx, level)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{h: h.h.WithAttrs(attrs), out: h.out, mu: h.mu, addSource: h.addSource}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{h: h.h.WithGroup(name), out: h.out, mu: h.mu, addSource: h.addSource}
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	strs := []string{r.Time.Format("[2006/01/02 15:04:05]")}
	if r.Level != slog.LevelInfo {
		strs = append(strs, fmt.Sprintf("[%s]", r.Level))
	}
	if h.addSource {
		if file, line := source(r.PC); file != "" {
			strs = append(strs, fmt.Sprintf("[%s:%d]", file, line))
		}
	}
	r.Attrs(func(a slog.Attr) bool {
		strs = append(strs, fmt.Sprintf("[%s]", a.Value.String()))
		return true
	})
	strs = append(strs, r.Message, "\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write([]byte(strings.Join(strs, " ")))
	return err
}

// source resolves a record's program counter to a base file name and line.
// Records built without a PC resolve to "".
func source(pc uintptr) (string, int) {
	if pc == 0 {
		return "", 0
	}
	frame, _ := runtime.CallersFrames([]uintptr{pc}).Next()
	if frame.File == "" {
		return "", 0
	}
	return filepath.Base(frame.File), frame.Line
}
