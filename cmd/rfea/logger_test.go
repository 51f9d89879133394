package main

import (
	"bytes"
	"log/slog"
	"regexp"
	"strings"
	"testing"
)

func TestHandlerBracketedFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, nil))

	logger.Info("Run: 702", "section", "config")

	line := buf.String()
	if !regexp.MustCompile(`^\[\d{4}/\d{2}/\d{2} \d{2}:\d{2}:\d{2}\] `).MatchString(line) {
		t.Fatalf("missing timestamp bracket: %q", line)
	}
	if !strings.Contains(line, "[config] Run: 702") {
		t.Errorf("attr and message not formatted: %q", line)
	}
	if strings.Contains(line, "[INFO]") {
		t.Errorf("info level should not be bracketed: %q", line)
	}

	buf.Reset()
	logger.Warn("step 3 degenerate")
	if !strings.Contains(buf.String(), "[WARN]") {
		t.Errorf("warn level not bracketed: %q", buf.String())
	}
}

func TestHandlerAddSource(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, &slog.HandlerOptions{AddSource: true}))

	logger.Warn("splice failed")

	line := buf.String()
	if !regexp.MustCompile(`\[logger_test\.go:\d+\]`).MatchString(line) {
		t.Fatalf("call site not bracketed: %q", line)
	}

	// Without AddSource the call site stays out of the line.
	buf.Reset()
	plain := slog.New(NewHandler(&buf, nil))
	plain.Warn("splice failed")
	if strings.Contains(buf.String(), "logger_test.go") {
		t.Errorf("call site leaked without AddSource: %q", buf.String())
	}
}

func TestHandlerWithAttrsKeepsSource(t *testing.T) {
	var buf bytes.Buffer
	base := NewHandler(&buf, &slog.HandlerOptions{AddSource: true})
	logger := slog.New(base.WithAttrs([]slog.Attr{slog.String("section", "fit")}))

	logger.Warn("slice rejected")

	if !regexp.MustCompile(`\[logger_test\.go:\d+\]`).MatchString(buf.String()) {
		t.Errorf("derived handler dropped the call site: %q", buf.String())
	}
}
