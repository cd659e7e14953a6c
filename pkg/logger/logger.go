package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
)

// callerHandler adds the file:line of the logging call to every record.
type callerHandler struct {
	slog.Handler
}

// trimPathDepth keeps only the last n segments of the given path.
// Example: trimPathDepth("a/b/c/d.go", 3) => "b/c/d.go"
func trimPathDepth(path string, depth int) string {
	parts := strings.Split(path, string(os.PathSeparator))
	if len(parts) <= depth {
		return path
	}
	return strings.Join(parts[len(parts)-depth:], string(os.PathSeparator))
}

func (h *callerHandler) Handle(ctx context.Context, r slog.Record) error {
	caller := "unknown"
	if r.PC != 0 {
		frames := runtime.CallersFrames([]uintptr{r.PC})
		f, _ := frames.Next()
		if f.File != "" {
			caller = fmt.Sprintf("%s:%d", trimPathDepth(f.File, 3), f.Line)
		}
	}
	r.AddAttrs(slog.String("caller", caller))
	return h.Handler.Handle(ctx, r)
}

func (h *callerHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &callerHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *callerHandler) WithGroup(name string) slog.Handler {
	return &callerHandler{Handler: h.Handler.WithGroup(name)}
}

func production() bool {
	return os.Getenv("ENV") == "production"
}

// ParseLevel maps DEBUG, INFO, WARN and ERROR (any case) to a slog.Level.
// An empty string yields DEBUG in development and INFO in production.
func ParseLevel(s string) (slog.Level, error) {
	if strings.TrimSpace(s) == "" {
		if production() {
			return slog.LevelInfo, nil
		}
		return slog.LevelDebug, nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return l, nil
}

// NewHandler builds the application handler writing to w: JSON in
// production, text otherwise, with caller information.
func NewHandler(w io.Writer, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(w, opts)
	if production() {
		handler = slog.NewJSONHandler(w, opts)
	}
	return &callerHandler{Handler: handler}
}

// NewWithLevel initializes the default logger at the given level. It uses
// text and DEBUG for development, JSON and INFO for production, when level
// is empty. An invalid level falls back to that default and is reported.
// Logs go to stderr; stdout carries command output and the stdio transport.
func NewWithLevel(level string) *slog.Logger {
	l, err := ParseLevel(level)
	if err != nil {
		l, _ = ParseLevel("")
	}
	slog.SetDefault(slog.New(NewHandler(os.Stderr, l)))
	if err != nil {
		slog.Warn("falling back to default log level", "error", err)
	}
	return slog.Default()
}
