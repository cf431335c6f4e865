// Package logging provides the structured logger shared by the engine,
// the HTTP server and the CLI.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger with dosewise-specific helpers so field names stay
// consistent across packages.
type Logger struct {
	*slog.Logger
}

// New creates a Logger writing to stderr. format is "text" or "json";
// level is one of debug|info|warn|error (unknown values fall back to info).
func New(level, format string) *Logger {
	return NewWithWriter(os.Stderr, level, format)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, level, format string) *Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var handler slog.Handler
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return &Logger{Logger: slog.New(handler)}
}

// Noop returns a Logger that discards everything.
func Noop() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000),
	}))}
}

// ParseLevel maps a textual level to slog.Level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithComponent tags every record with the emitting component.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{Logger: l.Logger.With("component", name)}
}

// LogLoad logs the outcome of a dataset load.
func (l *Logger) LogLoad(ctx context.Context, source string, rows, columns int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "dataset load failed",
			"source", source,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "dataset loaded",
		"source", source,
		"rows", rows,
		"columns", columns,
	)
}

// LogEncode logs the shape of the fitted feature matrix.
func (l *Logger) LogEncode(ctx context.Context, rows, width int) {
	l.InfoContext(ctx, "features encoded",
		"rows", rows,
		"width", width,
	)
}

// LogCluster logs the outcome of a clustering run.
func (l *Logger) LogCluster(ctx context.Context, eps float64, minSamples, clusters, noise int) {
	l.InfoContext(ctx, "clustering completed",
		"eps", eps,
		"min_samples", minSamples,
		"clusters", clusters,
		"noise", noise,
	)
}

// LogLookup logs a single drug lookup.
func (l *Logger) LogLookup(ctx context.Context, query string, clusterID, similar int, err error) {
	if err != nil {
		l.DebugContext(ctx, "lookup failed",
			"query", query,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "lookup completed",
		"query", query,
		"cluster", clusterID,
		"similar", similar,
	)
}
