package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/natefinch/lumberjack.v2"
)

// level is shared by every handler built here so that a config reload can
// change verbosity without rebuilding the logger
var level = new(slog.LevelVar)

// InitLogger initializes the application logger based on configuration
func InitLogger(cfg *LoggingConfig) (*slog.Logger, error) {
	return NewLogger(cfg, os.Stderr)
}

// NewLogger builds a logger writing to console, or to a rotated file when
// cfg.File is set, and installs it as the slog default
func NewLogger(cfg *LoggingConfig, console io.Writer) (*slog.Logger, error) {
	SetLevel(cfg.Level)

	var writer io.Writer
	if cfg.File != "" {
		// Create log file directory if it doesn't exist
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		writer = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize, // megabytes
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge, // days
			Compress:   cfg.Compress,
		}
	} else {
		writer = console
	}

	handlerOpts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(writer, handlerOpts)
	default:
		// Only color console output, never files
		if cfg.Color && cfg.File == "" {
			handler = NewColoredTextHandler(writer, handlerOpts)
		} else {
			handler = slog.NewTextHandler(writer, handlerOpts)
		}
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, nil
}

// SetLevel changes the level of every logger created by NewLogger
func SetLevel(s string) {
	level.Set(parseLogLevel(s))
}

// ColoredTextHandler prints the level token in color and the rest of the
// record in slog's text format
type ColoredTextHandler struct {
	opts   *slog.HandlerOptions
	writer io.Writer
	// with replays WithAttrs and WithGroup calls, in order, on the inner handler
	with []func(slog.Handler) slog.Handler
}

var levelStyles = map[slog.Level]lipgloss.Style{
	slog.LevelDebug: lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	slog.LevelInfo:  lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
	slog.LevelWarn:  lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
	slog.LevelError: lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
}

// NewColoredTextHandler creates a new handler that adds colors for console output
func NewColoredTextHandler(w io.Writer, opts *slog.HandlerOptions) *ColoredTextHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &ColoredTextHandler{opts: opts, writer: w}
}

// Handle implements slog.Handler
func (h *ColoredTextHandler) Handle(ctx context.Context, r slog.Record) error {
	var buf strings.Builder
	var inner slog.Handler = slog.NewTextHandler(&buf, &slog.HandlerOptions{
		Level: h.opts.Level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// The level is printed separately, and time is noise on a console
			if len(groups) == 0 && (a.Key == slog.LevelKey || a.Key == slog.TimeKey) {
				return slog.Attr{}
			}
			return a
		},
	})
	for _, fn := range h.with {
		inner = fn(inner)
	}
	if err := inner.Handle(ctx, r); err != nil {
		return err
	}

	style, ok := levelStyles[r.Level]
	if !ok {
		style = lipgloss.NewStyle()
	}
	_, err := fmt.Fprintf(h.writer, "%s %s", style.Render(fmt.Sprintf("%-5s", r.Level.String())), buf.String())
	return err
}

// WithAttrs implements slog.Handler
func (h *ColoredTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.derive(func(inner slog.Handler) slog.Handler { return inner.WithAttrs(attrs) })
}

// WithGroup implements slog.Handler
func (h *ColoredTextHandler) WithGroup(name string) slog.Handler {
	return h.derive(func(inner slog.Handler) slog.Handler { return inner.WithGroup(name) })
}

func (h *ColoredTextHandler) derive(fn func(slog.Handler) slog.Handler) *ColoredTextHandler {
	c := *h
	c.with = append(append([]func(slog.Handler) slog.Handler{}, h.with...), fn)
	return &c
}

// Enabled implements slog.Handler
func (h *ColoredTextHandler) Enabled(_ context.Context, l slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return l >= minLevel
}

// parseLogLevel parses a log level string
func parseLogLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
