// Package logging sets up the process logger: text on the console and JSON
// in weekly rotating files, plus an HTTP request logging middleware.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/giygas/dynamed-api/config"
)

// Options configures the process logger
type Options struct {
	Dir            string // empty logs to the console only
	Env            config.Environment
	Level          string // console level override, ignored in tests
	RetentionWeeks int
	MaxFileSize    int64
	Verbose        bool
}

// OptionsFromConfig maps the service configuration onto logger options
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Dir:            cfg.LogDir,
		Env:            cfg.Env,
		Level:          cfg.LogLevel,
		RetentionWeeks: cfg.LogRetentionWeeks,
		MaxFileSize:    cfg.MaxLogFileSize,
	}
}

type LoggingService struct {
	Logger *slog.Logger
	file   *RotatingFile
}

var (
	defaultService atomic.Pointer[LoggingService]
	fallback       = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
)

// NewLoggingService builds a logger writing to the console and, when opts.Dir is set, to rotating files
func NewLoggingService(opts Options) (*LoggingService, error) {
	console := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: GetConsoleLogLevel(opts.Env, opts.Level, opts.Verbose),
	})
	if opts.Dir == "" {
		return &LoggingService{Logger: slog.New(console)}, nil
	}

	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = defaultMaxFileSize
	}
	if opts.RetentionWeeks <= 0 {
		opts.RetentionWeeks = 4
	}

	rf := NewRotatingFile(opts.Dir, opts.RetentionWeeks, opts.MaxFileSize)
	rf.mu.Lock()
	err := rf.open(weekKey(time.Now()), false)
	rf.mu.Unlock()
	if err != nil {
		return &LoggingService{Logger: slog.New(console)}, err
	}
	rf.StartCleanup(24 * time.Hour)

	file := slog.NewJSONHandler(rf, &slog.HandlerOptions{Level: GetFileLogLevel()})
	return &LoggingService{
		Logger: slog.New(fanout{console, file}),
		file:   rf,
	}, nil
}

// Close releases the log file, if any
func (s *LoggingService) Close() error {
	if s == nil || s.file == nil {
		return nil
	}
	return s.file.Close()
}

// InitLogger installs the process logger and makes it the slog default.
// On error the console logger is still installed.
func InitLogger(opts Options) error {
	svc, err := NewLoggingService(opts)
	slog.SetDefault(svc.Logger)
	if prev := defaultService.Swap(svc); prev != nil {
		_ = prev.Close()
	}
	if err != nil {
		return fmt.Errorf("file logging disabled: %w", err)
	}
	return nil
}

// Close flushes and detaches the process logger
func Close() error {
	return defaultService.Swap(nil).Close()
}

// Logger returns the process logger, a stderr fallback before InitLogger
func Logger() *slog.Logger {
	if svc := defaultService.Load(); svc != nil {
		return svc.Logger
	}
	return fallback
}

func Info(msg string, args ...any) {
	Logger().Info(msg, args...)
}

func Error(msg string, args ...any) {
	Logger().Error(msg, args...)
}

func Warn(msg string, args ...any) {
	Logger().Warn(msg, args...)
}

func Debug(msg string, args ...any) {
	Logger().Debug(msg, args...)
}

// parseLogLevel maps a level name to its slog level, info when unknown
func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// GetConsoleLogLevel picks the console level. Tests stay quiet unless verbose,
// prod and staging default to warn, an explicit level wins elsewhere.
func GetConsoleLogLevel(env config.Environment, level string, verbose bool) slog.Level {
	if env == config.EnvTest {
		if verbose {
			return slog.LevelInfo
		}
		return slog.LevelError
	}
	if level != "" {
		return parseLogLevel(level)
	}
	switch env {
	case config.EnvProduction, config.EnvStaging:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// GetFileLogLevel returns the file level, files keep everything
func GetFileLogLevel() slog.Level {
	return slog.LevelDebug
}

// fanout sends each record to every handler enabled for its level
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make(fanout, len(f))
	for i, h := range f {
		next[i] = h.WithAttrs(attrs)
	}
	return next
}

func (f fanout) WithGroup(name string) slog.Handler {
	next := make(fanout, len(f))
	for i, h := range f {
		next[i] = h.WithGroup(name)
	}
	return next
}
