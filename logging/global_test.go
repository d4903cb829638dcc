package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/giygas/dynamed-api/config"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{" error ", slog.LevelError},
		{"", slog.LevelInfo},
		{"invalid", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseLogLevel(tt.input)
			if got != tt.expected {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestGetConsoleLogLevel(t *testing.T) {
	tests := []struct {
		name        string
		env         config.Environment
		logLevelStr string
		verbose     bool
		expected    slog.Level
	}{
		{"dev defaults to info", config.EnvDevelopment, "", false, slog.LevelInfo},
		{"test quiet defaults to error", config.EnvTest, "", false, slog.LevelError},
		{"test verbose defaults to info", config.EnvTest, "", true, slog.LevelInfo},
		{"prod defaults to warn", config.EnvProduction, "", false, slog.LevelWarn},
		{"staging defaults to warn", config.EnvStaging, "", false, slog.LevelWarn},
		{"prod with debug override", config.EnvProduction, "debug", false, slog.LevelDebug},
		{"dev with error override", config.EnvDevelopment, "error", false, slog.LevelError},
		{"test with debug override (ignored)", config.EnvTest, "debug", false, slog.LevelError},
		{"test with debug override (ignored) verbose", config.EnvTest, "debug", true, slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GetConsoleLogLevel(tt.env, tt.logLevelStr, tt.verbose)
			if got != tt.expected {
				t.Errorf("GetConsoleLogLevel(%v, %q, %v) = %v, want %v", tt.env, tt.logLevelStr, tt.verbose, got, tt.expected)
			}
		})
	}
}

func TestGetFileLogLevel(t *testing.T) {
	if got := GetFileLogLevel(); got != slog.LevelDebug {
		t.Errorf("GetFileLogLevel() = %v, want %v", got, slog.LevelDebug)
	}
}

func TestInitLoggerWritesWeekFile(t *testing.T) {
	tempDir := t.TempDir()

	if err := InitLogger(Options{Dir: tempDir, Env: config.EnvTest, RetentionWeeks: 2}); err != nil {
		t.Fatalf("InitLogger failed: %v", err)
	}
	t.Cleanup(func() { _ = Close() })

	Debug("catalog reload scheduled", "at", "06:00")
	Info("catalog published", "version", 3)

	path := filepath.Join(tempDir, "app-"+weekKey(time.Now())+".log")
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected log file %s: %v", path, err)
	}
	for _, want := range []string{`"msg":"catalog reload scheduled"`, `"msg":"catalog published"`, `"version":3`} {
		if !strings.Contains(string(content), want) {
			t.Errorf("Log file misses %s:\n%s", want, content)
		}
	}
}

func TestInitLoggerConsoleOnly(t *testing.T) {
	if err := InitLogger(Options{Env: config.EnvTest}); err != nil {
		t.Fatalf("InitLogger failed: %v", err)
	}
	t.Cleanup(func() { _ = Close() })

	if Logger() == fallback {
		t.Error("InitLogger should replace the fallback logger")
	}
	Warn("console only")
}

func TestInitLoggerUnwritableDir(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := InitLogger(Options{Dir: filepath.Join(blocker, "logs"), Env: config.EnvTest})
	t.Cleanup(func() { _ = Close() })
	if err == nil {
		t.Fatal("Expected an error for a directory below a regular file")
	}
	// the console logger is still installed
	Error("still logging")
}

func TestLoggerFallback(t *testing.T) {
	_ = Close()

	if Logger() != fallback {
		t.Error("Logger should return the fallback before InitLogger")
	}
	Info("fallback info")
	Debug("fallback debug")
}

func TestFanoutHandler(t *testing.T) {
	var infoOut, debugOut bytes.Buffer
	h := fanout{
		slog.NewTextHandler(&infoOut, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewJSONHandler(&debugOut, &slog.HandlerOptions{Level: slog.LevelDebug}),
	}

	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("fanout should be enabled when any handler is")
	}

	logger := slog.New(h).With("component", "importer").WithGroup("file")
	logger.Debug("parsed", "rows", 12)
	logger.Info("imported", "rows", 10)

	if strings.Contains(infoOut.String(), "parsed") {
		t.Error("info handler should drop debug records")
	}
	if !strings.Contains(infoOut.String(), "component=importer") || !strings.Contains(infoOut.String(), "file.rows=10") {
		t.Errorf("attrs and groups missing from text output: %s", infoOut.String())
	}
	if strings.Count(debugOut.String(), "\n") != 2 {
		t.Errorf("debug handler should receive both records: %s", debugOut.String())
	}
}
