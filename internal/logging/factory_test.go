package logging

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultLogConfig(t *testing.T) {
	config := DefaultLogConfig()

	if config.Level != INFO {
		t.Errorf("Expected Level=INFO, got %v", config.Level)
	}
	if !config.EnableConsole {
		t.Error("Expected EnableConsole=true")
	}
	if !config.RedactSensitive {
		t.Error("Expected RedactSensitive=true")
	}
	if config.MaxFileSize != 100*1024*1024 {
		t.Errorf("Expected MaxFileSize=104857600, got %v", config.MaxFileSize)
	}
}

func TestNewLogger_ConsoleOnly(t *testing.T) {
	config := LogConfig{
		Level:         INFO,
		EnableConsole: true,
		OutputFile:    "",
	}

	logger, err := NewLogger(config)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	t.Cleanup(func() {
		logger.Close()
	})

	if logger == nil {
		t.Fatal("Logger is nil")
	}

	// Should be a ConsoleLogger
	if _, ok := logger.(*ConsoleLogger); !ok {
		t.Errorf("Expected ConsoleLogger, got %T", logger)
	}
}

func TestNewLogger_FileOnly(t *testing.T) {
	tempDir := t.TempDir()
	logPath := filepath.Join(tempDir, "test.log")

	config := LogConfig{
		Level:         INFO,
		EnableConsole: false,
		OutputFile:    logPath,
		MaxFileSize:   1024,
	}

	logger, err := NewLogger(config)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	t.Cleanup(func() {
		logger.Close()
	})

	if logger == nil {
		t.Fatal("Logger is nil")
	}

	// Should be a FileLogger
	if _, ok := logger.(*FileLogger); !ok {
		t.Errorf("Expected FileLogger, got %T", logger)
	}

	// Verify file was created
	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		t.Error("Log file was not created")
	}
}

func TestNewLogger_Both(t *testing.T) {
	tempDir := t.TempDir()
	logPath := filepath.Join(tempDir, "test.log")

	config := LogConfig{
		Level:         INFO,
		EnableConsole: true,
		OutputFile:    logPath,
		MaxFileSize:   1024,
	}

	logger, err := NewLogger(config)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	t.Cleanup(func() {
		logger.Close()
	})

	if logger == nil {
		t.Fatal("Logger is nil")
	}

	// Should be a MultiLogger
	if _, ok := logger.(*MultiLogger); !ok {
		t.Errorf("Expected MultiLogger, got %T", logger)
	}
}

func TestNewLogger_NoOp(t *testing.T) {
	config := LogConfig{
		Level:         INFO,
		EnableConsole: false,
		OutputFile:    "",
	}

	logger, err := NewLogger(config)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	t.Cleanup(func() {
		logger.Close()
	})

	if logger == nil {
		t.Fatal("Logger is nil")
	}

	// Should be a NoOpLogger
	if _, ok := logger.(*NoOpLogger); !ok {
		t.Errorf("Expected NoOpLogger, got %T", logger)
	}
}

func TestNewLogger_InvalidPath(t *testing.T) {
	// A regular file in place of a directory fails even for privileged users.
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatalf("Failed to create blocker file: %v", err)
	}

	config := LogConfig{
		Level:         INFO,
		EnableConsole: false,
		OutputFile:    filepath.Join(blocker, "nested", "test.log"),
	}

	_, err := NewLogger(config)
	if err == nil {
		t.Error("Expected error for invalid path, got nil")
	}
}

func TestNewLogger_EnableDebugOverridesLevel(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "debug.log")

	logger, err := NewLogger(LogConfig{
		Level:       ERROR,
		OutputFile:  logPath,
		EnableDebug: true,
	})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	logger.Debug("visible")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if len(splitLogLines(data)) != 1 {
		t.Errorf("Expected debug entry to be written, got %q", string(data))
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   DEBUG,
		"verbose": DEBUG,
		"normal":  INFO,
		"info":    INFO,
		"warn":    WARN,
		"quiet":   ERROR,
		"ERROR":   ERROR,
		"":        INFO,
	}
	for input, want := range cases {
		if got := ParseLevel(input); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}
