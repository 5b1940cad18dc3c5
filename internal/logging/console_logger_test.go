package logging

import (
	"bytes"
	"strings"
	"testing"
)

func newTestConsole(buf *bytes.Buffer, level LogLevel, redact bool) *ConsoleLogger {
	return NewConsoleLogger(ConsoleLoggerConfig{
		Writer:           buf,
		Level:            level,
		ColorEnabled:     false,
		TimestampEnabled: false,
		RedactSensitive:  redact,
	})
}

func TestConsoleLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestConsole(&buf, INFO, false)

	logger.Info("mirror complete", F("created", 3), F("path", "docs/readme.md"))

	out := buf.String()
	if !strings.Contains(out, "mirror complete") {
		t.Errorf("message missing from output: %q", out)
	}
	if !strings.Contains(out, "created=3") {
		t.Errorf("field missing from output: %q", out)
	}
	if !strings.Contains(out, "path=docs/readme.md") {
		t.Errorf("path field missing from output: %q", out)
	}
}

func TestConsoleLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestConsole(&buf, WARN, false)

	logger.Debug("hidden debug")
	logger.Info("hidden info")
	logger.Warn("shown warn")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("filtered messages leaked: %q", out)
	}
	if !strings.Contains(out, "shown warn") {
		t.Errorf("warn message missing: %q", out)
	}

	logger.SetLevel(DEBUG)
	logger.Debug("now visible")
	if !strings.Contains(buf.String(), "now visible") {
		t.Errorf("SetLevel did not lower threshold: %q", buf.String())
	}
}

func TestConsoleLogger_Redaction(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestConsole(&buf, DEBUG, true)

	token := "ghp_" + strings.Repeat("a", 36)
	logger.Debug("request sent", F("authorization", "Bearer "+token))
	logger.Info("cloning https://x-access-token:" + token + "@github.com/octo/repo.git")

	out := buf.String()
	if strings.Contains(out, token) {
		t.Fatalf("token leaked into output: %q", out)
	}
	if !strings.Contains(out, "[REDACTED]") {
		t.Errorf("expected redaction marker in output: %q", out)
	}
}

func TestConsoleLogger_TraceIDShortened(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestConsole(&buf, INFO, false)

	logger.WithTraceID("0123456789abcdef").Info("traced")
	logger.WithTraceID("abc").Info("short trace")

	out := buf.String()
	if !strings.Contains(out, "trace=01234567") {
		t.Errorf("expected shortened trace id: %q", out)
	}
	if !strings.Contains(out, "trace=abc") {
		t.Errorf("expected short trace id kept intact: %q", out)
	}
}

func TestRedactSensitiveData(t *testing.T) {
	tests := []struct {
		name  string
		input string
		leak  string
	}{
		{"bearer", "Authorization: Bearer abc.def.ghi", "abc.def.ghi"},
		{"fine grained pat", "token github_pat_" + strings.Repeat("Z", 30), strings.Repeat("Z", 30)},
		{"kv", "password=hunter2", "hunter2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := redactSensitiveData(tt.input)
			if strings.Contains(got, tt.leak) {
				t.Errorf("redactSensitiveData(%q) = %q still contains secret", tt.input, got)
			}
		})
	}
}
