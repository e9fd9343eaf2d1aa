package logging

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/grovetools/basin/config"
	"github.com/sirupsen/logrus"
)

// isolate points BASIN_HOME at a temp dir and runs from a directory without a
// basin.yml so NewLogger sees only the environment.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("BASIN_HOME", home)
	t.Setenv("BASIN_LOG_LEVEL", "")
	t.Setenv("BASIN_LOG_CALLER", "")

	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(wd)
		Reset()
	})
	Reset()
	return home
}

func TestNewLogger(t *testing.T) {
	isolate(t)

	logger := NewLogger("test-component")
	if logger == nil {
		t.Fatal("Expected logger to be created")
	}

	// Verify it's a logrus.Entry with the component field
	if logger.Data["component"] != "test-component" {
		t.Errorf("Expected component to be 'test-component', got %v", logger.Data["component"])
	}

	if again := NewLogger("test-component"); again != logger {
		t.Error("Expected the same logger for the same component")
	}
}

func TestLoggerWritesLogFile(t *testing.T) {
	home := isolate(t)

	logger := NewLogger("engine")
	logger.Info("scan finished")

	path := LogFilePath("engine", time.Now())
	if !strings.HasPrefix(path, home) {
		t.Fatalf("Expected log file under BASIN_HOME, got %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected log file to exist: %v", err)
	}
	if !strings.Contains(string(data), "scan finished") {
		t.Errorf("Expected log file to contain message, got: %s", data)
	}
}

func TestLogFilePath(t *testing.T) {
	t.Setenv("BASIN_HOME", "/var/basin")

	day := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	got := LogFilePath("watcher", day)
	want := filepath.Join("/var/basin", "state", "logs", "watcher-2024-03-09.log")
	if got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
}

func TestLoggerOutput(t *testing.T) {
	// Create a buffer to capture output
	var buf bytes.Buffer

	// Create a new logger and redirect output to buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&TextFormatter{Config: FormatConfig{}})

	entry := logger.WithField("component", "test")
	entry.Info("Test message")

	output := buf.String()

	// Check that output contains expected elements
	if !strings.Contains(output, "[INFO]") {
		t.Errorf("Expected output to contain [INFO], got: %s", output)
	}
	if !strings.Contains(output, "[test]") {
		t.Errorf("Expected output to contain [test], got: %s", output)
	}
	if !strings.Contains(output, "Test message") {
		t.Errorf("Expected output to contain 'Test message', got: %s", output)
	}
}

func TestTextFormatter(t *testing.T) {
	tests := []struct {
		name    string
		config  FormatConfig
		entry   *logrus.Entry
		want    []string // Parts that should be in the output
		notWant []string // Parts that should NOT be in the output
	}{
		{
			name:   "default format",
			config: FormatConfig{},
			entry: &logrus.Entry{
				Level:   logrus.InfoLevel,
				Message: "test message",
				Data: logrus.Fields{
					"component": "test-component",
					"key1":      "value1",
				},
			},
			want: []string{"[INFO]", "[test-component]", "test message", "key1=value1"},
		},
		{
			name: "simple format",
			config: FormatConfig{
				DisableTimestamp: true,
				DisableComponent: true,
			},
			entry: &logrus.Entry{
				Level:   logrus.WarnLevel,
				Message: "warning message",
				Data: logrus.Fields{
					"component": "test-component",
				},
			},
			want:    []string{"[WARN]", "warning message"},
			notWant: []string{"[test-component]"},
		},
		{
			name:   "caller information with function name",
			config: FormatConfig{},
			entry: func() *logrus.Entry {
				logger := logrus.New()
				logger.SetReportCaller(true)
				return &logrus.Entry{
					Logger:  logger,
					Level:   logrus.InfoLevel,
					Message: "test message with caller",
					Data: logrus.Fields{
						"component": "test-component",
					},
					Caller: &runtime.Frame{
						File:     "/path/to/file.go",
						Line:     42,
						Function: "github.com/example/package.TestFunction",
					},
				}
			}(),
			want: []string{"[INFO]", "[test-component]", "test message with caller", "[file.go:42 package.TestFunction]"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			formatter := &TextFormatter{Config: tt.config}

			output, err := formatter.Format(tt.entry)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			outputStr := string(output)

			for _, want := range tt.want {
				if !strings.Contains(outputStr, want) {
					t.Errorf("Expected output to contain '%s', got: %s", want, outputStr)
				}
			}

			for _, notWant := range tt.notWant {
				if strings.Contains(outputStr, notWant) {
					t.Errorf("Expected output NOT to contain '%s', got: %s", notWant, outputStr)
				}
			}
		})
	}
}

func TestTextFormatterFieldOrder(t *testing.T) {
	formatter := &TextFormatter{Config: FormatConfig{DisableTimestamp: true}}
	entry := &logrus.Entry{
		Level:   logrus.InfoLevel,
		Message: "dispatch",
		Data: logrus.Fields{
			"path":    "a.css",
			"channel": "css",
			"kind":    "add",
		},
	}

	output, err := formatter.Format(entry)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	want := "[INFO] dispatch channel=css kind=add path=a.css\n"
	if string(output) != want {
		t.Errorf("Expected %q, got %q", want, string(output))
	}
}

func TestLogLevels(t *testing.T) {
	// Test that log level filtering works
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetLevel(logrus.WarnLevel)

	entry := logger.WithField("component", "test")

	// These should not appear
	entry.Debug("debug message")
	entry.Info("info message")

	// These should appear
	entry.Warn("warn message")
	entry.Error("error message")

	output := buf.String()

	if strings.Contains(output, "debug message") {
		t.Error("Debug message should not appear at Warn level")
	}
	if strings.Contains(output, "info message") {
		t.Error("Info message should not appear at Warn level")
	}
	if !strings.Contains(output, "warn message") {
		t.Error("Warn message should appear at Warn level")
	}
	if !strings.Contains(output, "error message") {
		t.Error("Error message should appear at Warn level")
	}
}

func TestEnvironmentVariables(t *testing.T) {
	isolate(t)

	t.Setenv("BASIN_LOG_LEVEL", "debug")
	t.Setenv("BASIN_LOG_CALLER", "true")

	logger := NewLogger("env-test")

	// The underlying logger should have debug level
	if logger.Logger.Level != logrus.DebugLevel {
		t.Errorf("Expected debug level from env var, got %v", logger.Logger.Level)
	}

	// Should have caller reporting enabled
	if !logger.Logger.ReportCaller {
		t.Error("Expected caller reporting to be enabled from env var")
	}
}

func TestLoggingExtensionFromConfig(t *testing.T) {
	isolate(t)

	dir, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	cfg := "logging:\n  level: warn\n  format:\n    preset: json\n"
	if err := os.WriteFile(filepath.Join(dir, "basin.yml"), []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}

	logger := NewLogger("configured")
	if logger.Logger.Level != logrus.WarnLevel {
		t.Errorf("Expected warn level from config, got %v", logger.Logger.Level)
	}
	if _, ok := logger.Logger.Formatter.(*logrus.JSONFormatter); !ok {
		t.Errorf("Expected JSON formatter from config, got %T", logger.Logger.Formatter)
	}
}

func TestPrettyLogger(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrettyLogger().WithWriter(&buf)

	p.Success("built")
	p.Change("add", "src/a.css")
	p.Field("channels", 2)
	p.ErrorPretty("dispatch failed", errors.New("boom"))

	output := buf.String()
	for _, want := range []string{"✓ built", "add", "src/a.css", "channels: 2", "✗ dispatch failed: boom"} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected output to contain %q, got: %s", want, output)
		}
	}
	if strings.Contains(output, "\x1b[") {
		t.Errorf("Expected no escape codes when writing to a buffer, got: %q", output)
	}
}

func TestTextFormatterErrorLastAndQuoting(t *testing.T) {
	formatter := &TextFormatter{Config: FormatConfig{DisableTimestamp: true}}
	entry := &logrus.Entry{
		Level:   logrus.ErrorLevel,
		Message: "Dispatch failed",
		Data: logrus.Fields{
			logrus.ErrorKey: "read failed",
			"path":          "my file.css",
			"attempt":       2,
		},
	}

	output, err := formatter.Format(entry)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	want := "[ERROR] Dispatch failed attempt=2 path=\"my file.css\" error=\"read failed\"\n"
	if string(output) != want {
		t.Errorf("Expected %q, got %q", want, string(output))
	}
}

func TestConfigFromExtension(t *testing.T) {
	cfg, err := config.LoadFromBytes([]byte(`
logging:
  level: warn
  report_caller: true
  file:
    path: ~/logs/basin.log
  format:
    preset: simple
    structured_to_stderr: never
`), config.FormatYAML)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	var logCfg Config
	if err := cfg.UnmarshalExtension("logging", &logCfg); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if logCfg.Level != "warn" || !logCfg.ReportCaller {
		t.Errorf("Expected level warn with caller, got %+v", logCfg)
	}
	if logCfg.File.Path != "~/logs/basin.log" || logCfg.File.Disabled {
		t.Errorf("Unexpected file sink %+v", logCfg.File)
	}
	if logCfg.Format.Preset != "simple" || logCfg.Format.StructuredToStderr != "never" {
		t.Errorf("Unexpected format %+v", logCfg.Format)
	}
}
