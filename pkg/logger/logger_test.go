package logger

import (
	"bytes"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tagscraper/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{
			name: "valid config with info level",
			cfg: &config.LoggingConfig{
				Level: "info",
			},
			wantErr: false,
		},
		{
			name: "valid config with debug level",
			cfg: &config.LoggingConfig{
				Level: "debug",
			},
			wantErr: false,
		},
		{
			name: "invalid log level",
			cfg: &config.LoggingConfig{
				Level: "invalid",
			},
			wantErr: true,
		},
		{
			name: "config with file output",
			cfg: &config.LoggingConfig{
				Level: "info",
				File:  "/tmp/tagscraper-test.log",
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && logger == nil {
				t.Error("New() returned nil logger")
			}

			if tt.cfg.File != "" {
				os.Remove(tt.cfg.File)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"DEBUG", zerolog.DebugLevel, false},
		{"info", zerolog.InfoLevel, false},
		{"warn", zerolog.WarnLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"fatal", zerolog.FatalLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"invalid", zerolog.InfoLevel, true},
		{"", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseLogLevel() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if level != tt.expected {
				t.Errorf("parseLogLevel() = %v, want %v", level, tt.expected)
			}
		})
	}
}

func newBufferLogger(buf *bytes.Buffer) *zerologLogger {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	zlog := zerolog.New(buf).With().Timestamp().Logger().Level(zerolog.DebugLevel)
	return &zerologLogger{
		logger: &zlog,
		fields: make(map[string]interface{}),
	}
}

func TestLoggerMethods(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	tests := []struct {
		name string
		log  func(string)
	}{
		{"Debug", logger.Debug},
		{"Info", logger.Info},
		{"Warn", logger.Warn},
		{"Error", logger.Error},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			tt.log(tt.name + " message")
			if !strings.Contains(buf.String(), tt.name+" message") {
				t.Errorf("%s message not found in output", tt.name)
			}
		})
	}
}

func TestWithField(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	logger.WithField("target", "golang").Info("collecting")

	output := buf.String()
	if !strings.Contains(output, "collecting") {
		t.Error("Message not found in output")
	}
	if !strings.Contains(output, `"target":"golang"`) {
		t.Error("Field not found in output")
	}
}

func TestWithFieldsChaining(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	logger.
		WithField("target", "golang").
		WithFields(map[string]interface{}{
			"accepted":   42,
			"duplicates": 7,
			"adaptive":   true,
		}).
		Info("batch processed")

	output := buf.String()
	if !strings.Contains(output, `"target":"golang"`) {
		t.Error("Chained field not found in output")
	}
	if !strings.Contains(output, `"accepted":42`) {
		t.Error("Int field not found in output")
	}
	if !strings.Contains(output, `"adaptive":true`) {
		t.Error("Bool field not found in output")
	}
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	if logger.WithError(nil) != Logger(logger) {
		t.Error("WithError(nil) should return the same logger")
	}

	logger.WithError(&testError{msg: "connection reset"}).Error("fetch failed")

	output := buf.String()
	if !strings.Contains(output, "fetch failed") {
		t.Error("Message not found in output")
	}
	if !strings.Contains(output, "connection reset") {
		t.Error("Error message not found in output")
	}
}

func TestStructuredLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	logger.InfoWithFields("merge persisted", map[string]interface{}{
		"target":      "golang",
		"accepted":    10,
		"duration":    2 * time.Second,
		"targets":     []string{"golang", "rust"},
		"finished_at": time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})

	output := buf.String()
	if !strings.Contains(output, "merge persisted") {
		t.Error("Message not found in output")
	}
	if !strings.Contains(output, `"target":"golang"`) {
		t.Error("String field not found in output")
	}
	if !strings.Contains(output, `"accepted":10`) {
		t.Error("Int field not found in output")
	}
}

func TestGlobalLogger(t *testing.T) {
	cfg := &config.LoggingConfig{
		Level: "debug",
	}
	if err := Initialize(cfg); err != nil {
		t.Fatalf("Failed to initialize logger: %v", err)
	}

	if GetLogger() == nil {
		t.Error("GetLogger() returned nil")
	}
}

// Helper error type for testing
type testError struct {
	msg string
}

func (e *testError) Error() string {
	return e.msg
}
