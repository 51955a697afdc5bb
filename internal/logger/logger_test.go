package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func reset() { Log = zap.NewNop() }

func TestLogLevels(t *testing.T) {
	tempDir := t.TempDir()
	defer reset()

	tests := []struct {
		level    string
		expected []string
		excluded []string
	}{
		{level: "error", expected: []string{"ERROR"}, excluded: []string{"WARN", "INFO", "DEBUG"}},
		{level: "warn", expected: []string{"ERROR", "WARN"}, excluded: []string{"INFO", "DEBUG"}},
		{level: "info", expected: []string{"ERROR", "WARN", "INFO"}, excluded: []string{"DEBUG"}},
		{level: "debug", expected: []string{"ERROR", "WARN", "INFO", "DEBUG"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logFile := filepath.Join(tempDir, tt.level+".log")
			if err := setup(tt.level, logFile, nil); err != nil {
				t.Fatalf("failed to init logger: %v", err)
			}

			Log.Debug("debug message")
			Log.Info("info message")
			Log.Warn("warn message")
			Log.Error("error message")
			Sync()

			content, err := os.ReadFile(logFile)
			if err != nil {
				t.Fatalf("failed to read log file: %v", err)
			}
			logContent := string(content)

			for _, exp := range tt.expected {
				if !strings.Contains(logContent, `"level":"`+exp+`"`) {
					t.Errorf("expected %s in log output", exp)
				}
			}
			for _, exc := range tt.excluded {
				if strings.Contains(logContent, `"level":"`+exc+`"`) {
					t.Errorf("unexpected %s in log output for level %s", exc, tt.level)
				}
			}
		})
	}
}

func TestConsoleSink(t *testing.T) {
	defer reset()
	var buf bytes.Buffer
	if err := setup("warn", "", zapcore.AddSync(&buf)); err != nil {
		t.Fatal(err)
	}
	Log.Info("hidden")
	Log.Warn("singular inertia matrix", zap.String("solver", "lu"))
	Sync()

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("expected info to be filtered, got %q", out)
	}
	if !strings.Contains(out, "singular inertia matrix") || !strings.Contains(out, "lu") {
		t.Errorf("expected warning with field, got %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	if _, err := parseLevel("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
	if lvl, err := parseLevel(""); err != nil || lvl != zapcore.InfoLevel {
		t.Errorf("expected info for empty level, got %v (%v)", lvl, err)
	}
	if lvl, _ := parseLevel("WARNING"); lvl != zapcore.WarnLevel {
		t.Errorf("expected warn, got %v", lvl)
	}
	if err := Init("verbose", ""); err == nil {
		t.Error("expected Init to reject an unknown level")
	}
}

func TestNopByDefault(t *testing.T) {
	reset()
	// must not panic before Init
	Log.Info("ignored")
	Sync()
}
