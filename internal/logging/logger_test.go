package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"
)

func resetLogging(t *testing.T) {
	t.Helper()
	mutex.Lock()
	moduleLoggers = make(map[string]*slog.Logger)
	moduleLevelVars = make(map[string]*slog.LevelVar)
	isInitialized = false
	globalConfig = Config{}
	mutex.Unlock()
}

func TestModuleLevelOverride(t *testing.T) {
	resetLogging(t)

	Initialize(Config{
		Level:  "info",
		Format: "text",
		Modules: map[string]string{
			"capture": "debug",
			"api":     "warn",
		},
	})

	tests := []struct {
		module    string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"capture", true, true, true},
		{"api", false, false, true},
		{"station", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			handler := GetLogger(tt.module).Handler()
			ctx := context.Background()

			if got := handler.Enabled(ctx, slog.LevelDebug); got != tt.wantDebug {
				t.Errorf("Debug enabled = %v, want %v", got, tt.wantDebug)
			}
			if got := handler.Enabled(ctx, slog.LevelInfo); got != tt.wantInfo {
				t.Errorf("Info enabled = %v, want %v", got, tt.wantInfo)
			}
			if got := handler.Enabled(ctx, slog.LevelWarn); got != tt.wantWarn {
				t.Errorf("Warn enabled = %v, want %v", got, tt.wantWarn)
			}
		})
	}
}

func TestGetLoggerBeforeInitialize(t *testing.T) {
	resetLogging(t)

	before := GetLogger("capture")
	if before.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("logger created before Initialize should default to info")
	}

	Initialize(Config{Level: "info", Modules: map[string]string{"capture": "debug"}})

	after := GetLogger("capture")
	if !after.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Initialize should apply module override to existing logger")
	}
}

func TestSetModuleLevel(t *testing.T) {
	resetLogging(t)
	Initialize(Config{Level: "info"})

	if err := SetModuleLevel("persist", "debug"); err != nil {
		t.Fatalf("SetModuleLevel: %v", err)
	}
	if !GetLogger("persist").Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected debug enabled after SetModuleLevel")
	}

	if err := SetModuleLevel("persist", "loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
		ok   bool
	}{
		{"debug", slog.LevelDebug, true},
		{" INFO ", slog.LevelInfo, true},
		{"warning", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"", slog.LevelInfo, false},
	}
	for _, tt := range tests {
		got, ok := parseLevel(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("parseLevel(%q) = %v,%v want %v,%v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestMultiHandlerDebugOutput(t *testing.T) {
	var buf bytes.Buffer

	debugHandler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	infoHandler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})

	logger := slog.New(NewMultiHandler(debugHandler, infoHandler)).With("module", "test")
	logger.Debug("debug only message")
	logger.Info("both handlers")

	output := buf.String()
	if n := strings.Count(output, "debug only message"); n != 1 {
		t.Errorf("expected 1 debug line, got %d. Output: %s", n, output)
	}
	if n := strings.Count(output, "both handlers"); n != 2 {
		t.Errorf("expected 2 info lines, got %d. Output: %s", n, output)
	}
}

func TestAddAttrToFields(t *testing.T) {
	fields := make(map[string]string)
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	addAttrToFields(fields, slog.String("device_id", "usb-cam"), nil)
	addAttrToFields(fields, slog.Int("count", 3), []string{"slots"})
	addAttrToFields(fields, slog.Group("save", slog.String("folder", "device42")), nil)
	addAttrToFields(fields, slog.Time("at", ts), nil)
	addAttrToFields(fields, slog.Attr{}, nil)

	want := map[string]string{
		"DEVICE_ID":   "usb-cam",
		"SLOTS_COUNT": "3",
		"SAVE_FOLDER": "device42",
		"AT":          "2026-01-02T03:04:05.000Z",
	}
	for k, v := range want {
		if fields[k] != v {
			t.Errorf("fields[%s] = %q, want %q", k, fields[k], v)
		}
	}
	if len(fields) != len(want) {
		t.Errorf("unexpected fields: %v", fields)
	}
}

func TestInitializeOutput(t *testing.T) {
	resetLogging(t)
	defer resetLogging(t)

	Initialize(Config{Level: "info", Output: "stderr"})
	if output != os.Stderr {
		t.Error("Output stderr not applied")
	}
	Initialize(Config{Level: "info"})
	if output != os.Stdout {
		t.Error("default output should be stdout")
	}
}
