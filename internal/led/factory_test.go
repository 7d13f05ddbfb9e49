package led

import (
	"testing"

	"github.com/smazurov/photostation/internal/logging"
)

func TestNew(t *testing.T) {
	// Should always return a non-nil controller
	ctrl, _ := New(logging.Discard())
	if ctrl == nil {
		t.Fatal("New() returned nil")
	}
	if ctrl.Available() == nil {
		t.Error("Available() returned nil")
	}
	if ctrl.Patterns() == nil {
		t.Error("Patterns() returned nil")
	}
}

func TestNewForModel(t *testing.T) {
	tests := []struct {
		model string
		led   string
		sysfs bool
	}{
		{"FriendlyElec NanoPC-T6", "user", true},
		{"Raspberry Pi 4 Model B Rev 1.4", "act", true},
		{"Xunlong Orange Pi 5", "green", true},
		{"unknown", "", false},
	}
	for _, tt := range tests {
		ctrl, led := newForModel(tt.model, logging.Discard())
		if led != tt.led {
			t.Errorf("%s: status LED = %q, want %q", tt.model, led, tt.led)
		}
		if _, ok := ctrl.(*sysfs); ok != tt.sysfs {
			t.Errorf("%s: sysfs = %v, want %v", tt.model, ok, tt.sysfs)
		}
	}
}

func TestDetectBoard(t *testing.T) {
	// Should return a non-empty string (or "unknown")
	if model := detectBoard(); model == "" {
		t.Error("detectBoard() returned empty string")
	}
}
