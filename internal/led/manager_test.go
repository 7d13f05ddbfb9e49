package led

import (
	"sync"
	"testing"
	"time"

	"github.com/smazurov/photostation/internal/events"
	"github.com/smazurov/photostation/internal/logging"
)

// Mock controller for testing
type mockController struct {
	mu       sync.Mutex
	setCalls []setCall
}

type setCall struct {
	ledType string
	enabled bool
	pattern string
}

func (m *mockController) Set(ledType string, enabled bool, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setCalls = append(m.setCalls, setCall{ledType, enabled, pattern})
	return nil
}

func (m *mockController) Available() []string { return []string{"user"} }

func (m *mockController) Patterns() []string { return []string{PatternSolid, PatternBlink} }

func (m *mockController) last() (setCall, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.setCalls) == 0 {
		return setCall{}, false
	}
	return m.setCalls[len(m.setCalls)-1], true
}

func waitIndicator(t *testing.T, mgr *Manager, want Indicator) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for mgr.Indicator() != want {
		if time.Now().After(deadline) {
			t.Fatalf("indicator = %s, want %s", mgr.Indicator(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func newTestManager(t *testing.T) (*Manager, *mockController, *events.Bus) {
	t.Helper()
	ctrl := &mockController{}
	bus := events.New()
	mgr := NewManager(ctrl, "user", bus, logging.Discard())
	mgr.Start()
	t.Cleanup(mgr.Stop)
	return mgr, ctrl, bus
}

func TestManager_NoCameraOnStart(t *testing.T) {
	mgr, ctrl, _ := newTestManager(t)

	if mgr.Indicator() != IndicatorNoCamera {
		t.Errorf("indicator = %s, want no_camera", mgr.Indicator())
	}
	call, ok := ctrl.last()
	if !ok || call.pattern != PatternHeartbeat || !call.enabled || call.ledType != "user" {
		t.Errorf("last call = %+v", call)
	}
}

func TestManager_FollowsSlots(t *testing.T) {
	mgr, ctrl, bus := newTestManager(t)

	bus.Publish(events.CaptureStateChangedEvent{Running: true, DeviceID: "cam"})
	waitIndicator(t, mgr, IndicatorIdle)
	if call, _ := ctrl.last(); call.enabled {
		t.Errorf("idle LED is on: %+v", call)
	}

	bus.Publish(events.SlotChangedEvent{Slot: "front", Action: "captured", FrontOccupied: true})
	waitIndicator(t, mgr, IndicatorPartial)
	if call, _ := ctrl.last(); call.pattern != PatternBlink {
		t.Errorf("partial pattern = %q", call.pattern)
	}

	bus.Publish(events.SlotChangedEvent{Slot: "back", Action: "captured", FrontOccupied: true, BackOccupied: true})
	waitIndicator(t, mgr, IndicatorBothSet)
	if call, _ := ctrl.last(); call.pattern != PatternSolid {
		t.Errorf("ready pattern = %q", call.pattern)
	}

	bus.Publish(events.SlotChangedEvent{Slot: "back", Action: "saved"})
	waitIndicator(t, mgr, IndicatorIdle)
}

func TestManager_CameraLossWins(t *testing.T) {
	mgr, _, bus := newTestManager(t)

	bus.Publish(events.CaptureStateChangedEvent{Running: true})
	bus.Publish(events.SlotChangedEvent{FrontOccupied: true, BackOccupied: true})
	waitIndicator(t, mgr, IndicatorBothSet)

	bus.Publish(events.CaptureStateChangedEvent{Running: false, Error: "unplugged"})
	waitIndicator(t, mgr, IndicatorNoCamera)
}

func TestManager_RepeatedStateNotRewritten(t *testing.T) {
	mgr, ctrl, bus := newTestManager(t)

	bus.Publish(events.CaptureStateChangedEvent{Running: true})
	waitIndicator(t, mgr, IndicatorIdle)

	ctrl.mu.Lock()
	before := len(ctrl.setCalls)
	ctrl.mu.Unlock()

	bus.Publish(events.CaptureStateChangedEvent{Running: true})
	time.Sleep(30 * time.Millisecond)

	ctrl.mu.Lock()
	after := len(ctrl.setCalls)
	ctrl.mu.Unlock()
	if after != before {
		t.Errorf("LED rewritten for unchanged state: %d -> %d calls", before, after)
	}
}

func TestManager_Controller(t *testing.T) {
	ctrl := &mockController{}
	mgr := NewManager(ctrl, "user", events.New(), logging.Discard())

	if got := mgr.Controller(); got != ctrl {
		t.Error("Controller() did not return the original controller")
	}
}

func TestIndicatorFor(t *testing.T) {
	tests := []struct {
		running bool
		slots   int
		want    Indicator
	}{
		{false, 0, IndicatorNoCamera},
		{false, 2, IndicatorNoCamera},
		{true, 0, IndicatorIdle},
		{true, 1, IndicatorPartial},
		{true, 2, IndicatorBothSet},
	}
	for _, tt := range tests {
		if got := indicatorFor(tt.running, tt.slots); got != tt.want {
			t.Errorf("indicatorFor(%v, %d) = %s, want %s", tt.running, tt.slots, got, tt.want)
		}
	}
}
