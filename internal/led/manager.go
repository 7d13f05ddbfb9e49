package led

import (
	"log/slog"
	"sync"

	"github.com/smazurov/photostation/internal/events"
)

// Indicator is what the status LED currently shows.
type Indicator string

// Indicator values, from most to least urgent.
const (
	IndicatorNoCamera Indicator = "no_camera" // heartbeat
	IndicatorBothSet  Indicator = "ready"     // solid: front and back captured
	IndicatorPartial  Indicator = "partial"   // blink: one side captured
	IndicatorIdle     Indicator = "idle"      // off
)

// Manager subscribes to station events and drives the status LED.
type Manager struct {
	controller Controller
	ledType    string
	eventBus   *events.Bus
	logger     *slog.Logger

	unsubscribe []func()

	mu      sync.Mutex
	running bool
	slots   int
	shown   Indicator
}

// NewManager creates a manager driving ledType on controller.
func NewManager(controller Controller, ledType string, eventBus *events.Bus, logger *slog.Logger) *Manager {
	return &Manager{
		controller: controller,
		ledType:    ledType,
		eventBus:   eventBus,
		logger:     logger,
	}
}

// Start subscribes to capture and slot events and shows the initial state.
func (m *Manager) Start() {
	m.unsubscribe = append(m.unsubscribe,
		m.eventBus.Subscribe(func(e events.CaptureStateChangedEvent) {
			m.update(func() { m.running = e.Running })
		}),
		m.eventBus.Subscribe(func(e events.SlotChangedEvent) {
			m.update(func() { m.slots = occupied(e) })
		}),
	)
	m.update(func() {})
	m.logger.Info("LED manager started", "led", m.ledType)
}

// Stop unsubscribes and switches the LED off.
func (m *Manager) Stop() {
	for _, unsub := range m.unsubscribe {
		unsub()
	}
	m.unsubscribe = nil
	if m.ledType != "" {
		if err := m.controller.Set(m.ledType, false, ""); err != nil {
			m.logger.Warn("Failed to switch LED off", "error", err)
		}
	}
	m.logger.Info("LED manager stopped")
}

// Indicator returns what the LED is showing.
func (m *Manager) Indicator() Indicator {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shown
}

// LEDType returns the LED the manager drives, or "" when the board has none.
func (m *Manager) LEDType() string {
	return m.ledType
}

// Controller returns the underlying LED controller for direct API access.
func (m *Manager) Controller() Controller {
	return m.controller
}

func (m *Manager) update(apply func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	apply()
	next := indicatorFor(m.running, m.slots)
	if next == m.shown {
		return
	}
	m.shown = next
	m.logger.Debug("Status LED changed", "indicator", next, "running", m.running, "slots", m.slots)

	if m.ledType == "" {
		return
	}
	enabled, pattern := true, ""
	switch next {
	case IndicatorNoCamera:
		pattern = PatternHeartbeat
	case IndicatorBothSet:
		pattern = PatternSolid
	case IndicatorPartial:
		pattern = PatternBlink
	default:
		enabled = false
	}
	if err := m.controller.Set(m.ledType, enabled, pattern); err != nil {
		m.logger.Warn("Failed to set status LED", "indicator", next, "error", err)
	}
}

func indicatorFor(running bool, slots int) Indicator {
	switch {
	case !running:
		return IndicatorNoCamera
	case slots >= 2:
		return IndicatorBothSet
	case slots == 1:
		return IndicatorPartial
	default:
		return IndicatorIdle
	}
}

func occupied(e events.SlotChangedEvent) int {
	n := 0
	if e.FrontOccupied {
		n++
	}
	if e.BackOccupied {
		n++
	}
	return n
}
