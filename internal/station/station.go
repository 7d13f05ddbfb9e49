package station

import (
	"log/slog"
	"sync"

	"github.com/smazurov/photostation/internal/events"
	"github.com/smazurov/photostation/internal/frame"
	"github.com/smazurov/photostation/internal/logging"
	"github.com/smazurov/photostation/internal/metrics"
)

// FrameSource supplies the latest live frame. *frame.Buffer implements it.
type FrameSource interface {
	Snapshot() (*frame.Frame, bool)
}

// Options configures a Station.
type Options struct {
	// Events receives SlotChangedEvent after each transition (optional).
	Events events.Publisher
	// Logger defaults to the "station" module logger.
	Logger *slog.Logger
}

// Station holds at most one frame per slot. Stored frames are never mutated;
// callers that need a frame beyond the station's lifetime take a Clone.
type Station struct {
	source FrameSource
	events events.Publisher
	logger *slog.Logger

	mu    sync.Mutex
	slots [slotCount]*frame.Frame
}

// New creates an empty station reading from source.
func New(source FrameSource, opts Options) *Station {
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("station")
	}
	return &Station{
		source: source,
		events: opts.Events,
		logger: logger,
	}
}

// Capture snapshots the live frame into Front if empty, else Back if empty.
// When both are occupied decide picks the outcome; a nil decide returns
// ErrAmbiguousCaptureTarget. Nothing changes when no frame is available.
func (s *Station) Capture(decide Decider) (CaptureResult, error) {
	snap, ok := s.source.Snapshot()
	if !ok {
		metrics.IncCapture("no_frame")
		return CaptureResult{}, ErrNoFrameAvailable
	}

	s.mu.Lock()
	for slot := Front; slot < slotCount; slot++ {
		if s.slots[slot] == nil {
			s.slots[slot] = snap
			state := s.stateLocked()
			s.mu.Unlock()

			result := CaptureResult{Slot: slot, Stored: true}
			s.captured(result, snap, state)
			return result, nil
		}
	}
	s.mu.Unlock()

	if decide == nil {
		metrics.IncCapture("ambiguous")
		return CaptureResult{}, ErrAmbiguousCaptureTarget
	}
	return s.resolve(snap, decide())
}

// CaptureInto is Capture with the overwrite decision supplied up front.
// choice is consulted only when both slots are occupied; NoChoice behaves
// like a nil decider.
func (s *Station) CaptureInto(choice Choice) (CaptureResult, error) {
	if choice == NoChoice {
		return s.Capture(nil)
	}
	return s.Capture(func() Choice { return choice })
}

// resolve applies a decision made outside the lock. A slot reset while the
// operator was deciding is simply filled by the chosen overwrite.
func (s *Station) resolve(snap *frame.Frame, choice Choice) (CaptureResult, error) {
	var slot Slot
	switch choice {
	case OverwriteFront:
		slot = Front
	case OverwriteBack:
		slot = Back
	case Discard:
		result := CaptureResult{Choice: Discard}
		metrics.IncCapture(result.Outcome())
		s.logger.Info("Capture discarded, both slots kept")
		return result, nil
	default:
		metrics.IncCapture("ambiguous")
		return CaptureResult{}, ErrAmbiguousCaptureTarget
	}

	s.mu.Lock()
	s.slots[slot] = snap
	state := s.stateLocked()
	s.mu.Unlock()

	result := CaptureResult{Slot: slot, Stored: true, Choice: choice}
	s.captured(result, snap, state)
	return result, nil
}

func (s *Station) captured(result CaptureResult, snap *frame.Frame, state State) {
	metrics.IncCapture(result.Outcome())
	metrics.SetSlotsOccupied(state.Count())
	s.logger.Info("Frame captured", "slot", result.Slot.String(), "outcome", result.Outcome(),
		"size", snap.Size(), "seq", snap.Seq)
	s.publish(result.Slot, "captured", state)
}

// Reset empties slot. Resetting an empty slot is a no-op; the return value
// reports whether a frame was dropped.
func (s *Station) Reset(slot Slot) bool {
	if !slot.Valid() {
		return false
	}
	s.mu.Lock()
	if s.slots[slot] == nil {
		s.mu.Unlock()
		return false
	}
	s.slots[slot] = nil
	state := s.stateLocked()
	s.mu.Unlock()

	metrics.SetSlotsOccupied(state.Count())
	s.logger.Info("Slot reset", "slot", slot.String())
	s.publish(slot, "reset", state)
	return true
}

// ResetAll empties both slots.
func (s *Station) ResetAll() {
	s.Reset(Front)
	s.Reset(Back)
}

// AreBothOccupied reports whether Front and Back both hold a frame.
func (s *Station) AreBothOccupied() bool {
	return s.State().BothOccupied()
}

// Occupied reports whether slot holds a frame.
func (s *Station) Occupied(slot Slot) bool {
	if !slot.Valid() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slots[slot] != nil
}

// Frame returns a copy of the frame in slot, for previews.
func (s *Station) Frame(slot Slot) (*frame.Frame, bool) {
	if !slot.Valid() {
		return nil, false
	}
	s.mu.Lock()
	f := s.slots[slot]
	s.mu.Unlock()
	if f == nil {
		return nil, false
	}
	return f.Clone(), true
}

// State returns the current occupancy.
func (s *Station) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Station) stateLocked() State {
	return State{Front: s.slots[Front] != nil, Back: s.slots[Back] != nil}
}

// Pair is a consistent view of both slots taken for saving. The frames are
// the stored ones and must be treated as read-only.
type Pair struct {
	Front *frame.Frame
	Back  *frame.Frame
}

// Pair returns both stored frames, or false unless both slots are occupied.
func (s *Station) Pair() (Pair, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.slots[Front] == nil || s.slots[Back] == nil {
		return Pair{}, false
	}
	return Pair{Front: s.slots[Front], Back: s.slots[Back]}, true
}

// ClearSaved empties the slots that still hold the frames in p. A slot
// recaptured while p was being written keeps its new frame.
func (s *Station) ClearSaved(p Pair) {
	s.mu.Lock()
	var cleared []Slot
	if p.Front != nil && s.slots[Front] == p.Front {
		s.slots[Front] = nil
		cleared = append(cleared, Front)
	}
	if p.Back != nil && s.slots[Back] == p.Back {
		s.slots[Back] = nil
		cleared = append(cleared, Back)
	}
	state := s.stateLocked()
	s.mu.Unlock()

	metrics.SetSlotsOccupied(state.Count())
	for _, slot := range cleared {
		s.publish(slot, "saved", state)
	}
}

func (s *Station) publish(slot Slot, action string, state State) {
	if s.events == nil {
		return
	}
	s.events.Publish(events.SlotChangedEvent{
		Slot:          slot.String(),
		Action:        action,
		FrontOccupied: state.Front,
		BackOccupied:  state.Back,
		Timestamp:     events.Now(),
	})
}
