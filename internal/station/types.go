// Package station is the two-slot (front/back) capture state machine.
package station

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoFrameAvailable is returned when the live buffer is empty. No slot changes.
	ErrNoFrameAvailable = errors.New("no camera frame available yet, please wait a moment")
	// ErrAmbiguousCaptureTarget is returned when both slots are full and no
	// decision about which one to overwrite was supplied.
	ErrAmbiguousCaptureTarget = errors.New("both front and back are already captured")
	// ErrUnknownSlot is returned by ParseSlot.
	ErrUnknownSlot = errors.New("unknown slot")
	// ErrUnknownChoice is returned by ParseChoice.
	ErrUnknownChoice = errors.New("unknown overwrite choice")
)

// Slot names one of the two capture positions.
type Slot int

// Slots, in fill order.
const (
	Front Slot = iota
	Back
	slotCount
)

func (s Slot) String() string {
	switch s {
	case Front:
		return "front"
	case Back:
		return "back"
	default:
		return fmt.Sprintf("slot(%d)", int(s))
	}
}

// Valid reports whether s is Front or Back.
func (s Slot) Valid() bool { return s >= Front && s < slotCount }

// ParseSlot accepts "front" or "back" in any case.
func ParseSlot(v string) (Slot, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "front":
		return Front, nil
	case "back":
		return Back, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownSlot, v)
	}
}

// Choice resolves a capture when both slots are occupied.
type Choice int

// Overwrite choices. The zero value is "no decision".
const (
	NoChoice Choice = iota
	OverwriteFront
	OverwriteBack
	Discard
)

func (c Choice) String() string {
	switch c {
	case OverwriteFront:
		return "overwrite_front"
	case OverwriteBack:
		return "overwrite_back"
	case Discard:
		return "discard"
	default:
		return "none"
	}
}

// ParseChoice accepts "front", "back" or "discard" (also the String forms).
// Blank input is NoChoice.
func ParseChoice(v string) (Choice, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "none":
		return NoChoice, nil
	case "front", "overwrite_front":
		return OverwriteFront, nil
	case "back", "overwrite_back":
		return OverwriteBack, nil
	case "discard", "cancel":
		return Discard, nil
	default:
		return NoChoice, fmt.Errorf("%w: %q", ErrUnknownChoice, v)
	}
}

// Decider is asked which slot to overwrite when both are occupied. It is
// never called while the station lock is held, so it may block on the operator.
type Decider func() Choice

// CaptureResult describes what a capture did.
type CaptureResult struct {
	// Slot that received the frame. Meaningless when Stored is false.
	Slot Slot
	// Stored is false when the operator discarded the frame.
	Stored bool
	// Choice is the decider's answer, or NoChoice when a slot was free.
	Choice Choice
}

// Outcome is a short label for logs and metrics.
func (r CaptureResult) Outcome() string {
	if !r.Stored {
		return "discarded"
	}
	if r.Choice != NoChoice {
		return r.Choice.String()
	}
	return r.Slot.String()
}

// State is a point-in-time view of slot occupancy.
type State struct {
	Front bool `json:"front"`
	Back  bool `json:"back"`
}

// BothOccupied reports whether both slots hold a frame.
func (s State) BothOccupied() bool { return s.Front && s.Back }

// Count returns the number of occupied slots.
func (s State) Count() int {
	n := 0
	if s.Front {
		n++
	}
	if s.Back {
		n++
	}
	return n
}
