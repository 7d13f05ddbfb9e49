package events

// Event type constants for kelindar/event.
const (
	TypeCaptureStateChanged uint32 = iota + 1
	TypeSlotChanged
	TypeSaveCompleted
	TypeSaveFailed
	TypeDeviceChanged
	TypeSettingsChanged
	TypeCommandRejected
)

// Names identify event types outside the process (SSE event names, NATS subjects).
var names = map[uint32]string{
	TypeCaptureStateChanged: "capture-state",
	TypeSlotChanged:         "slot-changed",
	TypeSaveCompleted:       "save-completed",
	TypeSaveFailed:          "save-failed",
	TypeDeviceChanged:       "device-changed",
	TypeSettingsChanged:     "settings-changed",
	TypeCommandRejected:     "command-rejected",
}

// Name returns the external name of ev's type, or "" for unknown types.
func Name(ev Event) string {
	return names[ev.Type()]
}

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// Publisher is the publishing half of Bus, for components that only emit.
type Publisher interface {
	Publish(ev Event)
}

// CaptureStateChangedEvent is published when the live capture starts or stops.
type CaptureStateChangedEvent struct {
	Running   bool   `json:"running"`
	DeviceID  string `json:"device_id"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Type returns the event type identifier for CaptureStateChangedEvent.
func (e CaptureStateChangedEvent) Type() uint32 { return TypeCaptureStateChanged }

// SlotChangedEvent is published after every slot transition.
type SlotChangedEvent struct {
	Slot          string `json:"slot"`
	Action        string `json:"action" example:"captured" doc:"captured, reset or saved"`
	FrontOccupied bool   `json:"front_occupied"`
	BackOccupied  bool   `json:"back_occupied"`
	Timestamp     string `json:"timestamp"`
}

// Type returns the event type identifier for SlotChangedEvent.
func (e SlotChangedEvent) Type() uint32 { return TypeSlotChanged }

// BothOccupied reports whether the event leaves the station full.
func (e SlotChangedEvent) BothOccupied() bool { return e.FrontOccupied && e.BackOccupied }

// SaveCompletedEvent is published after both images were written.
type SaveCompletedEvent struct {
	Folder    string `json:"folder"`
	FrontPath string `json:"front_path"`
	BackPath  string `json:"back_path"`
	Timestamp string `json:"timestamp"`
}

// Type returns the event type identifier for SaveCompletedEvent.
func (e SaveCompletedEvent) Type() uint32 { return TypeSaveCompleted }

// SaveFailedEvent is published when a save was attempted and failed.
type SaveFailedEvent struct {
	Folder    string `json:"folder"`
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
}

// Type returns the event type identifier for SaveFailedEvent.
func (e SaveFailedEvent) Type() uint32 { return TypeSaveFailed }

// DeviceChangedEvent represents capture device hotplug.
type DeviceChangedEvent struct {
	Action     string `json:"action" example:"added" doc:"added or removed"`
	DeviceID   string `json:"device_id"`
	DevicePath string `json:"device_path"`
	DeviceName string `json:"device_name"`
	Timestamp  string `json:"timestamp"`
}

// Type returns the event type identifier for DeviceChangedEvent.
func (e DeviceChangedEvent) Type() uint32 { return TypeDeviceChanged }

// SettingsChangedEvent is published when a new settings snapshot is installed.
type SettingsChangedEvent struct {
	DeviceID      string `json:"device_id"`
	BasePath      string `json:"base_path"`
	DeviceChanged bool   `json:"device_changed"`
	Timestamp     string `json:"timestamp"`
}

// Type returns the event type identifier for SettingsChangedEvent.
func (e SettingsChangedEvent) Type() uint32 { return TypeSettingsChanged }

// CommandRejectedEvent is published for unrecognized operator input.
type CommandRejectedEvent struct {
	Input     string `json:"input"`
	Source    string `json:"source" example:"console"`
	Timestamp string `json:"timestamp"`
}

// Type returns the event type identifier for CommandRejectedEvent.
func (e CommandRejectedEvent) Type() uint32 { return TypeCommandRejected }
