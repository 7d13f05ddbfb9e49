package devices

import (
	"log/slog"
	"sync"

	"github.com/smazurov/photostation/internal/events"
)

// tracker remembers the last enumerated device set and publishes the
// difference when a new enumeration arrives.
type tracker struct {
	mu          sync.Mutex
	lastDevices map[string]DeviceInfo // key is DeviceID
	publisher   Publisher
	logger      *slog.Logger
}

func newTracker(publisher Publisher, logger *slog.Logger) *tracker {
	return &tracker{
		lastDevices: make(map[string]DeviceInfo),
		publisher:   publisher,
		logger:      logger,
	}
}

// seed records the initial device set without publishing anything.
func (t *tracker) seed(devices []DeviceInfo) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, device := range devices {
		t.lastDevices[device.DeviceID] = device
	}
}

// update diffs devices against the last known set and publishes
// removed, added and changed events in that order.
func (t *tracker) update(devices []DeviceInfo) {
	current := make(map[string]DeviceInfo, len(devices))
	for _, device := range devices {
		current[device.DeviceID] = device
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for id, old := range t.lastDevices {
		if _, exists := current[id]; !exists {
			t.publish("removed", old)
			t.logger.Info("Device removed", "device", old.DevicePath, "name", old.DeviceName, "id", id)
			delete(t.lastDevices, id)
		}
	}

	for _, device := range devices {
		old, exists := t.lastDevices[device.DeviceID]
		switch {
		case !exists:
			t.publish("added", device)
			t.logger.Info("Device added", "device", device.DevicePath, "name", device.DeviceName, "id", device.DeviceID)
		case old != device:
			t.publish("changed", device)
			t.logger.Info("Device changed", "device", device.DevicePath, "name", device.DeviceName, "id", device.DeviceID)
		default:
			continue
		}
		t.lastDevices[device.DeviceID] = device
	}
}

func (t *tracker) publish(action string, device DeviceInfo) {
	if t.publisher == nil {
		return
	}
	t.publisher.Publish(events.DeviceChangedEvent{
		Action:     action,
		DeviceID:   device.DeviceID,
		DevicePath: device.DevicePath,
		DeviceName: device.DeviceName,
		Timestamp:  events.Now(),
	})
}
