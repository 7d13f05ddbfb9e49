// Package devices enumerates video capture devices and watches for hotplug.
package devices

import (
	"context"
	"errors"
	"strings"

	"github.com/smazurov/photostation/internal/events"
)

// ErrEnumerationUnsupported is returned where no enumeration backend exists.
var ErrEnumerationUnsupported = errors.New("device enumeration not supported on this platform")

// DeviceInfo represents information about a capture device.
type DeviceInfo struct {
	// DeviceID is the stable identifier stored in settings.
	// On linux it is the /dev/v4l/by-id (or by-path) link name.
	DeviceID string `json:"device_id"`
	// DevicePath is what the capture backend opens.
	DevicePath string `json:"device_path"`
	DeviceName string `json:"device_name"`
	Bus        string `json:"bus,omitempty"`
}

// Publisher receives device hotplug events. *events.Bus implements it.
type Publisher = events.Publisher

// DeviceDetector provides platform-specific device detection.
type DeviceDetector interface {
	// FindDevices returns all currently available capture devices in a stable order.
	FindDevices() ([]DeviceInfo, error)

	// StartMonitoring starts publishing DeviceChangedEvent on hotplug.
	StartMonitoring(ctx context.Context, publisher Publisher) error

	// StopMonitoring stops the device monitoring.
	StopMonitoring()
}

// NewDetector creates a platform-specific device detector.
func NewDetector() DeviceDetector {
	return newDetector()
}

// Lookup finds a device by stable ID, falling back to a device path match so
// settings written with a raw /dev/videoN path keep working. Exact matches win;
// otherwise IDs and paths compare case-insensitively.
func Lookup(devices []DeviceInfo, id string) (DeviceInfo, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return DeviceInfo{}, false
	}
	for _, d := range devices {
		if d.DeviceID == id {
			return d, true
		}
	}
	for _, d := range devices {
		if d.DevicePath == id {
			return d, true
		}
	}
	for _, d := range devices {
		if strings.EqualFold(d.DeviceID, id) || strings.EqualFold(d.DevicePath, id) {
			return d, true
		}
	}
	return DeviceInfo{}, false
}
