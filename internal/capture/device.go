// Package capture runs the live capture device and feeds its frames into the
// latest-wins buffer and the display sink.
package capture

import (
	"context"
	"errors"
	"fmt"

	"github.com/smazurov/photostation/internal/devices"
	"github.com/smazurov/photostation/internal/frame"
)

var (
	// ErrDeviceNotFound is returned when the configured device is not enumerated.
	ErrDeviceNotFound = errors.New("capture device not found")
	// ErrNoDevices is returned when enumeration finds nothing. It matches ErrDeviceNotFound.
	ErrNoDevices = fmt.Errorf("%w: no camera devices found", ErrDeviceNotFound)
	// ErrDeviceUnavailable is returned when a device exists but cannot be opened or started.
	ErrDeviceUnavailable = errors.New("capture device unavailable")
)

// FrameHandler receives frames on the device goroutine. The frame and its
// pixel buffer are only valid for the duration of the call.
type FrameHandler func(f *frame.Frame)

// Device is an opened capture device.
type Device interface {
	// Start begins delivering frames to handler and returns once the first
	// frame arrived or the device failed.
	Start(ctx context.Context, handler FrameHandler) error
	// Stop signals the device to stop and waits until no handler call is in flight.
	Stop() error
	// Close releases the device. Close after Stop.
	Close() error
	// Done is closed when the device stops delivering frames for any reason.
	Done() <-chan struct{}
	// Err reports why the device stopped, or nil after a requested Stop.
	Err() error
}

// Opener opens enumerated devices.
type Opener interface {
	Open(info devices.DeviceInfo) (Device, error)
}

// DisplaySink receives an independent copy of every live frame.
// Show must not block.
type DisplaySink interface {
	Show(f *frame.Frame)
}
