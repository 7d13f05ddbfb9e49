package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/smazurov/photostation/internal/config"
	"github.com/smazurov/photostation/internal/devices"
	"github.com/smazurov/photostation/internal/events"
	"github.com/smazurov/photostation/internal/frame"
	"github.com/smazurov/photostation/internal/logging"
	"github.com/smazurov/photostation/internal/metrics"
)

// SourceOptions configures a new Source.
type SourceOptions struct {
	// Detector enumerates devices (required).
	Detector devices.DeviceDetector

	// Opener opens the selected device (required).
	Opener Opener

	// Buffer receives the latest frame (required).
	Buffer *frame.Buffer

	// Sink receives a copy of every frame for live display (optional).
	Sink DisplaySink

	// Events receives capture state changes (optional).
	Events events.Publisher

	// Logger for source operations. If nil, uses the "capture" module logger.
	Logger *slog.Logger
}

// Source owns the running capture device. At most one device runs at a time.
type Source struct {
	detector devices.DeviceDetector
	opener   Opener
	buffer   *frame.Buffer
	sink     DisplaySink
	events   events.Publisher
	logger   *slog.Logger

	mu       sync.Mutex
	device   Device
	deviceID string
	gen      uint64

	// attached holds the generation whose handler may publish; 0 means none.
	attached atomic.Uint64
}

// NewSource creates a stopped capture source.
func NewSource(opts SourceOptions) *Source {
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("capture")
	}
	return &Source{
		detector: opts.Detector,
		opener:   opts.Opener,
		buffer:   opts.Buffer,
		sink:     opts.Sink,
		events:   opts.Events,
		logger:   logger,
	}
}

// Devices enumerates the devices available to Start.
func (s *Source) Devices() ([]devices.DeviceInfo, error) {
	return s.detector.FindDevices()
}

// Start opens the device named by settings.DeviceID, or the first enumerated
// device when none is configured, and begins streaming. The returned settings
// carry the device actually selected; the caller decides whether to install
// them. A running device is stopped first.
func (s *Source) Start(ctx context.Context, settings config.Settings) (config.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()

	list, err := s.detector.FindDevices()
	if err != nil {
		return settings, fmt.Errorf("%w: enumerate devices: %w", ErrDeviceUnavailable, err)
	}
	if len(list) == 0 {
		return settings, ErrNoDevices
	}

	var info devices.DeviceInfo
	if settings.DeviceID == "" {
		info = list[0]
		settings.DeviceID = info.DeviceID
		s.logger.Info("No device configured, selecting first device", "device_id", info.DeviceID, "name", info.DeviceName)
	} else {
		var ok bool
		info, ok = devices.Lookup(list, settings.DeviceID)
		if !ok {
			return settings, fmt.Errorf("%w: %s", ErrDeviceNotFound, settings.DeviceID)
		}
		settings.DeviceID = info.DeviceID
	}

	dev, err := s.opener.Open(info)
	if err != nil {
		s.publishState(info.DeviceID, false, err)
		return settings, fmt.Errorf("%w: %s: %w", ErrDeviceUnavailable, info.DeviceID, err)
	}

	s.gen++
	gen := s.gen
	s.attached.Store(gen)

	if err := dev.Start(ctx, func(f *frame.Frame) { s.handleFrame(gen, f) }); err != nil {
		s.attached.Store(0)
		if stopErr := dev.Stop(); stopErr != nil {
			s.logger.Debug("Stop after failed start", "error", stopErr)
		}
		if closeErr := dev.Close(); closeErr != nil {
			s.logger.Debug("Close after failed start", "error", closeErr)
		}
		s.publishState(info.DeviceID, false, err)
		return settings, fmt.Errorf("%w: %s: %w", ErrDeviceUnavailable, info.DeviceID, err)
	}

	s.device = dev
	s.deviceID = info.DeviceID
	go s.watch(gen, dev)

	s.logger.Info("Capture started", "device_id", info.DeviceID, "path", info.DevicePath, "name", info.DeviceName)
	metrics.SetCaptureRunning(info.DeviceID, true)
	s.publishState(info.DeviceID, true, nil)
	return settings, nil
}

// handleFrame runs on the device goroutine. Frames that fail validation are
// dropped silently; the buffer and the sink each get their own copy.
func (s *Source) handleFrame(gen uint64, f *frame.Frame) {
	if s.attached.Load() != gen {
		return
	}
	if err := f.Validate(); err != nil {
		metrics.IncFramesInvalid()
		s.logger.Debug("Dropping invalid frame", "error", err)
		return
	}

	s.buffer.Publish(f.Clone())
	metrics.IncFramesPublished()

	if s.sink != nil {
		s.sink.Show(f.Clone())
	}
}

// watch reacts to a device that stops on its own (unplugged, ffmpeg died).
// Capture is not restarted.
func (s *Source) watch(gen uint64, dev Device) {
	<-dev.Done()
	if s.attached.Load() != gen {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen || s.device != dev {
		return
	}

	err := dev.Err()
	s.logger.Error("Capture device stopped unexpectedly", "device_id", s.deviceID, "error", err)
	if err == nil {
		err = errors.New("device stopped")
	}
	s.detachLocked(err)
}

// Stop stops the running device: the frame handler is detached first, then
// the device is stopped and released, and finally the buffer is cleared.
// Stop is idempotent and safe to call when never started.
func (s *Source) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Source) stopLocked() {
	if s.device == nil {
		s.buffer.Clear()
		return
	}
	s.detachLocked(nil)
}

func (s *Source) detachLocked(cause error) {
	dev, id := s.device, s.deviceID

	s.attached.Store(0)
	if err := dev.Stop(); err != nil {
		s.logger.Warn("Error stopping capture device", "device_id", id, "error", err)
	}
	if err := dev.Close(); err != nil {
		s.logger.Warn("Error releasing capture device", "device_id", id, "error", err)
	}
	s.device = nil
	s.deviceID = ""
	s.buffer.Clear()

	if cause == nil {
		s.logger.Info("Capture stopped", "device_id", id)
	}
	metrics.SetCaptureRunning(id, false)
	s.publishState(id, false, cause)
}

// Running reports whether a device is streaming.
func (s *Source) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.device != nil
}

// DeviceID returns the running device's ID, or "" when stopped.
func (s *Source) DeviceID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deviceID
}

func (s *Source) publishState(deviceID string, running bool, err error) {
	if s.events == nil {
		return
	}
	ev := events.CaptureStateChangedEvent{
		Running:   running,
		DeviceID:  deviceID,
		Timestamp: events.Now(),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	s.events.Publish(ev)
}
