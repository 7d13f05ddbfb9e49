//go:build linux

package devices

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/jochenvg/go-udev"
	"github.com/smazurov/photostation/internal/logging"
)

type linuxDetector struct {
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	logger *slog.Logger
}

func newDetector() DeviceDetector {
	return &linuxDetector{
		logger: logging.GetLogger("devices"),
	}
}

// FindDevices enumerates video4linux nodes that advertise the capture capability.
func (d *linuxDetector) FindDevices() ([]DeviceInfo, error) {
	u := udev.Udev{}
	e := u.NewEnumerate()
	if err := e.AddMatchSubsystem("video4linux"); err != nil {
		return nil, fmt.Errorf("udev match subsystem: %w", err)
	}
	if err := e.AddMatchIsInitialized(); err != nil {
		return nil, fmt.Errorf("udev match initialized: %w", err)
	}

	udevDevices, err := e.Devices()
	if err != nil {
		return nil, fmt.Errorf("udev enumerate: %w", err)
	}

	devices := make([]DeviceInfo, 0, len(udevDevices))
	for _, dev := range udevDevices {
		if info, ok := deviceInfoFromUdev(dev); ok {
			devices = append(devices, info)
		}
	}
	sortDevices(devices)
	return devices, nil
}

func deviceInfoFromUdev(dev *udev.Device) (DeviceInfo, bool) {
	node := dev.Devnode()
	if node == "" {
		return DeviceInfo{}, false
	}
	// UVC cameras expose a second metadata node without ":capture:".
	if caps := dev.PropertyValue("ID_V4L_CAPABILITIES"); caps != "" && !strings.Contains(caps, ":capture:") {
		return DeviceInfo{}, false
	}

	links := make([]string, 0, len(dev.Devlinks()))
	for l := range dev.Devlinks() {
		links = append(links, l)
	}

	name := dev.PropertyValue("ID_V4L_PRODUCT")
	if name == "" {
		name = dev.SysattrValue("name")
	}
	if name == "" {
		name = dev.Sysname()
	}

	return DeviceInfo{
		DeviceID:   stableID(node, links),
		DevicePath: node,
		DeviceName: name,
		Bus:        dev.PropertyValue("ID_BUS"),
	}, true
}

// StartMonitoring watches udev for video4linux add/remove events.
func (d *linuxDetector) StartMonitoring(ctx context.Context, publisher Publisher) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cancel != nil {
		d.cancel()
	}
	d.ctx, d.cancel = context.WithCancel(ctx)

	t := newTracker(publisher, d.logger)
	devices, err := d.FindDevices()
	if err != nil {
		d.logger.Warn("Failed to get initial device list", "error", err)
	} else {
		t.seed(devices)
		d.logger.Info("Initialized with capture devices", "count", len(devices))
	}

	u := udev.Udev{}
	mon := u.NewMonitorFromNetlink("udev")
	if mon == nil {
		return fmt.Errorf("failed to create udev monitor")
	}
	if err := mon.FilterAddMatchSubsystem("video4linux"); err != nil {
		return fmt.Errorf("udev monitor filter: %w", err)
	}

	deviceCh, errCh, err := mon.DeviceChan(d.ctx)
	if err != nil {
		return fmt.Errorf("failed to get udev device channel: %w", err)
	}

	go func() {
		for err := range errCh {
			d.logger.Error("Udev monitor error", "error", err)
		}
	}()

	ctxDone := d.ctx.Done()
	go func() {
		d.logger.Info("Udev monitoring started for video4linux devices")
		for {
			select {
			case <-ctxDone:
				d.logger.Info("Udev monitor stopped")
				return
			case dev, ok := <-deviceCh:
				if !ok {
					d.logger.Info("Udev device channel closed")
					return
				}
				action := dev.Action()
				if action != "add" && action != "remove" {
					continue
				}
				d.logger.Debug("Udev event", "action", action, "device", dev.Syspath())

				current, err := d.FindDevices()
				if err != nil {
					d.logger.Error("Error getting device data", "error", err)
					continue
				}
				t.update(current)
			}
		}
	}()

	return nil
}

// StopMonitoring stops the device monitoring.
func (d *linuxDetector) StopMonitoring() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}
