//go:build !linux

package devices

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/smazurov/photostation/internal/logging"
)

const pollInterval = 5 * time.Second

// ffmpegDetector asks ffmpeg for the platform's capture devices.
type ffmpegDetector struct {
	cancel context.CancelFunc
	mu     sync.Mutex
	logger *slog.Logger
}

func newDetector() DeviceDetector {
	return &ffmpegDetector{logger: logging.GetLogger("devices")}
}

// FindDevices runs ffmpeg's device listing and parses its stderr.
func (d *ffmpegDetector) FindDevices() ([]DeviceInfo, error) {
	var args []string
	var parse func(string) []DeviceInfo
	switch runtime.GOOS {
	case "windows":
		args = []string{"-hide_banner", "-list_devices", "true", "-f", "dshow", "-i", "dummy"}
		parse = parseDshowDevices
	case "darwin":
		args = []string{"-hide_banner", "-f", "avfoundation", "-list_devices", "true", "-i", ""}
		parse = parseAVFoundationDevices
	default:
		return nil, ErrEnumerationUnsupported
	}

	cmd := exec.Command("ffmpeg", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	// ffmpeg exits non-zero after listing; only a failure to launch matters.
	if err := cmd.Run(); err != nil {
		if _, ok := err.(*exec.ExitError); !ok {
			return nil, err
		}
	}
	return parse(stderr.String()), nil
}

// StartMonitoring polls the device list since there is no hotplug source.
func (d *ffmpegDetector) StartMonitoring(ctx context.Context, publisher Publisher) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cancel != nil {
		d.cancel()
	}
	ctx, d.cancel = context.WithCancel(ctx)

	t := newTracker(publisher, d.logger)
	if devices, err := d.FindDevices(); err == nil {
		t.seed(devices)
	} else {
		d.logger.Warn("Failed to get initial device list", "error", err)
	}

	go func() {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				devices, err := d.FindDevices()
				if err != nil {
					d.logger.Debug("Device poll failed", "error", err)
					continue
				}
				t.update(devices)
			}
		}
	}()
	return nil
}

// StopMonitoring stops polling.
func (d *ffmpegDetector) StopMonitoring() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}
