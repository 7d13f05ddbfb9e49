package devices

import (
	"sync"
	"testing"

	"github.com/smazurov/photostation/internal/events"
	"github.com/smazurov/photostation/internal/logging"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.DeviceChangedEvent
}

func (p *recordingPublisher) Publish(ev events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := ev.(events.DeviceChangedEvent); ok {
		p.events = append(p.events, e)
	}
}

func TestLookup(t *testing.T) {
	devices := []DeviceInfo{
		{DeviceID: "usb-Cam_A-video-index0", DevicePath: "/dev/video0"},
		{DeviceID: "usb-Cam_B-video-index0", DevicePath: "/dev/video2"},
	}

	tests := []struct {
		name   string
		id     string
		want   string
		wantOK bool
	}{
		{"by id", "usb-Cam_B-video-index0", "/dev/video2", true},
		{"by path", "/dev/video0", "/dev/video0", true},
		{"trimmed", "  usb-Cam_A-video-index0 ", "/dev/video0", true},
		{"id ignores case", "USB-CAM_B-VIDEO-INDEX0", "/dev/video2", true},
		{"path ignores case", "/DEV/VIDEO0", "/dev/video0", true},
		{"missing", "usb-Cam_C-video-index0", "", false},
		{"empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Lookup(devices, tt.id)
			if ok != tt.wantOK || got.DevicePath != tt.want {
				t.Errorf("Lookup(%q) = %q, %v; want %q, %v", tt.id, got.DevicePath, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestLookupPrefersExactMatch(t *testing.T) {
	devices := []DeviceInfo{
		{DeviceID: "CAM", DevicePath: "/dev/video0"},
		{DeviceID: "cam", DevicePath: "/dev/video2"},
	}
	if got, _ := Lookup(devices, "cam"); got.DevicePath != "/dev/video2" {
		t.Errorf("Lookup(cam) = %q, want exact match /dev/video2", got.DevicePath)
	}
}

func TestStableID(t *testing.T) {
	tests := []struct {
		name  string
		links []string
		want  string
	}{
		{"by-id preferred", []string{"/dev/v4l/by-path/pci-0000:00:14.0-usb-0:1:1.0-video-index0", "/dev/v4l/by-id/usb-Logitech_C920-video-index0"}, "usb-Logitech_C920-video-index0"},
		{"by-path fallback", []string{"/dev/v4l/by-path/platform-fe801000.csi-video-index0"}, "platform-fe801000.csi-video-index0"},
		{"node fallback", nil, "/dev/video0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stableID("/dev/video0", tt.links); got != tt.want {
				t.Errorf("stableID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSortDevices(t *testing.T) {
	devices := []DeviceInfo{
		{DevicePath: "/dev/video10"},
		{DevicePath: "Integrated Camera"},
		{DevicePath: "/dev/video2"},
		{DevicePath: "/dev/video0"},
	}
	sortDevices(devices)
	want := []string{"/dev/video0", "/dev/video2", "/dev/video10", "Integrated Camera"}
	for i, d := range devices {
		if d.DevicePath != want[i] {
			t.Fatalf("order = %v, want %v", devices, want)
		}
	}
}

func TestTrackerPublishesDiff(t *testing.T) {
	pub := &recordingPublisher{}
	tr := newTracker(pub, logging.Discard())

	a := DeviceInfo{DeviceID: "a", DevicePath: "/dev/video0", DeviceName: "A"}
	b := DeviceInfo{DeviceID: "b", DevicePath: "/dev/video2", DeviceName: "B"}
	tr.seed([]DeviceInfo{a})

	tr.update([]DeviceInfo{a})
	if len(pub.events) != 0 {
		t.Fatalf("unchanged set published %d events", len(pub.events))
	}

	tr.update([]DeviceInfo{b})
	if len(pub.events) != 2 {
		t.Fatalf("got %d events, want 2", len(pub.events))
	}
	if pub.events[0].Action != "removed" || pub.events[0].DeviceID != "a" {
		t.Errorf("first event = %+v, want removed a", pub.events[0])
	}
	if pub.events[1].Action != "added" || pub.events[1].DeviceID != "b" {
		t.Errorf("second event = %+v, want added b", pub.events[1])
	}

	renamed := b
	renamed.DevicePath = "/dev/video4"
	tr.update([]DeviceInfo{renamed})
	if last := pub.events[len(pub.events)-1]; last.Action != "changed" || last.DevicePath != "/dev/video4" {
		t.Errorf("last event = %+v, want changed /dev/video4", last)
	}
}

func TestParseDshowDevices(t *testing.T) {
	output := `[dshow @ 0000020] "Integrated Camera" (video)
[dshow @ 0000020]   Alternative name "@device_pnp_\\?\usb#vid_04f2"
[dshow @ 0000020] "OBS Virtual Camera" (video)
[dshow @ 0000020] "Integrated Camera" (video)
[dshow @ 0000020] "Microphone Array" (audio)
dummy: Immediate exit requested`

	devices := parseDshowDevices(output)
	if len(devices) != 2 {
		t.Fatalf("got %d devices, want 2: %+v", len(devices), devices)
	}
	if devices[0].DeviceID != "Integrated Camera" || devices[1].DevicePath != "OBS Virtual Camera" {
		t.Errorf("unexpected devices %+v", devices)
	}
}

func TestParseAVFoundationDevices(t *testing.T) {
	output := `[AVFoundation indev @ 0x7f8] AVFoundation video devices:
[AVFoundation indev @ 0x7f8] [0] FaceTime HD Camera
[AVFoundation indev @ 0x7f8] [1] Capture screen 0
[AVFoundation indev @ 0x7f8] [2] USB Document Camera
[AVFoundation indev @ 0x7f8] AVFoundation audio devices:
[AVFoundation indev @ 0x7f8] [0] MacBook Pro Microphone`

	devices := parseAVFoundationDevices(output)
	if len(devices) != 2 {
		t.Fatalf("got %d devices, want 2: %+v", len(devices), devices)
	}
	if devices[0].DeviceName != "FaceTime HD Camera" || devices[0].DevicePath != "0" {
		t.Errorf("devices[0] = %+v", devices[0])
	}
	if devices[1].DeviceName != "USB Document Camera" || devices[1].DevicePath != "2" {
		t.Errorf("devices[1] = %+v", devices[1])
	}
}
