package settings

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/smazurov/photostation/internal/capture"
	"github.com/smazurov/photostation/internal/config"
	"github.com/smazurov/photostation/internal/devices"
	"github.com/smazurov/photostation/internal/events"
	"github.com/smazurov/photostation/internal/logging"
)

type fakeCapture struct {
	mu       sync.Mutex
	list     []devices.DeviceInfo
	started  []string
	running  string
	startErr error
}

func (c *fakeCapture) Devices() ([]devices.DeviceInfo, error) { return c.list, nil }

func (c *fakeCapture) DeviceID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *fakeCapture) Start(_ context.Context, s config.Settings) (config.Settings, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = append(c.started, s.DeviceID)
	if c.startErr != nil {
		return s, c.startErr
	}
	if s.DeviceID == "" {
		s.DeviceID = c.list[0].DeviceID
	}
	c.running = s.DeviceID
	return s, nil
}

func (c *fakeCapture) starts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.started...)
}

var cameras = []devices.DeviceInfo{
	{DeviceID: "usb-Logitech_C920", DevicePath: "/dev/video0", DeviceName: "C920"},
	{DeviceID: "usb-Document_Cam", DevicePath: "/dev/video2", DeviceName: "Document Cam"},
}

func newTestService(t *testing.T, initial config.Settings) (*Service, *config.SettingsStore, *fakeCapture) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("Kiosk123@"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	if initial.Username == "" {
		initial.Username = "operator"
	}
	initial.PasswordHash = string(hash)

	store := config.NewSettingsStore("", initial, logging.Discard())
	cam := &fakeCapture{list: cameras, running: initial.DeviceID}
	svc := New(context.Background(), store, cam, Options{Logger: logging.Discard()})
	t.Cleanup(svc.Close)
	return svc, store, cam
}

func TestAuthenticate(t *testing.T) {
	svc, _, _ := newTestService(t, config.Settings{BasePath: "/srv/photos"})

	tests := []struct {
		name     string
		user     string
		password string
		ok       bool
	}{
		{"exact", "operator", "Kiosk123@", true},
		{"username case-insensitive", "  OPERATOR ", "Kiosk123@", true},
		{"password case-sensitive", "operator", "kiosk123@", false},
		{"wrong user", "admin", "Kiosk123@", false},
		{"blank", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Authenticate(tt.user, tt.password)
			if tt.ok && err != nil {
				t.Errorf("Authenticate: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidCredentials) {
				t.Errorf("Authenticate = %v, want ErrInvalidCredentials", err)
			}
		})
	}
}

func TestAuthenticateWithoutConfiguredCredentials(t *testing.T) {
	store := config.NewSettingsStore("", config.Settings{BasePath: "/srv"}, logging.Discard())
	svc := New(context.Background(), store, &fakeCapture{}, Options{Logger: logging.Discard()})
	defer svc.Close()

	if err := svc.Authenticate("", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Authenticate = %v, want ErrInvalidCredentials", err)
	}
}

func TestFormPreselectsCurrentDevice(t *testing.T) {
	svc, _, _ := newTestService(t, config.Settings{DeviceID: "usb-Document_Cam", BasePath: "/srv/photos"})
	form, err := svc.Form()
	if err != nil {
		t.Fatal(err)
	}
	if form.SelectedDeviceID != "usb-Document_Cam" || form.BasePath != "/srv/photos" || len(form.Devices) != 2 {
		t.Errorf("form = %+v", form)
	}
}

func TestFormFallsBackToFirstDevice(t *testing.T) {
	svc, _, _ := newTestService(t, config.Settings{DeviceID: "unplugged", BasePath: "/srv/photos"})
	form, _ := svc.Form()
	if form.SelectedDeviceID != "usb-Logitech_C920" {
		t.Errorf("selected = %q, want first device", form.SelectedDeviceID)
	}
}

func TestApplyRestartsOnlyWhenDeviceChanges(t *testing.T) {
	svc, store, cam := newTestService(t, config.Settings{DeviceID: "usb-Logitech_C920", BasePath: "/srv/photos"})

	// Path change only.
	res, err := svc.Apply(Update{DeviceID: "USB-LOGITECH_C920", BasePath: " /srv/other/ "})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.DeviceChanged {
		t.Error("device reported changed for a case-only difference")
	}
	if got := store.Get().BasePath; got != "/srv/other" {
		t.Errorf("base path = %q", got)
	}
	if n := len(cam.starts()); n != 0 {
		t.Errorf("capture restarted %d times, want 0", n)
	}

	// Device change.
	res, err = svc.Apply(Update{DeviceID: "usb-Document_Cam", BasePath: "/srv/other"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !res.DeviceChanged || res.Settings.DeviceID != "usb-Document_Cam" {
		t.Errorf("result = %+v", res)
	}
	if got := cam.starts(); len(got) != 1 || got[0] != "usb-Document_Cam" {
		t.Errorf("starts = %v", got)
	}
}

func TestApplyValidation(t *testing.T) {
	svc, store, cam := newTestService(t, config.Settings{DeviceID: "usb-Logitech_C920", BasePath: "/srv/photos"})

	tests := []struct {
		name   string
		update Update
		want   error
	}{
		{"no camera", Update{BasePath: "/srv"}, ErrNoDeviceSelected},
		{"blank path", Update{DeviceID: "usb-Document_Cam", BasePath: "  "}, config.ErrInvalidBasePath},
		{"unplugged camera", Update{DeviceID: "usb-Gone", BasePath: "/srv"}, capture.ErrDeviceNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Apply(tt.update); !errors.Is(err, tt.want) {
				t.Errorf("Apply = %v, want %v", err, tt.want)
			}
		})
	}
	if got := store.Get(); got.DeviceID != "usb-Logitech_C920" || got.BasePath != "/srv/photos" {
		t.Errorf("settings changed by rejected updates: %+v", got)
	}
	if len(cam.starts()) != 0 {
		t.Error("capture restarted by rejected update")
	}
}

func TestApplyReportsRestartFailure(t *testing.T) {
	svc, store, cam := newTestService(t, config.Settings{DeviceID: "usb-Logitech_C920", BasePath: "/srv/photos"})
	cam.startErr = capture.ErrDeviceUnavailable

	_, err := svc.Apply(Update{DeviceID: "usb-Document_Cam", BasePath: "/srv/photos"})
	if !errors.Is(err, capture.ErrDeviceUnavailable) {
		t.Fatalf("Apply = %v, want ErrDeviceUnavailable", err)
	}
	if store.Get().DeviceID != "usb-Document_Cam" {
		t.Error("settings not installed after restart failure")
	}
}

func TestExternalEditRestartsCapture(t *testing.T) {
	_, store, cam := newTestService(t, config.Settings{DeviceID: "usb-Logitech_C920", BasePath: "/srv/photos"})

	// Same path as a hand edit picked up by the file watcher.
	next := store.Get()
	next.DeviceID = ""
	if err := store.Install(next); err != nil {
		t.Fatal(err)
	}

	if got := cam.starts(); len(got) != 1 || got[0] != "" {
		t.Fatalf("starts = %v", got)
	}

	// The camera chosen for an empty ID is written back asynchronously,
	// without restarting capture a second time.
	deadline := time.Now().Add(time.Second)
	for store.Get().DeviceID != "usb-Logitech_C920" {
		if time.Now().After(deadline) {
			t.Fatalf("selected camera not recorded, device_id = %q", store.Get().DeviceID)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := cam.starts(); len(got) != 1 {
		t.Errorf("starts = %v, want one restart", got)
	}
}

func TestSettingsChangedEvent(t *testing.T) {
	bus := events.New()
	got := make(chan events.SettingsChangedEvent, 1)
	defer bus.Subscribe(func(e events.SettingsChangedEvent) { got <- e })()

	hash, _ := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	store := config.NewSettingsStore("", config.Settings{DeviceID: "usb-Logitech_C920", BasePath: "/srv", Username: "u", PasswordHash: string(hash)}, logging.Discard())
	svc := New(context.Background(), store, &fakeCapture{list: cameras}, Options{Events: bus, Logger: logging.Discard()})
	defer svc.Close()

	if _, err := svc.Apply(Update{DeviceID: "usb-Document_Cam", BasePath: "/srv"}); err != nil {
		t.Fatal(err)
	}
	select {
	case e := <-got:
		if !e.DeviceChanged || e.DeviceID != "usb-Document_Cam" {
			t.Errorf("event = %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("no SettingsChangedEvent")
	}
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("Kiosk123@")
	if err != nil {
		t.Fatal(err)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte("Kiosk123@")) != nil {
		t.Error("hash does not verify")
	}
	if _, err := HashPassword(""); err == nil {
		t.Error("empty password accepted")
	}
}
