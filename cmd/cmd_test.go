package cmd

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/smazurov/photostation/internal/devices"
	"github.com/smazurov/photostation/internal/updater"
	"golang.org/x/crypto/bcrypt"
)

func TestRenderDevices(t *testing.T) {
	out := renderDevices([]devices.DeviceInfo{
		{DeviceID: "usb-046d_C920-video-index0", DevicePath: "/dev/video0", DeviceName: "HD Pro Webcam C920", Bus: "usb"},
	})
	for _, want := range []string{"Name", "HD Pro Webcam C920", "usb-046d_C920-video-index0", "/dev/video0"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestWriteDevicesJSONEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := writeDevicesJSON(&buf, nil); err != nil {
		t.Fatal(err)
	}
	var got []devices.DeviceInfo
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil || got == nil || len(got) != 0 {
		t.Errorf("json = %s (%v)", buf.String(), err)
	}
}

func TestHashPasswordCmd(t *testing.T) {
	for name, args := range map[string][]string{
		"argument": {"Kiosk123@"},
		"stdin":    {},
	} {
		t.Run(name, func(t *testing.T) {
			cmd := CreateHashPasswordCmd()
			var out bytes.Buffer
			cmd.SetOut(&out)
			cmd.SetErr(&out)
			cmd.SetIn(strings.NewReader("Kiosk123@\n"))
			cmd.SetArgs(args)
			if err := cmd.Execute(); err != nil {
				t.Fatalf("Execute: %v", err)
			}
			hash := strings.TrimSpace(out.String())
			if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("Kiosk123@")); err != nil {
				t.Errorf("hash %q does not match: %v", hash, err)
			}
		})
	}
}

func TestRenderUpdateInfo(t *testing.T) {
	out := renderUpdateInfo(updater.Info{
		CurrentVersion:  "1.0.0",
		LatestVersion:   "1.2.0",
		ReleaseURL:      "https://github.com/smazurov/photostation/releases/tag/v1.2.0",
		UpdateAvailable: true,
	})
	for _, want := range []string{"1.0.0", "1.2.0", "yes", "releases/tag/v1.2.0"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}

	out = renderUpdateInfo(updater.Info{CurrentVersion: "1.2.0", LatestVersion: "1.2.0"})
	if strings.Contains(out, "Release") || !strings.Contains(out, "no") {
		t.Errorf("up to date table:\n%s", out)
	}
}
