package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/smazurov/photostation/internal/api/models"
	"github.com/smazurov/photostation/internal/capture"
	"github.com/smazurov/photostation/internal/config"
	"github.com/smazurov/photostation/internal/devices"
	"github.com/smazurov/photostation/internal/events"
	"github.com/smazurov/photostation/internal/frame"
	"github.com/smazurov/photostation/internal/logging"
	"github.com/smazurov/photostation/internal/metrics/exporters"
	"github.com/smazurov/photostation/internal/persist"
	"github.com/smazurov/photostation/internal/preview"
	"github.com/smazurov/photostation/internal/settings"
	"github.com/smazurov/photostation/internal/station"
)

type staticSettings struct{ s config.Settings }

func (s staticSettings) Get() config.Settings { return s.s }

type fakeCapture struct {
	list []devices.DeviceInfo
}

func (c *fakeCapture) Devices() ([]devices.DeviceInfo, error) { return c.list, nil }
func (c *fakeCapture) Running() bool { return true }
func (c *fakeCapture) DeviceID() string { return "cam-a" }

type fakeSettings struct {
	applied  []settings.Update
	applyErr error
	partial  bool
}

func (f *fakeSettings) Authenticate(username, password string) error {
	if !strings.EqualFold(username, "operator") || password != "Kiosk123@" {
		return settings.ErrInvalidCredentials
	}
	return nil
}

func (f *fakeSettings) Form() (settings.Form, error) {
	return settings.Form{
		Devices:          []devices.DeviceInfo{{DeviceID: "cam-a", DevicePath: "/dev/video0", DeviceName: "Camera A"}},
		SelectedDeviceID: "cam-a",
		BasePath:         "/srv/photos",
	}, nil
}

func (f *fakeSettings) Apply(u settings.Update) (settings.Result, error) {
	f.applied = append(f.applied, u)
	if f.applyErr != nil && !f.partial {
		return settings.Result{}, f.applyErr
	}
	return settings.Result{
		Settings:      config.Settings{DeviceID: u.DeviceID, BasePath: u.BasePath},
		DeviceChanged: u.DeviceID != "cam-a",
	}, f.applyErr
}

type testEnv struct {
	buf      *frame.Buffer
	station  *station.Station
	sink     *preview.Sink
	settings *fakeSettings
	bus      *events.Bus
	base     string
	server   *Server
	shutdown chan struct{}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		buf:      frame.NewBuffer(),
		sink:     preview.NewSink(),
		settings: &fakeSettings{},
		bus:      events.New(),
		base:     t.TempDir(),
		shutdown: make(chan struct{}, 1),
	}
	env.station = station.New(env.buf, station.Options{Events: env.bus, Logger: logging.Discard()})
	env.server = NewServer(&Options{
		Station:           env.station,
		Writer:            persist.NewWriter(persist.Options{Logger: logging.Discard()}),
		Settings:          staticSettings{config.Settings{BasePath: env.base}},
		SettingsService:   env.settings,
		Capture:           &fakeCapture{list: []devices.DeviceInfo{{DeviceID: "cam-a", DevicePath: "/dev/video0"}}},
		Preview:           env.sink,
		EventBus:          env.bus,
		Shutdown:          func() { env.shutdown <- struct{}{} },
		PrometheusHandler: exporters.HTTPHandler(),
	})
	return env
}

func (env *testEnv) publish(t *testing.T, v byte) {
	t.Helper()
	f, err := frame.New(8, 8, frame.FormatGray, bytes.Repeat([]byte{v}, 64))
	if err != nil {
		t.Fatal(err)
	}
	env.buf.Publish(f)
}

func (env *testEnv) do(t *testing.T, method, path, body string, auth ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	if len(auth) == 2 {
		r.SetBasicAuth(auth[0], auth[1])
	}
	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, r)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func TestHealthNeedsNoAuth(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := decode[models.HealthData](t, w); got.Status != "ok" {
		t.Errorf("health = %+v", got)
	}
	if w.Header().Get(RequestIDHeader) == "" {
		t.Error("missing request id")
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	env := newTestEnv(t)
	r := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	r.Header.Set(RequestIDHeader, "scan-17")
	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, r)
	if got := w.Header().Get(RequestIDHeader); got != "scan-17" {
		t.Errorf("request id = %q", got)
	}
}

func TestCaptureFillsFrontThenBack(t *testing.T) {
	env := newTestEnv(t)
	env.publish(t, 50)

	for _, want := range []string{"front", "back"} {
		w := env.do(t, http.MethodPost, "/api/capture", `{}`)
		if w.Code != http.StatusOK {
			t.Fatalf("capture: %d %s", w.Code, w.Body.String())
		}
		if got := decode[models.CaptureData](t, w); !got.Stored || got.Slot != want {
			t.Errorf("capture = %+v, want slot %s", got, want)
		}
	}

	w := env.do(t, http.MethodPost, "/api/capture", `{}`)
	if w.Code != http.StatusConflict {
		t.Errorf("full station without choice: %d", w.Code)
	}

	w = env.do(t, http.MethodPost, "/api/capture", `{"choice":"discard"}`)
	if got := decode[models.CaptureData](t, w); got.Stored || got.Result != "discarded" {
		t.Errorf("discard = %+v", got)
	}

	w = env.do(t, http.MethodPost, "/api/capture", `{"choice":"Back"}`)
	if got := decode[models.CaptureData](t, w); !got.Stored || got.Slot != "back" {
		t.Errorf("overwrite back = %+v", got)
	}
}

func TestCaptureStatusCodes(t *testing.T) {
	env := newTestEnv(t)

	if w := env.do(t, http.MethodPost, "/api/capture", `{}`); w.Code != http.StatusServiceUnavailable {
		t.Errorf("no frame: %d", w.Code)
	}
	if env.station.State().Count() != 0 {
		t.Error("slot changed without a frame")
	}

	env.publish(t, 1)
	if w := env.do(t, http.MethodPost, "/api/capture", `{"choice":"sideways"}`); w.Code != http.StatusBadRequest {
		t.Errorf("bad choice: %d", w.Code)
	}
}

func TestSaveWritesBothImages(t *testing.T) {
	env := newTestEnv(t)
	env.publish(t, 90)

	if w := env.do(t, http.MethodPost, "/api/save", `{"folder":"device42"}`); w.Code != http.StatusConflict {
		t.Errorf("save with empty slots: %d", w.Code)
	}

	env.do(t, http.MethodPost, "/api/capture", `{}`)
	env.do(t, http.MethodPost, "/api/capture", `{}`)

	if w := env.do(t, http.MethodPost, "/api/save", `{"folder":"   "}`); w.Code != http.StatusBadRequest {
		t.Errorf("blank folder: %d", w.Code)
	}
	if !env.station.AreBothOccupied() {
		t.Fatal("slots cleared by a rejected save")
	}

	w := env.do(t, http.MethodPost, "/api/save", `{"folder":"device42"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("save: %d %s", w.Code, w.Body.String())
	}
	got := decode[models.SaveData](t, w)
	if got.FrontPath != filepath.Join(env.base, "device42", "Front.jpg") {
		t.Errorf("front path = %s", got.FrontPath)
	}
	for _, p := range []string{got.FrontPath, got.BackPath} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("%s: %v", p, err)
		}
	}
	if env.station.State().Count() != 0 {
		t.Error("slots not cleared after save")
	}
}

func TestResetSlot(t *testing.T) {
	env := newTestEnv(t)
	env.publish(t, 5)
	env.do(t, http.MethodPost, "/api/capture", `{}`)

	w := env.do(t, http.MethodDelete, "/api/slots/FRONT", "")
	if got := decode[models.ResetData](t, w); !got.Cleared || got.Slots.Front {
		t.Errorf("reset = %+v", got)
	}
	w = env.do(t, http.MethodDelete, "/api/slots/front", "")
	if w.Code != http.StatusOK || decode[models.ResetData](t, w).Cleared {
		t.Errorf("second reset: %d %s", w.Code, w.Body.String())
	}
	if w := env.do(t, http.MethodDelete, "/api/slots/side", ""); w.Code != http.StatusBadRequest {
		t.Errorf("unknown slot: %d", w.Code)
	}
}

func TestSlotImage(t *testing.T) {
	env := newTestEnv(t)
	if w := env.do(t, http.MethodGet, "/api/slots/front/image", ""); w.Code != http.StatusNotFound {
		t.Errorf("empty slot: %d", w.Code)
	}

	env.publish(t, 200)
	env.do(t, http.MethodPost, "/api/capture", `{}`)

	w := env.do(t, http.MethodGet, "/api/slots/front/image", "")
	if w.Code != http.StatusOK {
		t.Fatalf("image: %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Content-Type = %q", ct)
	}
	if _, err := jpeg.Decode(w.Body); err != nil {
		t.Errorf("not a JPEG: %v", err)
	}
}

func TestLiveFrame(t *testing.T) {
	env := newTestEnv(t)
	if w := env.do(t, http.MethodGet, "/api/live.jpg", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("no preview: %d", w.Code)
	}
	f, _ := frame.New(2, 2, frame.FormatGray, []byte{1, 2, 3, 4})
	env.sink.Show(f)
	if w := env.do(t, http.MethodGet, "/api/live.jpg", ""); w.Code != http.StatusOK {
		t.Errorf("preview: %d", w.Code)
	}
}

func TestCommands(t *testing.T) {
	env := newTestEnv(t)
	env.publish(t, 12)

	w := env.do(t, http.MethodPost, "/api/commands", `{"command":" Take Picture "}`)
	if w.Code != http.StatusOK {
		t.Fatalf("takepicture: %d %s", w.Code, w.Body.String())
	}
	got := decode[models.CommandData](t, w)
	if got.Command != "capture" || got.Capture == nil || got.Capture.Slot != "front" {
		t.Errorf("takepicture = %+v", got)
	}

	w = env.do(t, http.MethodPost, "/api/commands", `{"command":"RESETFRONT"}`)
	if got := decode[models.CommandData](t, w); got.Reset == nil || !got.Reset.Cleared {
		t.Errorf("resetfront = %+v", got)
	}

	w = env.do(t, http.MethodPost, "/api/commands", `{"command":""}`)
	if got := decode[models.CommandData](t, w); w.Code != http.StatusOK || got.Command != "none" {
		t.Errorf("blank command: %d %+v", w.Code, got)
	}

	if w := env.do(t, http.MethodPost, "/api/commands", `{"command":"print label"}`); w.Code != http.StatusBadRequest {
		t.Errorf("unknown command: %d", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/api/commands", `{"command":"settings"}`); w.Code != http.StatusForbidden {
		t.Errorf("settings command: %d", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/api/commands", `{"command":"save"}`); w.Code != http.StatusConflict {
		t.Errorf("save with one slot: %d", w.Code)
	}
}

func TestExitCommandRequiresLogin(t *testing.T) {
	env := newTestEnv(t)

	if w := env.do(t, http.MethodPost, "/api/commands", `{"command":"Exit"}`); w.Code != http.StatusUnauthorized {
		t.Errorf("exit without credentials: %d %s", w.Code, w.Body.String())
	}
	if w := env.do(t, http.MethodPost, "/api/commands", `{"command":"exit"}`, "operator", "wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("exit with bad password: %d", w.Code)
	}
	select {
	case <-env.shutdown:
		t.Fatal("shutdown called without a valid login")
	default:
	}

	// Other commands stay open to scanners.
	if w := env.do(t, http.MethodPost, "/api/commands", `{"command":"resetfront"}`); w.Code != http.StatusOK {
		t.Errorf("resetfront without credentials: %d", w.Code)
	}

	if w := env.do(t, http.MethodPost, "/api/commands", `{"command":"Exit"}`, "operator", "Kiosk123@"); w.Code != http.StatusOK {
		t.Fatalf("exit with login: %d %s", w.Code, w.Body.String())
	}
	select {
	case <-env.shutdown:
	default:
		t.Error("shutdown not called")
	}
}

func TestSettingsRequireAuth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/settings", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("no auth: %d", w.Code)
	}
	if w.Header().Get("WWW-Authenticate") == "" {
		t.Error("missing WWW-Authenticate")
	}
	if w := env.do(t, http.MethodGet, "/api/settings", "", "operator", "wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("bad password: %d", w.Code)
	}

	w = env.do(t, http.MethodGet, "/api/settings", "", "OPERATOR", "Kiosk123@")
	if w.Code != http.StatusOK {
		t.Fatalf("good login: %d %s", w.Code, w.Body.String())
	}
	if got := decode[models.SettingsData](t, w); got.SelectedDeviceID != "cam-a" || len(got.Devices) != 1 {
		t.Errorf("settings = %+v", got)
	}
}

func TestSettingsAuthViaQuery(t *testing.T) {
	env := newTestEnv(t)
	token := base64.StdEncoding.EncodeToString([]byte("operator:Kiosk123@"))
	if w := env.do(t, http.MethodGet, "/api/settings?auth="+token, ""); w.Code != http.StatusOK {
		t.Errorf("query auth: %d", w.Code)
	}
}

func TestUpdateSettings(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPut, "/api/settings", `{"device_id":"cam-b","base_path":"/srv/out"}`, "operator", "Kiosk123@")
	if w.Code != http.StatusOK {
		t.Fatalf("update: %d %s", w.Code, w.Body.String())
	}
	got := decode[models.SettingsUpdateData](t, w)
	if !got.DeviceChanged || got.BasePath != "/srv/out" || got.RestartError != "" {
		t.Errorf("update = %+v", got)
	}

	env.settings.applyErr = capture.ErrDeviceNotFound
	if w := env.do(t, http.MethodPut, "/api/settings", `{"device_id":"cam-z","base_path":"/srv"}`, "operator", "Kiosk123@"); w.Code != http.StatusNotFound {
		t.Errorf("unknown device: %d", w.Code)
	}

	env.settings.applyErr = capture.ErrDeviceUnavailable
	env.settings.partial = true
	w = env.do(t, http.MethodPut, "/api/settings", `{"device_id":"cam-b","base_path":"/srv"}`, "operator", "Kiosk123@")
	if w.Code != http.StatusOK {
		t.Fatalf("restart failure: %d", w.Code)
	}
	if got := decode[models.SettingsUpdateData](t, w); got.RestartError == "" {
		t.Error("restart error not reported")
	}
}

func TestStatus(t *testing.T) {
	env := newTestEnv(t)
	env.publish(t, 3)
	env.do(t, http.MethodPost, "/api/capture", `{}`)

	got := decode[models.StatusData](t, env.do(t, http.MethodGet, "/api/status", ""))
	if !got.Slots.Front || got.Slots.Back {
		t.Errorf("slots = %+v", got.Slots)
	}
	if !got.Capture.Running || got.Capture.DeviceID != "cam-a" || got.BasePath != env.base {
		t.Errorf("status = %+v", got)
	}
}

func TestDevices(t *testing.T) {
	env := newTestEnv(t)
	got := decode[models.DeviceListData](t, env.do(t, http.MethodGet, "/api/devices", ""))
	if got.Count != 1 || got.Devices[0].DeviceID != "cam-a" {
		t.Errorf("devices = %+v", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodOptions, "/api/capture", "")
	if w.Code != http.StatusNoContent {
		t.Errorf("preflight: %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing Access-Control-Allow-Origin")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.publish(t, 1)
	env.do(t, http.MethodPost, "/api/capture", `{}`)

	w := env.do(t, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "photostation_") {
		t.Errorf("metrics: %d", w.Code)
	}
}

func TestEventsStreamStartsWithSnapshot(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.server.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("stream ended before snapshot: %v", err)
		}
		if strings.HasPrefix(line, "data:") && strings.Contains(line, `"action":"snapshot"`) {
			return
		}
	}
}
