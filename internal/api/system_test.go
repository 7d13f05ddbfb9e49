package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/smazurov/photostation/internal/api/models"
	"github.com/smazurov/photostation/internal/events"
	"github.com/smazurov/photostation/internal/frame"
	"github.com/smazurov/photostation/internal/led"
	"github.com/smazurov/photostation/internal/logging"
	"github.com/smazurov/photostation/internal/station"
	"github.com/smazurov/photostation/internal/updater"
)

type fakeService struct {
	restarts int
}

func (f *fakeService) Unit() string { return "photostation.service" }

func (f *fakeService) Status(context.Context) (string, error) { return "active", nil }

func (f *fakeService) Restart(context.Context) error {
	f.restarts++
	return nil
}

func TestSystemRoutes(t *testing.T) {
	svc := &fakeService{}
	server := NewServer(&Options{
		Station:         station.New(frame.NewBuffer(), station.Options{Logger: logging.Discard()}),
		SettingsService: &fakeSettings{},
		Service:         svc,
	})

	do := func(method, path string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(method, path, nil)
		r.SetBasicAuth("operator", "Kiosk123@")
		w := httptest.NewRecorder()
		server.Handler().ServeHTTP(w, r)
		return w
	}

	w := do(http.MethodGet, "/api/system/service")
	if got := decode[models.ServiceStatus](t, w); got.Status != "active" || got.Service != "photostation.service" {
		t.Errorf("status = %d %+v", w.Code, got)
	}

	w = do(http.MethodPost, "/api/system/restart")
	if w.Code != http.StatusOK || svc.restarts != 1 {
		t.Errorf("restart: %d, restarts=%d", w.Code, svc.restarts)
	}
}

func TestOptionalRoutesSkipped(t *testing.T) {
	server := NewServer(&Options{
		Station: station.New(frame.NewBuffer(), station.Options{Logger: logging.Discard()}),
	})
	for _, path := range []string{"/api/system/service", "/api/system/update", "/api/leds", "/api/settings", "/api/live.jpg"} {
		r := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		server.Handler().ServeHTTP(w, r)
		if w.Code != http.StatusNotFound && w.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s: %d, want route missing", path, w.Code)
		}
	}
}

type recordingLED struct {
	mu   sync.Mutex
	sets []string
}

func (r *recordingLED) Set(ledType string, enabled bool, pattern string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ledType != "user" {
		return errors.New("unknown LED")
	}
	r.sets = append(r.sets, pattern)
	return nil
}

func (r *recordingLED) Available() []string { return []string{"user"} }

func (r *recordingLED) Patterns() []string {
	return []string{led.PatternSolid, led.PatternBlink, led.PatternHeartbeat}
}

func TestLEDRoutes(t *testing.T) {
	bus := events.New()
	manager := led.NewManager(&recordingLED{}, "user", bus, logging.Discard())
	manager.Start()
	defer manager.Stop()

	server := NewServer(&Options{
		Station:         station.New(frame.NewBuffer(), station.Options{Logger: logging.Discard()}),
		SettingsService: &fakeSettings{},
		LEDManager:      manager,
		EventBus:        bus,
	})
	do := func(method, path, body string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(method, path, strings.NewReader(body))
		if body != "" {
			r.Header.Set("Content-Type", "application/json")
		}
		r.SetBasicAuth("operator", "Kiosk123@")
		w := httptest.NewRecorder()
		server.Handler().ServeHTTP(w, r)
		return w
	}

	w := do(http.MethodGet, "/api/leds", "")
	got := decode[LEDStatus](t, w)
	if got.StatusLED != "user" || got.Indicator != string(led.IndicatorNoCamera) || len(got.AvailablePatterns) != 3 {
		t.Errorf("leds = %+v", got)
	}

	if w := do(http.MethodPost, "/api/leds", `{"type":"user","enabled":true,"pattern":"blink"}`); w.Code != http.StatusNoContent {
		t.Errorf("control: %d %s", w.Code, w.Body.String())
	}
	if w := do(http.MethodPost, "/api/leds", `{"type":"power","enabled":true}`); w.Code != http.StatusBadRequest {
		t.Errorf("unknown LED: %d", w.Code)
	}
}

type fakeUpdater struct {
	applyErr  error
	rollbacks int
}

func (f *fakeUpdater) Check(context.Context) (updater.Info, error) {
	return updater.Info{CurrentVersion: "1.0.0", LatestVersion: "1.1.0", UpdateAvailable: true}, nil
}

func (f *fakeUpdater) Apply(context.Context) (updater.Info, error) {
	if f.applyErr != nil {
		return updater.Info{}, f.applyErr
	}
	return updater.Info{CurrentVersion: "1.0.0", LatestVersion: "1.1.0", UpdateAvailable: true}, nil
}

func (f *fakeUpdater) Rollback(context.Context) error {
	f.rollbacks++
	return nil
}

func (f *fakeUpdater) Status() updater.Status {
	return updater.Status{Enabled: true, State: updater.StateIdle, CurrentVersion: "1.0.0"}
}

func TestUpdateRoutes(t *testing.T) {
	u := &fakeUpdater{}
	server := NewServer(&Options{
		Station:         station.New(frame.NewBuffer(), station.Options{Logger: logging.Discard()}),
		SettingsService: &fakeSettings{},
		Updater:         u,
	})
	do := func(method, path string, auth bool) *httptest.ResponseRecorder {
		r := httptest.NewRequest(method, path, nil)
		if auth {
			r.SetBasicAuth("operator", "Kiosk123@")
		}
		w := httptest.NewRecorder()
		server.Handler().ServeHTTP(w, r)
		return w
	}

	if w := do(http.MethodGet, "/api/system/update", false); w.Code != http.StatusUnauthorized {
		t.Errorf("no auth: %d", w.Code)
	}
	if got := decode[updater.Status](t, do(http.MethodGet, "/api/system/update", true)); got.State != updater.StateIdle {
		t.Errorf("status = %+v", got)
	}
	if got := decode[updater.Info](t, do(http.MethodPost, "/api/system/update/check", true)); !got.UpdateAvailable {
		t.Errorf("check = %+v", got)
	}
	if w := do(http.MethodPost, "/api/system/update/rollback", true); w.Code != http.StatusNoContent || u.rollbacks != 1 {
		t.Errorf("rollback: %d", w.Code)
	}

	cases := map[string]int{
		updater.ErrCodeNoUpdate:    http.StatusConflict,
		updater.ErrCodeDisabled:    http.StatusServiceUnavailable,
		updater.ErrCodeCheckFailed: http.StatusBadGateway,
		updater.ErrCodeApplyFailed: http.StatusInternalServerError,
	}
	for code, want := range cases {
		u.applyErr = &updater.Error{Code: code, Message: "nope"}
		if w := do(http.MethodPost, "/api/system/update/apply", true); w.Code != want {
			t.Errorf("%s: %d, want %d", code, w.Code, want)
		}
	}
}
