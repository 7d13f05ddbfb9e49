// Package settings implements the operator settings screen: a credential
// gate followed by device and destination selection.
package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/smazurov/photostation/internal/capture"
	"github.com/smazurov/photostation/internal/config"
	"github.com/smazurov/photostation/internal/devices"
	"github.com/smazurov/photostation/internal/events"
	"github.com/smazurov/photostation/internal/logging"
)

var (
	// ErrInvalidCredentials is returned for a wrong username or password, and
	// when no credentials are configured at all.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNoDeviceSelected is returned when an update names no camera.
	ErrNoDeviceSelected = errors.New("please select a camera")
)

// Capture is the part of the capture source the settings screen drives.
type Capture interface {
	Devices() ([]devices.DeviceInfo, error)
	DeviceID() string
	Start(ctx context.Context, s config.Settings) (config.Settings, error)
}

// Store holds the installed settings snapshot.
type Store interface {
	Get() config.Settings
	Install(next config.Settings) error
	OnChange(handler func(prev, next config.Settings)) func()
}

// Options configures a Service.
type Options struct {
	Events events.Publisher
	Logger *slog.Logger
}

// Form is what the settings screen shows after a successful login.
type Form struct {
	Devices []devices.DeviceInfo `json:"devices"`
	// SelectedDeviceID is the configured device if it is present, else the
	// first enumerated one.
	SelectedDeviceID string `json:"selected_device_id"`
	BasePath         string `json:"base_path"`
}

// Update is the operator's confirmed choice.
type Update struct {
	DeviceID string `json:"device_id"`
	BasePath string `json:"base_path"`
}

// Result describes an applied update.
type Result struct {
	Settings      config.Settings `json:"settings"`
	DeviceChanged bool            `json:"device_changed"`
}

// Service applies settings and keeps capture on the configured device.
// Capture is restarted only when the device ID changes, compared without
// regard to case, whether the change came from Apply or from an edit of
// the settings file.
type Service struct {
	ctx     context.Context
	store   Store
	capture Capture
	events  events.Publisher
	logger  *slog.Logger

	mu         sync.Mutex
	restartErr error
	unsub      func()
}

// New creates a service and subscribes it to store changes. ctx bounds
// capture restarts triggered by the service.
func New(ctx context.Context, store Store, capture Capture, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("settings")
	}
	s := &Service{
		ctx:     ctx,
		store:   store,
		capture: capture,
		events:  opts.Events,
		logger:  logger,
	}
	s.unsub = store.OnChange(s.onChange)
	return s
}

// Close unsubscribes from the store.
func (s *Service) Close() {
	if s.unsub != nil {
		s.unsub()
	}
}

// Authenticate checks the settings login. The username is compared without
// regard to case, the password exactly.
func (s *Service) Authenticate(username, password string) error {
	cur := s.store.Get()
	if cur.Username == "" || cur.PasswordHash == "" {
		s.logger.Warn("Settings login rejected, no credentials configured")
		return ErrInvalidCredentials
	}

	pwErr := bcrypt.CompareHashAndPassword([]byte(cur.PasswordHash), []byte(password))
	if !strings.EqualFold(strings.TrimSpace(username), cur.Username) || pwErr != nil {
		s.logger.Warn("Settings login rejected", "username", username)
		return ErrInvalidCredentials
	}
	s.logger.Info("Settings login accepted", "username", cur.Username)
	return nil
}

// Form lists devices with the current one preselected.
func (s *Service) Form() (Form, error) {
	cur := s.store.Get()
	list, err := s.capture.Devices()
	if err != nil {
		return Form{}, fmt.Errorf("enumerate devices: %w", err)
	}
	form := Form{Devices: list, BasePath: cur.BasePath}
	if info, ok := devices.Lookup(list, cur.DeviceID); ok {
		form.SelectedDeviceID = info.DeviceID
	} else if len(list) > 0 {
		form.SelectedDeviceID = list[0].DeviceID
	}
	return form, nil
}

// Apply validates u, installs it and restarts capture if the device
// changed. The returned error may come from the restart, in which case the
// settings are still installed.
func (s *Service) Apply(u Update) (Result, error) {
	deviceID := strings.TrimSpace(u.DeviceID)
	if deviceID == "" {
		return Result{}, ErrNoDeviceSelected
	}
	base, err := config.NormalizeBasePath(u.BasePath)
	if err != nil {
		return Result{}, err
	}

	list, err := s.capture.Devices()
	if err != nil {
		return Result{}, fmt.Errorf("enumerate devices: %w", err)
	}
	info, ok := devices.Lookup(list, deviceID)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", capture.ErrDeviceNotFound, deviceID)
	}

	prev := s.store.Get()
	next := prev
	next.DeviceID = info.DeviceID
	next.BasePath = base
	changed := deviceChanged(prev, next)

	s.mu.Lock()
	s.restartErr = nil
	s.mu.Unlock()

	if err := s.store.Install(next); err != nil {
		return Result{}, err
	}

	s.mu.Lock()
	restartErr := s.restartErr
	s.mu.Unlock()

	return Result{Settings: s.store.Get(), DeviceChanged: changed}, restartErr
}

// onChange runs under the store lock and must not call Install.
func (s *Service) onChange(prev, next config.Settings) {
	changed := deviceChanged(prev, next)

	if s.events != nil {
		s.events.Publish(events.SettingsChangedEvent{
			DeviceID:      next.DeviceID,
			BasePath:      next.BasePath,
			DeviceChanged: changed,
			Timestamp:     events.Now(),
		})
	}
	if !changed || (next.DeviceID != "" && strings.EqualFold(s.capture.DeviceID(), next.DeviceID)) {
		return
	}

	s.logger.Info("Camera changed, restarting capture", "from", prev.DeviceID, "to", next.DeviceID)
	selected, err := s.capture.Start(s.ctx, next)

	s.mu.Lock()
	s.restartErr = err
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("Failed to restart capture", "device_id", next.DeviceID, "error", err)
		return
	}
	if selected.DeviceID != next.DeviceID {
		// An empty device ID in a hand-edited file resolved to the first camera.
		go func() {
			if err := s.store.Install(selected); err != nil {
				s.logger.Warn("Failed to record selected camera", "error", err)
			}
		}()
	}
}

func deviceChanged(prev, next config.Settings) bool {
	return !strings.EqualFold(prev.DeviceID, next.DeviceID)
}

// HashPassword returns a bcrypt hash for settings.toml.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password cannot be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
