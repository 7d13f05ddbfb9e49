package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pelletier/go-toml/v2"
)

// ErrInvalidBasePath is returned when the destination base path is blank.
var ErrInvalidBasePath = errors.New("destination base path cannot be empty")

// Settings is the operator-editable station configuration. Values are
// immutable snapshots: a change installs a whole new Settings.
type Settings struct {
	// DeviceID selects the capture device. Empty means "first available".
	DeviceID string `toml:"device_id" json:"device_id"`
	// BasePath is the directory save folders are created under.
	BasePath string `toml:"base_path" json:"base_path"`
	// Username and PasswordHash gate the settings screen.
	Username     string `toml:"username" json:"username"`
	PasswordHash string `toml:"password_hash" json:"-"`
}

// Validate checks the invariants every installed snapshot must hold.
func (s Settings) Validate() error {
	if strings.TrimSpace(s.BasePath) == "" {
		return ErrInvalidBasePath
	}
	return nil
}

// withDefaults fills blank fields from defaults.
func (s Settings) withDefaults(defaults Settings) Settings {
	if s.DeviceID == "" {
		s.DeviceID = defaults.DeviceID
	}
	if s.BasePath == "" {
		s.BasePath = defaults.BasePath
	}
	if s.Username == "" {
		s.Username = defaults.Username
	}
	if s.PasswordHash == "" {
		s.PasswordHash = defaults.PasswordHash
	}
	return s
}

// NormalizeBasePath trims and cleans a destination path entered by the operator.
func NormalizeBasePath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", ErrInvalidBasePath
	}
	return filepath.Clean(p), nil
}

// LoadSettings reads a settings file.
func LoadSettings(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, err
	}
	return parseSettings(path, data)
}

func parseSettings(path string, data []byte) (Settings, error) {
	var s Settings
	if err := toml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("failed to parse settings %s: %w", path, err)
	}
	return s, nil
}

// WriteSettings persists s to path via a temp file and rename, so readers
// (including the reload watcher) never see a half-written file.
func WriteSettings(path string, s Settings) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	data, err := toml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp settings file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to chmod settings: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace settings: %w", err)
	}
	return nil
}

// SettingsStore publishes the current Settings snapshot. Readers call Get
// without locking; Install swaps the pointer atomically.
type SettingsStore struct {
	path     string
	defaults Settings
	current  atomic.Pointer[Settings]
	logger   *slog.Logger

	mu       sync.Mutex // serializes installs and guards handlers
	handlers []func(prev, next Settings)
	watcher  *fileWatcher
}

// NewSettingsStore creates a store seeded with defaults. An empty path keeps
// settings in memory only.
func NewSettingsStore(path string, defaults Settings, logger *slog.Logger) *SettingsStore {
	s := &SettingsStore{
		path:     path,
		defaults: defaults,
		logger:   logger,
	}
	initial := defaults
	s.current.Store(&initial)
	return s
}

// Path returns the backing file path.
func (s *SettingsStore) Path() string { return s.path }

// Load reads the backing file, if any, over the defaults.
// A missing file is not an error.
func (s *SettingsStore) Load() error {
	if s.path == "" {
		return nil
	}
	loaded, err := s.load(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.logger.Info("No settings file, using defaults", "path", s.path)
		return nil
	}
	if err != nil {
		return err
	}
	s.current.Store(&loaded)
	return nil
}

func (s *SettingsStore) load(path string) (Settings, error) {
	loaded, err := LoadSettings(path)
	if err != nil {
		return Settings{}, err
	}
	return loaded.withDefaults(s.defaults), nil
}

// reload installs a snapshot parsed from an edited file without writing it back.
func (s *SettingsStore) reload(data []byte) {
	parsed, err := parseSettings(s.path, data)
	if err != nil {
		s.logger.Warn("Ignoring unreadable settings file", "error", err)
		return
	}
	next := parsed.withDefaults(s.defaults)
	if err := next.Validate(); err != nil {
		s.logger.Warn("Ignoring invalid settings file", "path", s.path, "error", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.swapLocked(next)
}

// Get returns the current snapshot.
func (s *SettingsStore) Get() Settings {
	return *s.current.Load()
}

// Install validates next, persists it and makes it current. Handlers are
// notified only when the snapshot actually changed.
func (s *SettingsStore) Install(next Settings) error {
	if err := next.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path != "" {
		if err := WriteSettings(s.path, next); err != nil {
			return err
		}
	}
	s.swapLocked(next)
	return nil
}

func (s *SettingsStore) swapLocked(next Settings) {
	prev := *s.current.Load()
	if prev == next {
		return
	}
	s.current.Store(&next)
	s.logger.Info("Settings installed", "device_id", next.DeviceID, "base_path", next.BasePath)

	for _, h := range s.handlers {
		if h != nil {
			h(prev, next)
		}
	}
}

// OnChange registers a handler called after each installed change.
// Handlers run synchronously and must not call Install.
func (s *SettingsStore) OnChange(handler func(prev, next Settings)) func() {
	s.mu.Lock()
	s.handlers = append(s.handlers, handler)
	idx := len(s.handlers) - 1
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if idx < len(s.handlers) {
			s.handlers[idx] = nil
		}
	}
}

// Watch reloads the store when the backing file is edited by hand.
// Invalid files are logged and ignored.
func (s *SettingsStore) Watch(opts ...WatchOption) error {
	if s.path == "" {
		return nil
	}
	w, err := startFileWatcher(s.path, s.reload, s.logger, opts...)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.watcher = w
	s.mu.Unlock()
	return nil
}

// Close stops the file watcher.
func (s *SettingsStore) Close() error {
	s.mu.Lock()
	w := s.watcher
	s.watcher = nil
	s.mu.Unlock()
	if w != nil {
		return w.stop()
	}
	return nil
}
