// Package updater replaces the station binary with the latest GitHub release
// and keeps the previous binary for rollback.
package updater

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"syscall"
	"time"

	"github.com/creativeprojects/go-selfupdate"
	"github.com/smazurov/photostation/internal/logging"
	"github.com/smazurov/photostation/internal/version"
)

// State is where the updater is in its check/apply cycle.
type State string

// Update states.
const (
	StateIdle       State = "idle"
	StateChecking   State = "checking"
	StateAvailable  State = "available"
	StateApplying   State = "applying"
	StateRestarting State = "restarting"
	StateError      State = "error"
	StateRolledBack State = "rolled_back"
)

// restartDelay leaves time for the HTTP response before the process exits.
const restartDelay = 500 * time.Millisecond

// Options configures an Updater.
type Options struct {
	// Repository is the GitHub slug releases are read from.
	Repository string
	Prerelease bool
	// BackupDir defaults to <user cache>/photostation/backup.
	BackupDir string
	// Restart runs once a new binary is in place. The default sends SIGTERM
	// to this process so the service manager starts the new binary.
	Restart func()
	Logger  *slog.Logger
}

// Info describes the newest release relative to the running build.
type Info struct {
	CurrentVersion  string    `json:"current_version"`
	LatestVersion   string    `json:"latest_version"`
	ReleaseNotes    string    `json:"release_notes,omitempty"`
	ReleaseURL      string    `json:"release_url,omitempty"`
	PublishedAt     time.Time `json:"published_at,omitempty"`
	AssetSize       int       `json:"asset_size,omitempty"`
	UpdateAvailable bool      `json:"update_available"`
}

// Status is a snapshot of the updater.
type Status struct {
	Enabled         bool       `json:"enabled"`
	DisabledReason  string     `json:"disabled_reason,omitempty"`
	State           State      `json:"state"`
	CurrentVersion  string     `json:"current_version"`
	TargetVersion   string     `json:"target_version,omitempty"`
	Error           string     `json:"error,omitempty"`
	LastChecked     *time.Time `json:"last_checked,omitempty"`
	BackupAvailable bool       `json:"backup_available"`
	BackupVersion   string     `json:"backup_version,omitempty"`
}

// Updater checks for, installs and rolls back releases. It is disabled when
// the binary's directory is not writable.
type Updater struct {
	source   releaseSource
	backups  *backupStore
	execPath func() (string, error)
	restart  func()
	delay    time.Duration
	current  string
	disabled string
	logger   *slog.Logger

	mu          sync.Mutex
	state       State
	latest      *Release
	lastChecked *time.Time
	lastErr     error
}

// New creates an updater for opts.Repository.
func New(opts Options) (*Updater, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("updater")
	}
	if opts.Repository == "" {
		return nil, errors.New("updater: repository is required")
	}

	if reason := checkWritable(); reason != "" {
		logger.Warn("Self-update disabled", "reason", reason)
		u := newUpdater(nil, nil, selfupdate.ExecutablePath, opts)
		u.disabled = reason
		return u, nil
	}

	source, err := newGitHubReleases(opts.Repository, opts.Prerelease)
	if err != nil {
		return nil, err
	}

	dir := opts.BackupDir
	if dir == "" {
		if dir, err = defaultBackupDir(); err != nil {
			return nil, err
		}
	}
	backups, err := openBackupStore(dir, logger)
	if err != nil {
		logger.Warn("Binary backups unavailable, updates cannot be rolled back", "error", err)
	}
	if version.IsDev() {
		logger.Info("Development build, any release counts as an update")
	}

	return newUpdater(source, backups, selfupdate.ExecutablePath, opts), nil
}

func newUpdater(source releaseSource, backups *backupStore, execPath func() (string, error), opts Options) *Updater {
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("updater")
	}
	restart := opts.Restart
	if restart == nil {
		restart = func() { signalSelf(logger) }
	}
	return &Updater{
		source:   source,
		backups:  backups,
		execPath: execPath,
		restart:  restart,
		delay:    restartDelay,
		current:  version.Version,
		logger:   logger,
		state:    StateIdle,
	}
}

// checkWritable returns why the running binary cannot be replaced, or "".
func checkWritable() string {
	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		return fmt.Sprintf("failed to get executable path: %v", err)
	}
	probe, err := os.CreateTemp(filepath.Dir(exe), ".photostation-update-*")
	if err != nil {
		return fmt.Sprintf("no write permission to %s: %v", filepath.Dir(exe), err)
	}
	probe.Close()
	os.Remove(probe.Name())
	return ""
}

// Enabled reports whether updates can be installed, and why not.
func (u *Updater) Enabled() (bool, string) {
	return u.disabled == "", u.disabled
}

// Check looks up the newest release without downloading it.
func (u *Updater) Check(ctx context.Context) (Info, error) {
	if u.disabled != "" {
		return Info{}, newError(ErrCodeDisabled, u.disabled, nil)
	}
	if !u.transition(StateChecking, StateIdle, StateAvailable, StateError, StateRolledBack) {
		return Info{}, newError(ErrCodeInvalidState,
			fmt.Sprintf("cannot check for updates while %s", u.State()), nil)
	}

	rel, found, err := u.source.Latest(ctx, u.current)
	now := time.Now()
	u.mu.Lock()
	u.lastChecked = &now
	u.mu.Unlock()

	if err != nil {
		u.fail(err)
		return Info{}, newError(ErrCodeCheckFailed, "failed to check for updates", err)
	}
	if !found {
		err = errors.New("no release found for this platform")
		u.fail(err)
		return Info{}, newError(ErrCodeNotFound, err.Error(), nil)
	}

	info := Info{CurrentVersion: u.current, LatestVersion: rel.Version}
	if !rel.Newer {
		u.mu.Lock()
		u.latest = nil
		u.mu.Unlock()
		u.transition(StateIdle)
		u.logger.Info("Station is up to date", "version", u.current)
		return info, nil
	}

	u.mu.Lock()
	u.latest = rel
	u.mu.Unlock()
	u.transition(StateAvailable)
	u.logger.Info("Update available", "current", u.current, "latest", rel.Version)

	info.ReleaseNotes = rel.Notes
	info.ReleaseURL = rel.URL
	info.PublishedAt = rel.PublishedAt
	info.AssetSize = rel.AssetSize
	info.UpdateAvailable = true
	return info, nil
}

// Apply installs the newest release and schedules a restart. The running
// binary is backed up first and restored if installation fails.
func (u *Updater) Apply(ctx context.Context) (Info, error) {
	if u.disabled != "" {
		return Info{}, newError(ErrCodeDisabled, u.disabled, nil)
	}

	if u.State() != StateAvailable {
		info, err := u.Check(ctx)
		if err != nil {
			return Info{}, err
		}
		if !info.UpdateAvailable {
			return info, newError(ErrCodeNoUpdate, "already running the latest version", nil)
		}
	}
	if !u.transition(StateApplying, StateAvailable) {
		return Info{}, newError(ErrCodeInvalidState,
			fmt.Sprintf("cannot apply update while %s", u.State()), nil)
	}

	u.mu.Lock()
	rel := u.latest
	u.mu.Unlock()

	exe, err := u.execPath()
	if err != nil {
		u.fail(err)
		return Info{}, newError(ErrCodeApplyFailed, "failed to get executable path", err)
	}

	if u.backups != nil {
		if err := u.backups.save(exe, u.current); err != nil {
			u.fail(err)
			return Info{}, newError(ErrCodeBackupFailed, "failed to back up the running binary", err)
		}
	}

	if err := u.source.Install(ctx, rel, exe); err != nil {
		u.fail(err)
		u.restoreAfterFailure()
		return Info{}, newError(ErrCodeApplyFailed, "failed to install update", err)
	}

	u.transition(StateRestarting)
	u.logger.Info("Update installed, restarting", "version", rel.Version)
	u.scheduleRestart()

	return Info{
		CurrentVersion:  u.current,
		LatestVersion:   rel.Version,
		ReleaseNotes:    rel.Notes,
		ReleaseURL:      rel.URL,
		PublishedAt:     rel.PublishedAt,
		AssetSize:       rel.AssetSize,
		UpdateAvailable: true,
	}, nil
}

// Rollback puts the backed up binary back and schedules a restart.
func (u *Updater) Rollback(_ context.Context) error {
	if u.disabled != "" {
		return newError(ErrCodeDisabled, u.disabled, nil)
	}
	if u.backups == nil {
		return newError(ErrCodeNoBackup, errNoBackup.Error(), nil)
	}
	switch u.State() {
	case StateChecking, StateApplying, StateRestarting:
		return newError(ErrCodeInvalidState,
			fmt.Sprintf("cannot roll back while %s", u.State()), nil)
	}

	restored, err := u.backups.restore()
	if errors.Is(err, errNoBackup) {
		return newError(ErrCodeNoBackup, err.Error(), nil)
	}
	if err != nil {
		u.fail(err)
		return newError(ErrCodeRollbackFailed, "failed to restore backup", err)
	}

	u.transition(StateRolledBack)
	u.logger.Info("Rolled back, restarting", "version", restored)
	u.scheduleRestart()
	return nil
}

// State returns the current state.
func (u *Updater) State() State {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state
}

// Status returns a snapshot for display.
func (u *Updater) Status() Status {
	u.mu.Lock()
	defer u.mu.Unlock()

	status := Status{
		Enabled:        u.disabled == "",
		DisabledReason: u.disabled,
		State:          u.state,
		CurrentVersion: u.current,
		LastChecked:    u.lastChecked,
	}
	if u.latest != nil {
		status.TargetVersion = u.latest.Version
	}
	if u.lastErr != nil {
		status.Error = u.lastErr.Error()
	}
	if u.backups != nil {
		status.BackupVersion, status.BackupAvailable = u.backups.version()
	}
	return status
}

// transition moves to next if the current state is one of from (any when
// from is empty) and clears the last error.
func (u *Updater) transition(next State, from ...State) bool {
	u.mu.Lock()
	defer u.mu.Unlock()

	if len(from) > 0 && !slices.Contains(from, u.state) {
		return false
	}
	u.logger.Debug("Update state", "from", u.state, "to", next)
	u.state = next
	u.lastErr = nil
	return true
}

func (u *Updater) fail(err error) {
	u.mu.Lock()
	u.state = StateError
	u.lastErr = err
	u.mu.Unlock()
}

func (u *Updater) restoreAfterFailure() {
	if u.backups == nil {
		u.logger.Error("Update failed and no backup exists")
		return
	}
	if _, err := u.backups.restore(); err != nil {
		u.logger.Error("Update failed and the backup could not be restored", "error", err)
		return
	}
	u.logger.Warn("Update failed, previous binary restored")
}

func (u *Updater) scheduleRestart() {
	time.AfterFunc(u.delay, u.restart)
}

func signalSelf(logger *slog.Logger) {
	proc, err := os.FindProcess(os.Getpid())
	if err != nil {
		logger.Error("Failed to find own process", "error", err)
		return
	}
	logger.Info("Sending SIGTERM to restart")
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		logger.Error("Failed to send SIGTERM", "error", err)
	}
}
