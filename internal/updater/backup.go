package updater

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	backupBinary = "photostation.backup"
	backupMeta   = "backup.json"
)

var errNoBackup = errors.New("no backup available")

type backupInfo struct {
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	ExecPath  string    `json:"exec_path"`
}

// backupStore keeps one copy of the binary that was replaced last.
type backupStore struct {
	dir    string
	logger *slog.Logger

	mu   sync.RWMutex
	info *backupInfo
}

// defaultBackupDir is <user cache>/photostation/backup.
func defaultBackupDir() (string, error) {
	cache, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate cache directory: %w", err)
	}
	return filepath.Join(cache, "photostation", "backup"), nil
}

func openBackupStore(dir string, logger *slog.Logger) (*backupStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}
	b := &backupStore{dir: dir, logger: logger}
	b.load()
	return b, nil
}

func (b *backupStore) load() {
	data, err := os.ReadFile(filepath.Join(b.dir, backupMeta))
	if err != nil {
		return
	}
	var info backupInfo
	if err := json.Unmarshal(data, &info); err != nil {
		b.logger.Warn("Ignoring unreadable backup info", "error", err)
		return
	}
	if _, err := os.Stat(filepath.Join(b.dir, backupBinary)); err != nil {
		b.logger.Warn("Backup binary missing", "dir", b.dir)
		return
	}

	b.mu.Lock()
	b.info = &info
	b.mu.Unlock()
	b.logger.Debug("Found binary backup", "version", info.Version)
}

// save copies the running binary at execPath aside.
func (b *backupStore) save(execPath, version string) error {
	if err := copyFile(execPath, filepath.Join(b.dir, backupBinary)); err != nil {
		return err
	}

	info := backupInfo{Version: version, CreatedAt: time.Now(), ExecPath: execPath}
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to encode backup info: %w", err)
	}
	if err := os.WriteFile(filepath.Join(b.dir, backupMeta), data, 0o644); err != nil {
		return fmt.Errorf("failed to write backup info: %w", err)
	}

	b.mu.Lock()
	b.info = &info
	b.mu.Unlock()
	b.logger.Info("Binary backed up", "version", version)
	return nil
}

// restore copies the backup over the binary it was taken from.
func (b *backupStore) restore() (string, error) {
	b.mu.RLock()
	info := b.info
	b.mu.RUnlock()
	if info == nil {
		return "", errNoBackup
	}
	if err := copyFile(filepath.Join(b.dir, backupBinary), info.ExecPath); err != nil {
		return "", err
	}
	b.logger.Info("Binary restored from backup", "version", info.Version)
	return info.Version, nil
}

func (b *backupStore) version() (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.info == nil {
		return "", false
	}
	return b.info.Version, true
}

func copyFile(from, to string) error {
	src, err := os.Open(from)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", from, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(to, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", to, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("failed to copy %s: %w", from, err)
	}
	return dst.Close()
}
