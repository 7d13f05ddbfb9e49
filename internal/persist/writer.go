// Package persist writes a completed front/back capture to disk.
package persist

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/smazurov/photostation/internal/events"
	"github.com/smazurov/photostation/internal/frame"
	"github.com/smazurov/photostation/internal/logging"
	"github.com/smazurov/photostation/internal/metrics"
	"github.com/smazurov/photostation/internal/station"
)

// File names inside the save folder, without extension.
const (
	FrontName = "Front"
	BackName  = "Back"
)

var (
	// ErrIncompleteCapture is returned when either slot is empty.
	ErrIncompleteCapture = errors.New("both front and back must be captured before saving")
	// ErrInvalidFolderName is returned for a blank folder name or one that is
	// not a single path element.
	ErrInvalidFolderName = errors.New("invalid folder name")
	// ErrSaveFailed matches every *SaveError.
	ErrSaveFailed = errors.New("save failed")
)

// SaveError reports which step of a save failed.
type SaveError struct {
	Op   string
	Path string
	Err  error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("save failed: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *SaveError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrSaveFailed) hold for any SaveError.
func (e *SaveError) Is(target error) bool { return target == ErrSaveFailed }

// Slots is the part of the station a save needs.
type Slots interface {
	Pair() (station.Pair, bool)
	ClearSaved(p station.Pair)
}

// SaveResult lists what was written.
type SaveResult struct {
	Folder    string `json:"folder"`
	FrontPath string `json:"front_path"`
	BackPath  string `json:"back_path"`
}

// Options configures a Writer.
type Options struct {
	// Encoder defaults to JPEG at DefaultQuality.
	Encoder Encoder
	// Events receives SaveCompletedEvent / SaveFailedEvent (optional).
	Events events.Publisher
	Logger *slog.Logger
}

// Writer saves station pairs.
type Writer struct {
	encoder Encoder
	events  events.Publisher
	logger  *slog.Logger
}

// NewWriter creates a writer.
func NewWriter(opts Options) *Writer {
	w := &Writer{
		encoder: opts.Encoder,
		events:  opts.Events,
		logger:  opts.Logger,
	}
	if w.encoder == nil {
		w.encoder = NewJPEGEncoder()
	}
	if w.logger == nil {
		w.logger = logging.GetLogger("persist")
	}
	return w
}

// ValidateFolderName trims name and rejects anything that is not a single
// usable directory name.
func ValidateFolderName(name string) (string, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return "", fmt.Errorf("%w: name cannot be empty", ErrInvalidFolderName)
	case name == "." || name == "..":
		return "", fmt.Errorf("%w: %q", ErrInvalidFolderName, name)
	case strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, os.PathSeparator):
		return "", fmt.Errorf("%w: %q contains a path separator", ErrInvalidFolderName, name)
	case strings.ContainsRune(name, 0):
		return "", fmt.Errorf("%w: %q contains a NUL byte", ErrInvalidFolderName, name)
	}
	return name, nil
}

// Save writes Front and Back into basePath/folderName and, on success,
// empties the slots that were saved. Nothing touches the filesystem unless
// both slots are occupied and the folder name is valid. On failure no slot
// is cleared, so the operator can retry.
func (w *Writer) Save(st Slots, basePath, folderName string) (SaveResult, error) {
	pair, ok := st.Pair()
	if !ok {
		metrics.ObserveSave("incomplete", 0)
		return SaveResult{}, ErrIncompleteCapture
	}

	name, err := ValidateFolderName(folderName)
	if err != nil {
		metrics.ObserveSave("invalid_name", 0)
		return SaveResult{}, err
	}

	start := time.Now()
	dir := filepath.Join(basePath, name)
	result := SaveResult{
		Folder:    dir,
		FrontPath: filepath.Join(dir, FrontName+w.encoder.Ext()),
		BackPath:  filepath.Join(dir, BackName+w.encoder.Ext()),
	}

	if err := w.write(dir, result, pair); err != nil {
		metrics.ObserveSave("failed", 0)
		w.logger.Error("Save failed", "folder", dir, "error", err)
		w.publish(events.SaveFailedEvent{Folder: dir, Error: err.Error(), Timestamp: events.Now()})
		return SaveResult{}, err
	}

	st.ClearSaved(pair)

	elapsed := time.Since(start)
	metrics.ObserveSave("saved", elapsed.Seconds())
	w.logger.Info("Capture saved", "folder", dir, "duration", elapsed)
	w.publish(events.SaveCompletedEvent{
		Folder:    dir,
		FrontPath: result.FrontPath,
		BackPath:  result.BackPath,
		Timestamp: events.Now(),
	})
	return result, nil
}

func (w *Writer) write(dir string, result SaveResult, pair station.Pair) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &SaveError{Op: "create folder", Path: dir, Err: err}
	}
	if err := w.writeImage(result.FrontPath, pair.Front); err != nil {
		return err
	}
	return w.writeImage(result.BackPath, pair.Back)
}

// writeImage encodes into a temp file next to path and renames it into
// place, so an existing image is never left half written.
func (w *Writer) writeImage(path string, f *frame.Frame) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return &SaveError{Op: "create", Path: path, Err: err}
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := w.encoder.Encode(tmp, f); err != nil {
		tmp.Close()
		return &SaveError{Op: "encode", Path: path, Err: err}
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return &SaveError{Op: "chmod", Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &SaveError{Op: "write", Path: path, Err: err}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return &SaveError{Op: "rename", Path: path, Err: err}
	}
	return nil
}

func (w *Writer) publish(ev events.Event) {
	if w.events != nil {
		w.events.Publish(ev)
	}
}
