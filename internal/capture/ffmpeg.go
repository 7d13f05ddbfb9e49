package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/photostation/internal/devices"
	"github.com/smazurov/photostation/internal/frame"
	"github.com/smazurov/photostation/internal/logging"
)

const killTimeout = 5 * time.Second

// FFmpegOptions configures the ffmpeg capture backend. ffmpeg decodes the
// device and writes scaled raw frames to stdout.
type FFmpegOptions struct {
	Binary string
	// InputFormat overrides the platform default (v4l2, dshow, avfoundation).
	InputFormat  string
	Width        int
	Height       int
	FPS          int
	PixelFormat  frame.PixelFormat
	StartTimeout time.Duration
	StopTimeout  time.Duration
	Logger       *slog.Logger
}

// DefaultFFmpegOptions returns options suitable for a document camera.
func DefaultFFmpegOptions() FFmpegOptions {
	return FFmpegOptions{
		Binary:       "ffmpeg",
		Width:        1280,
		Height:       720,
		FPS:          15,
		PixelFormat:  frame.FormatRGBA,
		StartTimeout: 10 * time.Second,
		StopTimeout:  5 * time.Second,
	}
}

func (o FFmpegOptions) withDefaults() FFmpegOptions {
	d := DefaultFFmpegOptions()
	if o.Binary == "" {
		o.Binary = d.Binary
	}
	if o.Width <= 0 || o.Height <= 0 {
		o.Width, o.Height = d.Width, d.Height
	}
	if o.FPS <= 0 {
		o.FPS = d.FPS
	}
	if o.PixelFormat == frame.FormatUnknown {
		o.PixelFormat = d.PixelFormat
	}
	if o.StartTimeout <= 0 {
		o.StartTimeout = d.StartTimeout
	}
	if o.StopTimeout <= 0 {
		o.StopTimeout = d.StopTimeout
	}
	if o.Logger == nil {
		o.Logger = logging.GetLogger("capture")
	}
	return o
}

// args builds the ffmpeg command line for goos.
func (o FFmpegOptions) args(goos string, info devices.DeviceInfo) []string {
	args := []string{"-hide_banner", "-nostdin", "-loglevel", "warning"}

	format, input := o.InputFormat, info.DevicePath
	switch goos {
	case "windows":
		if format == "" {
			format = "dshow"
		}
		input = "video=" + info.DevicePath
	case "darwin":
		if format == "" {
			format = "avfoundation"
		}
		// avfoundation rejects the default input rate of most cameras.
		args = append(args, "-framerate", strconv.Itoa(o.FPS))
	default:
		if format == "" {
			format = "v4l2"
		}
	}

	return append(args,
		"-f", format,
		"-i", input,
		"-vf", fmt.Sprintf("fps=%d,scale=%d:%d", o.FPS, o.Width, o.Height),
		"-pix_fmt", o.PixelFormat.String(),
		"-f", "rawvideo",
		"-",
	)
}

// FFmpegOpener opens devices through an ffmpeg subprocess.
type FFmpegOpener struct {
	opts FFmpegOptions
}

// NewFFmpegOpener creates an opener; zero fields take DefaultFFmpegOptions values.
func NewFFmpegOpener(opts FFmpegOptions) *FFmpegOpener {
	return &FFmpegOpener{opts: opts.withDefaults()}
}

// Open checks that the device node and the ffmpeg binary exist.
func (o *FFmpegOpener) Open(info devices.DeviceInfo) (Device, error) {
	if strings.HasPrefix(info.DevicePath, "/dev/") {
		if _, err := os.Stat(info.DevicePath); err != nil {
			return nil, err
		}
	}
	binary, err := exec.LookPath(o.opts.Binary)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}
	opts := o.opts
	opts.Binary = binary
	return &ffmpegDevice{
		info:   info,
		opts:   opts,
		logger: opts.Logger.With("device_id", info.DeviceID),
		stderr: newLineTail(20),
		done:   make(chan struct{}),
	}, nil
}

type ffmpegDevice struct {
	info   devices.DeviceInfo
	opts   FFmpegOptions
	logger *slog.Logger
	cmd    *exec.Cmd
	stderr *lineTail

	stopOnce   sync.Once
	stopping   atomic.Bool
	finishOnce sync.Once
	done       chan struct{}
	errMu      sync.Mutex
	err        error
}

func (d *ffmpegDevice) Start(ctx context.Context, handler FrameHandler) error {
	cmd := exec.Command(d.opts.Binary, d.opts.args(runtime.GOOS, d.info)...)
	configureProcess(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ffmpeg start: %w", err)
	}
	d.cmd = cmd
	d.logger.Info("ffmpeg started", "pid", cmd.Process.Pid, "path", d.info.DevicePath,
		"size", fmt.Sprintf("%dx%d", d.opts.Width, d.opts.Height), "fps", d.opts.FPS)

	stderrDone := make(chan struct{})
	go func() {
		defer close(stderrDone)
		d.streamStderr(stderr)
	}()

	first := make(chan struct{})
	go d.readLoop(stdout, stderrDone, handler, first)

	timer := time.NewTimer(d.opts.StartTimeout)
	defer timer.Stop()

	select {
	case <-first:
		return nil
	case <-d.done:
		return d.Err()
	case <-timer.C:
		return fmt.Errorf("no frame within %s", d.opts.StartTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// readLoop reuses one pixel buffer; the handler clones what it keeps.
func (d *ffmpegDevice) readLoop(stdout io.Reader, stderrDone <-chan struct{}, handler FrameHandler, first chan struct{}) {
	stride := d.opts.Width * d.opts.PixelFormat.BytesPerPixel()
	buf := make([]byte, stride*d.opts.Height)

	var readErr error
	notified := false
	for {
		if _, err := io.ReadFull(stdout, buf); err != nil {
			readErr = err
			break
		}
		handler(&frame.Frame{
			Width:     d.opts.Width,
			Height:    d.opts.Height,
			Format:    d.opts.PixelFormat,
			Stride:    stride,
			Pix:       buf,
			Timestamp: time.Now(),
		})
		if !notified {
			close(first)
			notified = true
		}
	}

	<-stderrDone
	waitErr := d.cmd.Wait()

	if d.stopping.Load() {
		d.logger.Debug("ffmpeg exited after stop request")
		d.finish(nil)
		return
	}
	d.finish(d.exitError(readErr, waitErr))
}

func (d *ffmpegDevice) exitError(readErr, waitErr error) error {
	var err error
	switch {
	case waitErr != nil:
		err = fmt.Errorf("ffmpeg exited: %w", waitErr)
	case errors.Is(readErr, io.EOF), errors.Is(readErr, io.ErrUnexpectedEOF):
		err = errors.New("ffmpeg closed the stream")
	default:
		err = fmt.Errorf("read frame: %w", readErr)
	}
	if tail := d.stderr.String(); tail != "" {
		err = fmt.Errorf("%w: %s", err, tail)
	}
	return err
}

func (d *ffmpegDevice) streamStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		d.stderr.add(line)
		d.logger.Debug("ffmpeg", "line", line)
	}
}

func (d *ffmpegDevice) finish(err error) {
	d.finishOnce.Do(func() {
		d.errMu.Lock()
		d.err = err
		d.errMu.Unlock()
		close(d.done)
	})
}

// Stop sends SIGINT, then kills ffmpeg if it has not exited within StopTimeout.
func (d *ffmpegDevice) Stop() error {
	if d.cmd == nil || d.cmd.Process == nil {
		return nil
	}

	d.stopOnce.Do(func() {
		d.stopping.Store(true)
		select {
		case <-d.done:
			return
		default:
		}
		if err := interruptProcess(d.cmd); err != nil && !errors.Is(err, os.ErrProcessDone) {
			d.logger.Warn("Failed to interrupt ffmpeg", "error", err)
		}
	})

	select {
	case <-d.done:
		return nil
	case <-time.After(d.opts.StopTimeout):
		d.logger.Warn("Graceful shutdown timeout, forcing kill", "timeout", d.opts.StopTimeout)
		if err := d.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			d.logger.Error("Failed to kill ffmpeg", "error", err)
		}
	}

	select {
	case <-d.done:
		return nil
	case <-time.After(killTimeout):
		return errors.New("ffmpeg did not exit after kill")
	}
}

// Close releases nothing beyond the process, which Stop already reaped.
func (d *ffmpegDevice) Close() error {
	if d.cmd == nil {
		return nil
	}
	select {
	case <-d.done:
		return nil
	default:
		return d.Stop()
	}
}

func (d *ffmpegDevice) Done() <-chan struct{} { return d.done }

func (d *ffmpegDevice) Err() error {
	d.errMu.Lock()
	defer d.errMu.Unlock()
	return d.err
}
