// Package console is the operator terminal: a keyboard or a barcode scanner
// in keyboard mode types commands, one per line.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"

	"github.com/smazurov/photostation/internal/command"
	"github.com/smazurov/photostation/internal/config"
	"github.com/smazurov/photostation/internal/events"
	"github.com/smazurov/photostation/internal/logging"
	"github.com/smazurov/photostation/internal/persist"
	"github.com/smazurov/photostation/internal/settings"
	"github.com/smazurov/photostation/internal/station"
)

// errExit stops Run after the exit command.
var errExit = errors.New("exit requested")

const hint = "Commands: takepicture, save, resetfront, resetback, settings, exit"

// Station is the slot station as the console drives it.
type Station interface {
	Capture(decide station.Decider) (station.CaptureResult, error)
	Reset(slot station.Slot) bool
	AreBothOccupied() bool
	persist.Slots
}

// SettingsScreen is the settings flow behind the settings command.
type SettingsScreen interface {
	Authenticate(username, password string) error
	Form() (settings.Form, error)
	Apply(u settings.Update) (settings.Result, error)
}

// Options wires the console to the station.
type Options struct {
	In  io.Reader
	Out io.Writer

	Station  Station
	Writer   *persist.Writer
	Settings interface{ Get() config.Settings }
	Screen   SettingsScreen
	Events   *events.Bus
	Logger   *slog.Logger
}

// Console reads commands until exit, EOF or cancellation.
type Console struct {
	in          *bufio.Reader
	inFD        uintptr
	interactive bool

	outMu sync.Mutex
	out   io.Writer

	station  Station
	writer   *persist.Writer
	settings interface{ Get() config.Settings }
	screen   SettingsScreen
	bus      *events.Bus
	logger   *slog.Logger
	router   *command.Router
	pending  chan lineResult
}

type lineResult struct {
	line string
	err  error
}

// New creates a console. In and Out default to stdin and stdout.
func New(opts Options) *Console {
	in, out := opts.In, opts.Out
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("console")
	}

	c := &Console{
		in:       bufio.NewReader(in),
		out:      out,
		station:  opts.Station,
		writer:   opts.Writer,
		settings: opts.Settings,
		screen:   opts.Screen,
		bus:      opts.Events,
		logger:   logger,
	}
	if f, ok := in.(*os.File); ok {
		c.inFD = f.Fd()
		c.interactive = isatty.IsTerminal(c.inFD) || isatty.IsCygwinTerminal(c.inFD)
	}
	c.router = command.NewRouter(c, command.RouterOptions{
		Source: "console",
		Events: opts.Events,
		Logger: logger,
	})
	return c
}

// Run processes commands until exit, EOF or ctx is done. Command errors are
// printed and never end the loop.
func (c *Console) Run(ctx context.Context) error {
	unsub := c.watchEvents()
	defer unsub()

	c.println(hint)
	for {
		c.prompt("> ")
		line, err := c.readLine(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				c.logger.Info("Console input closed")
				return nil
			}
			return err
		}

		cmd, err := c.router.Dispatch(ctx, line)
		switch {
		case errors.Is(err, errExit):
			return nil
		case errors.Is(err, command.ErrUnknownCommand):
			c.printf("Warning: %v\n%s\n", err, hint)
		case err != nil:
			c.printf("Warning: %v\n", err)
			c.logger.Debug("Command failed", "command", cmd.String(), "error", err)
		}
	}
}

// Capture takes a picture, asking which side to replace when both are set.
func (c *Console) Capture(ctx context.Context) error {
	res, err := c.station.Capture(func() station.Choice { return c.askOverwrite(ctx) })
	if err != nil {
		return err
	}
	if !res.Stored {
		c.println("Capture discarded.")
		return nil
	}
	c.printf("Captured %s.\n", res.Slot)
	return nil
}

// askOverwrite maps the answer to a choice; blank input or EOF discards.
func (c *Console) askOverwrite(ctx context.Context) station.Choice {
	for {
		c.printf("Both front and back are captured. Overwrite [front/back] or [discard]? ")
		line, err := c.readLine(ctx)
		if err != nil {
			return station.Discard
		}
		choice, err := station.ParseChoice(line)
		if err != nil {
			c.printf("Please answer front, back or discard.\n")
			continue
		}
		if choice == station.NoChoice {
			return station.Discard
		}
		return choice
	}
}

// Save asks for the folder name and writes both images.
func (c *Console) Save(ctx context.Context) error {
	if !c.station.AreBothOccupied() {
		return persist.ErrIncompleteCapture
	}
	c.printf("Folder name: ")
	name, err := c.readLine(ctx)
	if err != nil {
		return err
	}
	res, err := c.writer.Save(c.station, c.settings.Get().BasePath, name)
	if err != nil {
		return err
	}
	c.printf("Saved:\n  %s\n  %s\n", res.FrontPath, res.BackPath)
	return nil
}

func (c *Console) ResetFront(context.Context) error {
	c.reset(station.Front)
	return nil
}

func (c *Console) ResetBack(context.Context) error {
	c.reset(station.Back)
	return nil
}

func (c *Console) reset(slot station.Slot) {
	if c.station.Reset(slot) {
		c.printf("Cleared %s.\n", slot)
	} else {
		c.printf("%s is already empty.\n", strings.ToUpper(slot.String()[:1])+slot.String()[1:])
	}
}

// Exit ends Run.
func (c *Console) Exit(context.Context) error {
	c.println("Exiting.")
	return errExit
}

// OpenSettings runs the login and the settings form.
func (c *Console) OpenSettings(ctx context.Context) error {
	if c.screen == nil {
		return errors.New("settings are not available")
	}

	c.printf("Username: ")
	user, err := c.readLine(ctx)
	if err != nil {
		return err
	}
	c.printf("Password: ")
	password, err := c.readPassword(ctx)
	if err != nil {
		return err
	}
	if err := c.screen.Authenticate(user, password); err != nil {
		return err
	}

	form, err := c.screen.Form()
	if err != nil {
		return err
	}
	if len(form.Devices) == 0 {
		return errors.New("no camera devices found")
	}

	c.println("Cameras:")
	selected := 0
	for i, d := range form.Devices {
		mark := " "
		if d.DeviceID == form.SelectedDeviceID {
			mark, selected = "*", i
		}
		c.printf(" %s %d) %s (%s)\n", mark, i+1, d.DeviceName, d.DevicePath)
	}
	c.printf("Camera [%d]: ", selected+1)
	answer, err := c.readLine(ctx)
	if err != nil {
		return err
	}
	if answer = strings.TrimSpace(answer); answer != "" {
		n, err := strconv.Atoi(answer)
		if err != nil || n < 1 || n > len(form.Devices) {
			return fmt.Errorf("please select a camera between 1 and %d", len(form.Devices))
		}
		selected = n - 1
	}

	c.printf("Destination base folder [%s]: ", form.BasePath)
	base, err := c.readLine(ctx)
	if err != nil {
		return err
	}
	if strings.TrimSpace(base) == "" {
		base = form.BasePath
	}

	res, err := c.screen.Apply(settings.Update{DeviceID: form.Devices[selected].DeviceID, BasePath: base})
	if err != nil {
		return err
	}
	c.printf("Settings saved. Camera: %s, destination: %s\n", res.Settings.DeviceID, res.Settings.BasePath)
	if res.DeviceChanged {
		c.println("Camera restarted.")
	}
	return nil
}

// readLine returns one line without its terminator.
func (c *Console) readLine(ctx context.Context) (string, error) {
	ch := c.pending
	if ch == nil {
		ch = make(chan lineResult, 1)
		go func() {
			line, err := c.in.ReadString('\n')
			if err != nil && line != "" {
				err = nil
			}
			ch <- lineResult{line: strings.TrimRight(line, "\r\n"), err: err}
		}()
	}

	select {
	case r := <-ch:
		c.pending = nil
		return r.line, r.err
	case <-ctx.Done():
		// The read stays outstanding and is picked up by the next call.
		c.pending = ch
		return "", ctx.Err()
	}
}

// readPassword disables echo on a terminal.
func (c *Console) readPassword(ctx context.Context) (string, error) {
	if !c.interactive || c.pending != nil || c.in.Buffered() > 0 {
		return c.readLine(ctx)
	}
	b, err := term.ReadPassword(int(c.inFD))
	c.println("")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// watchEvents reports camera problems between commands.
func (c *Console) watchEvents() func() {
	if c.bus == nil {
		return func() {}
	}
	unsubState := c.bus.Subscribe(func(e events.CaptureStateChangedEvent) {
		if !e.Running && e.Error != "" {
			c.printf("\nCamera stopped: %s\n", e.Error)
		}
	})
	unsubDevice := c.bus.Subscribe(func(e events.DeviceChangedEvent) {
		switch e.Action {
		case "added":
			c.printf("\nCamera connected: %s\n", e.DeviceName)
		case "removed":
			c.printf("\nCamera disconnected: %s\n", e.DeviceName)
		}
	})
	return func() {
		unsubState()
		unsubDevice()
	}
}

func (c *Console) prompt(p string) {
	if c.interactive {
		c.printf("%s", p)
	}
}

func (c *Console) println(s string) {
	c.printf("%s\n", s)
}

func (c *Console) printf(format string, args ...any) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}
