// Package command maps free-text operator input, typed or injected by a
// barcode scanner, to station operations.
package command

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// ErrUnknownCommand matches every *UnknownCommandError.
var ErrUnknownCommand = errors.New("unknown command")

// UnknownCommandError carries the input as the operator entered it.
type UnknownCommandError struct {
	Input string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown command: %s", e.Input)
}

// Is makes errors.Is(err, ErrUnknownCommand) hold.
func (e *UnknownCommandError) Is(target error) bool { return target == ErrUnknownCommand }

// Command is a recognized operator command.
type Command int

// Commands. CommandNone is blank input and is ignored.
const (
	CommandNone Command = iota
	CommandCapture
	CommandSave
	CommandResetFront
	CommandResetBack
	CommandExit
	CommandOpenSettings
)

var names = map[Command]string{
	CommandNone:         "none",
	CommandCapture:      "capture",
	CommandSave:         "save",
	CommandResetFront:   "reset-front",
	CommandResetBack:    "reset-back",
	CommandExit:         "exit",
	CommandOpenSettings: "open-settings",
}

func (c Command) String() string {
	if n, ok := names[c]; ok {
		return n
	}
	return fmt.Sprintf("command(%d)", int(c))
}

// aliases is keyed by normalized input.
var aliases = map[string]Command{
	"takepicture":  CommandCapture,
	"capture":      CommandCapture,
	"snap":         CommandCapture,
	"save":         CommandSave,
	"resetfront":   CommandResetFront,
	"clearfront":   CommandResetFront,
	"resetback":    CommandResetBack,
	"clearback":    CommandResetBack,
	"exit":         CommandExit,
	"quit":         CommandExit,
	"settings":     CommandOpenSettings,
	"opensettings": CommandOpenSettings,
}

// Normalize removes all whitespace and case-folds raw, so "Take Picture",
// " takepicture" and "TAKEPICTURE" compare equal.
func Normalize(raw string) string {
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw)
	// Casers are stateful; one per call.
	return cases.Fold().String(stripped)
}

// Parse resolves raw to a command. Blank input returns CommandNone and no
// error; anything unrecognized returns an *UnknownCommandError.
func Parse(raw string) (Command, error) {
	n := Normalize(raw)
	if n == "" {
		return CommandNone, nil
	}
	if c, ok := aliases[n]; ok {
		return c, nil
	}
	return CommandNone, &UnknownCommandError{Input: strings.TrimSpace(raw)}
}
