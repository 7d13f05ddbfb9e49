package led

import (
	"log/slog"
	"os"
	"strings"
)

const deviceTreeModelPath = "/proc/device-tree/model"

var boards = []struct {
	match     string
	statusLED string
	leds      map[string]string
}{
	{"NanoPC-T6", "user", map[string]string{"user": "usr_led", "system": "sys_led"}},
	{"Orange Pi", "green", map[string]string{"blue": "blue_led", "green": "green_led"}},
	{"Raspberry Pi", "act", map[string]string{"act": "ACT"}},
}

// New creates a controller for the detected board and names the LED the
// station should drive. It falls back to a no-op controller when the board
// has no known LEDs.
func New(logger *slog.Logger) (Controller, string) {
	return newForModel(detectBoard(), logger)
}

func newForModel(model string, logger *slog.Logger) (Controller, string) {
	for _, b := range boards {
		if strings.Contains(model, b.match) {
			logger.Info("Using sysfs LED controller", "board_model", model, "status_led", b.statusLED)
			return newSysfs(b.leds), b.statusLED
		}
	}
	logger.Info("No LED support detected, using no-op controller", "board_model", model)
	return newNoop(logger), ""
}

// detectBoard reads the device tree model to identify the board.
func detectBoard() string {
	data, err := os.ReadFile(deviceTreeModelPath)
	if err != nil {
		return "unknown"
	}
	// Device tree strings are NUL terminated.
	return strings.TrimRight(string(data), "\x00")
}
