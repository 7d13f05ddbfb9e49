//go:build !windows

package capture

import (
	"os/exec"
	"syscall"
)

// configureProcess puts ffmpeg in its own process group so a terminal ^C
// reaches the station first and ffmpeg is stopped in order.
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// interruptProcess asks ffmpeg to finish cleanly.
func interruptProcess(cmd *exec.Cmd) error {
	return cmd.Process.Signal(syscall.SIGINT)
}
