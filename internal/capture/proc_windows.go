//go:build windows

package capture

import "os/exec"

func configureProcess(_ *exec.Cmd) {}

// interruptProcess kills ffmpeg; Windows has no SIGINT for child processes.
func interruptProcess(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}
