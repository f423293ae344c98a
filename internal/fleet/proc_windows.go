//go:build windows

package fleet

import (
	"os/exec"
	"time"
)

func configureProcess(*exec.Cmd) {}

func terminateProcess(cmd *exec.Cmd, _ time.Duration, done <-chan error) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	_ = cmd.Process.Kill()
	<-done
}
