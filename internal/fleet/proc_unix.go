//go:build !windows

package fleet

import (
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminateProcess signals the worker's whole process group with SIGTERM, then
// SIGKILL once grace elapses without the process exiting. It returns after the
// wait goroutine has reported on done.
func terminateProcess(cmd *exec.Cmd, grace time.Duration, done <-chan error) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	pid := cmd.Process.Pid
	pgid, err := unix.Getpgid(pid)
	if err != nil || pgid <= 0 {
		_ = cmd.Process.Kill()
		<-done
		return
	}
	// Negative PGID targets the worker and anything it spawned.
	_ = unix.Kill(-pgid, unix.SIGTERM)
	if grace > 0 {
		timer := time.NewTimer(grace)
		defer timer.Stop()
		select {
		case <-done:
			return
		case <-timer.C:
		}
	}
	_ = unix.Kill(-pgid, unix.SIGKILL)
	<-done
}
