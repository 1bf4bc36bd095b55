package daemon

import (
	"os/exec"
	"syscall"
)

// StartDaemon spawns the scheduler daemon from execPath.
// The daemon is detached from the parent process (runs independently).
func StartDaemon(execPath, dataDir string) (int, error) {
	cmd := exec.Command(execPath, DaemonArgs(dataDir)...)

	// Detach from parent process
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true, // Create new session (detach from terminal)
	}

	// No stdin/stdout/stderr - fully detached
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return 0, err
	}
	pid := cmd.Process.Pid
	// The child outlives us; release it so it is not reaped here
	_ = cmd.Process.Release()
	return pid, nil
}

// DaemonArgs is the hidden command line that runs the scheduler.
func DaemonArgs(dataDir string) []string {
	args := []string{"daemon"}
	if dataDir != "" {
		args = append(args, "--data-dir", dataDir)
	}
	return args
}
