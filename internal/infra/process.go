package infra

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/eliteGoblin/focusd/shieldmon/internal/domain"
)

// ProcessTable lists and terminates host processes for the shield sweeper.
type ProcessTable struct {
	self int
}

// NewProcessManager returns the gopsutil-backed process table.
func NewProcessManager() domain.ProcessManager {
	return &ProcessTable{self: os.Getpid()}
}

// FindByName matches on the lowercased executable name, falling back to
// the first command-line token when the kernel truncates the name.
func (t *ProcessTable) FindByName(match func(name string) bool) ([]int, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	var pids []int
	for _, p := range procs {
		if int(p.Pid) == t.self {
			continue
		}
		if name, ok := processName(p); ok && match(strings.ToLower(name)) {
			pids = append(pids, int(p.Pid))
		}
	}
	return pids, nil
}

func processName(p *process.Process) (string, bool) {
	if name, err := p.Name(); err == nil && name != "" {
		return name, true
	}
	// exited, or no permission to read it
	args, err := p.CmdlineSlice()
	if err != nil || len(args) == 0 {
		return "", false
	}
	return args[0], true
}

// Kill sends SIGKILL. A process that already exited is not an error.
func (t *ProcessTable) Kill(pid int) error {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		if errors.Is(err, process.ErrorProcessNotRunning) {
			return nil
		}
		return fmt.Errorf("failed to find process %d: %w", pid, err)
	}
	if err := p.Kill(); err != nil {
		return fmt.Errorf("failed to kill process %d: %w", pid, err)
	}
	return nil
}

func (t *ProcessTable) IsRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	exists, err := process.PidExists(int32(pid))
	return err == nil && exists
}

func (t *ProcessTable) GetCurrentPID() int {
	return t.self
}

var _ domain.ProcessManager = (*ProcessTable)(nil)
