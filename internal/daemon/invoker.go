package daemon

import (
	"context"
	"fmt"
	"os/exec"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/shieldmon/internal/usecase"
)

// Invoker delivers one boundary event to a monitor.
type Invoker interface {
	Invoke(ctx context.Context, ev usecase.BoundaryEvent) error
}

// DirectInvoker runs the monitor in this process.
type DirectInvoker struct {
	reactor *usecase.Reactor
	logger  *zap.Logger
}

// NewDirectInvoker creates an invoker backed by an in-process reactor.
func NewDirectInvoker(reactor *usecase.Reactor, logger *zap.Logger) *DirectInvoker {
	return &DirectInvoker{reactor: reactor, logger: logger}
}

// Invoke implements Invoker.
func (d *DirectInvoker) Invoke(ctx context.Context, ev usecase.BoundaryEvent) error {
	out := d.reactor.Dispatch(ctx, ev)
	d.logger.Debug("boundary handled",
		zap.String("activity", ev.Activity),
		zap.String("event", out.Event),
		zap.Bool("changed", out.Changed))
	return nil
}

// RunFunc executes a command until it exits or ctx is done.
type RunFunc func(ctx context.Context, name string, args ...string) error

// ExecInvoker runs each boundary in a short-lived child process, so the
// monitor never shares memory with the scheduler.
type ExecInvoker struct {
	execPath string
	dataDir  string
	run      RunFunc
}

// NewExecInvoker creates an invoker that re-executes execPath.
func NewExecInvoker(execPath, dataDir string) *ExecInvoker {
	return NewExecInvokerWithRunner(execPath, dataDir, runCommand)
}

// NewExecInvokerWithRunner creates an ExecInvoker with a custom runner (for testing).
func NewExecInvokerWithRunner(execPath, dataDir string, run RunFunc) *ExecInvoker {
	return &ExecInvoker{execPath: execPath, dataDir: dataDir, run: run}
}

// Invoke implements Invoker.
func (e *ExecInvoker) Invoke(ctx context.Context, ev usecase.BoundaryEvent) error {
	if err := e.run(ctx, e.execPath, e.Args(ev)...); err != nil {
		return fmt.Errorf("failed to run monitor for %s: %w", ev.Activity, err)
	}
	return nil
}

// Args builds the hidden monitor command line for ev.
func (e *ExecInvoker) Args(ev usecase.BoundaryEvent) []string {
	args := []string{"monitor",
		"--kind", string(ev.Kind),
		"--activity", ev.Activity,
	}
	if ev.Event != "" {
		args = append(args, "--event", ev.Event)
	}
	if e.dataDir != "" {
		args = append(args, "--data-dir", e.dataDir)
	}
	return args
}

func runCommand(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

var (
	_ Invoker = (*DirectInvoker)(nil)
	_ Invoker = (*ExecInvoker)(nil)
)
