package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/shieldmon/internal/config"
	"github.com/eliteGoblin/focusd/shieldmon/internal/daemon"
	"github.com/eliteGoblin/focusd/shieldmon/internal/domain"
	"github.com/eliteGoblin/focusd/shieldmon/internal/infra"
	"github.com/eliteGoblin/focusd/shieldmon/internal/usecase"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the scheduler daemon",
	Long: `Starts the background scheduler that fires window boundaries.
Does nothing if a live scheduler is already running.`,
	RunE: runStart,
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the scheduler to start at login (macOS)",
	Long: `Installs a LaunchAgent (or a LaunchDaemon when run as root) that keeps
the scheduler daemon running across logins and restarts.`,
	RunE: runInstall,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	RunE:  runVersion,
}

// Hidden daemon command - the scheduler started by 'start' or launchd
var daemonCmd = &cobra.Command{
	Use:    "daemon",
	Hidden: true,
	RunE:   runDaemon,
}

// Hidden monitor command - one boundary callback, run by the scheduler
var monitorCmd = &cobra.Command{
	Use:    "monitor",
	Hidden: true,
	RunE:   runMonitor,
}

// Hidden shield-action command - a shield button press
var shieldActionCmd = &cobra.Command{
	Use:    "shield-action",
	Hidden: true,
	RunE:   runShieldAction,
}

var (
	monitorKind     string
	monitorActivity string
	monitorEvent    string
	actionButton    string
	actionKind      string
	actionID        string
)

func init() {
	monitorCmd.Flags().StringVar(&monitorKind, "kind", "", "Boundary kind (start/end/threshold)")
	monitorCmd.Flags().StringVar(&monitorActivity, "activity", "", "Activity name")
	monitorCmd.Flags().StringVar(&monitorEvent, "event", "", "Threshold event name")

	shieldActionCmd.Flags().StringVar(&actionButton, "button", string(usecase.ActionPrimary), "Button (primary/secondary)")
	shieldActionCmd.Flags().StringVar(&actionKind, "kind", string(domain.TargetApplication), "Target kind")
	shieldActionCmd.Flags().StringVar(&actionID, "id", "", "Target identifier")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(shieldActionCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	return withApp(false, func(ctx context.Context, a *app) error {
		staleAfter := 3 * a.cfg.Daemon.HeartbeatInterval
		if daemon.IsAlive(ctx, a.store, a.processes, a.clock, staleAfter) {
			fmt.Println("shieldmon scheduler is already running")
			return nil
		}

		execPath, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to get executable path: %w", err)
		}
		pid, err := daemon.StartDaemon(execPath, a.cfg.DataDir)
		if err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}

		fmt.Println("\n=== shieldmon Started ===")
		fmt.Printf("Scheduler PID: %d\n", pid)
		fmt.Printf("Data dir: %s\n", a.cfg.DataDir)
		fmt.Println("\nCheck it with 'shieldmon monitor-status'.")
		fmt.Println("=========================")
		return nil
	})
}

func launchAgentFor(cfg *config.Config) domain.LaunchAgentManager {
	execMode := infra.DetectExecMode()
	execMode.DataDir = cfg.DataDir
	return infra.NewLaunchdManager(execMode)
}

func runInstall(cmd *cobra.Command, args []string) error {
	if runtime.GOOS != "darwin" {
		return fmt.Errorf("install is only supported on macOS; run 'shieldmon start' from your session startup instead")
	}
	cfg, err := config.Load(configFlag, dataDirFlag)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	execMode := infra.DetectExecMode()
	fmt.Printf("Execution mode: %s\n", execMode.Mode)

	agent := launchAgentFor(cfg)
	if agent.IsInstalled() && !agent.NeedsUpdate(execPath) {
		fmt.Printf("Already installed: %s\n", agent.GetPlistPath())
		return nil
	}
	if err := agent.Install(execPath); err != nil {
		return fmt.Errorf("failed to install %s: %w", execMode.Mode, err)
	}
	fmt.Printf("Installed %s\n", agent.GetPlistPath())
	return nil
}

func runVersion(cmd *cobra.Command, args []string) error {
	if jsonOutput {
		return printJSON(map[string]string{
			"version":    Version,
			"commit":     Commit,
			"build_time": BuildTime,
		})
	}
	fmt.Printf("shieldmon %s (commit: %s, built: %s)\n", Version, Commit, BuildTime)
	return nil
}

func runDaemon(cmd *cobra.Command, args []string) error {
	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext(a.logger)
	defer cancel()

	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	var invoker daemon.Invoker
	switch a.cfg.Daemon.InvokeMode {
	case config.InvokeInproc:
		invoker = daemon.NewDirectInvoker(a.Reactor, a.logger.Named("invoke"))
	default:
		invoker = daemon.NewExecInvoker(execPath, a.cfg.DataDir)
	}

	var agent domain.LaunchAgentManager
	if runtime.GOOS == "darwin" {
		agent = launchAgentFor(a.cfg)
	}

	scheduler := daemon.NewScheduler(a.cfg.SchedulerConfig(execPath, Version), daemon.SchedulerDeps{
		Store:       a.store,
		Activities:  a.activities,
		Reconciler:  a.Reconciler,
		Override:    a.Override,
		Sweeper:     a.Sweeper,
		Events:      a.Events,
		Invoker:     invoker,
		LaunchAgent: agent,
		Clock:       a.clock,
		Logger:      a.logger.Named("scheduler"),
	})

	err = scheduler.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// runMonitor handles one boundary. Failures are recorded in the event
// history by the monitor itself, so the exit status is always zero once
// the store is open.
func runMonitor(cmd *cobra.Command, args []string) error {
	kind, err := usecase.ParseBoundaryKind(monitorKind)
	if err != nil {
		return err
	}
	if monitorActivity == "" {
		return fmt.Errorf("--activity is required")
	}

	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Daemon.InvokeTimeout)
	defer cancel()

	start := time.Now()
	out := a.Reactor.Dispatch(ctx, usecase.BoundaryEvent{Kind: kind, Activity: monitorActivity, Event: monitorEvent})
	a.logger.Info("monitor callback done",
		zap.String("kind", string(kind)),
		zap.String("activity", monitorActivity),
		zap.String("event", out.Event),
		zap.Bool("changed", out.Changed),
		zap.Duration("took", time.Since(start)))
	return nil
}

func runShieldAction(cmd *cobra.Command, args []string) error {
	target := domain.Target{Kind: domain.TargetKind(actionKind), ID: actionID}

	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	resp := a.Reactor.DispatchAction(context.Background(), usecase.ActionKind(actionButton), target)
	fmt.Println(resp)
	return nil
}
