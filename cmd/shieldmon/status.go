package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var monitorStatusCmd = &cobra.Command{
	Use:   "monitor-status",
	Short: "Check that window boundaries are being handled",
	Long: `Shows whether a monitor has ever run on this host, the last event it
recorded and whether the scheduler daemon is alive.`,
	RunE: runMonitorStatus,
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show recent monitor events, newest first",
	RunE:  runEvents,
}

var flagsCmd = &cobra.Command{
	Use:   "flags",
	Short: "Read and clear one-shot signals left by background handlers",
}

var flagsNavigateCmd = &cobra.Command{
	Use:   "navigate",
	Short: "Report whether a shield button asked to open the reflection screen",
	RunE:  runFlagsNavigate,
}

var flagsScheduleEndedCmd = &cobra.Command{
	Use:   "schedule-ended",
	Short: "Report the last schedule whose window ended",
	RunE:  runFlagsScheduleEnded,
}

var notificationsCmd = &cobra.Command{
	Use:   "notifications",
	Short: "Pending notifications",
}

var notificationsTakeCmd = &cobra.Command{
	Use:   "take",
	Short: "Consume the oldest pending notification",
	RunE:  runNotificationsTake,
}

func init() {
	flagsCmd.AddCommand(flagsNavigateCmd)
	flagsCmd.AddCommand(flagsScheduleEndedCmd)
	notificationsCmd.AddCommand(notificationsTakeCmd)

	rootCmd.AddCommand(monitorStatusCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(flagsCmd)
	rootCmd.AddCommand(notificationsCmd)
}

func runMonitorStatus(cmd *cobra.Command, args []string) error {
	return withApp(false, func(ctx context.Context, a *app) error {
		status, err := a.Service.MonitorStatus(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(status)
		}

		fmt.Println("\n=== shieldmon Monitor ===")
		if status.EverInitialized {
			fmt.Printf("Monitor: initialized %s\n", status.InitializedAt.Local().Format(time.RFC1123))
		} else {
			fmt.Println("Monitor: never initialized")
		}
		if status.LastEvent != nil {
			fmt.Printf("Last event: %s (%s, %d min ago)\n",
				status.LastEvent.Event, status.LastEvent.ScheduleName, status.LastEventAgeMinutes)
		} else {
			fmt.Println("Last event: none")
		}

		switch {
		case status.SchedulerAlive:
			fmt.Printf("Scheduler: RUNNING (last heartbeat %s ago)\n",
				a.clock.Now().Sub(status.LastHeartbeat).Round(time.Second))
		case status.SchedulerPID != 0:
			fmt.Println("Scheduler: NOT RUNNING (stale heartbeat)")
			fmt.Println("\nRun 'shieldmon start' to restart it.")
		default:
			fmt.Println("Scheduler: NOT RUNNING")
			fmt.Println("\nRun 'shieldmon start' to enable enforcement.")
		}
		fmt.Println("=========================")
		return nil
	})
}

func runEvents(cmd *cobra.Command, args []string) error {
	return withApp(false, func(ctx context.Context, a *app) error {
		events, err := a.Service.EventHistory(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			if events == nil {
				return printJSON([]any{})
			}
			return printJSON(events)
		}
		if len(events) == 0 {
			fmt.Println("No events recorded.")
			return nil
		}
		for _, e := range events {
			fmt.Printf("%s  %-28s %s\n", e.Time().Local().Format("2006-01-02 15:04:05"), e.Event, e.ScheduleName)
		}
		return nil
	})
}

func runFlagsNavigate(cmd *cobra.Command, args []string) error {
	return withApp(false, func(ctx context.Context, a *app) error {
		navigate, err := a.Service.ReadAndClearNavigationFlag(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(map[string]bool{"navigate": navigate})
		}
		fmt.Println(navigate)
		return nil
	})
}

func runFlagsScheduleEnded(cmd *cobra.Command, args []string) error {
	return withApp(false, func(ctx context.Context, a *app) error {
		name, ok, err := a.Service.ReadAndClearScheduleEndedFlag(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(map[string]any{"ended": ok, "schedule": name})
		}
		if ok {
			fmt.Println(name)
		}
		return nil
	})
}

func runNotificationsTake(cmd *cobra.Command, args []string) error {
	return withApp(false, func(ctx context.Context, a *app) error {
		n, ok, err := a.Service.ConsumeNotification(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			if !ok {
				return printJSON(nil)
			}
			return printJSON(n)
		}
		if !ok {
			fmt.Println("No pending notifications.")
			return nil
		}
		fmt.Printf("%s: %s (open %s)\n", n.Title, n.Body, n.NavigateTo)
		return nil
	})
}
