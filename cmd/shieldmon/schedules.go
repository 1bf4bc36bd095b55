package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/eliteGoblin/focusd/shieldmon/internal/domain"
	"github.com/eliteGoblin/focusd/shieldmon/internal/policy"
	"github.com/eliteGoblin/focusd/shieldmon/internal/usecase"
)

var schedulesCmd = &cobra.Command{
	Use:   "schedules",
	Short: "Manage daily shield windows",
}

var schedulesSetCmd = &cobra.Command{
	Use:   "set [Name=HH:MM-HH:MM ...]",
	Short: "Replace the committed schedules",
	Long: `Replaces every committed schedule with the given windows.
A window whose end is before its start wraps past midnight.
Invalid entries are dropped and reported; the rest are committed.`,
	Example: `  shieldmon schedules set Morning=08:00-09:00 Evening=20:00-22:00
  shieldmon schedules set Night=23:00-06:30
  shieldmon schedules set --file schedules.json`,
	RunE: runSchedulesSet,
}

var schedulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List committed schedules and backend registrations",
	RunE:  runSchedulesList,
}

var schedulesClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Cancel every schedule and remove the shield",
	RunE:  runSchedulesClear,
}

var diagnosticCmd = &cobra.Command{
	Use:   "diagnostic",
	Short: "Add a short test window starting in a few minutes",
	Long: `Adds the TEST_MONITOR window to the committed schedules so the
monitor's start and end handling can be observed end to end.
Check the result with 'shieldmon events'.`,
	RunE: runDiagnostic,
}

var schedulesFile string

func init() {
	schedulesSetCmd.Flags().StringVar(&schedulesFile, "file", "", "JSON schedule file")

	schedulesCmd.AddCommand(schedulesSetCmd)
	schedulesCmd.AddCommand(schedulesListCmd)
	schedulesCmd.AddCommand(schedulesClearCmd)

	rootCmd.AddCommand(schedulesCmd)
	rootCmd.AddCommand(diagnosticCmd)
}

func runSchedulesSet(cmd *cobra.Command, args []string) error {
	var list []domain.Schedule
	if schedulesFile != "" {
		raw, err := os.ReadFile(schedulesFile)
		if err != nil {
			return fmt.Errorf("failed to read schedule file: %w", err)
		}
		list, err = policy.ParseScheduleFile(raw)
		if err != nil {
			return err
		}
	}
	for _, spec := range args {
		s, err := policy.ParseWindowSpec(spec)
		if err != nil {
			return err
		}
		list = append(list, s)
	}

	return withApp(false, func(ctx context.Context, a *app) error {
		result, err := a.Service.SetSchedules(ctx, list)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(setResultView(result))
		}
		printSetResult(result)
		return nil
	})
}

func runSchedulesList(cmd *cobra.Command, args []string) error {
	return withApp(false, func(ctx context.Context, a *app) error {
		schedules, err := a.Service.Schedules(ctx)
		if err != nil {
			return err
		}
		activities, err := a.Service.Activities(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(map[string]any{
				"schedules":  schedules,
				"activities": activities,
			})
		}

		if len(schedules) == 0 {
			fmt.Println("No schedules committed.")
		} else {
			fmt.Println("Schedules:")
			for _, s := range schedules {
				state := "enabled"
				if !s.Enabled {
					state = "disabled"
				}
				fmt.Printf("  %-16s %s-%s  %s\n", s.Name,
					domain.FormatMinute(s.StartMinute), domain.FormatMinute(s.EndMinute), state)
			}
		}

		if len(activities) > 0 {
			fmt.Println("\nRegistered with scheduler:")
			for _, act := range activities {
				if act.OneShot {
					fmt.Printf("  %-16s once %s - %s\n", act.Name,
						act.StartAt.Local().Format("15:04"), act.EndAt.Local().Format("15:04"))
					continue
				}
				fmt.Printf("  %-16s daily %s-%s\n", act.Name,
					domain.FormatMinute(act.StartMinute), domain.FormatMinute(act.EndMinute))
			}
		}
		return nil
	})
}

func runSchedulesClear(cmd *cobra.Command, args []string) error {
	return withApp(false, func(ctx context.Context, a *app) error {
		if err := a.Service.RemoveAllSchedules(ctx); err != nil {
			return err
		}
		fmt.Println("All schedules canceled; shield removed.")
		return nil
	})
}

func runDiagnostic(cmd *cobra.Command, args []string) error {
	return withApp(false, func(ctx context.Context, a *app) error {
		s, result, err := a.Service.CreateDiagnosticSchedule(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(map[string]any{"schedule": s, "result": setResultView(result)})
		}
		fmt.Printf("Diagnostic window %s: %s-%s\n", s.Name,
			domain.FormatMinute(s.StartMinute), domain.FormatMinute(s.EndMinute))
		printSetResult(result)
		return nil
	})
}

// setResultJSON is the machine-readable form of a SetResult.
type setResultJSON struct {
	Accepted      []domain.Schedule `json:"accepted"`
	Rejected      []rejectionJSON   `json:"rejected"`
	BackendErrors []rejectionJSON   `json:"backend_errors"`
	Registered    int               `json:"registered"`
	ShieldApplied bool              `json:"shield_applied"`
}

type rejectionJSON struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

func setResultView(r usecase.SetResult) setResultJSON {
	out := setResultJSON{
		Accepted:      r.Accepted,
		Rejected:      []rejectionJSON{},
		BackendErrors: []rejectionJSON{},
		Registered:    r.Registered,
		ShieldApplied: r.Decision.Applied,
	}
	for _, rej := range r.Rejected {
		out.Rejected = append(out.Rejected, rejectionJSON{Name: rej.Schedule.Name, Reason: rej.Reason.Error()})
	}
	for _, be := range r.BackendErrors {
		out.BackendErrors = append(out.BackendErrors, rejectionJSON{Name: be.Name, Reason: be.Err.Error()})
	}
	return out
}

func printSetResult(r usecase.SetResult) {
	fmt.Printf("Committed %d schedules, %d registered with the scheduler.\n", len(r.Accepted), r.Registered)
	for _, rej := range r.Rejected {
		fmt.Printf("  rejected %q: %v\n", rej.Schedule.Name, rej.Reason)
	}
	for _, be := range r.BackendErrors {
		fmt.Printf("  scheduler refused %q: %v\n", be.Name, be.Err)
	}
	if r.Decision.Applied {
		fmt.Printf("Shield is up (%s).\n", r.Decision.Reason)
	}
}
