package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/eliteGoblin/focusd/shieldmon/internal/domain"
)

var unlockCmd = &cobra.Command{
	Use:   "unlock DURATION",
	Short: "Lift the shield temporarily",
	Long: `Removes the shield now and restores it automatically when DURATION
elapses, whatever windows are active then. DURATION uses Go syntax
(10m, 1h30m).`,
	Example: `  shieldmon unlock 15m`,
	Args:    cobra.ExactArgs(1),
	RunE:    runUnlock,
}

var shieldCmd = &cobra.Command{
	Use:   "shield",
	Short: "Apply, remove or inspect the shield directly",
}

var shieldApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply the stored selection now and hold it",
	Long: `Applies the stored selection immediately. The shield stays up after
scheduled windows end until 'shield remove' is run. Any active unlock
is canceled.`,
	RunE: runShieldApply,
}

var shieldRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove the shield now",
	Long:  `Removes the shield. The next window start applies it again.`,
	RunE:  runShieldRemove,
}

var shieldStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show what is currently shielded",
	RunE:  runShieldStatus,
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Bring the shield in line with the schedules and unlock state",
	Long: `Recomputes whether the shield should be up right now and applies
or removes it. Use after a missed window boundary.`,
	RunE: runReconcile,
}

func init() {
	shieldCmd.AddCommand(shieldApplyCmd)
	shieldCmd.AddCommand(shieldRemoveCmd)
	shieldCmd.AddCommand(shieldStatusCmd)

	rootCmd.AddCommand(unlockCmd)
	rootCmd.AddCommand(shieldCmd)
	rootCmd.AddCommand(reconcileCmd)
}

func runUnlock(cmd *cobra.Command, args []string) error {
	d, err := time.ParseDuration(args[0])
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", args[0], err)
	}

	return withApp(false, func(ctx context.Context, a *app) error {
		window, err := a.Service.RequestTemporaryUnlock(ctx, d)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(window)
		}
		fmt.Printf("Shield lifted until %s.\n", window.EndTime.Local().Format("15:04:05"))
		return nil
	})
}

func runShieldApply(cmd *cobra.Command, args []string) error {
	return withApp(false, func(ctx context.Context, a *app) error {
		if err := a.Service.ApplyShieldsNow(ctx); err != nil {
			return err
		}
		fmt.Println("Shield applied and held.")
		return nil
	})
}

func runShieldRemove(cmd *cobra.Command, args []string) error {
	return withApp(false, func(ctx context.Context, a *app) error {
		if err := a.Service.RemoveShields(ctx); err != nil {
			return err
		}
		fmt.Println("Shield removed.")
		return nil
	})
}

func runShieldStatus(cmd *cobra.Command, args []string) error {
	return withApp(false, func(ctx context.Context, a *app) error {
		state, err := a.Service.ShieldState(ctx)
		if err != nil {
			return err
		}
		override, err := a.Service.Override(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(map[string]any{"shield": state, "override": override})
		}

		fmt.Println("\n=== shieldmon Shield ===")
		if state.IsEmpty() {
			fmt.Println("Status: DOWN")
		} else {
			mode := "scheduled"
			if state.Manual {
				mode = "held"
			}
			fmt.Printf("Status: UP (%s, by %s since %s)\n", mode, state.Source,
				time.Unix(state.AppliedAt, 0).Format("15:04"))
			printList("Applications", state.Applications)
			printList("Categories", state.Categories)
			printList("Domains", state.Domains)
		}
		printOverride(override, a.clock.Now())
		fmt.Println("========================")
		return nil
	})
}

func printOverride(o domain.OverrideWindow, now time.Time) {
	if !o.Active {
		return
	}
	if o.Expired(now) {
		fmt.Println("Unlock: expired, relock pending")
		return
	}
	fmt.Printf("Unlock: active until %s (%s left)\n",
		o.EndTime.Local().Format("15:04:05"), o.EndTime.Sub(now).Round(time.Second))
}

func runReconcile(cmd *cobra.Command, args []string) error {
	return withApp(false, func(ctx context.Context, a *app) error {
		d, err := a.Service.ReconcileNow(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(d)
		}
		state := "down"
		if d.Applied {
			state = "up"
		}
		fmt.Printf("Shield %s (%s", state, d.Reason)
		if d.Window != "" {
			fmt.Printf(": %s", d.Window)
		}
		fmt.Print(")")
		if !d.Changed {
			fmt.Print(", unchanged")
		}
		fmt.Println()
		return nil
	})
}
