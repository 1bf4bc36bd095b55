package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eliteGoblin/focusd/shieldmon/internal/domain"
	"github.com/eliteGoblin/focusd/shieldmon/internal/policy"
)

var authorizeCmd = &cobra.Command{
	Use:   "authorize",
	Short: "Grant (or deny) permission to enforce shields",
	Long: `Checks that this host can run enforcement and records the decision.
Every command that changes selections, schedules or shields needs approval.`,
	RunE: runAuthorize,
}

var authStatusCmd = &cobra.Command{
	Use:   "auth-status",
	Short: "Show the recorded authorization",
	RunE:  runAuthStatus,
}

var selectCmd = &cobra.Command{
	Use:   "select",
	Short: "Choose what gets shielded",
	Long: `Stores the set of applications, categories and domains to restrict.
Application entries are glob patterns matched against process names.
Presets expand to their process patterns and domains.

--clear forgets the selection, cancels every schedule and removes
the shield.`,
	Example: `  shieldmon select --preset steam
  shieldmon select --app "steam*" --category games --domain store.steampowered.com
  shieldmon select --clear`,
	RunE: runSelect,
}

var selectionCmd = &cobra.Command{
	Use:   "selection",
	Short: "Show the stored selection",
	RunE:  runSelection,
}

var (
	authDeny       bool
	selectApps     []string
	selectCategory []string
	selectDomains  []string
	selectPresets  []string
	selectClear    bool
	selectList     bool
)

func init() {
	authorizeCmd.Flags().BoolVar(&authDeny, "deny", false, "Record a denial instead of an approval")

	selectCmd.Flags().StringSliceVar(&selectApps, "app", nil, "Application pattern (repeatable)")
	selectCmd.Flags().StringSliceVar(&selectCategory, "category", nil, "Category identifier (repeatable)")
	selectCmd.Flags().StringSliceVar(&selectDomains, "domain", nil, "Web domain (repeatable)")
	selectCmd.Flags().StringSliceVar(&selectPresets, "preset", nil, "Named preset (repeatable)")
	selectCmd.Flags().BoolVar(&selectClear, "clear", false, "Clear the selection")
	selectCmd.Flags().BoolVar(&selectList, "list-presets", false, "List available presets and exit")

	rootCmd.AddCommand(authorizeCmd)
	rootCmd.AddCommand(authStatusCmd)
	rootCmd.AddCommand(selectCmd)
	rootCmd.AddCommand(selectionCmd)
}

func runAuthorize(cmd *cobra.Command, args []string) error {
	return withApp(false, func(ctx context.Context, a *app) error {
		status, err := a.Service.RequestAuthorization(ctx, !authDeny)
		if errors.Is(err, domain.ErrUnsupportedPlatform) {
			return fmt.Errorf("this host cannot run enforcement: %w", err)
		}
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(map[string]string{"status": string(status)})
		}
		fmt.Printf("Authorization: %s\n", status)
		return nil
	})
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	return withApp(false, func(ctx context.Context, a *app) error {
		status, err := a.auth.Status(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(map[string]string{"status": string(status)})
		}
		fmt.Printf("Authorization: %s\n", status)
		if status != domain.AuthApproved {
			fmt.Println("\nRun 'shieldmon authorize' to enable enforcement.")
		}
		return nil
	})
}

func runSelect(cmd *cobra.Command, args []string) error {
	presets := policy.NewRegistry()
	if selectList {
		for _, id := range presets.List() {
			p, _ := presets.Get(id)
			fmt.Printf("%-10s %s\n", id, p.Name())
		}
		return nil
	}

	resolved, err := presets.Resolve(selectPresets...)
	if err != nil {
		return fmt.Errorf("%w (available: %s)", err, strings.Join(presets.List(), ", "))
	}
	sel := policy.ToSelection(resolved...)
	sel.Applications = append(sel.Applications, selectApps...)
	sel.Categories = append(sel.Categories, selectCategory...)
	sel.Domains = append(sel.Domains, selectDomains...)
	sel = sel.Normalize()

	if sel.IsEmpty() && !selectClear {
		return fmt.Errorf("nothing selected; pass targets or --clear")
	}

	return withApp(false, func(ctx context.Context, a *app) error {
		if selectClear {
			if err := a.Service.ClearSelection(ctx); err != nil {
				return err
			}
			fmt.Println("Selection cleared; schedules canceled and shield removed.")
			return nil
		}
		if err := a.Service.SaveSelection(ctx, sel); err != nil {
			return err
		}
		summary := sel.Summary()
		fmt.Printf("Selected %d applications, %d categories, %d domains.\n",
			summary.Applications, summary.Categories, summary.Domains)
		return nil
	})
}

func runSelection(cmd *cobra.Command, args []string) error {
	return withApp(false, func(ctx context.Context, a *app) error {
		sel, err := a.Selections.Load(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(sel)
		}
		if sel.IsEmpty() {
			fmt.Println("Nothing selected.")
			return nil
		}
		printList("Applications", sel.Applications)
		printList("Categories", sel.Categories)
		printList("Domains", sel.Domains)
		return nil
	})
}

func printList(title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Printf("%s:\n", title)
	for _, item := range items {
		fmt.Printf("  - %s\n", item)
	}
}
