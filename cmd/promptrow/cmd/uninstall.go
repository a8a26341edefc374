package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/barysiuk/promptrow/internal/core"
	"github.com/barysiuk/promptrow/internal/tui"
)

var uninstallCmd = &cobra.Command{
	Use:   "uninstall <bundle-id>",
	Short: "Remove an installed bundle",
	Long: `Remove a bundle: its synced files, skills, MCP servers, stored copy and,
at repository scope, its lockfile entry. Synced copies you have edited are
kept. Without --scope the bundle is looked up in every scope.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps(cmd)
		if err != nil {
			return err
		}
		sc, err := scopeFlag(cmd)
		if err != nil {
			return err
		}

		orch := d.orchestrator(false)
		result, err := orch.Uninstall(args[0], sc)
		if errors.Is(err, core.ErrNotInstalled) {
			return notInstalled(orch, args[0], err)
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stdout, "%s %s@%s (%s)\n", tui.SuccessStyle.Render("Uninstalled:"), result.Record.BundleID, result.Record.Version, result.Record.Scope)
		if len(result.Removed) > 0 {
			fmt.Fprintf(os.Stdout, "  Removed %d synced entr(ies)\n", len(result.Removed))
		}
		for _, k := range result.Kept {
			fmt.Fprintf(os.Stdout, "  Kept (modified): %s\n", k)
		}
		if result.ServersRemoved > 0 {
			fmt.Fprintf(os.Stdout, "  Removed %d MCP server(s)\n", result.ServersRemoved)
		}
		printWarnings(result.Warnings)
		return nil
	},
}

// notInstalled decorates a not-installed error with similar installed ids.
func notInstalled(orch *core.Orchestrator, id string, err error) error {
	recs, lerr := orch.Records().ListAll()
	if lerr != nil {
		return err
	}
	ids := make([]string, 0, len(recs))
	seen := make(map[string]bool)
	for _, r := range recs {
		if !seen[r.BundleID] {
			seen[r.BundleID] = true
			ids = append(ids, r.BundleID)
		}
	}
	if matches := suggest(id, ids); len(matches) > 0 {
		return fmt.Errorf("%w\n\nDid you mean: %s?", err, joinStrings(matches))
	}
	return err
}

func init() {
	uninstallCmd.Flags().StringP("scope", "s", "", "Scope to uninstall from (default: wherever it is installed)")
	rootCmd.AddCommand(uninstallCmd)
}
