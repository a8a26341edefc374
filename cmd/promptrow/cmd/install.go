package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/barysiuk/promptrow/internal/core"
	"github.com/barysiuk/promptrow/internal/core/bundle"
	"github.com/barysiuk/promptrow/internal/tui"
)

var installCmd = &cobra.Command{
	Use:   "install <bundle.zip|dir>",
	Short: "Install a bundle",
	Long: `Install a bundle from a zip archive or a local directory.

The bundle's items are copied into promptrow's storage and synced into the
directories of the chosen scope. MCP servers declared by the bundle are
added to the scope's mcp.json.

At repository scope, --commit-mode controls how files land in .github:
  commit       copied, so they can be committed (default)
  local-only   linked and listed in .git/info/exclude

Skills bundles (--source-type skills) install each skill directly into the
scope's skills directory. Replacing an existing skill asks first when run
in a terminal; pass --force to replace without asking.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps(cmd)
		if err != nil {
			return err
		}

		desc, data, err := loadBundle(cmd, args[0])
		if err != nil {
			return err
		}
		sc, err := scopeFlag(cmd)
		if err != nil {
			return err
		}
		commitMode, _ := cmd.Flags().GetString("commit-mode")
		profile, _ := cmd.Flags().GetString("profile")
		force, _ := cmd.Flags().GetBool("force")

		result, err := d.orchestrator(force).Install(desc, data, core.InstallOptions{
			Scope:      sc,
			ProfileID:  profile,
			CommitMode: bundle.CommitMode(commitMode),
			Force:      force,
		})
		if cancelled(err) {
			return nil
		}
		if err != nil {
			return err
		}

		printInstalled(result)
		return nil
	},
}

func printInstalled(res *core.InstallResult) {
	rec := res.Record
	fmt.Fprintf(os.Stdout, "%s %s@%s (%s)\n", tui.SuccessStyle.Render("Installed:"), rec.BundleID, rec.Version, rec.Scope)
	fmt.Fprintf(os.Stdout, "  Path: %s\n", rec.InstallPath)
	if rec.CommitMode != "" {
		fmt.Fprintf(os.Stdout, "  Commit mode: %s\n", rec.CommitMode)
	}
	for _, t := range res.Synced {
		fmt.Fprintf(os.Stdout, "  Synced %s: %s\n", t.Kind, t.Path)
	}
	for _, s := range res.Skills {
		fmt.Fprintf(os.Stdout, "  Skill: %s\n", s)
	}
	if len(res.MCP.ServerNames) > 0 {
		fmt.Fprintf(os.Stdout, "  MCP servers: %s (%s)\n", joinStrings(res.MCP.ServerNames), res.MCP.ConfigPath)
	}
	printWarnings(res.Warnings)
}

func init() {
	addBundleFlags(installCmd)
	installCmd.Flags().StringP("scope", "s", string(bundle.ScopeUser), "Install scope: user, workspace, repository")
	installCmd.Flags().String("commit-mode", "", "Repository commit mode: commit, local-only")
	installCmd.Flags().String("profile", "", "Profile id recorded with the installation")
	installCmd.Flags().BoolP("force", "f", false, "Replace existing skills without asking")
	rootCmd.AddCommand(installCmd)
}
