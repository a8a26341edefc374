package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/barysiuk/promptrow/internal/core"
	"github.com/barysiuk/promptrow/internal/tui"
)

var updateCmd = &cobra.Command{
	Use:   "update <bundle-id> <bundle.zip|dir>",
	Short: "Replace an installed bundle with a new version",
	Long: `Replace an installed bundle with the given archive or directory. The new
bundle is validated first; the old installation is then removed and the new
one installed at the same scope, with the same commit mode and profile.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps(cmd)
		if err != nil {
			return err
		}

		if err := cmd.Flags().Set("id", args[0]); err != nil {
			return err
		}
		desc, data, err := loadBundle(cmd, args[1])
		if err != nil {
			return err
		}
		if !cmd.Flags().Changed("source-type") {
			desc.SourceType = "" // inherit from the installation
		}
		sc, err := scopeFlag(cmd)
		if err != nil {
			return err
		}
		force, _ := cmd.Flags().GetBool("force")

		orch := d.orchestrator(force)
		result, err := orch.Update(desc, data, core.UpdateOptions{Scope: sc, Force: force})
		if errors.Is(err, core.ErrNotInstalled) {
			return notInstalled(orch, args[0], err)
		}
		if cancelled(err) {
			return nil
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stdout, "%s %s %s -> %s\n", tui.SuccessStyle.Render("Updated:"), args[0], result.FromVersion, result.ToVersion)
		printWarnings(result.Uninstall.Warnings)
		printWarnings(result.Install.Warnings)
		return nil
	},
}

func init() {
	addBundleFlags(updateCmd)
	_ = updateCmd.Flags().MarkHidden("id")
	updateCmd.Flags().StringP("scope", "s", "", "Scope of the installation to update (default: wherever it is installed)")
	updateCmd.Flags().BoolP("force", "f", false, "Replace existing skills without asking")
	rootCmd.AddCommand(updateCmd)
}
