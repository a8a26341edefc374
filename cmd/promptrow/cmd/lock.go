package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/barysiuk/promptrow/internal/tui"
)

var lockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Inspect the repository lockfile",
}

var lockVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check repository files against the lockfile checksums",
	Long: `Check every file recorded in promptrow.lock.json against its checksum.
Exits non-zero when a file is missing or has changed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps(cmd)
		if err != nil {
			return err
		}

		lm, err := d.orchestrator(false).Lockfile()
		if err != nil {
			return err
		}
		lf, err := lm.Read()
		if err != nil {
			return err
		}
		if lf == nil {
			fmt.Fprintf(os.Stdout, "No lockfile at %s.\n", lm.Path())
			return nil
		}

		drifts, err := lm.Verify()
		if err != nil {
			return err
		}
		for _, dr := range drifts {
			state := "changed"
			if dr.Missing() {
				state = "missing"
			}
			fmt.Fprintf(os.Stdout, "%s %s %s\n", tui.ErrorStyle.Render(state+":"), dr.BundleID, dr.Path)
		}
		if len(drifts) > 0 {
			return fmt.Errorf("%d file(s) do not match the lockfile", len(drifts))
		}
		fmt.Fprintf(os.Stdout, "%s %d bundle(s) verified\n", tui.SuccessStyle.Render("OK:"), len(lf.Bundles))
		return nil
	},
}

func init() {
	lockCmd.AddCommand(lockVerifyCmd)
	rootCmd.AddCommand(lockCmd)
}
