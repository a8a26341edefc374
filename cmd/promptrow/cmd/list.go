package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/spf13/cobra"

	"github.com/barysiuk/promptrow/internal/core/records"
	"github.com/barysiuk/promptrow/internal/tui"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List installed bundles",
	Long:    `List installed bundles in every scope, or only in --scope.`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps(cmd)
		if err != nil {
			return err
		}
		sc, err := scopeFlag(cmd)
		if err != nil {
			return err
		}

		store := d.orchestrator(false).Records()
		var recs []records.Record
		if sc == "" {
			recs, err = store.ListAll()
		} else {
			recs, err = store.List(sc)
		}
		if err != nil {
			return err
		}

		if len(recs) == 0 {
			fmt.Fprintln(os.Stdout, "No bundles installed.")
			return nil
		}
		printRecords(recs, terminalWidth())
		return nil
	},
}

// printRecords prints one line per record, truncating descriptions to fit
// width.
func printRecords(recs []records.Record, width int) {
	idW, verW, scopeW := len("ID"), len("VERSION"), len("SCOPE")
	for _, r := range recs {
		idW = max(idW, len(r.BundleID))
		verW = max(verW, len(r.Version))
		scopeW = max(scopeW, len(r.Scope))
	}

	row := func(id, version, scope, desc string) string {
		return fmt.Sprintf("%-*s  %-*s  %-*s  %s", idW, id, verW, version, scopeW, scope, desc)
	}
	fmt.Fprintln(os.Stdout, tui.TitleStyle.Render(row("ID", "VERSION", "SCOPE", "DESCRIPTION")))

	descW := width - idW - verW - scopeW - 6
	for _, r := range recs {
		desc := description(r)
		if descW > 0 {
			desc = ansi.Truncate(desc, descW, "…")
		} else {
			desc = ""
		}
		fmt.Fprintln(os.Stdout, strings.TrimRight(row(r.BundleID, r.Version, string(r.Scope), tui.MutedStyle.Render(desc)), " "))
	}
}

func description(r records.Record) string {
	if r.Manifest == nil {
		return ""
	}
	if r.Manifest.Description != "" {
		return firstLine(r.Manifest.Description)
	}
	return r.Manifest.Name
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func init() {
	listCmd.Flags().StringP("scope", "s", "", "Only list this scope: user, workspace, repository")
	rootCmd.AddCommand(listCmd)
}
