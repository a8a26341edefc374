package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/spf13/cobra"

	"github.com/barysiuk/promptrow/internal/core"
	"github.com/barysiuk/promptrow/internal/core/records"
)

var showCmd = &cobra.Command{
	Use:   "show <bundle-id>",
	Short: "Show details of an installed bundle",
	Args:  cobra.ExactArgs(1),
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
		rec, ok, err := orch.Installed(args[0], sc)
		if err != nil {
			return err
		}
		if !ok {
			return notInstalled(orch, args[0], fmt.Errorf("%w: %s", core.ErrNotInstalled, args[0]))
		}

		out, err := renderMarkdown(bundleMarkdown(rec))
		if err != nil {
			return err
		}
		fmt.Fprint(os.Stdout, out)
		return nil
	},
}

// bundleMarkdown describes an installation as a markdown document.
func bundleMarkdown(rec records.Record) string {
	var b strings.Builder
	name := rec.BundleID
	if rec.Manifest != nil && rec.Manifest.Name != "" {
		name = rec.Manifest.Name
	}
	fmt.Fprintf(&b, "# %s\n\n", name)
	fmt.Fprintf(&b, "`%s` version **%s**, installed at %s scope on %s.\n\n",
		rec.BundleID, rec.Version, rec.Scope, rec.InstalledAt.Format("2006-01-02 15:04"))

	if m := rec.Manifest; m != nil {
		if m.Description != "" {
			fmt.Fprintf(&b, "%s\n\n", m.Description)
		}
		if m.Author != "" {
			fmt.Fprintf(&b, "Author: %s\n\n", m.Author)
		}
		if len(m.Prompts) > 0 {
			b.WriteString("## Items\n\n| ID | Type | File |\n|----|------|------|\n")
			for _, item := range m.Prompts {
				fmt.Fprintf(&b, "| %s | %s | %s |\n", item.ID, item.Kind(), item.File)
			}
			b.WriteString("\n")
		}
	}

	if len(rec.MCPServers) > 0 {
		b.WriteString("## MCP servers\n\n")
		for _, s := range rec.MCPServers {
			fmt.Fprintf(&b, "- `%s`\n", s)
		}
		b.WriteString("\n")
	}

	if len(rec.SyncedFiles) > 0 || len(rec.Skills) > 0 {
		b.WriteString("## Files\n\n")
		for _, f := range rec.SyncedFiles {
			fmt.Fprintf(&b, "- `%s`\n", f)
		}
		for _, s := range rec.Skills {
			fmt.Fprintf(&b, "- `%s` (skill)\n", s)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Stored in `%s`.\n", rec.InstallPath)
	if rec.CommitMode != "" {
		fmt.Fprintf(&b, "Commit mode: %s.\n", rec.CommitMode)
	}
	return b.String()
}

func renderMarkdown(md string) (string, error) {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(terminalWidth())}
	if isTerminal(os.Stdout) {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(styles.NoTTYStyle))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", fmt.Errorf("creating markdown renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return "", fmt.Errorf("rendering bundle details: %w", err)
	}
	return out, nil
}

func init() {
	showCmd.Flags().StringP("scope", "s", "", "Scope to look in (default: every scope)")
	rootCmd.AddCommand(showCmd)
}
