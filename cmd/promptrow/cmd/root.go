package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "promptrow",
	Short: "Install prompt bundles and keep them in sync with your editor",
	Long: `promptrow installs prompt bundles (prompts, instructions, chat modes,
agents, skills and MCP servers) and syncs them into the directories your
editor reads.

Bundles install at one of three scopes:
  user         your editor's user profile
  workspace    the open workspace, outside version control
  repository   the workspace's .github tree, committed or local-only`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("promptrow %s (commit: %s, built: %s)\n", Version, Commit, Date)
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("workspace", "w", "", "Workspace root (default: current directory)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (default: from config)")
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
