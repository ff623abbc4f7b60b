package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	configPath  string
	verbose     bool
	versionInfo string
)

// SetVersion sets the version information from build-time ldflags
func SetVersion(version, commit, date string) {
	versionInfo = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)
	rootCmd.Version = versionInfo
}

// Execute runs the CLI
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ragchat",
	Short: "Terminal chat client for a RAG assistant",
	Long: `ragchat - chat with a retrieval-augmented assistant from your terminal

Conversations are kept in a local session store, survive restarts, and can
be renamed, reordered, shared, imported and exported.

Run without a command to open the chat TUI. Pass a session id or a shared
chat id to open it directly:
  ragchat share-7f3a`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default to TUI if no subcommand specified; an argument is a
		// session or shared chat id to open
		if len(args) == 1 {
			tuiOpen = args[0]
		}
		return tuiCmd.RunE(cmd, nil)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.config/ragchat/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")
}
