package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/neilberkman/ragchat/internal/interface/tui"
)

var tuiOpen string

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch interactive chat TUI",
	Long: `Launch the interactive terminal chat.

--open takes a session id, or a shared chat id which is imported first.

Examples:
  ragchat
  ragchat tui --open share-7f3a`,
	Args: cobra.NoArgs,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
	tuiCmd.Flags().StringVar(&tuiOpen, "open", "", "Session or shared chat id to open")
}

func runTUI(cmd *cobra.Command, args []string) error {
	// the TUI owns the terminal, logs go to the file only
	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	model := tui.New(a.coord, tui.Options{
		Route:  tuiOpen,
		Logger: a.logger,
	})
	defer model.Close()

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
