package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var renameCmd = &cobra.Command{
	Use:   "rename <session> <title...>",
	Short: "Rename a chat",
	Long: `Give a chat a title. Blank titles are ignored.

Examples:
  ragchat rename 1 "VPN onboarding"`,
	Args: cobra.MinimumNArgs(2),
	RunE: runRename,
}

func init() {
	rootCmd.AddCommand(renameCmd)
}

func runRename(cmd *cobra.Command, args []string) error {
	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	id, err := a.resolve(args[0])
	if err != nil {
		return err
	}

	title := strings.TrimSpace(strings.Join(args[1:], " "))
	if title == "" {
		fmt.Println("Title is blank, nothing changed.")
		return nil
	}
	if err := report(a.coord.RenameSession(id, title)); err != nil {
		return err
	}

	s, _ := a.repo.Get(id)
	fmt.Printf("Renamed %s to %q\n", id, s.DisplayTitle())
	return nil
}
