package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:     "delete <session...>",
	Aliases: []string{"rm"},
	Short:   "Delete chats",
	Long: `Delete one or more chats permanently.

Examples:
  ragchat delete 3
  ragchat delete 0ccfddc4 9b1e22aa`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	// resolve every reference first, list indexes shift as chats go
	ids := make([]string, 0, len(args))
	for _, ref := range args {
		id, err := a.resolve(ref)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}

	for _, id := range ids {
		title := id
		if s, ok := a.repo.Get(id); ok {
			title = s.DisplayTitle()
		}
		if err := report(a.coord.DeleteSession(id)); err != nil {
			return err
		}
		fmt.Printf("Deleted %s (%s)\n", id, title)
	}
	return nil
}
