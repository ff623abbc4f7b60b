package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/neilberkman/ragchat/internal/core/reorder"
)

var reorderCmd = &cobra.Command{
	Use:   "reorder <from> <to>",
	Short: "Move a chat to another list position",
	Long: `Move the chat at list position <from> so it ends up at position <to>.
Positions are the bracketed numbers shown by 'ragchat list'.

Examples:
  ragchat reorder 5 1
  ragchat reorder 1 3`,
	Args: cobra.ExactArgs(2),
	RunE: runReorder,
}

func init() {
	rootCmd.AddCommand(reorderCmd)
}

func runReorder(cmd *cobra.Command, args []string) error {
	from, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid position %q", args[0])
	}
	to, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid position %q", args[1])
	}

	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	order := a.repo.Order()
	if to < 1 || to > len(order) {
		return fmt.Errorf("positions must be between 1 and %d", len(order))
	}
	drag, err := reorder.Start(order, from-1)
	if err != nil {
		return fmt.Errorf("positions must be between 1 and %d: %w", len(order), err)
	}

	pos := reorder.Above
	if to > from {
		pos = reorder.Below
	}
	next, _ := drag.Drop(to-1, pos)

	changed, err := drag.Commit(a.coord)
	if err = report(err); err != nil {
		return err
	}
	if !changed {
		fmt.Println("Order unchanged.")
		return nil
	}

	for i, id := range next {
		title := id
		if s, ok := a.repo.Get(id); ok {
			title = s.DisplayTitle()
		}
		fmt.Printf("[%d] %s\n", i+1, truncate(title, 60))
	}
	return nil
}
