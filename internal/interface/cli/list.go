package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/neilberkman/ragchat/internal/core/filter"
)

var (
	listLimit int
	listSince string
	listMatch string
	listModel string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List chat sessions",
	Long: `List chat sessions in sidebar order.

The index shown in brackets can be used wherever a session id is expected.

Examples:
  ragchat list
  ragchat list --limit 10
  ragchat list --since yesterday --match invoice
  ragchat list --since "2 weeks ago" --model llama3`,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().IntVar(&listLimit, "limit", 20, "Maximum number of sessions to display")
	listCmd.Flags().StringVar(&listSince, "since", "", "Only sessions active since this date (natural language ok)")
	listCmd.Flags().StringVar(&listMatch, "match", "", "Only sessions whose title or messages contain this text")
	listCmd.Flags().StringVar(&listModel, "model", "", "Only sessions using this model")
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	now := time.Now()
	f := filter.Filter{Query: strings.TrimSpace(listMatch), Model: listModel}
	if listSince != "" {
		since, ok := filter.ParseDate(listSince, now)
		if !ok {
			return fmt.Errorf("could not understand --since %q", listSince)
		}
		f.After = since
	}

	all := a.repo.List()
	position := make(map[string]int, len(all))
	for i, s := range all {
		position[s.ID] = i + 1
	}

	sessions := filter.Apply(all, f)
	if len(sessions) == 0 {
		if f.Empty() {
			fmt.Println("No chats yet. Run 'ragchat new' or 'ragchat' to start one.")
		} else {
			fmt.Println("No chats match the given filters.")
		}
		return nil
	}
	total := len(sessions)
	if listLimit > 0 && len(sessions) > listLimit {
		sessions = sessions[:listLimit]
	}

	fmt.Printf("Showing %d of %d chat(s)\n\n", len(sessions), total)
	for _, s := range sessions {
		fmt.Printf("[%d] %s\n", position[s.ID], s.ID)
		fmt.Printf("    Title: %s\n", s.DisplayTitle())
		if s.Model != "" {
			fmt.Printf("    Model: %s\n", s.Model)
		}
		if s.SharedFrom != "" {
			fmt.Printf("    Shared from: %s\n", s.SharedFrom)
		}
		fmt.Printf("    Messages: %s\n", humanize.Comma(int64(len(s.Messages))))
		if !s.UpdatedAt.IsZero() {
			fmt.Printf("    Updated: %s\n", humanize.RelTime(s.UpdatedAt, now, "ago", "from now"))
		}
		fmt.Println()
	}
	return nil
}
