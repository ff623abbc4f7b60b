package cli

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/neilberkman/ragchat/internal/core/models"
)

var showSources bool

var showCmd = &cobra.Command{
	Use:   "show <session>",
	Short: "Print a chat",
	Long: `Print every message of a chat in order.

Examples:
  ragchat show 1
  ragchat show 0ccfddc4 --sources`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().BoolVar(&showSources, "sources", false, "List the documents each answer used")
}

func runShow(cmd *cobra.Command, args []string) error {
	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	id, err := a.resolve(args[0])
	if err != nil {
		return err
	}
	s, _ := a.repo.Get(id)

	bold := color.New(color.Bold)
	faint := color.New(color.Faint)

	bold.Println(s.DisplayTitle())
	fmt.Printf("ID: %s\n", s.ID)
	if s.Model != "" {
		fmt.Printf("Model: %s\n", s.Model)
	}
	if s.SharedFrom != "" {
		fmt.Printf("Shared from: %s\n", s.SharedFrom)
	}
	fmt.Printf("Created: %s\n", humanize.Time(s.CreatedAt))
	fmt.Println(strings.Repeat("─", 60))

	msgs := s.Ordered()
	if len(msgs) == 0 {
		faint.Println("No messages yet.")
		return nil
	}

	for _, m := range msgs {
		label := color.CyanString("You")
		if m.Role == models.RoleAssistant {
			label = color.GreenString("Assistant")
		}
		fmt.Printf("%s %s\n", label, faint.Sprint(humanize.Time(m.Timestamp)))

		switch {
		case m.Failed:
			fmt.Println(color.RedString(m.Content))
		case !m.IsSettled():
			fmt.Println(m.Content + faint.Sprint(" …"))
		default:
			fmt.Println(m.Content)
		}

		if showSources && len(m.Sources) > 0 {
			for _, src := range m.Sources {
				line := "  • " + src.Name
				if src.Snippet != "" {
					line += ": " + truncate(src.Snippet, 80)
				}
				faint.Println(line)
			}
		}
		fmt.Println()
	}
	return nil
}
