package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var newModel string

var newCmd = &cobra.Command{
	Use:   "new",
	Short: "Start a new chat",
	Long: `Create an empty chat and print its id.

Examples:
  ragchat new
  ragchat new --model llama3`,
	Args: cobra.NoArgs,
	RunE: runNew,
}

func init() {
	rootCmd.AddCommand(newCmd)
	newCmd.Flags().StringVar(&newModel, "model", "", "Model for this chat (default from config)")
}

func runNew(cmd *cobra.Command, args []string) error {
	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := a.coord.CreateSession()
	if s == nil {
		return err
	}
	if err := report(err); err != nil {
		return err
	}

	if model := strings.TrimSpace(newModel); model != "" {
		if err := report(a.coord.SelectModel(s.ID, model)); err != nil {
			return err
		}
	}

	fmt.Println(s.ID)
	return nil
}
