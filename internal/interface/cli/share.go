package cli

import (
	"fmt"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"
)

var shareCopy bool

var shareCmd = &cobra.Command{
	Use:   "share <session>",
	Short: "Publish a chat and print its link",
	Long: `Publish a chat through the backend share endpoint and print a link
that opens it. The link format comes from [share] link_template.

Examples:
  ragchat share 1
  ragchat share 0ccfddc4 --copy`,
	Args: cobra.ExactArgs(1),
	RunE: runShare,
}

func init() {
	rootCmd.AddCommand(shareCmd)
	shareCmd.Flags().BoolVarP(&shareCopy, "copy", "c", false, "Copy the link to the clipboard")
}

func runShare(cmd *cobra.Command, args []string) error {
	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	id, err := a.resolve(args[0])
	if err != nil {
		return err
	}

	spin := newSpinner(cmd.ErrOrStderr(), "Sharing...")
	spin.Start()
	link, err := a.coord.ShareSession(cmd.Context(), id)
	spin.Stop()
	if err != nil {
		return fmt.Errorf("failed to share: %w", err)
	}

	fmt.Println(link.URL)
	if shareCopy {
		if err := clipboard.WriteAll(link.URL); err != nil {
			warn("Could not copy to clipboard: %v", err)
		} else {
			fmt.Println("Link copied to clipboard.")
		}
	}
	return nil
}
