package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var modelsSet bool

var modelsCmd = &cobra.Command{
	Use:   "models [--set <session> <model>]",
	Short: "List models or set the model of a chat",
	Long: `List the models the backend offers, or pick the model one chat uses.

Examples:
  ragchat models
  ragchat models --set 1 mistral`,
	RunE: runModels,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.Flags().BoolVar(&modelsSet, "set", false, "Set the model of <session> to <model>")
}

func runModels(cmd *cobra.Command, args []string) error {
	if modelsSet && len(args) != 2 {
		return fmt.Errorf("--set needs <session> <model>")
	}
	if !modelsSet && len(args) != 0 {
		return fmt.Errorf("unexpected arguments; did you mean --set?")
	}

	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	if modelsSet {
		id, err := a.resolve(args[0])
		if err != nil {
			return err
		}
		if err := report(a.coord.SelectModel(id, args[1])); err != nil {
			return err
		}
		fmt.Printf("%s now uses %s\n", id, args[1])
		return nil
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.API.Timeout.Duration)
	defer cancel()

	list, err := a.coord.Models(ctx)
	if err != nil {
		warn("Could not load the model list: %v", err)
	}
	if len(list) == 0 {
		fmt.Println("No models available.")
		return nil
	}
	for _, m := range list {
		marker := "  "
		if m == a.cfg.Chat.DefaultModel {
			marker = "* "
		}
		fmt.Println(marker + m)
	}
	return nil
}
