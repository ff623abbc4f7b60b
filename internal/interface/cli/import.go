package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/neilberkman/ragchat/internal/core/importer"
	"github.com/neilberkman/ragchat/internal/core/repository"
)

var importFiles []string

var importCmd = &cobra.Command{
	Use:   "import [share-id...]",
	Short: "Import shared chats",
	Long: `Import shared chats from the backend, or transcript files from disk.

A chat that was already imported is left as is. Transcript files use the
same JSON shape as the share endpoint, which is also what
'ragchat export --format json' writes.

Examples:
  ragchat import share-7f3a
  ragchat import share-7f3a share-91bc share-c044
  ragchat import --file chat.json --file other.json`,
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().StringArrayVar(&importFiles, "file", nil, "Transcript file to import (repeatable)")
}

func runImport(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && len(importFiles) == 0 {
		return errors.New("give at least one share id or --file")
	}

	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	var errs []error
	for _, path := range importFiles {
		s, created, err := a.importer.ImportFile(path)
		switch {
		case s == nil:
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
		case created:
			fmt.Printf("Imported %s as %s (%s)\n", path, s.ID, s.DisplayTitle())
			errs = append(errs, report(err))
		default:
			fmt.Printf("Already imported: %s (%s)\n", s.ID, s.DisplayTitle())
		}
	}

	if len(args) > 0 {
		stats, err := importShares(ctx, a, args)
		fmt.Printf("Imported %d, already present %d, failed %d\n", stats.Imported, stats.Existing, stats.Failed)
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func importShares(ctx context.Context, a *app, ids []string) (importer.Stats, error) {
	fmt.Printf("Importing %d shared chat(s) from: %s\n\n", len(ids), a.cfg.API.BaseURL)

	progress := importer.NewProgressReporter(os.Stdout, len(ids))
	stats, err := a.importer.ImportMany(ctx, ids, progress)
	if err == nil {
		return stats, nil
	}

	// storage warnings are printed, the rest fail the command
	var failures []error
	for _, e := range unwrapJoined(err) {
		if repository.IsWarning(e) {
			_ = report(e)
			continue
		}
		failures = append(failures, e)
	}
	return stats, errors.Join(failures...)
}

func unwrapJoined(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}
