package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/neilberkman/ragchat/internal/core/export"
)

var (
	exportOutput string
	exportFormat string
)

var exportCmd = &cobra.Command{
	Use:   "export <session>",
	Short: "Export a chat to markdown, json or yaml",
	Long: `Export a chat session to a file.

By default exports to the current directory as chat-<id>.<ext>.
JSON exports can be read back with 'ragchat import --file'.

Examples:
  ragchat export 1
  ragchat export 0ccfddc4 --format json
  ragchat export 0ccfddc4-00e7-443a-bb82-58ede5936619 -o chat.yaml --format yaml
  ragchat export 2 -o -`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file path, - for stdout (default: chat-<id>.<ext> in current directory)")
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "md", "Export format: md, json, yaml")
}

func runExport(cmd *cobra.Command, args []string) error {
	exporter, err := export.NewExporter(exportFormat)
	if err != nil {
		return err
	}

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

	if exportOutput == "-" {
		return exporter.Export(s, cmd.OutOrStdout())
	}

	outputPath := exportOutput
	if outputPath == "" {
		shortID := id
		if len(shortID) > 8 {
			shortID = shortID[:8]
		}
		outputPath = fmt.Sprintf("chat-%s%s", shortID, exporter.Extension())
	}
	if !filepath.IsAbs(outputPath) {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}
		outputPath = filepath.Join(cwd, outputPath)
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := exporter.Export(s, f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to export: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	fmt.Printf("Exported chat to: %s\n", outputPath)
	return nil
}
