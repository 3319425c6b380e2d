package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/convoscope/internal/export"
)

var exportFlags struct {
	outDir string
}

var exportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Normalize a conversation and write it as a portable document",
	Long: `Import a conversation document or Claude Code transcript, fill in
derived fields and write the result in the import format.

Without --out-dir the document is written to stdout.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVar(&exportFlags.outDir, "out-dir", "", "directory to write conversation-<id>-<date>.json into")
}

func runExport(cmd *cobra.Command, args []string) error {
	im, err := newImporter(slog.Default())
	if err != nil {
		return err
	}
	conv, err := readConversation(im, args[0])
	if err != nil {
		return err
	}

	if exportFlags.outDir == "" {
		return export.Write(cmd.Context(), conv, cmd.OutOrStdout())
	}

	data, err := export.Serialize(conv)
	if err != nil {
		return err
	}
	path := filepath.Join(exportFlags.outDir, export.Filename(conv, time.Now()))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}
