package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/convoscope/internal/importer"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check that a conversation file can be imported",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	im, err := newImporter(slog.Default())
	if err != nil {
		return err
	}
	conv, err := readConversation(im, args[0])
	if err != nil {
		var fe *importer.FormatError
		if errors.As(err, &fe) {
			return fmt.Errorf("%s: %s", args[0], fe.Reason)
		}
		return err
	}

	users, assistants := conv.CountByRole()
	fmt.Fprintf(cmd.OutOrStdout(), "%s: valid conversation %q (%d messages, %d user, %d assistant)\n",
		args[0], conv.ID, len(conv.Messages), users, assistants)
	return nil
}
