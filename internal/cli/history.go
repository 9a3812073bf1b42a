package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"llamactx/internal/journal"
	"llamactx/pkg/types"
)

// NewHistoryCommand creates the command listing journaled generations.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent generations from the journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := rootOpts.cfg.JournalPath
			if path == "" {
				return WrapExitError(ExitCommandError, "history", errors.New("journal_path is not configured"))
			}
			j, err := journal.Open(path)
			if err != nil {
				return WrapExitError(ExitCommandError, "open journal", err)
			}
			defer j.Close()
			entries, err := j.Completions(limit)
			if err != nil {
				return err
			}
			if asJSON {
				if entries == nil {
					entries = []types.HistoryEntry{}
				}
				return writeJSON(cmd.OutOrStdout(), entries)
			}
			return renderHistory(cmd.OutOrStdout(), entries)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "entries to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
