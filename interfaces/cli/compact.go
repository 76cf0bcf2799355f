package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newCompactCmd creates the compact command.
func (a *App) newCompactCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compact",
		Short: "Run one compaction pass",
		Long: `Move sealed WAL segments into columnar files, repoint the index, and
apply the retention policy. The active segment is never touched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.Handle().CompactOnce(cmd.Context()); err != nil {
				return fmt.Errorf("compaction failed: %w", err)
			}

			_, _ = fmt.Fprintf(a.stdout, "Compaction complete.\n")
			return nil
		},
	}
}
