package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/titledock/titledock/internal/core"
	"github.com/titledock/titledock/internal/library"
	"github.com/titledock/titledock/internal/store"
)

func newScanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run a one-shot sync of the import directory",
		Long: `Scan walks the configured import directory, resolves every package
file into an install candidate, and prints the resulting candidate list.
The database is updated in place, exactly as the server's scheduled
sync would.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := core.New("cli")
			if err != nil {
				return fmt.Errorf("application setup failed: %w", err)
			}
			defer app.Close()

			library.ImportSync(app)

			st := store.New(app.DB())
			candidates, err := st.GetAllCandidates()
			if err != nil {
				return fmt.Errorf("failed to list candidates: %w", err)
			}

			rows := make([][]string, 0, len(candidates))
			for _, c := range candidates {
				selected := "yes"
				if !c.Selected {
					selected = "no"
				}
				category := c.Category
				if category == "" {
					category = "-"
				}
				rows = append(rows, []string{c.Label, category, selected, c.Path})
			}

			if len(rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No install candidates found.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Label", "Category", "Selected", "Path"}, rows))

			badFileStore := store.NewBadFileStore(app.DB())
			if count, err := badFileStore.CountBadFiles(); err == nil && count > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%d file(s) could not be resolved; see the bad files list.\n", count)
			}
			return nil
		},
	}

	return cmd
}
