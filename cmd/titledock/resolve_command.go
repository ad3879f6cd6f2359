package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/titledock/titledock/internal/resolver"
	"github.com/titledock/titledock/internal/switchfs"
)

func newResolveCommand() *cobra.Command {
	var showErrors bool

	cmd := &cobra.Command{
		Use:   "resolve <file>...",
		Short: "Resolve package files into install candidates",
		Long: `Resolve classifies each file by its suffix (.nca, .xci, .nsp), decodes
its metadata, and prints the install candidate it would produce. Files
that fail to resolve are skipped unless --show-errors is given.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res := resolver.New(switchfs.NewDecoder())

			var rows [][]string
			for _, path := range args {
				r, err := res.Resolve(path)
				if err != nil {
					if showErrors {
						rows = append(rows, []string{path, "-", "-", err.Error()})
					}
					continue
				}
				c := r.Candidate
				category := c.Category
				if category == "" {
					category = "-"
				}
				rows = append(rows, []string{c.Path, c.Label, category, "ok"})
			}

			if len(rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No files resolved.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Path", "Label", "Category", "Status"}, rows))
			return nil
		},
	}

	cmd.Flags().BoolVar(&showErrors, "show-errors", false, "include files that failed to resolve")

	return cmd
}
