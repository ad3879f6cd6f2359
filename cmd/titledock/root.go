package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "titledock",
		Short:         "Inspect and stage installable title packages",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newResolveCommand())
	cmd.AddCommand(newScanCommand())

	return cmd
}
