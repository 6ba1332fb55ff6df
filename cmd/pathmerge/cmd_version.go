package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/persistorai/pathmerge/internal/db"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and expected schema version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), versionString())
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", db.SchemaVersion())
		},
	}
}
