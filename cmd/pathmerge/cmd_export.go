package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/persistorai/pathmerge/internal/graph"
)

func newExportCmd() *cobra.Command {
	var in, out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the target graph to a document file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), in, out)
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "Output file (.json or .json.gz)")
	cmd.Flags().StringVar(&in, "in", "", "Graph file loaded when TARGET_BACKEND=memory")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

func runExport(ctx context.Context, in, out string) error {
	b, err := openBackend(ctx, true, in)
	if err != nil {
		return err
	}
	defer b.Close(context.WithoutCancel(ctx))

	g, err := b.reader.Export(ctx)
	if err != nil {
		return err
	}

	if err := graph.WriteFile(out, g); err != nil {
		return err
	}

	log.WithField("nodes", g.Len()).WithField("file", out).Info("target written")

	return nil
}
