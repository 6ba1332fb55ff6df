package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/persistorai/pathmerge/internal/api"
	"github.com/persistorai/pathmerge/internal/config"
)

func newServeCmd() *cobra.Command {
	var in string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only ops API for the target and mapping tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), in)
		},
	}

	cmd.Flags().StringVar(&in, "in", "", "Graph file served when TARGET_BACKEND=memory")

	return cmd
}

func runServe(ctx context.Context, in string) error {
	b, err := openBackend(ctx, true, in)
	if err != nil {
		return err
	}
	defer b.Close(context.WithoutCancel(ctx))

	router := api.NewRouter(ctx, &api.RouterDeps{
		Log:         log,
		Checks:      b.healthChecks(),
		Nodes:       b.target,
		Counter:     b.reader,
		Mapper:      b.mappings,
		CORSOrigins: cfg.CORSOrigins,
		Version:     config.Version,
	})

	return api.Serve(ctx, cfg.MetricsAddr(), router, log)
}
