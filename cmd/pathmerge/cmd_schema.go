package main

import (
	"context"
	"errors"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/persistorai/pathmerge/internal/db"
	"github.com/persistorai/pathmerge/internal/db/migrations"
	"github.com/persistorai/pathmerge/internal/dbpool"
)

func newSchemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect or apply the PostgreSQL schema",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "Show which migrations are applied",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runSchemaStatus(cmd.Context(), cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withPool(cmd.Context(), func(pool *dbpool.Pool) error {
					return db.RunMigrations(cmd.Context(), pool, log, migrations.FS)
				})
			},
		},
	)

	return cmd
}

func withPool(ctx context.Context, fn func(*dbpool.Pool) error) error {
	if cfg.DatabaseURL.Value() == "" {
		return errors.New("DATABASE_URL is required")
	}

	pool, err := dbpool.NewPool(ctx, cfg.DatabaseURL.Value(), cfg.DBMaxConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(pool)
}

func runSchemaStatus(ctx context.Context, w io.Writer) error {
	return withPool(ctx, func(pool *dbpool.Pool) error {
		states, err := db.MigrationStatus(ctx, pool, migrations.FS)
		if err != nil {
			return err
		}

		return output(w, states, []string{"VERSION", "FILE", "APPLIED"}, func() [][]string {
			rows := make([][]string, 0, len(states))
			for _, s := range states {
				rows = append(rows, []string{strconv.FormatInt(s.Version, 10), s.Path, strconv.FormatBool(s.Applied)})
			}
			return rows
		})
	})
}
