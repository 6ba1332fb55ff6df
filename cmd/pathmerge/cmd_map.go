package main

import (
	"context"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/persistorai/pathmerge/internal/mapping"
)

func newMapCmd() *cobra.Command {
	var (
		namespace string
		dbHint    string
	)

	cmd := &cobra.Command{
		Use:   "map ID [ID...]",
		Short: "Map source identifiers to canonical accessions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMap(cmd.Context(), cmd.OutOrStdout(), namespace, dbHint, args)
		},
	}

	cmd.Flags().StringVar(&namespace, "namespace", mapping.Protein.Name, "Mapping namespace")
	cmd.Flags().StringVar(&dbHint, "db", "", "Source database of the identifiers, used for normalisation")

	return cmd
}

type mapResult struct {
	ID         string   `json:"id"`
	Accessions []string `json:"accessions"`
	Canonical  []string `json:"canonical"`
}

func runMap(ctx context.Context, w io.Writer, namespace, dbHint string, ids []string) error {
	ns, err := mapping.Lookup(namespace)
	if err != nil {
		return err
	}

	b, err := openBackend(ctx, false, "")
	if err != nil {
		return err
	}
	defer b.Close(context.WithoutCancel(ctx))

	results := make([]mapResult, 0, len(ids))

	for _, id := range ids {
		accs, err := b.mappings.MapIdentifier(ctx, id, ns, dbHint)
		if err != nil {
			return err
		}

		r := mapResult{ID: id, Accessions: make([]string, 0, len(accs)), Canonical: make([]string, 0, len(accs))}
		for _, acc := range accs {
			r.Accessions = append(r.Accessions, acc)
			r.Canonical = append(r.Canonical, ns.CanonicalID(acc))
		}

		results = append(results, r)
	}

	return output(w, results, []string{"ID", "CANONICAL"}, func() [][]string {
		rows := make([][]string, 0, len(results))
		for _, r := range results {
			canonical := strings.Join(r.Canonical, ",")
			if canonical == "" {
				canonical = "-"
			}
			rows = append(rows, []string{r.ID, canonical})
		}
		return rows
	})
}
