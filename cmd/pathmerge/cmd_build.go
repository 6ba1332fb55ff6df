package main

import (
	"context"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/persistorai/pathmerge/internal/graph"
	"github.com/persistorai/pathmerge/internal/mapping"
	"github.com/persistorai/pathmerge/internal/service"
)

func newBuildMappingsCmd() *cobra.Command {
	var (
		warehouse  string
		namespaces []string
	)

	cmd := &cobra.Command{
		Use:   "build-mappings",
		Short: "Build identifier mapping tables from a warehouse graph",
		Long: "Scan the canonical entity references of the warehouse and store one\n" +
			"identifier-to-accession table per namespace, replacing earlier tables.\n" +
			"A namespace with no references in the warehouse keeps its stored table.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuildMappings(cmd.Context(), cmd.OutOrStdout(), warehouse, namespaces)
		},
	}

	cmd.Flags().StringVar(&warehouse, "warehouse", "", "Warehouse graph file (.json or .json.gz)")
	cmd.Flags().StringSliceVar(&namespaces, "namespace", nil, "Namespaces to build (default all)")
	_ = cmd.MarkFlagRequired("warehouse")

	return cmd
}

type tableSummary struct {
	Namespace string `json:"namespace"`
	Entries   int    `json:"entries"`
	Ambiguous int    `json:"ambiguous"`
}

func runBuildMappings(ctx context.Context, w io.Writer, warehousePath string, names []string) error {
	namespaces, err := parseNamespaces(names)
	if err != nil {
		return err
	}

	wh, err := graph.ReadFile(warehousePath)
	if err != nil {
		return err
	}

	b, err := openBackend(ctx, false, "")
	if err != nil {
		return err
	}
	defer b.Close(context.WithoutCancel(ctx))

	p := service.NewPipeline(nil, b.mappings, wh, nil, log, service.PipelineOptions{Namespaces: namespaces})

	tables, err := p.BuildMappings(ctx, wh)
	if err != nil {
		return err
	}

	out := make([]tableSummary, 0, len(tables))
	for _, t := range tables {
		out = append(out, tableSummary{Namespace: t.Namespace().Name, Entries: t.Len(), Ambiguous: t.AmbiguousLen()})
	}

	return output(w, out, []string{"NAMESPACE", "ENTRIES", "AMBIGUOUS"}, func() [][]string {
		rows := make([][]string, 0, len(out))
		for _, s := range out {
			rows = append(rows, []string{s.Namespace, strconv.Itoa(s.Entries), strconv.Itoa(s.Ambiguous)})
		}
		return rows
	})
}

// parseNamespaces resolves namespace names; none means every namespace.
func parseNamespaces(names []string) ([]mapping.Namespace, error) {
	if len(names) == 0 {
		return mapping.Namespaces(), nil
	}

	out := make([]mapping.Namespace, 0, len(names))
	seen := map[string]bool{}

	for _, name := range names {
		ns, err := mapping.Lookup(name)
		if err != nil {
			return nil, err
		}

		if !seen[ns.Name] {
			seen[ns.Name] = true
			out = append(out, ns)
		}
	}

	return out, nil
}
