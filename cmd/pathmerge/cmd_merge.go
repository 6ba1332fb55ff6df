package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/persistorai/pathmerge/internal/api"
	"github.com/persistorai/pathmerge/internal/config"
	"github.com/persistorai/pathmerge/internal/graph"
	"github.com/persistorai/pathmerge/internal/models"
	"github.com/persistorai/pathmerge/internal/service"
)

// auditQueueSize bounds merge reports waiting to be recorded.
const auditQueueSize = 1000

type mergeFlags struct {
	plan       string
	warehouse  string
	in         string
	out        string
	namespaces []string
	ops        bool
}

func newMergeCmd() *cobra.Command {
	var f mergeFlags

	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge the documents of a plan into the target graph",
		Long: "Merge every document listed by the plan into the configured target,\n" +
			"replacing source entity references with canonical ones. A failed\n" +
			"document is reported and does not stop the run.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMerge(cmd.Context(), cmd.OutOrStdout(), f)
		},
	}

	cmd.Flags().StringVar(&f.plan, "plan", "", "Datasource plan (YAML)")
	cmd.Flags().StringVar(&f.warehouse, "warehouse", "", "Warehouse graph used to copy canonical references")
	cmd.Flags().StringVar(&f.in, "in", "", "Seed the memory target from this graph file")
	cmd.Flags().StringVar(&f.out, "out", "", "Write the memory target to this graph file after the run")
	cmd.Flags().StringSliceVar(&f.namespaces, "namespace", nil, "Namespaces to resolve (default all)")
	cmd.Flags().BoolVar(&f.ops, "ops", false, "Serve the ops API on METRICS_PORT while merging")
	_ = cmd.MarkFlagRequired("plan")

	return cmd
}

func runMerge(ctx context.Context, w io.Writer, f mergeFlags) error {
	if (f.in != "" || f.out != "") && cfg.TargetBackend != config.BackendMemory {
		return errors.New("--in and --out require TARGET_BACKEND=memory")
	}

	namespaces, err := parseNamespaces(f.namespaces)
	if err != nil {
		return err
	}

	datasources, err := loadPlan(f.plan)
	if err != nil {
		return err
	}

	var wh *graph.Graph
	if f.warehouse != "" {
		if wh, err = graph.ReadFile(f.warehouse); err != nil {
			return err
		}
	}

	b, err := openBackend(ctx, true, f.in)
	if err != nil {
		return err
	}
	defer b.Close(context.WithoutCancel(ctx))

	// The audit worker outlives ctx so that reports of finished documents
	// are still recorded after an interrupt.
	auditCtx, stopAudit := context.WithCancel(context.WithoutCancel(ctx))
	defer stopAudit()

	var aw *service.AuditWorker
	if b.audit != nil {
		aw = service.NewAuditWorker(b.audit, log, auditQueueSize)
		go aw.Run(auditCtx)
	}

	p := service.NewPipeline(b.target, b.mappings, wh, aw, log, service.PipelineOptions{
		Workers:         cfg.MergeWorkers,
		MaxAugmentXrefs: cfg.MaxAugmentXrefs,
		Strict:          cfg.StrictInvariants,
		SupportedTaxa:   cfg.SupportedTaxa,
		Namespaces:      namespaces,
	})

	if f.ops {
		opsCtx, stopOps := context.WithCancel(ctx)
		defer stopOps()

		router := api.NewRouter(opsCtx, &api.RouterDeps{
			Log:         log,
			Checks:      b.healthChecks(),
			Nodes:       b.target,
			Counter:     b.reader,
			Mapper:      b.mappings,
			Progress:    p.Progress(),
			CORSOrigins: cfg.CORSOrigins,
			Version:     config.Version,
		})

		go func() {
			if err := api.Serve(opsCtx, cfg.MetricsAddr(), router, log); err != nil {
				log.WithError(err).Error("ops server stopped")
			}
		}()
	}

	summary, err := p.Run(ctx, uuid.New(), datasources)

	stopAudit()
	if aw != nil {
		<-aw.Done()
	}

	if err != nil {
		return err
	}

	if f.out != "" {
		if err := b.memory.Save(f.out); err != nil {
			return err
		}
	}

	if err := printSummary(w, summary); err != nil {
		return err
	}

	switch {
	case summary.Cancelled:
		return fmt.Errorf("run %s cancelled: %w", summary.RunID, context.Canceled)
	case len(summary.Failed) > 0:
		return fmt.Errorf("%d of %d documents failed", len(summary.Failed), len(summary.Failed)+len(summary.Merged))
	}

	return nil
}

func printSummary(w io.Writer, s *models.RunSummary) error {
	return output(w, s, []string{"DOCUMENT", "STATUS", "DETAIL"}, func() [][]string {
		rows := make([][]string, 0, len(s.Merged)+len(s.Failed)+len(s.Skipped)+1)
		for _, doc := range s.Merged {
			rows = append(rows, []string{doc, "merged", ""})
		}
		for _, f := range s.Failed {
			rows = append(rows, []string{f.Document, "failed", f.Reason})
		}
		for _, doc := range s.Skipped {
			rows = append(rows, []string{doc, "skipped", "run cancelled"})
		}
		rows = append(rows, []string{"total", "replaced", strconv.Itoa(s.Replaced)})
		return rows
	})
}
