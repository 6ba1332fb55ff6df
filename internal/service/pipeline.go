// Package service wires mapping tables, the merge engine and the stores
// into the merge pipeline.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/persistorai/pathmerge/internal/domain"
	"github.com/persistorai/pathmerge/internal/graph"
	"github.com/persistorai/pathmerge/internal/mapping"
	"github.com/persistorai/pathmerge/internal/merge"
	"github.com/persistorai/pathmerge/internal/metrics"
	"github.com/persistorai/pathmerge/internal/models"
)

// Document outcomes counted in metrics.DocumentsTotal.
const (
	statusMerged  = "merged"
	statusFailed  = "failed"
	statusSkipped = "skipped"
)

// PipelineOptions tune a Pipeline.
type PipelineOptions struct {
	Workers         int
	MaxAugmentXrefs int
	Strict          bool
	SupportedTaxa   []string
	Namespaces      []mapping.Namespace
}

// Pipeline builds mapping tables and merges datasources into the target.
type Pipeline struct {
	target    domain.TargetStore
	mappings  domain.MappingStore
	warehouse *graph.Graph
	audit     *AuditWorker
	log       *logrus.Logger
	opts      PipelineOptions
	progress  Progress
}

// NewPipeline creates a Pipeline. The warehouse and the audit worker may be
// nil. Without namespaces every known namespace is used.
func NewPipeline(
	target domain.TargetStore,
	mappings domain.MappingStore,
	warehouse *graph.Graph,
	audit *AuditWorker,
	log *logrus.Logger,
	opts PipelineOptions,
) *Pipeline {
	if opts.Workers < 1 {
		opts.Workers = 1
	}

	if len(opts.Namespaces) == 0 {
		opts.Namespaces = mapping.Namespaces()
	}

	return &Pipeline{
		target:    target,
		mappings:  mappings,
		warehouse: warehouse,
		audit:     audit,
		log:       log,
		opts:      opts,
	}
}

// Progress returns the counters of the current or last run.
func (p *Pipeline) Progress() *Progress {
	return &p.progress
}

// BuildMappings builds and saves the table of every configured namespace
// from the warehouse. A namespace without warehouse references is skipped
// and its stored table left as it is; the build fails only if every
// namespace was skipped. Any other failure aborts the whole build.
func (p *Pipeline) BuildMappings(ctx context.Context, warehouse *graph.Graph) ([]*mapping.Table, error) {
	tables := make([]*mapping.Table, 0, len(p.opts.Namespaces))

	for _, ns := range p.opts.Namespaces {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		table, err := mapping.Build(warehouse, ns, p.log)
		if errors.Is(err, models.ErrEmptyNamespace) {
			p.log.WithField("namespace", ns.Name).Warn("no warehouse references, mapping table not rebuilt")
			continue
		}

		if err != nil {
			metrics.ErrorsTotal.WithLabelValues("mapping_build").Inc()
			return nil, fmt.Errorf("building %s mapping: %w", ns.Name, err)
		}

		if err := p.mappings.SaveMappingTable(ctx, table); err != nil {
			metrics.ErrorsTotal.WithLabelValues("mapping_build").Inc()
			return nil, fmt.Errorf("saving %s mapping: %w: %w", ns.Name, models.ErrMappingBuild, err)
		}

		observeTable(table)

		p.log.WithFields(logrus.Fields{
			"namespace": ns.Name,
			"entries":   table.Len(),
			"ambiguous": table.AmbiguousLen(),
		}).Info("mapping table built")

		tables = append(tables, table)
	}

	if len(tables) == 0 {
		metrics.ErrorsTotal.WithLabelValues("mapping_build").Inc()
		return nil, fmt.Errorf("warehouse has references for none of the namespaces: %w", models.ErrMappingBuild)
	}

	return tables, nil
}

// LoadMappings loads the stored table of every configured namespace. A
// namespace without a stored table is skipped with a warning.
func (p *Pipeline) LoadMappings(ctx context.Context) ([]*mapping.Table, error) {
	var tables []*mapping.Table

	for _, ns := range p.opts.Namespaces {
		table, err := p.mappings.LoadMappingTable(ctx, ns)
		if errors.Is(err, models.ErrNodeNotFound) {
			p.log.WithField("namespace", ns.Name).Warn("no mapping table stored, namespace disabled")
			continue
		}

		if err != nil {
			return nil, fmt.Errorf("loading %s mapping: %w", ns.Name, err)
		}

		observeTable(table)
		tables = append(tables, table)
	}

	return tables, nil
}

// Run merges every document of the datasources. Documents are processed
// by a bounded pool of workers; a failed document is recorded and never
// aborts the run. Cancelling ctx stops new documents from starting.
func (p *Pipeline) Run(ctx context.Context, runID uuid.UUID, datasources []models.Datasource) (*models.RunSummary, error) {
	start := time.Now()

	tables, err := p.LoadMappings(ctx)
	if err != nil {
		return nil, err
	}

	engine := merge.NewEngine(p.target, p.warehouse, tables, p.log, merge.Options{
		Strict:        p.opts.Strict,
		SupportedTaxa: p.opts.SupportedTaxa,
	})
	augmenter := merge.NewAugmenter(p.opts.MaxAugmentXrefs, p.log).WithWarehouse(p.warehouse)

	summary := &models.RunSummary{RunID: runID.String(), StartedAt: start}

	docs := documents(datasources)
	p.progress.start(runID, len(docs))
	defer p.progress.finish()

	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)

	for _, doc := range docs {
		if gctx.Err() != nil {
			summary.Cancelled = true
			summary.Skipped = append(summary.Skipped, doc.String())
			p.count(statusSkipped)

			continue
		}

		g.Go(func() error {
			report, err := p.mergeDocument(gctx, engine, augmenter, tables, doc)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				summary.Failed = append(summary.Failed, models.DocumentFailure{Document: doc.String(), Reason: err.Error()})
				p.count(statusFailed)
			} else {
				summary.Merged = append(summary.Merged, doc.String())
				summary.Replaced += report.ReplacedTotal()
				summary.Commit.Add(report.Commit)
				p.count(statusMerged)
			}

			if report != nil && p.audit != nil {
				p.audit.Enqueue(&AuditJob{RunID: runID, Report: report})
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Strings(summary.Merged)
	sort.Strings(summary.Skipped)
	sort.Slice(summary.Failed, func(i, j int) bool { return summary.Failed[i].Document < summary.Failed[j].Document })
	summary.Duration = time.Since(start)

	p.log.WithFields(logrus.Fields{
		"run_id":        summary.RunID,
		"merged":        len(summary.Merged),
		"failed":        len(summary.Failed),
		"skipped":       len(summary.Skipped),
		"cancelled":     summary.Cancelled,
		"replaced":      summary.Replaced,
		"nodes_created": summary.Commit.NodesCreated,
		"edges_created": summary.Commit.EdgesCreated,
		"duration_ms":   summary.Duration.Milliseconds(),
	}).Info("merge run finished")

	return summary, nil
}

func (p *Pipeline) mergeDocument(
	ctx context.Context,
	engine *merge.Engine,
	augmenter *merge.Augmenter,
	tables []*mapping.Table,
	doc models.DocumentRef,
) (*models.MergeReport, error) {
	source, err := graph.ReadFile(doc.Path)
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues("load").Inc()
		p.log.WithError(err).WithField("document", doc.String()).Warn("skipping unreadable document")

		return nil, err
	}

	augmented := augmenter.AugmentGraph(source, tables)

	report, err := engine.Merge(ctx, doc.String(), source)
	report.AugmentedXrefs = augmented

	if err != nil {
		p.log.WithError(err).WithField("document", doc.String()).Error("document merge failed")
		return report, err
	}

	return report, nil
}

// documents expands datasources into their documents in plan order.
func documents(datasources []models.Datasource) []models.DocumentRef {
	var docs []models.DocumentRef

	for _, ds := range datasources {
		for _, f := range ds.Files {
			docs = append(docs, models.DocumentRef{Datasource: ds.ID, Path: f})
		}
	}

	return docs
}

func (p *Pipeline) count(status string) {
	metrics.DocumentsTotal.WithLabelValues(status).Inc()
	p.progress.record(status)
}

func observeTable(t *mapping.Table) {
	metrics.MappingEntries.WithLabelValues(t.Namespace().Name).Set(float64(t.Len()))
	metrics.MappingAmbiguous.WithLabelValues(t.Namespace().Name).Set(float64(t.AmbiguousLen()))
}
