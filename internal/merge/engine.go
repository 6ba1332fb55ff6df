package merge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/pathmerge/internal/graph"
	"github.com/persistorai/pathmerge/internal/mapping"
	"github.com/persistorai/pathmerge/internal/metrics"
	"github.com/persistorai/pathmerge/internal/models"
)

// Target is the shared graph documents are merged into.
type Target interface {
	// GetByID returns a detached copy of a node and its direct edge
	// targets, or (nil, nil) when the id is unknown.
	GetByID(ctx context.Context, id string) (*models.Node, error)
	// Kinds returns the kind of every id that exists in the target.
	Kinds(ctx context.Context, ids []string) (map[string]models.Kind, error)
	// Commit merges staging into the target atomically.
	Commit(ctx context.Context, staging *graph.Graph) (models.CommitResult, error)
}

// Options tune an Engine.
type Options struct {
	// Strict panics on a merge invariant violation instead of abandoning
	// the document with an *models.InvariantError.
	Strict bool
	// SupportedTaxa lists the NCBI taxonomy ids of supported organisms.
	// When set, unresolved sequence references and molecular interactions
	// of other organisms are dropped from documents.
	SupportedTaxa []string
}

// Engine merges source documents into a target. Prepare may run
// concurrently for different documents; commits are serialised.
type Engine struct {
	target    Target
	warehouse *graph.Graph
	resolvers map[string]*Resolver
	taxa      map[string]bool
	log       *logrus.Logger
	opts      Options

	commitMu sync.Mutex
}

// NewEngine creates an engine. One resolver is created per mapping table,
// keyed by the reference type of its namespace. The warehouse may be nil;
// it must not be modified while the engine is in use.
func NewEngine(
	target Target,
	warehouse *graph.Graph,
	tables []*mapping.Table,
	log *logrus.Logger,
	opts Options,
) *Engine {
	resolvers := make(map[string]*Resolver, len(tables))
	for _, t := range tables {
		resolvers[t.Namespace().ReferenceType] = NewResolver(t, log).WithNames(warehouse)
	}

	taxa := make(map[string]bool, len(opts.SupportedTaxa))
	for _, id := range opts.SupportedTaxa {
		taxa[id] = true
	}

	return &Engine{
		target:    target,
		warehouse: warehouse,
		resolvers: resolvers,
		taxa:      taxa,
		log:       log,
		opts:      opts,
	}
}

// Merge prepares source and commits the staging graph. The source graph is
// consumed: it is rewritten in place and must not be reused.
func (e *Engine) Merge(ctx context.Context, name string, source *graph.Graph) (*models.MergeReport, error) {
	start := time.Now()

	staging, report, err := e.Prepare(ctx, name, source)
	if err != nil {
		report.Err = err.Error()
		report.Duration = time.Since(start)

		return report, err
	}

	res, err := e.Commit(ctx, staging)
	report.Commit = res
	report.Duration = time.Since(start)

	if err != nil {
		report.Err = err.Error()
		return report, err
	}

	e.log.WithFields(logrus.Fields{
		"document":      name,
		"replaced":      report.ReplacedTotal(),
		"unresolved":    report.Unresolved,
		"removed":       report.Removed,
		"nodes_created": res.NodesCreated,
		"nodes_updated": res.NodesUpdated,
		"edges_created": res.EdgesCreated,
		"duration_ms":   report.Duration.Milliseconds(),
	}).Info("document merged")

	return report, nil
}

// Prepare runs every pass that only touches document-private state and
// returns the staging graph to commit. The returned report is never nil.
func (e *Engine) Prepare(ctx context.Context, name string, source *graph.Graph) (*graph.Graph, *models.MergeReport, error) {
	report := models.NewMergeReport(name)
	staging := graph.New()
	lookup := &chain{staging: staging, target: e.target, warehouse: e.warehouse}

	if n := cleanupXrefs(source); n > 0 {
		e.log.WithFields(logrus.Fields{"document": name, "xrefs": n}).Debug("dropped xrefs without db or id")
	}

	if n := breakPathwayCycles(source); n > 0 {
		e.log.WithFields(logrus.Fields{"document": name, "edges": n}).Warn("broke cyclic pathway inclusions")
	}

	repl, err := e.match(ctx, source, staging, lookup, report)
	if err != nil {
		return nil, report, fmt.Errorf("matching %s: %w", name, err)
	}

	rewrite(source.Nodes(), repl.to)

	removed, err := e.cleanup(name, source, repl)
	if err != nil {
		return nil, report, err
	}

	report.Removed = len(removed)

	unsupported := e.dropUnsupportedReferences(name, source, repl.unresolved)

	dropped, err := e.migrate(source, staging, repl, report)
	if err != nil {
		return nil, report, fmt.Errorf("migrating %s: %w", name, err)
	}

	unsupported = append(unsupported, e.filterInteractions(name, source)...)
	report.Filtered = len(unsupported)

	removed = append(removed, dropped...)
	removed = append(removed, unsupported...)
	report.RepairedRefs = repairInverse(holders(source.Nodes()), removed)

	renamed, err := e.renameConflicts(ctx, source, staging)
	if err != nil {
		return nil, report, fmt.Errorf("checking ids of %s: %w", name, err)
	}

	report.RenamedIDs = renamed

	if _, err := staging.Merge(source); err != nil {
		return nil, report, fmt.Errorf("staging %s: %w", name, err)
	}

	return staging, report, nil
}

// Commit writes a staging graph to the target. Only one commit runs at a
// time per engine.
func (e *Engine) Commit(ctx context.Context, staging *graph.Graph) (models.CommitResult, error) {
	e.commitMu.Lock()
	defer e.commitMu.Unlock()

	start := time.Now()
	res, err := e.target.Commit(ctx, staging)
	metrics.CommitDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.ErrorsTotal.WithLabelValues("commit").Inc()
		return res, fmt.Errorf("committing staging graph: %w", err)
	}

	return res, nil
}

// match resolves every mergeable source node and stages its replacement.
func (e *Engine) match(
	ctx context.Context,
	source, staging *graph.Graph,
	lookup NodeSource,
	report *models.MergeReport,
) (*replacements, error) {
	repl := newReplacements()

	for _, origin := range source.NodesOfKind(models.KindEntityReference, models.KindVocabulary, models.KindProvenance) {
		res, ns, err := e.resolve(ctx, origin, lookup)
		if err != nil {
			return nil, err
		}

		if res == nil {
			if origin.Kind == models.KindEntityReference {
				report.Unresolved++
				repl.unresolved = append(repl.unresolved, origin)
			}

			continue
		}

		staged, err := staging.Import(res.Canonical)
		if err != nil {
			return nil, fmt.Errorf("staging %s for %s: %w", res.Canonical.ID, origin.ID, err)
		}

		repl.put(origin, staged)
		report.Replaced[res.Method]++

		if len(res.Candidates) > 1 {
			report.Ambiguous++
		}

		metrics.ReplacementsTotal.WithLabelValues(ns, res.Method).Inc()

		e.log.WithFields(logrus.Fields{
			"origin":    origin.ID,
			"canonical": staged.ID,
			"method":    res.Method,
		}).Debug("origin replaced")
	}

	return repl, nil
}

// resolve picks the resolver for origin. References of a namespace's type
// fall back to identity reuse when the namespace cannot place them.
func (e *Engine) resolve(ctx context.Context, origin *models.Node, lookup NodeSource) (*Resolution, string, error) {
	if origin.Kind == models.KindEntityReference {
		if r := e.resolvers[origin.Type]; r != nil {
			res, err := r.Resolve(ctx, origin, lookup)
			if err != nil || res != nil {
				return res, r.Namespace().Name, err
			}
		}
	}

	res, err := resolveIdentity(ctx, origin, lookup)

	return res, "none", err
}

// cleanup removes the replaced origins and whatever only they referred to.
// Any origin still referenced after the rewrite is a bug in the rewrite and
// aborts the document.
func (e *Engine) cleanup(name string, source *graph.Graph, repl *replacements) ([]*models.Node, error) {
	refs := source.Referrers()

	var survivors []string

	for _, origin := range repl.order {
		if refs[origin] > 0 {
			survivors = append(survivors, origin.ID)
		}
	}

	if len(survivors) > 0 {
		metrics.InvariantViolations.Inc()

		err := &models.InvariantError{Document: name, Survivors: survivors}
		e.log.WithError(err).WithField("document", name).Error("replaced nodes still referenced")

		if e.opts.Strict {
			panic(err)
		}

		return nil, err
	}

	isOrigin := make(map[*models.Node]bool, len(repl.order))
	for _, origin := range repl.order {
		isOrigin[origin] = true
	}

	var candidates []*models.Node

	for _, n := range graph.Closure(repl.order...) {
		if !isOrigin[n] && source.GetByID(n.ID) == n {
			candidates = append(candidates, n)
		}
	}

	removed := make([]*models.Node, 0, len(repl.order))

	for _, origin := range repl.order {
		if source.Remove(origin) {
			removed = append(removed, origin)
		}
	}

	return append(removed, source.RemoveIfDangling(candidates)...), nil
}

// chain looks a node up in the staging graph, then the target, then the
// warehouse.
type chain struct {
	staging   *graph.Graph
	target    Target
	warehouse *graph.Graph
}

func (c *chain) GetByID(ctx context.Context, id string) (*models.Node, error) {
	if n := c.staging.GetByID(id); n != nil {
		return n, nil
	}

	n, err := c.target.GetByID(ctx, id)
	if err != nil && !errors.Is(err, models.ErrNodeNotFound) {
		return nil, err
	}

	if n != nil {
		return n, nil
	}

	if c.warehouse != nil {
		if n := c.warehouse.GetByID(id); n != nil {
			return n, nil
		}
	}

	return nil, nil
}
