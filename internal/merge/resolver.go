// Package merge resolves source entities to canonical nodes and merges
// source documents into the target graph.
package merge

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/pathmerge/internal/graph"
	"github.com/persistorai/pathmerge/internal/mapping"
	"github.com/persistorai/pathmerge/internal/models"
)

// NodeSource looks up candidate canonical nodes by id. It returns
// (nil, nil) when the id is unknown.
type NodeSource interface {
	GetByID(ctx context.Context, id string) (*models.Node, error)
}

// Resolution is a successful match of a source node to a canonical node.
type Resolution struct {
	Canonical  *models.Node
	Method     string
	Candidates []string
}

// Resolver finds the canonical node of one namespace for a source entity
// reference.
type Resolver struct {
	table *mapping.Table
	ns    mapping.Namespace
	names map[string][]string
	log   *logrus.Logger
}

// NewResolver creates a resolver over an immutable mapping table.
func NewResolver(table *mapping.Table, log *logrus.Logger) *Resolver {
	return &Resolver{table: table, ns: table.Namespace(), log: log}
}

// WithNames indexes the names of the warehouse's canonical references so
// that Resolve can fall back to an exact name match. It does nothing for a
// nil warehouse or a namespace that does not match by name.
func (r *Resolver) WithNames(warehouse *graph.Graph) *Resolver {
	if warehouse != nil && r.ns.MatchNames {
		r.names = nameIndex(warehouse, r.ns)
	}

	return r
}

// Namespace returns the resolver's target namespace.
func (r *Resolver) Namespace() mapping.Namespace {
	return r.ns
}

// Resolve tries, in order: the origin's own id when it is already
// canonical; the id part of a normalised origin URI; the origin's
// unification xrefs; its relationship xrefs; its names, when the resolver
// has a name index. It returns nil when nothing matched, in which case the
// origin is merged as it is.
func (r *Resolver) Resolve(ctx context.Context, origin *models.Node, src NodeSource) (*Resolution, error) {
	if r.ns.IsCanonical(origin.ID) {
		n, err := src.GetByID(ctx, origin.ID)
		if err != nil {
			return nil, fmt.Errorf("looking up %s: %w", origin.ID, err)
		}

		if n != nil && n.Kind == origin.Kind {
			return &Resolution{Canonical: n, Method: models.MethodURI, Candidates: []string{origin.ID}}, nil
		}
	}

	if db, id, ok := mapping.ParseStandardURI(origin.ID); ok {
		res, err := r.pick(ctx, origin, r.table.Map(db, id), models.MethodID, src)
		if err != nil || res != nil {
			return res, err
		}
	}

	for _, step := range []struct {
		kind   models.XrefKind
		method string
	}{
		{models.XrefUnification, models.MethodUnification},
		{models.XrefRelationship, models.MethodRelationship},
	} {
		res, err := r.pick(ctx, origin, r.table.MapXrefs(origin.XrefsOfKind(step.kind)), step.method, src)
		if err != nil || res != nil {
			return res, err
		}
	}

	return r.resolveByName(ctx, origin, src)
}

// resolveByName accepts a name match only when it names exactly one
// canonical reference.
func (r *Resolver) resolveByName(ctx context.Context, origin *models.Node, src NodeSource) (*Resolution, error) {
	accs := byName(r.names, origin)

	switch {
	case len(accs) == 0:
		return nil, nil
	case len(accs) > 1:
		r.log.WithFields(logrus.Fields{
			"origin":     origin.ID,
			"namespace":  r.ns.Name,
			"candidates": accs,
		}).Debug("names match several canonical references, not merged")

		return nil, nil
	}

	res, err := r.pick(ctx, origin, accs, models.MethodName, src)
	if res != nil {
		r.log.WithFields(logrus.Fields{
			"origin":    origin.ID,
			"canonical": res.Canonical.ID,
		}).Warn("reference merged by name")
	}

	return res, err
}

// pick returns the first accession (ascending) whose canonical node exists.
// More than one candidate is a data-quality problem in the source and is
// logged with the full candidate set.
func (r *Resolver) pick(
	ctx context.Context,
	origin *models.Node,
	accessions []string,
	method string,
	src NodeSource,
) (*Resolution, error) {
	if len(accessions) == 0 {
		return nil, nil
	}

	if len(accessions) > 1 {
		r.log.WithFields(logrus.Fields{
			"origin":     origin.ID,
			"namespace":  r.ns.Name,
			"method":     method,
			"candidates": accessions,
		}).Warn("ambiguous origin: xrefs map to several canonical accessions, using the first")
	}

	for _, acc := range accessions {
		id := r.ns.CanonicalID(acc)

		n, err := src.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("looking up %s: %w", id, err)
		}

		if n != nil && n.Kind == origin.Kind {
			return &Resolution{Canonical: n, Method: method, Candidates: accessions}, nil
		}

		r.log.WithFields(logrus.Fields{
			"origin":    origin.ID,
			"canonical": id,
		}).Debug("mapped accession has no canonical node")
	}

	return nil, nil
}

// resolveIdentity reuses a node with the origin's own id and kind, if one
// already exists. Used for vocabularies, provenance and references outside
// every mapping namespace.
func resolveIdentity(ctx context.Context, origin *models.Node, src NodeSource) (*Resolution, error) {
	n, err := src.GetByID(ctx, origin.ID)
	if err != nil {
		return nil, fmt.Errorf("looking up %s: %w", origin.ID, err)
	}

	if n == nil || n.Kind != origin.Kind {
		return nil, nil
	}

	return &Resolution{Canonical: n, Method: models.MethodIdentity, Candidates: []string{origin.ID}}, nil
}
