package mapping

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/pathmerge/internal/graph"
	"github.com/persistorai/pathmerge/internal/models"
)

// Builder accumulates one namespace's table over one or more passes of the
// warehouse. Each pass visits the warehouse references in ascending
// accession order and their xrefs in ascending (db, id) order, so the
// result does not depend on map iteration order.
type Builder struct {
	ns        Namespace
	log       *logrus.Logger
	entries   map[string]string
	ambiguous map[string]map[string]bool
}

// NewBuilder creates a builder for ns.
func NewBuilder(ns Namespace, log *logrus.Logger) *Builder {
	return &Builder{
		ns:        ns,
		log:       log,
		entries:   map[string]string{},
		ambiguous: map[string]map[string]bool{},
	}
}

// Pass scans the xrefs of the given kind on every warehouse reference of
// the namespace's type. An identifier seen with two different accessions is
// moved from the table to the ambiguous set and stays there for the rest
// of the build.
func (b *Builder) Pass(warehouse *graph.Graph, kind models.XrefKind) error {
	if kind == models.XrefPublication {
		return fmt.Errorf("publication xrefs cannot be used for mapping: %w", models.ErrMappingBuild)
	}

	refs := b.references(warehouse)
	before, beforeAmb := len(b.entries), len(b.ambiguous)

	for _, ref := range refs {
		acc := AccessionOf(ref.ID)

		for _, x := range ref.XrefsOfKind(kind) {
			if x.Xref.DB == "" || x.Xref.ID == "" || SkipDB(x.Xref.DB) {
				continue
			}

			b.observe(NormalizeID(x.Xref.DB, x.Xref.ID), acc)
		}
	}

	b.log.WithFields(logrus.Fields{
		"namespace":     b.ns.Name,
		"xref_kind":     kind,
		"references":    len(refs),
		"entries_delta": len(b.entries) - before,
		"ambiguous":     len(b.ambiguous) - beforeAmb,
	}).Info("mapping pass complete")

	return nil
}

func (b *Builder) observe(id, acc string) {
	if conflict, ok := b.ambiguous[id]; ok {
		conflict[acc] = true
		return
	}

	if prev, ok := b.entries[id]; ok && prev != acc {
		b.ambiguous[id] = map[string]bool{prev: true, acc: true}
		delete(b.entries, id)
		b.log.WithFields(logrus.Fields{
			"namespace":  b.ns.Name,
			"id":         id,
			"accessions": []string{prev, acc},
		}).Debug("identifier excluded as ambiguous")

		return
	}

	b.entries[id] = acc
}

// references returns the warehouse references of the namespace's type,
// sorted by accession (then id, for equal accessions).
func (b *Builder) references(warehouse *graph.Graph) []*models.Node {
	var refs []*models.Node

	for _, n := range warehouse.NodesOfKind(models.KindEntityReference) {
		if n.Type == b.ns.ReferenceType {
			refs = append(refs, n)
		}
	}

	sort.SliceStable(refs, func(i, j int) bool {
		ai, aj := AccessionOf(refs[i].ID), AccessionOf(refs[j].ID)
		if ai != aj {
			return ai < aj
		}

		return refs[i].ID < refs[j].ID
	})

	return refs
}

// Table returns an immutable snapshot of the current state.
func (b *Builder) Table() *Table {
	t := &Table{
		ns:        b.ns,
		entries:   make(map[string]string, len(b.entries)),
		ambiguous: make(map[string][]string, len(b.ambiguous)),
	}

	for id, acc := range b.entries {
		t.entries[id] = acc
	}

	for id, set := range b.ambiguous {
		accs := make([]string, 0, len(set))
		for acc := range set {
			accs = append(accs, acc)
		}

		sort.Strings(accs)
		t.ambiguous[id] = accs
	}

	return t
}

// Build runs the unification pass and then the relationship pass.
func Build(warehouse *graph.Graph, ns Namespace, log *logrus.Logger) (*Table, error) {
	b := NewBuilder(ns, log)

	for _, kind := range []models.XrefKind{models.XrefUnification, models.XrefRelationship} {
		if err := b.Pass(warehouse, kind); err != nil {
			return nil, err
		}
	}

	t := b.Table()
	if t.Len() == 0 && t.AmbiguousLen() == 0 {
		return nil, fmt.Errorf("%s: %w: %w", ns.ReferenceType, models.ErrEmptyNamespace, models.ErrMappingBuild)
	}

	return t, nil
}
