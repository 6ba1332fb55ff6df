package merge

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/persistorai/pathmerge/internal/graph"
	"github.com/persistorai/pathmerge/internal/mapping"
	"github.com/persistorai/pathmerge/internal/models"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)

	return log
}

// fakeTarget is an in-memory Target that records commits.
type fakeTarget struct {
	mu        sync.Mutex
	g         *graph.Graph
	commits   int
	commitErr error
	lookups   []string
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{g: graph.New()}
}

func (f *fakeTarget) GetByID(_ context.Context, id string) (*models.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lookups = append(f.lookups, id)

	n := f.g.GetByID(id)
	if n == nil {
		return nil, nil
	}

	return graph.New().Import(n)
}

func (f *fakeTarget) Kinds(_ context.Context, ids []string) (map[string]models.Kind, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := map[string]models.Kind{}

	for _, id := range ids {
		if n := f.g.GetByID(id); n != nil {
			out[id] = n.Kind
		}
	}

	return out, nil
}

func (f *fakeTarget) Commit(_ context.Context, staging *graph.Graph) (models.CommitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.commits++
	if f.commitErr != nil {
		return models.CommitResult{}, f.commitErr
	}

	return f.g.Merge(staging)
}

func addXref(t *testing.T, g *graph.Graph, owner *models.Node, id, db, extID string, kind models.XrefKind) *models.Node {
	t.Helper()

	x := g.GetByID(id)
	if x == nil {
		x = models.NewXref(id, db, extID, kind)
		require.NoError(t, g.Add(x))
	}

	owner.AddEdge(models.PropXref, x)

	return x
}

// addProtein adds a canonical protein reference with unification xrefs.
func addProtein(t *testing.T, g *graph.Graph, acc string, unification ...string) *models.Node {
	t.Helper()

	ref, err := g.AddNew(models.KindEntityReference, mapping.Protein.ReferenceType, mapping.Protein.CanonicalID(acc))
	require.NoError(t, err)

	for _, id := range unification {
		addXref(t, g, ref, "wh-unification-"+acc+"-"+id, "uniprot", id, models.XrefUnification)
	}

	return ref
}

func proteinTable(t *testing.T, warehouse *graph.Graph) *mapping.Table {
	t.Helper()

	table, err := mapping.Build(warehouse, mapping.Protein, quietLogger())
	require.NoError(t, err)

	return table
}

// snapshot describes a graph by content: per node its kind, type, sorted
// data properties and sorted outbound edges.
func snapshot(g *graph.Graph) map[string]string {
	out := map[string]string{}

	for _, n := range g.Nodes() {
		var parts []string

		for k, vs := range n.Properties {
			for _, v := range vs {
				parts = append(parts, "p:"+k+"="+v)
			}
		}

		for _, e := range n.OutboundEdges() {
			parts = append(parts, "e:"+e.Name+"="+e.Target.ID)
		}

		if n.Xref != nil {
			parts = append(parts, fmt.Sprintf("x:%s/%s/%s", n.Xref.DB, n.Xref.ID, n.Xref.Kind))
		}

		sort.Strings(parts)
		out[n.ID] = string(n.Kind) + "|" + n.Type + "|" + strings.Join(parts, ",")
	}

	return out
}
