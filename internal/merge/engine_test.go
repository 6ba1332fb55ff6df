package merge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/persistorai/pathmerge/internal/graph"
	"github.com/persistorai/pathmerge/internal/mapping"
	"github.com/persistorai/pathmerge/internal/models"
)

const (
	idX  = "http://example.org/X"
	idY  = "http://example.org/Y"
	idF  = "http://example.org/F"
	idPE = "http://example.org/PE"
	idP2 = "http://example.org/PE2"
)

var idP3 = mapping.Protein.CanonicalID("P3")

// scenarioSource builds a document with a resolvable reference X (with a
// relationship xref and a feature) and an unresolvable reference Y.
func scenarioSource(t *testing.T, suffix string) *graph.Graph {
	t.Helper()

	g := graph.New()

	x, err := g.AddNew(models.KindEntityReference, "ProteinReference", idX)
	require.NoError(t, err)
	x.AddValue(models.DataName, "x name")
	addXref(t, g, x, "src-unif-u2", "uniprot", "U2", models.XrefUnification)
	addXref(t, g, x, "src-rel-np1", "RefSeq", "NP_1", models.XrefRelationship)

	f, err := g.AddNew(models.KindEntityFeature, "ModificationFeature", idF)
	require.NoError(t, err)
	f.AddValue("modificationType", "phospho")
	x.AddEdge(models.PropEntityFeature, f)
	f.AddInverse(models.InvEntityFeatureOf, x)

	pe, err := g.AddNew(models.KindPhysicalEntity, "Protein", idPE+suffix)
	require.NoError(t, err)
	pe.AddEdge(models.PropEntityReference, x)
	pe.AddEdge(models.PropFeature, f)
	x.AddInverse(models.InvEntityReferenceOf, pe)

	y, err := g.AddNew(models.KindEntityReference, "ProteinReference", idY)
	require.NoError(t, err)
	y.AddValue(models.DataName, "y name")
	addXref(t, g, y, "src-unif-nope", "uniprot", "NOPE", models.XrefUnification)

	pe2, err := g.AddNew(models.KindPhysicalEntity, "Protein", idP2+suffix)
	require.NoError(t, err)
	pe2.AddEdge(models.PropEntityReference, y)
	y.AddInverse(models.InvEntityReferenceOf, pe2)

	return g
}

func scenarioEngine(t *testing.T, opts Options) (*Engine, *fakeTarget) {
	t.Helper()

	warehouse := graph.New()
	addProtein(t, warehouse, "P3", "U2")

	target := newFakeTarget()
	p3 := addProtein(t, target.g, "P3")
	p3.AddValue(models.DataName, "canonical name")
	p3.AddValue(models.DataComment, "kept")

	return NewEngine(target, warehouse, []*mapping.Table{proteinTable(t, warehouse)}, quietLogger(), opts), target
}

func TestMergeReplacesResolvedReference(t *testing.T) {
	e, target := scenarioEngine(t, Options{})

	report, err := e.Merge(context.Background(), "doc", scenarioSource(t, ""))
	require.NoError(t, err)

	assert.False(t, target.g.Contains(idX), "replaced origin must not reach the target")
	assert.False(t, target.g.Contains("src-unif-u2"), "unification xref of the origin is dropped")

	p3 := target.g.GetByID(idP3)
	require.NotNil(t, p3)
	assert.ElementsMatch(t, []string{"canonical name", "x name"}, p3.Values(models.DataName))
	assert.Equal(t, []string{"kept", "REPLACED " + idX}, p3.Values(models.DataComment))
	assert.True(t, p3.HasXref("refseq", "NP_1"), "relationship xref moved to the replacement")
	require.Len(t, p3.Edges(models.PropEntityFeature), 1)
	assert.Equal(t, idF, p3.Edges(models.PropEntityFeature)[0].ID)

	pe := target.g.GetByID(idPE)
	require.NotNil(t, pe)
	require.Len(t, pe.Edges(models.PropEntityReference), 1)
	assert.Equal(t, idP3, pe.Edges(models.PropEntityReference)[0].ID)

	assert.Equal(t, 1, report.Replaced[models.MethodUnification])
	assert.Equal(t, 1, report.Unresolved)
	assert.Equal(t, 1, report.MovedXrefs)
	assert.Equal(t, 1, report.MovedFeatures)
	assert.Equal(t, 1, report.RepairedRefs)
	assert.Equal(t, 3, report.Removed)
	assert.Equal(t, 1, target.commits)
}

func TestMergeKeepsUnresolvedReference(t *testing.T) {
	e, target := scenarioEngine(t, Options{})

	_, err := e.Merge(context.Background(), "doc", scenarioSource(t, ""))
	require.NoError(t, err)

	y := target.g.GetByID(idY)
	require.NotNil(t, y)
	assert.Equal(t, models.KindEntityReference, y.Kind)
	assert.Equal(t, []string{"y name"}, y.Values(models.DataName))
	assert.True(t, y.HasXref("uniprot", "NOPE"))

	pe2 := target.g.GetByID(idP2)
	require.NotNil(t, pe2)
	assert.Equal(t, idY, pe2.Edges(models.PropEntityReference)[0].ID)
}

func TestMergeIsIdempotent(t *testing.T) {
	e, target := scenarioEngine(t, Options{})
	ctx := context.Background()

	_, err := e.Merge(ctx, "doc", scenarioSource(t, ""))
	require.NoError(t, err)

	first := snapshot(target.g)

	report, err := e.Merge(ctx, "doc", scenarioSource(t, ""))
	require.NoError(t, err)

	assert.Equal(t, first, snapshot(target.g))
	assert.Equal(t, 0, report.Commit.NodesCreated)
	assert.Equal(t, 0, report.Commit.EdgesCreated)
	assert.Equal(t, 1, report.Replaced[models.MethodIdentity], "Y is reused by id on the second run")
}

func TestMergeCommitFailureLeavesTargetUntouched(t *testing.T) {
	e, target := scenarioEngine(t, Options{})
	target.commitErr = fmt.Errorf("disk full: %w", models.ErrStoreFailure)
	before := snapshot(target.g)

	report, err := e.Merge(context.Background(), "doc", scenarioSource(t, ""))
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrStoreFailure))
	assert.NotEmpty(t, report.Err)
	assert.Equal(t, before, snapshot(target.g))
}

func TestMergeFoldsEquivalentFeature(t *testing.T) {
	e, target := scenarioEngine(t, Options{})

	p3 := target.g.GetByID(idP3)
	g, err := target.g.AddNew(models.KindEntityFeature, "ModificationFeature", "http://example.org/G")
	require.NoError(t, err)
	g.AddValue("modificationType", "phospho")
	p3.AddEdge(models.PropEntityFeature, g)

	source := scenarioSource(t, "")
	source.GetByID(idF).AddValue(models.DataComment, "from source")

	report, err := e.Merge(context.Background(), "doc", source)
	require.NoError(t, err)

	assert.False(t, target.g.Contains(idF), "equivalent feature is folded into the existing one")
	assert.Equal(t, 0, report.MovedFeatures)
	assert.Equal(t, []string{"from source"}, target.g.GetByID("http://example.org/G").Values(models.DataComment))

	pe := target.g.GetByID(idPE)
	require.Len(t, pe.Edges(models.PropFeature), 1)
	assert.Equal(t, "http://example.org/G", pe.Edges(models.PropFeature)[0].ID)
}

func TestMergeRenamesConflictingID(t *testing.T) {
	e, target := scenarioEngine(t, Options{})

	_, err := target.g.AddNew(models.KindVocabulary, "CellularLocationVocabulary", idP2)
	require.NoError(t, err)

	report, err := e.Merge(context.Background(), "doc", scenarioSource(t, ""))
	require.NoError(t, err)
	assert.Equal(t, 1, report.RenamedIDs)

	assert.Equal(t, models.KindVocabulary, target.g.GetByID(idP2).Kind)

	var renamed *models.Node

	for _, n := range target.g.NodesOfKind(models.KindPhysicalEntity) {
		if n.ID != idPE {
			renamed = n
		}
	}

	require.NotNil(t, renamed)
	assert.Contains(t, renamed.Values(models.DataComment), "REPLACED "+idP2)
	assert.Equal(t, renamedID(&models.Node{ID: idP2, Kind: models.KindPhysicalEntity}), renamed.ID)
}

func TestMergeMovesNonReferenceOutOfCanonicalSpace(t *testing.T) {
	warehouse := graph.New()
	addProtein(t, warehouse, "P9", "U9")

	target := newFakeTarget()
	e := NewEngine(target, warehouse, []*mapping.Table{proteinTable(t, warehouse)}, quietLogger(), Options{})
	ctx := context.Background()
	p9 := mapping.Protein.CanonicalID("P9")

	first := graph.New()
	squatter, err := first.AddNew(models.KindPhysicalEntity, "Protein", p9)
	require.NoError(t, err)
	squatter.AddValue(models.DataName, "mislabelled")

	report, err := e.Merge(ctx, "doc1", first)
	require.NoError(t, err)
	assert.Equal(t, 1, report.RenamedIDs)
	assert.False(t, target.g.Contains(p9), "canonical id stays free")

	moved := target.g.GetByID(renamedID(&models.Node{ID: p9, Kind: models.KindPhysicalEntity}))
	require.NotNil(t, moved)
	assert.Contains(t, moved.Values(models.DataComment), "REPLACED "+p9)

	second := graph.New()
	ref, err := second.AddNew(models.KindEntityReference, "ProteinReference", "http://example.org/X9")
	require.NoError(t, err)
	addXref(t, second, ref, "x9-u9", "uniprot", "U9", models.XrefUnification)

	pe, err := second.AddNew(models.KindPhysicalEntity, "Protein", "http://example.org/X9E")
	require.NoError(t, err)
	pe.AddEdge(models.PropEntityReference, ref)

	report, err = e.Merge(ctx, "doc2", second)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Replaced[models.MethodUnification])
	assert.Equal(t, 0, report.Unresolved)

	canonical := target.g.GetByID(p9)
	require.NotNil(t, canonical)
	assert.Equal(t, models.KindEntityReference, canonical.Kind)
}

func TestMergeAmbiguousOriginUsesFirstCandidate(t *testing.T) {
	warehouse := graph.New()
	addProtein(t, warehouse, "P5", "U5")
	addProtein(t, warehouse, "P6", "U6")

	target := newFakeTarget()
	e := NewEngine(target, warehouse, []*mapping.Table{proteinTable(t, warehouse)}, quietLogger(), Options{})

	source := graph.New()
	ref, err := source.AddNew(models.KindEntityReference, "ProteinReference", "http://example.org/Z")
	require.NoError(t, err)
	addXref(t, source, ref, "z-u6", "uniprot", "U6", models.XrefUnification)
	addXref(t, source, ref, "z-u5", "uniprot", "U5", models.XrefUnification)

	pe, err := source.AddNew(models.KindPhysicalEntity, "Protein", "http://example.org/ZE")
	require.NoError(t, err)
	pe.AddEdge(models.PropEntityReference, ref)

	report, err := e.Merge(context.Background(), "doc", source)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Ambiguous)

	got := target.g.GetByID("http://example.org/ZE").Edges(models.PropEntityReference)
	require.Len(t, got, 1)
	assert.Equal(t, mapping.Protein.CanonicalID("P5"), got[0].ID)
	assert.True(t, target.g.Contains(mapping.Protein.CanonicalID("P5")), "staged canonical node is committed")
}

func TestMergeReusesVocabularyByID(t *testing.T) {
	e, target := scenarioEngine(t, Options{})

	cv, err := target.g.AddNew(models.KindVocabulary, "CellularLocationVocabulary", "http://example.org/cytoplasm")
	require.NoError(t, err)
	cv.AddValue("term", "cytoplasm")

	source := scenarioSource(t, "")
	src, err := source.AddNew(models.KindVocabulary, "CellularLocationVocabulary", "http://example.org/cytoplasm")
	require.NoError(t, err)
	src.AddValue("term", "cytosol")
	source.GetByID(idPE).AddEdge("cellularLocation", src)

	report, err := e.Merge(context.Background(), "doc", source)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Replaced[models.MethodIdentity])
	assert.ElementsMatch(t, []string{"cytoplasm", "cytosol"}, target.g.GetByID("http://example.org/cytoplasm").Values("term"))
}

func TestCleanupInvariantViolation(t *testing.T) {
	e, _ := scenarioEngine(t, Options{})
	source := scenarioSource(t, "")

	repl := newReplacements()
	repl.put(source.GetByID(idX), models.NewNode(models.KindEntityReference, "ProteinReference", idP3))

	_, err := e.cleanup("doc", source, repl)

	var inv *models.InvariantError
	require.ErrorAs(t, err, &inv)
	assert.Equal(t, []string{idX}, inv.Survivors)
	assert.True(t, errors.Is(err, models.ErrMergeInvariant))
	assert.True(t, source.Contains(idX), "nothing is removed when the invariant fails")

	strict, _ := scenarioEngine(t, Options{Strict: true})
	assert.Panics(t, func() { _, _ = strict.cleanup("doc", source, repl) })
}

func TestMergeConcurrentDocuments(t *testing.T) {
	e, target := scenarioEngine(t, Options{})

	sources := make([]*graph.Graph, 8)
	for i := range sources {
		sources[i] = scenarioSource(t, fmt.Sprintf("-%d", i))
	}

	var wg sync.WaitGroup

	errs := make([]error, len(sources))

	for i, src := range sources {
		wg.Add(1)

		go func(i int, src *graph.Graph) {
			defer wg.Done()

			_, errs[i] = e.Merge(context.Background(), fmt.Sprintf("doc-%d", i), src)
		}(i, src)
	}

	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, 8, target.commits)
	assert.False(t, target.g.Contains(idX))
	assert.Len(t, target.g.NodesOfKind(models.KindPhysicalEntity), 16)
	assert.Len(t, target.g.GetByID(idP3).Edges(models.PropEntityFeature), 1)
}

func TestPrepareDoesNotTouchTarget(t *testing.T) {
	e, target := scenarioEngine(t, Options{})
	before := snapshot(target.g)

	staging, report, err := e.Prepare(context.Background(), "doc", scenarioSource(t, ""))
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.Equal(t, before, snapshot(target.g))
	assert.Equal(t, 0, target.commits)
	assert.True(t, staging.Contains(idP3))
	assert.True(t, staging.Contains(idPE))
	assert.False(t, staging.Contains(idX))
}
