package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/persistorai/pathmerge/internal/graph"
	"github.com/persistorai/pathmerge/internal/mapping"
	"github.com/persistorai/pathmerge/internal/models"
	"github.com/persistorai/pathmerge/internal/store"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)

	return log
}

func testWarehouse(t *testing.T) *graph.Graph {
	t.Helper()

	g := graph.New()

	ref, err := g.AddNew(models.KindEntityReference, mapping.Protein.ReferenceType, mapping.Protein.CanonicalID("P1"))
	require.NoError(t, err)

	x := models.NewXref("wh-u1", "uniprot", "U1", models.XrefUnification)
	require.NoError(t, g.Add(x))
	ref.AddEdge(models.PropXref, x)

	return g
}

// writeDocument writes a document with one protein whose reference maps
// to P1, and returns its path.
func writeDocument(t *testing.T, dir string, n int) string {
	t.Helper()

	g := graph.New()

	ref, err := g.AddNew(models.KindEntityReference, mapping.Protein.ReferenceType, fmt.Sprintf("src-ref-%d", n))
	require.NoError(t, err)

	x := models.NewXref(fmt.Sprintf("src-x-%d", n), "UniProt", "U1", models.XrefUnification)
	require.NoError(t, g.Add(x))
	ref.AddEdge(models.PropXref, x)

	pe, err := g.AddNew(models.KindPhysicalEntity, "Protein", fmt.Sprintf("pe-%d", n))
	require.NoError(t, err)
	pe.AddEdge(models.PropEntityReference, ref)
	ref.AddInverse(models.InvEntityReferenceOf, pe)

	path := filepath.Join(dir, fmt.Sprintf("doc-%d.json", n))
	require.NoError(t, graph.WriteFile(path, g))

	return path
}

func newTestPipeline(t *testing.T, workers int) (*Pipeline, *store.MemoryTarget, *mockMappingStore) {
	t.Helper()

	target := store.NewMemoryTarget(nil)
	mappings := newMockMappingStore()
	warehouse := testWarehouse(t)

	p := NewPipeline(target, mappings, warehouse, nil, quietLogger(), PipelineOptions{
		Workers:    workers,
		Namespaces: []mapping.Namespace{mapping.Protein},
	})

	_, err := p.BuildMappings(context.Background(), warehouse)
	require.NoError(t, err)

	return p, target, mappings
}

func TestBuildMappingsSavesTables(t *testing.T) {
	_, _, mappings := newTestPipeline(t, 1)

	table, err := mappings.LoadMappingTable(context.Background(), mapping.Protein)
	require.NoError(t, err)

	acc, ok := table.Lookup("U1")
	require.True(t, ok)
	assert.Equal(t, "P1", acc)
}

func TestBuildMappingsFailsOnEmptyWarehouse(t *testing.T) {
	mappings := newMockMappingStore()
	p := NewPipeline(store.NewMemoryTarget(nil), mappings, nil, nil, quietLogger(), PipelineOptions{
		Namespaces: []mapping.Namespace{mapping.Protein},
	})

	_, err := p.BuildMappings(context.Background(), graph.New())
	assert.True(t, errors.Is(err, models.ErrMappingBuild))
	assert.Equal(t, 0, mappings.saves)
}

func TestBuildMappingsSkipsNamespaceWithoutReferences(t *testing.T) {
	mappings := newMockMappingStore()
	p := NewPipeline(store.NewMemoryTarget(nil), mappings, nil, nil, quietLogger(), PipelineOptions{
		Namespaces: []mapping.Namespace{mapping.Protein, mapping.Chemical},
	})

	tables, err := p.BuildMappings(context.Background(), testWarehouse(t))
	require.NoError(t, err)

	require.Len(t, tables, 1)
	assert.Equal(t, mapping.Protein.Name, tables[0].Namespace().Name)
	assert.Equal(t, 1, mappings.saves)

	_, err = mappings.LoadMappingTable(context.Background(), mapping.Chemical)
	assert.True(t, errors.Is(err, models.ErrNodeNotFound))
}

func TestBuildMappingsSaveFailureIsFatal(t *testing.T) {
	mappings := newMockMappingStore()
	mappings.saveErr = errors.New("disk full")

	p := NewPipeline(store.NewMemoryTarget(nil), mappings, nil, nil, quietLogger(), PipelineOptions{
		Namespaces: []mapping.Namespace{mapping.Protein},
	})

	_, err := p.BuildMappings(context.Background(), testWarehouse(t))
	assert.True(t, errors.Is(err, models.ErrMappingBuild))
}

func TestRunMergesDocuments(t *testing.T) {
	p, target, _ := newTestPipeline(t, 4)
	dir := t.TempDir()

	ds := []models.Datasource{{
		ID:    "reactome",
		Files: []string{writeDocument(t, dir, 1), writeDocument(t, dir, 2), filepath.Join(dir, "missing.json")},
	}}

	summary, err := p.Run(context.Background(), uuid.New(), ds)
	require.NoError(t, err)

	assert.Len(t, summary.Merged, 2)
	require.Len(t, summary.Failed, 1)
	assert.Contains(t, summary.Failed[0].Document, "missing.json")
	assert.False(t, summary.Cancelled)
	assert.Equal(t, 2, summary.Replaced)

	progress := p.Progress().Snapshot()
	assert.False(t, progress.Running)
	assert.Equal(t, 3, progress.Documents)
	assert.Equal(t, 2, progress.Merged)
	assert.Equal(t, 1, progress.Failed)
	assert.Equal(t, summary.RunID, progress.RunID)

	g := target.Snapshot()
	canonical := mapping.Protein.CanonicalID("P1")
	assert.True(t, g.Contains(canonical))
	assert.False(t, g.Contains("src-ref-1"))
	assert.False(t, g.Contains("src-ref-2"))

	for _, pe := range []string{"pe-1", "pe-2"} {
		refs := g.GetByID(pe).Edges(models.PropEntityReference)
		require.Len(t, refs, 1, pe)
		assert.Equal(t, canonical, refs[0].ID, pe)
	}
}

func TestRunRecordsAudit(t *testing.T) {
	target := store.NewMemoryTarget(nil)
	mappings := newMockMappingStore()
	warehouse := testWarehouse(t)
	auditor := &mockAuditor{}
	aw := NewAuditWorker(auditor, quietLogger(), 10)

	p := NewPipeline(target, mappings, warehouse, aw, quietLogger(), PipelineOptions{
		Workers:    2,
		Namespaces: []mapping.Namespace{mapping.Protein},
	})

	_, err := p.BuildMappings(context.Background(), warehouse)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go aw.Run(ctx)

	dir := t.TempDir()
	runID := uuid.New()

	_, err = p.Run(context.Background(), runID, []models.Datasource{{ID: "ds", Files: []string{writeDocument(t, dir, 1)}}})
	require.NoError(t, err)

	cancel()
	<-aw.Done()

	calls := auditor.getCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, runID, calls[0].RunID)
	assert.Equal(t, 1, calls[0].Report.Replaced[models.MethodUnification])
}

func TestRunCancelledBeforeStart(t *testing.T) {
	p, target, _ := newTestPipeline(t, 1)
	dir := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	second, first := writeDocument(t, dir, 2), writeDocument(t, dir, 1)

	summary, err := p.Run(ctx, uuid.New(), []models.Datasource{{ID: "ds", Files: []string{second, first}}})
	require.NoError(t, err)

	assert.True(t, summary.Cancelled)
	assert.Empty(t, summary.Merged)
	assert.Equal(t, []string{"ds:" + first, "ds:" + second}, summary.Skipped)
	assert.Equal(t, 2, p.Progress().Snapshot().Skipped)
	assert.Equal(t, 0, target.Snapshot().Len())
}

func TestRunWithoutStoredTables(t *testing.T) {
	target := store.NewMemoryTarget(nil)
	p := NewPipeline(target, newMockMappingStore(), nil, nil, quietLogger(), PipelineOptions{
		Namespaces: []mapping.Namespace{mapping.Protein},
	})

	dir := t.TempDir()

	summary, err := p.Run(context.Background(), uuid.New(), []models.Datasource{{ID: "ds", Files: []string{writeDocument(t, dir, 1)}}})
	require.NoError(t, err)

	require.Len(t, summary.Merged, 1)
	assert.Equal(t, 0, summary.Replaced)
	assert.True(t, target.Snapshot().Contains("src-ref-1"), "unresolved references are kept")
}
