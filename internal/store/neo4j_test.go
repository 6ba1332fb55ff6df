package store_test

import (
	"context"
	"os"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/pathmerge/internal/models"
	"github.com/persistorai/pathmerge/internal/store"
)

func TestNeo4jTarget_CommitAndGet(t *testing.T) {
	uri := os.Getenv("TEST_NEO4J_URI")
	if uri == "" {
		t.Skip("TEST_NEO4J_URI not set")
	}

	ctx := context.Background()
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	target, err := store.NewNeo4jTarget(ctx, store.Neo4jConfig{
		URI:      uri,
		User:     os.Getenv("TEST_NEO4J_USER"),
		Password: os.Getenv("TEST_NEO4J_PASSWORD"),
	}, log)
	if err != nil {
		t.Fatalf("NewNeo4jTarget: %v", err)
	}
	defer target.Close(ctx)

	peID, refID, xID := uniqueID("pe"), uniqueID("ref"), uniqueID("x")

	res, err := target.Commit(ctx, stagingGraph(t, peID, refID, xID))
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if res.NodesCreated != 3 || res.EdgesCreated != 2 {
		t.Errorf("Commit = %+v, want 3 nodes and 2 edges created", res)
	}

	again, err := target.Commit(ctx, stagingGraph(t, peID, refID, xID))
	if err != nil {
		t.Fatalf("second Commit: %v", err)
	}

	if again != (models.CommitResult{}) {
		t.Errorf("second Commit = %+v, want no changes", again)
	}

	ref, err := target.GetByID(ctx, refID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}

	if ref == nil || !ref.HasXref("uniprot", "P04637") {
		t.Fatalf("GetByID(%s) = %v, want the reference with its xref", refID, ref)
	}

	kinds, err := target.Kinds(ctx, []string{peID, uniqueID("missing")})
	if err != nil {
		t.Fatalf("Kinds: %v", err)
	}

	if len(kinds) != 1 || kinds[peID] != models.KindPhysicalEntity {
		t.Errorf("Kinds = %v", kinds)
	}
}

func TestNeo4jTarget_ExportAndCount(t *testing.T) {
	uri := os.Getenv("TEST_NEO4J_URI")
	if uri == "" {
		t.Skip("TEST_NEO4J_URI not set")
	}

	ctx := context.Background()
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	target, err := store.NewNeo4jTarget(ctx, store.Neo4jConfig{
		URI:      uri,
		User:     os.Getenv("TEST_NEO4J_USER"),
		Password: os.Getenv("TEST_NEO4J_PASSWORD"),
	}, log)
	if err != nil {
		t.Fatalf("NewNeo4jTarget: %v", err)
	}
	defer target.Close(ctx)

	if err := target.HealthCheck(ctx); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}

	peID, refID, xID := uniqueID("pe"), uniqueID("ref"), uniqueID("x")
	if _, err := target.Commit(ctx, stagingGraph(t, peID, refID, xID)); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	nodes, edges, err := target.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}

	if nodes < 3 || edges < 2 {
		t.Errorf("Count = %d nodes, %d edges, want at least 3 and 2", nodes, edges)
	}

	g, err := target.Export(ctx)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	ref := g.GetByID(refID)
	if ref == nil || !ref.HasXref("uniprot", "P04637") {
		t.Fatalf("exported %s = %v, want the reference with its xref", refID, ref)
	}
}
