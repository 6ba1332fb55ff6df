package store_test

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/pathmerge/internal/db"
	"github.com/persistorai/pathmerge/internal/db/migrations"
	"github.com/persistorai/pathmerge/internal/dbpool"
	"github.com/persistorai/pathmerge/internal/graph"
	"github.com/persistorai/pathmerge/internal/models"
	"github.com/persistorai/pathmerge/internal/store"
)

// testEnv holds shared test infrastructure (single pool across all tests).
type testEnv struct {
	pool *dbpool.Pool
	log  *logrus.Logger
}

var sharedEnv *testEnv

func getTestEnv(t *testing.T) *testEnv {
	t.Helper()

	if sharedEnv != nil {
		return sharedEnv
	}

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()

	pool, err := dbpool.NewPool(ctx, dbURL, 4)
	if err != nil {
		t.Fatalf("connecting to test DB: %v", err)
	}

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	if err := db.RunMigrations(ctx, pool, log, migrations.FS); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	sharedEnv = &testEnv{pool: pool, log: log}

	return sharedEnv
}

func setupTestBase(t *testing.T) store.Base {
	t.Helper()

	env := getTestEnv(t)

	return store.Base{Pool: env.pool, Log: env.log}
}

// uniqueID returns an id that does not collide with other test runs.
func uniqueID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

// cleanupNodes deletes the given node ids after the test.
func cleanupNodes(t *testing.T, base store.Base, ids ...string) {
	t.Helper()

	t.Cleanup(func() {
		_, err := base.Pool.Exec(context.Background(), `DELETE FROM kg_nodes WHERE id = ANY($1)`, ids)
		if err != nil {
			t.Logf("cleanup: %v", err)
		}
	})
}

// stagingGraph builds pe -> ref -> x with the back-reference on ref.
func stagingGraph(t *testing.T, peID, refID, xID string) *graph.Graph {
	t.Helper()

	g := graph.New()

	pe, err := g.AddNew(models.KindPhysicalEntity, "Protein", peID)
	if err != nil {
		t.Fatalf("adding pe: %v", err)
	}

	ref, err := g.AddNew(models.KindEntityReference, "ProteinReference", refID)
	if err != nil {
		t.Fatalf("adding ref: %v", err)
	}

	x := models.NewXref(xID, "uniprot", "P04637", models.XrefUnification)
	if err := g.Add(x); err != nil {
		t.Fatalf("adding xref: %v", err)
	}

	pe.AddValue(models.DataName, "p53")
	pe.AddEdge(models.PropEntityReference, ref)
	ref.AddInverse(models.InvEntityReferenceOf, pe)
	ref.AddEdge(models.PropXref, x)

	return g
}
