package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/persistorai/pathmerge/internal/graph"
	"github.com/persistorai/pathmerge/internal/models"
)

// commitLockKey serialises commits across processes sharing one database.
const commitLockKey int64 = 0x70617468 // "path"

// TargetStore is the merged graph in PostgreSQL.
type TargetStore struct {
	Base
}

// NewTargetStore creates a TargetStore.
func NewTargetStore(base Base) *TargetStore {
	return &TargetStore{Base: base}
}

// GetByID returns a node with its outbound edges and back-references. Edge
// targets are loaded one level deep, without their own edges. It returns
// (nil, nil) for an unknown id.
func (s *TargetStore) GetByID(ctx context.Context, id string) (*models.Node, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginReadTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // read-only transaction.

	n, err := scanNode(tx.QueryRow(ctx, `SELECT `+nodeColumns+` FROM kg_nodes WHERE id = $1`, id).Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("getting node %s: %w", id, err)
	}

	rows, err := tx.Query(ctx, `
		SELECT e.property, e.inverse, `+joinedNodeColumns+`
		FROM kg_edges e
		JOIN kg_nodes n ON n.id = e.target
		WHERE e.source = $1
		ORDER BY e.inverse, e.property, e.position`, id)
	if err != nil {
		return nil, fmt.Errorf("getting edges of %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			property string
			inverse  bool
		)

		t, err := scanNode(rows.Scan, &property, &inverse)
		if err != nil {
			return nil, fmt.Errorf("scanning edge of %s: %w", id, err)
		}

		if t.ID == n.ID {
			t = n
		}

		if inverse {
			n.AddInverse(property, t)
		} else {
			n.AddEdge(property, t)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating edges of %s: %w", id, err)
	}

	return n, nil
}

// Contains reports whether a node with the given id exists.
func (s *TargetStore) Contains(ctx context.Context, id string) (bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var exists bool

	err := s.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM kg_nodes WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking node %s: %w", id, err)
	}

	return exists, nil
}

// Kinds returns the kind of every id that exists.
func (s *TargetStore) Kinds(ctx context.Context, ids []string) (map[string]models.Kind, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.Pool.Query(ctx, `SELECT id, kind FROM kg_nodes WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("querying node kinds: %w", err)
	}
	defer rows.Close()

	out := make(map[string]models.Kind, len(ids))

	for rows.Next() {
		var id, kind string
		if err := rows.Scan(&id, &kind); err != nil {
			return nil, fmt.Errorf("scanning node kind: %w", err)
		}

		out[id] = models.Kind(kind)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating node kinds: %w", err)
	}

	return out, nil
}

// Count returns the number of stored nodes and edges.
func (s *TargetStore) Count(ctx context.Context) (nodes, edges int64, err error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	err = s.Pool.QueryRow(ctx, `
		SELECT (SELECT count(*) FROM kg_nodes),
		       (SELECT count(*) FROM kg_edges WHERE NOT inverse)`).Scan(&nodes, &edges)
	if err != nil {
		return 0, 0, fmt.Errorf("counting graph: %w", err)
	}

	return nodes, edges, nil
}

// Commit merges staging into the stored graph in one transaction: new
// nodes are inserted, existing nodes gain the property values they lack,
// and edges are added unless already present. On any error nothing is
// written and the error matches models.ErrStoreFailure.
func (s *TargetStore) Commit(ctx context.Context, staging *graph.Graph) (models.CommitResult, error) {
	var res models.CommitResult

	ctx, cancel := context.WithTimeout(ctx, commitTimeout)
	defer cancel()

	tx, err := s.beginTx(ctx)
	if err != nil {
		return res, storeFailure("commit", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, commitLockKey); err != nil {
		return res, storeFailure("acquiring commit lock", err)
	}

	nodes := staging.Nodes()

	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}

	rows, err := tx.Query(ctx, `SELECT `+nodeColumns+` FROM kg_nodes WHERE id = ANY($1) FOR UPDATE`, ids)
	if err != nil {
		return res, storeFailure("locking existing nodes", err)
	}

	existing, err := collectNodes(rows)
	rows.Close()

	if err != nil {
		return res, storeFailure("locking existing nodes", err)
	}

	batch := &pgx.Batch{}

	for _, n := range nodes {
		cur, ok := existing[n.ID]
		if !ok {
			args, err := nodeArgs(n)
			if err != nil {
				return res, storeFailure("commit", err)
			}

			batch.Queue(`INSERT INTO kg_nodes (`+nodeColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`, args...)
			res.NodesCreated++

			continue
		}

		if cur.Kind != n.Kind {
			return res, storeFailure("commit",
				fmt.Errorf("%s is %s in the target but %s in staging: %w", n.ID, cur.Kind, n.Kind, models.ErrKindConflict))
		}

		if cur.UnionProperties(n) == 0 {
			continue
		}

		args, err := nodeArgs(cur)
		if err != nil {
			return res, storeFailure("commit", err)
		}

		batch.Queue(`
			UPDATE kg_nodes
			SET properties = $4, xref_db = $5, xref_id = $6, xref_kind = $7, updated_at = now()
			WHERE id = $1 AND kind = $2 AND type = $3`, args...)
		res.NodesUpdated++
	}

	nodeStatements := batch.Len()

	for _, n := range nodes {
		queueEdges(batch, n.ID, n.OutboundEdges(), false)
		queueEdges(batch, n.ID, n.InverseEdges(), true)
	}

	edgeKinds := edgeFlags(nodes)

	br := tx.SendBatch(ctx, batch)

	for i := 0; i < batch.Len(); i++ {
		tag, err := br.Exec()
		if err != nil {
			br.Close()
			return models.CommitResult{}, storeFailure("writing staging graph", err)
		}

		if i >= nodeStatements && !edgeKinds[i-nodeStatements] {
			res.EdgesCreated += int(tag.RowsAffected())
		}
	}

	if err := br.Close(); err != nil {
		return models.CommitResult{}, storeFailure("writing staging graph", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return models.CommitResult{}, storeFailure("committing transaction", err)
	}

	s.Log.WithField("nodes_created", res.NodesCreated).
		WithField("nodes_updated", res.NodesUpdated).
		WithField("edges_created", res.EdgesCreated).
		Debug("staging graph committed")

	return res, nil
}

func queueEdges(batch *pgx.Batch, source string, edges []models.Edge, inverse bool) {
	position := map[string]int{}

	for _, e := range edges {
		batch.Queue(`
			INSERT INTO kg_edges (source, property, target, inverse, position)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT DO NOTHING`,
			source, e.Name, e.Target.ID, inverse, position[e.Name])
		position[e.Name]++
	}
}

// edgeFlags lists, in queue order, whether each edge statement is a
// back-reference.
func edgeFlags(nodes []*models.Node) []bool {
	var flags []bool

	for _, n := range nodes {
		for range n.OutboundEdges() {
			flags = append(flags, false)
		}

		for range n.InverseEdges() {
			flags = append(flags, true)
		}
	}

	return flags
}
