package store

import (
	"context"
	"fmt"

	"github.com/persistorai/pathmerge/internal/graph"
	"github.com/persistorai/pathmerge/internal/models"
)

// Export reads the whole stored graph in one read-only transaction, so the
// result is a consistent snapshot even while other runs commit.
func (s *TargetStore) Export(ctx context.Context) (*graph.Graph, error) {
	ctx, cancel := context.WithTimeout(ctx, commitTimeout)
	defer cancel()

	tx, err := s.beginReadTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // read-only transaction.

	rows, err := tx.Query(ctx, `SELECT `+nodeColumns+` FROM kg_nodes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying nodes for export: %w", err)
	}

	nodes, err := collectNodes(rows)
	rows.Close()

	if err != nil {
		return nil, err
	}

	g := graph.New()
	for _, n := range nodes {
		if err := g.Add(n); err != nil {
			return nil, fmt.Errorf("export: %w", err)
		}
	}

	edgeRows, err := tx.Query(ctx, `
		SELECT source, property, target, inverse
		FROM kg_edges
		ORDER BY source, inverse, property, position`)
	if err != nil {
		return nil, fmt.Errorf("querying edges for export: %w", err)
	}
	defer edgeRows.Close()

	for edgeRows.Next() {
		var (
			source, property, target string
			inverse                  bool
		)

		if err := edgeRows.Scan(&source, &property, &target, &inverse); err != nil {
			return nil, fmt.Errorf("scanning export edge: %w", err)
		}

		if err := linkExported(g, source, property, target, inverse); err != nil {
			return nil, err
		}
	}

	if err := edgeRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating export edges: %w", err)
	}

	s.Log.WithField("nodes", g.Len()).Info("target exported")

	return g, nil
}

// linkExported adds one stored edge between two nodes already in g.
func linkExported(g *graph.Graph, source, property, target string, inverse bool) error {
	s, t := g.GetByID(source), g.GetByID(target)
	if s == nil || t == nil {
		return fmt.Errorf("export edge %s -%s-> %s: %w", source, property, target, models.ErrUnknownReference)
	}

	if inverse {
		s.AddInverse(property, t)
	} else {
		s.AddEdge(property, t)
	}

	return nil
}
