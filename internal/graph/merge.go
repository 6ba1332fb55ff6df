package graph

import (
	"fmt"

	"github.com/persistorai/pathmerge/internal/models"
)

// Merge copies every node of other (and anything reachable from it) into
// g. Nodes whose id is new are copied; nodes that already exist keep their
// values and gain the values and edges they lack. Merging the same input
// twice changes nothing the second time.
//
// A node whose kind differs from the existing node with the same id fails
// the whole merge before g is modified.
func (g *Graph) Merge(other *Graph) (models.CommitResult, error) {
	return g.mergeNodes(Closure(other.Nodes()...))
}

// Import merges the closure of n into g and returns g's instance of n.
func (g *Graph) Import(n *models.Node) (*models.Node, error) {
	if _, err := g.mergeNodes(Closure(n)); err != nil {
		return nil, err
	}

	return g.nodes[n.ID], nil
}

// Clone returns a deep copy of g.
func (g *Graph) Clone() *Graph {
	c := New()
	c.mergeNodes(Closure(g.Nodes()...)) //nolint:errcheck // an empty graph cannot conflict.

	return c
}

func (g *Graph) mergeNodes(nodes []*models.Node) (models.CommitResult, error) {
	var res models.CommitResult

	if err := g.checkKinds(nodes); err != nil {
		return res, err
	}

	for _, n := range nodes {
		existing, ok := g.nodes[n.ID]
		if !ok {
			g.nodes[n.ID] = shallowCopy(n)
			res.NodesCreated++

			continue
		}

		if existing != n && existing.UnionProperties(n) > 0 {
			res.NodesUpdated++
		}
	}

	for _, n := range nodes {
		local := g.nodes[n.ID]
		if local == n {
			continue
		}

		for _, e := range n.OutboundEdges() {
			if local.AddEdge(e.Name, g.nodes[e.Target.ID]) {
				res.EdgesCreated++
			}
		}

		for _, e := range n.InverseEdges() {
			if t := g.nodes[e.Target.ID]; t != nil {
				local.AddInverse(e.Name, t)
			}
		}
	}

	return res, nil
}

func (g *Graph) checkKinds(nodes []*models.Node) error {
	seen := make(map[string]models.Kind, len(nodes))

	for _, n := range nodes {
		if k, ok := seen[n.ID]; ok && k != n.Kind {
			return fmt.Errorf("%s is both %s and %s: %w", n.ID, k, n.Kind, models.ErrKindConflict)
		}

		seen[n.ID] = n.Kind

		if existing, ok := g.nodes[n.ID]; ok && existing.Kind != n.Kind {
			return fmt.Errorf("%s is %s here but %s in the merged graph: %w",
				n.ID, existing.Kind, n.Kind, models.ErrKindConflict)
		}
	}

	return nil
}

func shallowCopy(n *models.Node) *models.Node {
	c := models.NewNode(n.Kind, n.Type, n.ID)
	c.UnionProperties(n)

	return c
}
