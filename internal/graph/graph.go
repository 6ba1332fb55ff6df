// Package graph provides the in-memory pathway graph used for warehouse,
// source documents, staging graphs and the in-memory target store.
//
// A Graph is not safe for concurrent use. Documents and staging graphs are
// private to one merge call; shared graphs are guarded by their owner.
package graph

import (
	"fmt"
	"sort"

	"github.com/persistorai/pathmerge/internal/models"
)

// Graph is a set of nodes addressed by id.
type Graph struct {
	nodes map[string]*models.Node
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{nodes: map[string]*models.Node{}}
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// GetByID returns the node with the given id, or nil.
func (g *Graph) GetByID(id string) *models.Node {
	return g.nodes[id]
}

// Contains reports whether a node with the given id exists.
func (g *Graph) Contains(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// AddNew creates and adds an empty node.
func (g *Graph) AddNew(kind models.Kind, typ, id string) (*models.Node, error) {
	n := models.NewNode(kind, typ, id)
	if err := g.Add(n); err != nil {
		return nil, err
	}

	return n, nil
}

// Add inserts n. Its edges are not followed.
func (g *Graph) Add(n *models.Node) error {
	if n.ID == "" {
		return models.ErrMissingID
	}

	if existing, ok := g.nodes[n.ID]; ok {
		if existing == n {
			return nil
		}

		return fmt.Errorf("adding %s: %w", n.ID, models.ErrDuplicateID)
	}

	g.nodes[n.ID] = n

	return nil
}

// Remove deletes n if it is the instance stored under its id.
func (g *Graph) Remove(n *models.Node) bool {
	if g.nodes[n.ID] != n {
		return false
	}

	delete(g.nodes, n.ID)

	return true
}

// ReplaceID re-keys n under newID.
func (g *Graph) ReplaceID(n *models.Node, newID string) error {
	if g.nodes[n.ID] != n {
		return fmt.Errorf("re-keying %s: %w", n.ID, models.ErrNodeNotFound)
	}

	if g.Contains(newID) {
		return fmt.Errorf("re-keying %s to %s: %w", n.ID, newID, models.ErrDuplicateID)
	}

	delete(g.nodes, n.ID)
	n.ID = newID
	g.nodes[newID] = n

	return nil
}

// Nodes returns all nodes in ascending id order.
func (g *Graph) Nodes() []*models.Node {
	out := make([]*models.Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}

	sortByID(out)

	return out
}

// NodesOfKind returns the nodes of any of the given kinds in ascending id order.
func (g *Graph) NodesOfKind(kinds ...models.Kind) []*models.Node {
	want := kindSet(kinds)

	var out []*models.Node

	for _, n := range g.nodes {
		if want[n.Kind] {
			out = append(out, n)
		}
	}

	sortByID(out)

	return out
}

// Referrers counts, per node instance, how many outbound edges of nodes in
// this graph point at it. Identity is by pointer so that a node and its
// replacement sharing an id are told apart.
func (g *Graph) Referrers() map[*models.Node]int {
	refs := make(map[*models.Node]int, len(g.nodes))

	for _, n := range g.nodes {
		for _, e := range n.OutboundEdges() {
			refs[e.Target]++
		}
	}

	return refs
}

// RemoveDanglingOfKind removes nodes of the given kinds that have no
// referrers, repeating until no more can be removed (a removed node may
// have been the last referrer of another). It returns the removed nodes in
// ascending id order.
func (g *Graph) RemoveDanglingOfKind(kinds ...models.Kind) []*models.Node {
	want := kindSet(kinds)

	var removed []*models.Node

	for {
		refs := g.Referrers()

		var round []*models.Node

		for _, n := range g.nodes {
			if want[n.Kind] && refs[n] == 0 {
				round = append(round, n)
			}
		}

		if len(round) == 0 {
			break
		}

		for _, n := range round {
			delete(g.nodes, n.ID)
		}

		removed = append(removed, round...)
	}

	sortByID(removed)

	return removed
}

// RemoveIfDangling removes those candidates that are still in the graph,
// are of a utility kind and have no referrers, repeating while removals
// free up further candidates. It returns the removed nodes in ascending id
// order.
func (g *Graph) RemoveIfDangling(candidates []*models.Node) []*models.Node {
	var removed []*models.Node

	for {
		refs := g.Referrers()
		changed := false

		for _, n := range candidates {
			if g.nodes[n.ID] == n && n.Kind.Utility() && refs[n] == 0 {
				delete(g.nodes, n.ID)
				removed = append(removed, n)
				changed = true
			}
		}

		if !changed {
			break
		}
	}

	sortByID(removed)

	return removed
}

// Closure returns root and every node reachable from it over outbound
// edges, in ascending id order.
func Closure(roots ...*models.Node) []*models.Node {
	seen := map[*models.Node]bool{}
	stack := append([]*models.Node(nil), roots...)

	var out []*models.Node

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if n == nil || seen[n] {
			continue
		}

		seen[n] = true
		out = append(out, n)

		for _, e := range n.OutboundEdges() {
			if !seen[e.Target] {
				stack = append(stack, e.Target)
			}
		}
	}

	sortByID(out)

	return out
}

func kindSet(kinds []models.Kind) map[models.Kind]bool {
	set := make(map[models.Kind]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}

	return set
}

func sortByID(nodes []*models.Node) {
	sort.SliceStable(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
}
