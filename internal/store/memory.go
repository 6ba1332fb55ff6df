package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/persistorai/pathmerge/internal/graph"
	"github.com/persistorai/pathmerge/internal/models"
)

// MemoryTarget keeps the merged graph in process memory. It is used for
// local runs that write the result to a file, and by tests.
type MemoryTarget struct {
	mu sync.RWMutex
	g  *graph.Graph
}

// NewMemoryTarget creates a target holding g. A nil g starts empty.
func NewMemoryTarget(g *graph.Graph) *MemoryTarget {
	if g == nil {
		g = graph.New()
	}

	return &MemoryTarget{g: g}
}

// LoadMemoryTarget reads a previously written graph file.
func LoadMemoryTarget(path string) (*MemoryTarget, error) {
	g, err := graph.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading target graph: %w", err)
	}

	return NewMemoryTarget(g), nil
}

// GetByID returns a detached copy of the node with its direct neighbours.
func (m *MemoryTarget) GetByID(_ context.Context, id string) (*models.Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := m.g.GetByID(id)
	if n == nil {
		return nil, nil
	}

	return detach(n), nil
}

// Contains reports whether a node with the given id exists.
func (m *MemoryTarget) Contains(_ context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.g.Contains(id), nil
}

// Kinds returns the kind of every id that exists.
func (m *MemoryTarget) Kinds(_ context.Context, ids []string) (map[string]models.Kind, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]models.Kind, len(ids))

	for _, id := range ids {
		if n := m.g.GetByID(id); n != nil {
			out[id] = n.Kind
		}
	}

	return out, nil
}

// Commit merges staging into the held graph. A kind conflict leaves the
// graph unchanged.
func (m *MemoryTarget) Commit(_ context.Context, staging *graph.Graph) (models.CommitResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	res, err := m.g.Merge(staging)
	if err != nil {
		return models.CommitResult{}, storeFailure("commit", err)
	}

	return res, nil
}

// Snapshot returns a deep copy of the held graph.
func (m *MemoryTarget) Snapshot() *graph.Graph {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.g.Clone()
}

// Export returns a deep copy of the held graph.
func (m *MemoryTarget) Export(_ context.Context) (*graph.Graph, error) {
	return m.Snapshot(), nil
}

// Count returns the number of nodes and forward edges.
func (m *MemoryTarget) Count(_ context.Context) (nodes, edges int64, err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, n := range m.g.Nodes() {
		nodes++
		edges += int64(len(n.OutboundEdges()))
	}

	return nodes, edges, nil
}

// Save writes the held graph to path. A ".gz" suffix compresses it.
func (m *MemoryTarget) Save(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := graph.WriteFile(path, m.g); err != nil {
		return fmt.Errorf("saving target graph: %w", err)
	}

	return nil
}

// detach copies n and the nodes its edges point at. The copied neighbours
// carry values but no edges of their own.
func detach(n *models.Node) *models.Node {
	c := copyValues(n)
	copies := map[*models.Node]*models.Node{n: c}

	get := func(t *models.Node) *models.Node {
		if tc, ok := copies[t]; ok {
			return tc
		}

		tc := copyValues(t)
		copies[t] = tc

		return tc
	}

	for _, e := range n.OutboundEdges() {
		c.AddEdge(e.Name, get(e.Target))
	}

	for _, e := range n.InverseEdges() {
		c.AddInverse(e.Name, get(e.Target))
	}

	return c
}

func copyValues(n *models.Node) *models.Node {
	c := models.NewNode(n.Kind, n.Type, n.ID)
	c.UnionProperties(n)

	return c
}
