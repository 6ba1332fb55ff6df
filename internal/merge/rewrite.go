package merge

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/persistorai/pathmerge/internal/graph"
	"github.com/persistorai/pathmerge/internal/mapping"
	"github.com/persistorai/pathmerge/internal/models"
)

// replacements maps origin instances to their staged replacements, keeping
// the order in which origins were matched. Entity references that matched
// nothing are kept in unresolved.
type replacements struct {
	order      []*models.Node
	to         map[*models.Node]*models.Node
	unresolved []*models.Node
}

func newReplacements() *replacements {
	return &replacements{to: map[*models.Node]*models.Node{}}
}

func (r *replacements) put(origin, replacement *models.Node) {
	if _, ok := r.to[origin]; !ok {
		r.order = append(r.order, origin)
	}

	r.to[origin] = replacement
}

func holders(nodes []*models.Node) []models.EdgeHolder {
	out := make([]models.EdgeHolder, len(nodes))
	for i, n := range nodes {
		out[i] = n
	}

	return out
}

// rewrite substitutes every outbound edge that points at a replaced node.
// It returns the number of edge values changed.
func rewrite(nodes []*models.Node, to map[*models.Node]*models.Node) int {
	if len(to) == 0 {
		return 0
	}

	changed := 0

	for _, h := range holders(nodes) {
		byName := map[string][]*models.Node{}
		dirty := map[string]bool{}

		var names []string

		for _, e := range h.OutboundEdges() {
			if _, ok := byName[e.Name]; !ok {
				names = append(names, e.Name)
			}

			t := e.Target
			if r, ok := to[t]; ok {
				t = r
				dirty[e.Name] = true
				changed++
			}

			byName[e.Name] = append(byName[e.Name], t)
		}

		for _, name := range names {
			if dirty[name] {
				h.SetEdge(name, byName[name])
			}
		}
	}

	return changed
}

// repairInverse drops back-references to removed nodes and returns how
// many were dropped.
func repairInverse(nodes []models.EdgeHolder, removed []*models.Node) int {
	if len(removed) == 0 {
		return 0
	}

	gone := make(map[*models.Node]bool, len(removed))
	for _, n := range removed {
		gone[n] = true
	}

	cleared := 0

	for _, h := range nodes {
		keep := map[string][]*models.Node{}
		dirty := map[string]bool{}

		for _, e := range h.InverseEdges() {
			if gone[e.Target] {
				dirty[e.Name] = true
				cleared++

				continue
			}

			keep[e.Name] = append(keep[e.Name], e.Target)
		}

		for name := range dirty {
			h.SetInverse(name, keep[name])
		}
	}

	return cleared
}

// cleanupXrefs drops cross-references without a db or id (publications are
// exempt) and lower-cases db names. It returns the number dropped.
func cleanupXrefs(source *graph.Graph) int {
	bad := map[*models.Node]bool{}

	for _, x := range source.NodesOfKind(models.KindXref) {
		if x.Xref == nil {
			continue
		}

		if x.Xref.Kind != models.XrefPublication && (x.Xref.DB == "" || x.Xref.ID == "") {
			bad[x] = true
			continue
		}

		x.Xref.DB = strings.ToLower(x.Xref.DB)
	}

	if len(bad) == 0 {
		return 0
	}

	for _, n := range source.Nodes() {
		xrefs := n.Edges(models.PropXref)

		kept := make([]*models.Node, 0, len(xrefs))
		for _, x := range xrefs {
			if !bad[x] {
				kept = append(kept, x)
			}
		}

		if len(kept) != len(xrefs) {
			n.SetEdge(models.PropXref, kept)
		}
	}

	for x := range bad {
		source.Remove(x)
	}

	return len(bad)
}

// breakPathwayCycles removes pathwayComponent edges that lead back to the
// pathway they start from. It returns the number of edges removed.
func breakPathwayCycles(source *graph.Graph) int {
	removed := 0

	for _, root := range source.NodesOfKind(models.KindPathway) {
		seen := map[*models.Node]bool{root: true}
		stack := []*models.Node{root}

		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			for _, c := range p.Edges(models.PropPathwayComponent) {
				if c == root {
					p.RemoveEdge(models.PropPathwayComponent, c)
					removed++

					continue
				}

				if c.Kind == models.KindPathway && !seen[c] {
					seen[c] = true
					stack = append(stack, c)
				}
			}
		}
	}

	return removed
}

// renameConflicts gives a fresh id to every source node whose id already
// names a node of a different kind in staging or in the target, and to
// every node holding a canonical id it is not the reference for. The new
// id is derived from the old id and the node's kind, so re-running a
// document renames it the same way.
func (e *Engine) renameConflicts(ctx context.Context, source, staging *graph.Graph) (int, error) {
	nodes := source.Nodes()

	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}

	kinds, err := e.target.Kinds(ctx, ids)
	if err != nil {
		return 0, err
	}

	renamed := 0

	for _, n := range nodes {
		if !conflicts(n, staging, kinds) && !squatsCanonical(n) {
			continue
		}

		newID := renamedID(n)
		for i := 2; source.Contains(newID) || staging.Contains(newID); i++ {
			newID = fmt.Sprintf("%s_%d", renamedID(n), i)
		}

		oldID := n.ID
		if err := source.ReplaceID(n, newID); err != nil {
			return renamed, err
		}

		n.AddValue(models.DataComment, "REPLACED "+oldID)
		renamed++

		e.log.WithField("old_id", oldID).WithField("new_id", newID).Warn("renamed node with conflicting id")
	}

	return renamed, nil
}

func conflicts(n *models.Node, staging *graph.Graph, kinds map[string]models.Kind) bool {
	if s := staging.GetByID(n.ID); s != nil && s != n && s.Kind != n.Kind {
		return true
	}

	k, ok := kinds[n.ID]

	return ok && k != n.Kind
}

// squatsCanonical reports whether n uses an id from a namespace's canonical
// space without being an entity reference of that namespace's type.
func squatsCanonical(n *models.Node) bool {
	for _, ns := range mapping.Namespaces() {
		if ns.IsCanonical(n.ID) {
			return n.Kind != models.KindEntityReference || n.Type != ns.ReferenceType
		}
	}

	return false
}

// renamedID derives the replacement id of n. Ids from a canonical space
// are moved out of it.
func renamedID(n *models.Node) string {
	sum := uuid.NewSHA1(uuid.NameSpaceURL, []byte(string(n.Kind)+" "+n.ID))
	suffix := strings.ReplaceAll(sum.String(), "-", "")[:12]

	for _, ns := range mapping.Namespaces() {
		if ns.IsCanonical(n.ID) {
			return "urn:pathmerge:" + ns.Name + ":" + mapping.AccessionOf(n.ID) + "_" + suffix
		}
	}

	return n.ID + "_" + suffix
}
