package merge

import (
	"slices"

	"github.com/persistorai/pathmerge/internal/graph"
	"github.com/persistorai/pathmerge/internal/models"
)

// migrate carries what the replaced origins knew over to their
// replacements: data properties always; a "REPLACED <origin id>" comment,
// non-unification xrefs and, for entity references, entity features when
// the replacement is a different node; every remaining edge when it is the
// same node. Features equivalent
// to one the replacement already has are folded into it, and the source is
// pointed at the existing feature instead. Returns the source nodes that
// became unreferenced because of that folding.
func (e *Engine) migrate(
	source, staging *graph.Graph,
	repl *replacements,
	report *models.MergeReport,
) ([]*models.Node, error) {
	folded := map[*models.Node]*models.Node{}

	for _, origin := range repl.order {
		r := repl.to[origin]
		r.UnionProperties(origin)

		if origin.ID == r.ID {
			if err := moveAll(staging, origin, r); err != nil {
				return nil, err
			}

			continue
		}

		r.AddValue(models.DataComment, "REPLACED "+origin.ID)

		for _, x := range origin.Edges(models.PropXref) {
			if x.Xref == nil || x.Xref.Kind == models.XrefUnification {
				continue
			}

			if r.HasXref(x.Xref.DB, x.Xref.ID) {
				continue
			}

			staged, err := staging.Import(x)
			if err != nil {
				return nil, err
			}

			if r.AddEdge(models.PropXref, staged) {
				staged.AddInverse(models.InvXrefOf, r)
				report.MovedXrefs++
			}
		}

		if origin.Kind != models.KindEntityReference {
			continue
		}

		for _, f := range origin.Edges(models.PropEntityFeature) {
			if eq := equivalentFeature(r, f); eq != nil {
				for _, c := range f.Values(models.DataComment) {
					eq.AddValue(models.DataComment, c)
				}

				folded[f] = eq

				continue
			}

			staged, err := staging.Import(f)
			if err != nil {
				return nil, err
			}

			if r.AddEdge(models.PropEntityFeature, staged) {
				staged.AddInverse(models.InvEntityFeatureOf, r)
				report.MovedFeatures++
			}
		}
	}

	if len(folded) == 0 {
		return nil, nil
	}

	rewrite(source.Nodes(), folded)

	candidates := make([]*models.Node, 0, len(folded))
	for f := range folded {
		candidates = append(candidates, f)
	}

	return source.RemoveIfDangling(candidates), nil
}

// moveAll copies every outbound edge of origin onto r, which shares its id.
func moveAll(staging *graph.Graph, origin, r *models.Node) error {
	for _, e := range origin.OutboundEdges() {
		staged, err := staging.Import(e.Target)
		if err != nil {
			return err
		}

		r.AddEdge(e.Name, staged)
	}

	return nil
}

// equivalentFeature returns the feature of ref that has f's type and the
// same data properties apart from comments.
func equivalentFeature(ref, f *models.Node) *models.Node {
	for _, g := range ref.Edges(models.PropEntityFeature) {
		if g == f || g.ID == f.ID {
			return nil
		}

		if g.Type == f.Type && sameData(g, f) {
			return g
		}
	}

	return nil
}

func sameData(a, b *models.Node) bool {
	keys := func(n *models.Node) []string {
		var out []string

		for k, vs := range n.Properties {
			if k != models.DataComment && len(vs) > 0 {
				out = append(out, k)
			}
		}

		slices.Sort(out)

		return out
	}

	ka, kb := keys(a), keys(b)
	if !slices.Equal(ka, kb) {
		return false
	}

	for _, k := range ka {
		va, vb := slices.Clone(a.Properties[k]), slices.Clone(b.Properties[k])
		slices.Sort(va)
		slices.Sort(vb)

		if !slices.Equal(va, vb) {
			return false
		}
	}

	return true
}
