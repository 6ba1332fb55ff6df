package merge

import (
	"github.com/sirupsen/logrus"

	"github.com/persistorai/pathmerge/internal/graph"
	"github.com/persistorai/pathmerge/internal/models"
)

// Types of entity references that name a biopolymer of some organism.
var sequenceReferenceTypes = map[string]bool{
	"ProteinReference":   true,
	"DnaReference":       true,
	"RnaReference":       true,
	"DnaRegionReference": true,
	"RnaRegionReference": true,
}

// Physical entity types whose organism is given by their entity reference.
var sequenceEntityTypes = map[string]bool{
	"Protein":   true,
	"Dna":       true,
	"Rna":       true,
	"DnaRegion": true,
	"RnaRegion": true,
}

// organismOf returns the organism of a gene or sequence reference, or nil.
func organismOf(n *models.Node) *models.Node {
	if orgs := n.Edges(models.PropOrganism); len(orgs) > 0 {
		return orgs[0]
	}

	return nil
}

// supported reports whether one of the organism's xrefs is a supported
// taxonomy id.
func (e *Engine) supported(org *models.Node) bool {
	if org == nil {
		return false
	}

	for _, x := range org.Edges(models.PropXref) {
		if x.Xref != nil && e.taxa[x.Xref.ID] {
			return true
		}
	}

	return false
}

// dropUnsupportedReferences removes unresolved sequence references that no
// entity uses directly (dangling, or only members of a generic reference)
// and whose organism is unknown or not supported. It returns every node it
// removed. Nothing is removed when no taxonomy ids are configured.
func (e *Engine) dropUnsupportedReferences(name string, source *graph.Graph, unresolved []*models.Node) []*models.Node {
	if len(e.taxa) == 0 || len(unresolved) == 0 {
		return nil
	}

	used := map[*models.Node]bool{}

	for _, n := range source.Nodes() {
		for _, r := range n.Edges(models.PropEntityReference) {
			used[r] = true
		}
	}

	var removed, candidates []*models.Node

	for _, er := range unresolved {
		if !sequenceReferenceTypes[er.Type] || used[er] || e.supported(organismOf(er)) {
			continue
		}

		if !source.Remove(er) {
			continue
		}

		for _, n := range source.Nodes() {
			for _, edge := range n.EdgeNames() {
				n.RemoveEdge(edge, er)
			}
		}

		removed = append(removed, er)
		candidates = append(candidates, graph.Closure(er)...)

		e.log.WithFields(logrus.Fields{"document": name, "reference": er.ID}).
			Info("removed unresolved reference of an unsupported organism")
	}

	return append(removed, source.RemoveIfDangling(candidates)...)
}

// filterInteractions removes molecular interactions none of whose
// participants can belong to a supported organism, together with the
// participants nothing else uses. It returns every node it removed.
func (e *Engine) filterInteractions(name string, source *graph.Graph) []*models.Node {
	if len(e.taxa) == 0 {
		return nil
	}

	var removed, candidates []*models.Node

	for _, mi := range source.NodesOfKind(models.KindInteraction) {
		if mi.Type != "MolecularInteraction" || e.keepInteraction(mi) {
			continue
		}

		source.Remove(mi)
		removed = append(removed, mi)

		refs := source.Referrers()

		for _, p := range mi.Edges(models.PropParticipant) {
			if refs[p] == 0 && source.Remove(p) {
				removed = append(removed, p)
				candidates = append(candidates, graph.Closure(p)...)
			}
		}

		e.log.WithFields(logrus.Fields{"document": name, "interaction": mi.ID}).
			Info("removed interaction of unsupported organisms")
	}

	return append(removed, source.RemoveIfDangling(candidates)...)
}

// keepInteraction reports whether some participant may come from a
// supported organism. Participants of unknown organism, complexes and
// processes keep the interaction; small molecules are neutral.
func (e *Engine) keepInteraction(mi *models.Node) bool {
	for _, p := range mi.Edges(models.PropParticipant) {
		switch {
		case p.Kind == models.KindGene:
			if org := organismOf(p); org == nil || e.supported(org) {
				return true
			}
		case p.Kind == models.KindPhysicalEntity && p.Type == "SmallMolecule":
			continue
		case p.Kind == models.KindPhysicalEntity && sequenceEntityTypes[p.Type]:
			refs := p.Edges(models.PropEntityReference)
			if len(refs) == 0 {
				return true
			}

			if org := organismOf(refs[0]); org == nil || e.supported(org) {
				return true
			}
		default:
			return true
		}
	}

	return false
}
