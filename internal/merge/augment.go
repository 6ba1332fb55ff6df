package merge

import (
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/pathmerge/internal/graph"
	"github.com/persistorai/pathmerge/internal/mapping"
	"github.com/persistorai/pathmerge/internal/metrics"
	"github.com/persistorai/pathmerge/internal/models"
)

// DefaultMaxXrefs caps the canonical xrefs added to one entity.
const DefaultMaxXrefs = 5

// RelationshipAdditionalInformation is the relationshipType of augmented xrefs.
const RelationshipAdditionalInformation = "additional-information"

// Augmenter adds canonical relationship xrefs to genes and simple physical
// entities that have no canonical entity reference, so they can be found
// by canonical accession after the merge. It never merges or removes nodes
// and never fails.
type Augmenter struct {
	// MaxXrefs caps the xrefs added per entity and namespace; 0 means no cap.
	MaxXrefs int

	warehouse *graph.Graph
	names     map[string]map[string][]string
	log       *logrus.Logger
}

// NewAugmenter creates an augmenter.
func NewAugmenter(maxXrefs int, log *logrus.Logger) *Augmenter {
	return &Augmenter{MaxXrefs: maxXrefs, log: log}
}

// WithWarehouse lets the augmenter read canonical references: their gene
// symbols are added next to the accessions, and entities of namespaces
// that match by name are mapped by name when no identifier maps. The
// warehouse must not be modified while the augmenter is in use.
func (a *Augmenter) WithWarehouse(warehouse *graph.Graph) *Augmenter {
	if warehouse == nil {
		return a
	}

	a.warehouse = warehouse
	a.names = map[string]map[string][]string{}

	for _, ns := range mapping.Namespaces() {
		if ns.MatchNames {
			a.names[ns.Name] = nameIndex(warehouse, ns)
		}
	}

	return a
}

// XrefID returns the node id used for the canonical relationship xref
// (db, accession). The same pair always yields the same id.
func XrefID(db, accession string) string {
	return "urn:pathmerge:xref:" + uuid.NewSHA1(uuid.NameSpaceURL, []byte(strings.ToLower(db)+":"+accession)).String()
}

// AugmentGraph augments every gene and physical entity of g against each
// table and returns the number of xrefs added.
func (a *Augmenter) AugmentGraph(g *graph.Graph, tables []*mapping.Table) int {
	added := 0

	for _, entity := range g.NodesOfKind(models.KindGene, models.KindPhysicalEntity) {
		for _, t := range tables {
			added += a.Augment(g, entity, t)
		}
	}

	return added
}

// Augment adds to entity a relationship xref for every accession its
// identifiers map to in table. Accessions derived from unification xrefs
// are used when there are any, relationship-derived ones otherwise. New
// xref nodes are added to g.
func (a *Augmenter) Augment(g *graph.Graph, entity *models.Node, table *mapping.Table) int {
	ns := table.Namespace()

	if entity.Kind == models.KindComplex || !ns.Accepts(entity) || hasCanonicalRef(entity, ns) {
		return 0
	}

	holder := xrefHolder(entity)

	accs := table.MapXrefs(holder.XrefsOfKind(models.XrefUnification))
	if len(accs) == 0 {
		accs = table.MapXrefs(holder.XrefsOfKind(models.XrefRelationship))
	}

	if len(accs) == 0 {
		accs = byName(a.names[ns.Name], holder)
	}

	fields := logrus.Fields{"entity": entity.ID, "namespace": ns.Name}

	switch {
	case len(accs) == 0:
		a.log.WithFields(fields).Debug("no canonical accession for entity")
		return 0
	case a.MaxXrefs > 0 && len(accs) > a.MaxXrefs:
		a.log.WithFields(fields).WithField("accessions", accs).Warn("too many canonical accessions, keeping the first ones")
		accs = accs[:a.MaxXrefs]
	case len(accs) > 1:
		a.log.WithFields(fields).WithField("accessions", accs).Debug("several canonical accessions for entity")
	}

	added := 0

	for _, acc := range accs {
		if entity.HasXref(ns.DB, acc) {
			continue
		}

		x, ok := a.findOrCreate(g, ns.DB, acc)
		if !ok {
			continue
		}

		if entity.AddEdge(models.PropXref, x) {
			x.AddInverse(models.InvXrefOf, entity)
			added++
		}
	}

	added += a.addSymbols(g, entity, holder, ns, accs)

	if added > 0 {
		metrics.AugmentedXrefsTotal.WithLabelValues(ns.Name).Add(float64(added))
	}

	return added
}

// addSymbols adds the gene symbols of the canonical references of accs,
// unless the entity already carries a symbol or there are more than
// MaxXrefs of them.
func (a *Augmenter) addSymbols(g *graph.Graph, entity, holder *models.Node, ns mapping.Namespace, accs []string) int {
	if a.warehouse == nil || ns.SymbolDB == "" || hasXrefDB(entity, ns.SymbolDB) || hasXrefDB(holder, ns.SymbolDB) {
		return 0
	}

	set := map[string]bool{}

	for _, acc := range accs {
		ref := a.warehouse.GetByID(ns.CanonicalID(acc))
		if ref == nil {
			continue
		}

		for _, x := range ref.Edges(models.PropXref) {
			if x.Xref != nil && x.Xref.ID != "" && strings.EqualFold(x.Xref.DB, ns.SymbolDB) {
				set[x.Xref.ID] = true
			}
		}
	}

	if len(set) == 0 || (a.MaxXrefs > 0 && len(set) > a.MaxXrefs) {
		return 0
	}

	symbols := make([]string, 0, len(set))
	for s := range set {
		symbols = append(symbols, s)
	}

	sort.Strings(symbols)

	added := 0

	for _, s := range symbols {
		x, ok := a.findOrCreate(g, ns.SymbolDB, s)
		if !ok {
			continue
		}

		if entity.AddEdge(models.PropXref, x) {
			x.AddInverse(models.InvXrefOf, entity)
			added++
		}
	}

	return added
}

// hasXrefDB reports whether n has a non-publication xref whose db starts
// with db, ignoring case.
func hasXrefDB(n *models.Node, db string) bool {
	db = strings.ToLower(db)

	for _, x := range n.Edges(models.PropXref) {
		if x.Xref != nil && x.Xref.Kind != models.XrefPublication && strings.HasPrefix(strings.ToLower(x.Xref.DB), db) {
			return true
		}
	}

	return false
}

func (a *Augmenter) findOrCreate(g *graph.Graph, db, acc string) (*models.Node, bool) {
	id := XrefID(db, acc)

	if x := g.GetByID(id); x != nil {
		if x.Kind != models.KindXref {
			a.log.WithField("id", id).Warn("xref id already used by another node")
			return nil, false
		}

		return x, true
	}

	x := models.NewXref(id, db, acc, models.XrefRelationship)
	x.AddValue(models.DataRelationshipType, RelationshipAdditionalInformation)

	if err := g.Add(x); err != nil {
		a.log.WithError(err).WithField("id", id).Warn("adding canonical xref")
		return nil, false
	}

	return x, true
}

func hasCanonicalRef(entity *models.Node, ns mapping.Namespace) bool {
	for _, r := range entity.Edges(models.PropEntityReference) {
		if ns.IsCanonical(r.ID) {
			return true
		}
	}

	return false
}

// xrefHolder returns the entity's reference when that reference carries
// xrefs, and the entity itself otherwise.
func xrefHolder(entity *models.Node) *models.Node {
	for _, r := range entity.Edges(models.PropEntityReference) {
		if len(r.Edges(models.PropXref)) > 0 {
			return r
		}
	}

	return entity
}
