// Package mapping builds and serves identifier-to-canonical-accession tables
// derived from the warehouse graph.
package mapping

import (
	"fmt"
	"slices"
	"strings"

	"github.com/persistorai/pathmerge/internal/models"
)

// StandardPrefix is the URI prefix of normalised (resolvable) identifiers.
const StandardPrefix = "http://identifiers.org/"

// Namespace describes one mapping target: the kind of canonical entity
// reference it resolves to and how canonical ids are spelled.
type Namespace struct {
	Name          string
	DB            string
	URIPrefix     string
	ReferenceType string
	EntityTypes   []string

	// SymbolDB names the xref database of gene symbols carried by the
	// canonical references, if any.
	SymbolDB string
	// MatchNames allows resolving by exact (case-insensitive) name when
	// no identifier matched.
	MatchNames bool
}

// Built-in namespaces.
var (
	Protein = Namespace{
		Name:          "protein",
		DB:            "uniprot",
		URIPrefix:     StandardPrefix + "uniprot/",
		ReferenceType: "ProteinReference",
		EntityTypes:   []string{"Protein", "Dna", "Rna", "DnaRegion", "RnaRegion", "Gene"},
		SymbolDB:      "hgnc symbol",
	}

	Chemical = Namespace{
		Name:          "chemical",
		DB:            "chebi",
		URIPrefix:     StandardPrefix + "chebi/",
		ReferenceType: "SmallMoleculeReference",
		EntityTypes:   []string{"SmallMolecule"},
		MatchNames:    true,
	}
)

// Namespaces returns the built-in namespaces.
func Namespaces() []Namespace {
	return []Namespace{Protein, Chemical}
}

// Lookup returns the built-in namespace with the given name.
func Lookup(name string) (Namespace, error) {
	for _, ns := range Namespaces() {
		if strings.EqualFold(ns.Name, name) {
			return ns, nil
		}
	}

	return Namespace{}, fmt.Errorf("%q: %w", name, models.ErrUnknownNamespace)
}

// CanonicalID returns the canonical node id for an accession.
func (ns Namespace) CanonicalID(accession string) string {
	return ns.URIPrefix + accession
}

// IsCanonical reports whether id is spelled as a canonical id of ns.
func (ns Namespace) IsCanonical(id string) bool {
	return strings.HasPrefix(id, ns.URIPrefix) && len(id) > len(ns.URIPrefix)
}

// Accepts reports whether entity is a physical entity or gene whose
// identifiers can be mapped into ns. Untyped physical entities are accepted
// by every namespace.
func (ns Namespace) Accepts(entity *models.Node) bool {
	switch entity.Kind {
	case models.KindGene:
		return slices.Contains(ns.EntityTypes, "Gene")
	case models.KindPhysicalEntity:
		return entity.Type == "" || entity.Type == string(models.KindPhysicalEntity) ||
			slices.Contains(ns.EntityTypes, entity.Type)
	default:
		return false
	}
}

// AccessionOf returns the part of id after the last '/'.
func AccessionOf(id string) string {
	return id[strings.LastIndex(id, "/")+1:]
}
