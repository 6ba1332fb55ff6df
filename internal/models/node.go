// Package models defines data types for the pathway knowledge graph.
package models

import (
	"slices"
	"sort"
)

// Kind is the coarse type of a graph node.
type Kind string

// Node kinds.
const (
	KindEntityReference Kind = "EntityReference"
	KindPhysicalEntity  Kind = "PhysicalEntity"
	KindComplex         Kind = "Complex"
	KindGene            Kind = "Gene"
	KindInteraction     Kind = "Interaction"
	KindPathway         Kind = "Pathway"
	KindProvenance      Kind = "Provenance"
	KindVocabulary      Kind = "ControlledVocabulary"
	KindXref            Kind = "Xref"
	KindEntityFeature   Kind = "EntityFeature"
	KindBioSource       Kind = "BioSource"
	KindOther           Kind = "Other"
)

// Utility reports whether nodes of this kind only exist to be referred to,
// and are therefore removed once nothing points at them.
func (k Kind) Utility() bool {
	switch k {
	case KindEntityReference, KindProvenance, KindVocabulary, KindXref, KindEntityFeature, KindBioSource:
		return true
	default:
		return false
	}
}

// UtilityKinds lists every kind for which Kind.Utility is true.
func UtilityKinds() []Kind {
	return []Kind{KindEntityReference, KindProvenance, KindVocabulary, KindXref, KindEntityFeature, KindBioSource}
}

// Object property names used across the merge code.
const (
	PropXref             = "xref"
	PropEntityReference  = "entityReference"
	PropEntityFeature    = "entityFeature"
	PropFeature          = "feature"
	PropNotFeature       = "notFeature"
	PropMemberReference  = "memberEntityReference"
	PropPathwayComponent = "pathwayComponent"
	PropOrganism         = "organism"
	PropParticipant      = "participant"
	PropDataSource       = "dataSource"

	// Inverse (back-reference) property names.
	InvXrefOf            = "xrefOf"
	InvEntityReferenceOf = "entityReferenceOf"
	InvEntityFeatureOf   = "entityFeatureOf"
	InvFeatureOf         = "featureOf"

	// Data property names.
	DataName             = "name"
	DataDisplayName      = "displayName"
	DataStandardName     = "standardName"
	DataComment          = "comment"
	DataRelationshipType = "relationshipType"
)

// Edge is one outbound (or inverse) object-property value of a node.
type Edge struct {
	Name   string
	Target *Node
}

// EdgeHolder is implemented by every node so that rewrite and repair passes
// can walk and replace object properties without knowing the node type.
type EdgeHolder interface {
	OutboundEdges() []Edge
	SetEdge(name string, targets []*Node)
	InverseEdges() []Edge
	SetInverse(name string, sources []*Node)
}

var _ EdgeHolder = (*Node)(nil)

// Node is an addressable element of a pathway graph.
type Node struct {
	ID         string
	Kind       Kind
	Type       string
	Properties map[string][]string
	Xref       *XrefInfo

	edges   map[string][]*Node
	inverse map[string][]*Node
}

// NewNode creates an empty node.
func NewNode(kind Kind, typ, id string) *Node {
	if typ == "" {
		typ = string(kind)
	}

	return &Node{
		ID:         id,
		Kind:       kind,
		Type:       typ,
		Properties: map[string][]string{},
	}
}

// NewXref creates a cross-reference node.
func NewXref(id, db, externalID string, kind XrefKind) *Node {
	n := NewNode(KindXref, kind.TypeName(), id)
	n.Xref = &XrefInfo{DB: db, ID: externalID, Kind: kind}

	return n
}

// Values returns the values of a data property.
func (n *Node) Values(key string) []string {
	return n.Properties[key]
}

// AddValue appends v to a data property unless it is already present.
// It reports whether the property changed.
func (n *Node) AddValue(key, v string) bool {
	if n.Properties == nil {
		n.Properties = map[string][]string{}
	}

	if slices.Contains(n.Properties[key], v) {
		return false
	}

	n.Properties[key] = append(n.Properties[key], v)

	return true
}

// UnionProperties adds every data property value of other that n lacks.
// It returns the number of values added.
func (n *Node) UnionProperties(other *Node) int {
	added := 0

	for _, key := range sortedKeys(other.Properties) {
		for _, v := range other.Properties[key] {
			if n.AddValue(key, v) {
				added++
			}
		}
	}

	if n.Xref == nil && other.Xref != nil {
		x := *other.Xref
		n.Xref = &x
	}

	return added
}

// Edges returns the targets of one object property.
func (n *Node) Edges(name string) []*Node {
	return n.edges[name]
}

// EdgeNames returns the object property names that have values, sorted.
func (n *Node) EdgeNames() []string {
	return sortedKeys(n.edges)
}

// AddEdge links n to target via the named property. Targets are unique by
// instance and by id; it reports whether the edge was added.
func (n *Node) AddEdge(name string, target *Node) bool {
	if target == nil {
		return false
	}

	for _, t := range n.edges[name] {
		if t == target || t.ID == target.ID {
			return false
		}
	}

	if n.edges == nil {
		n.edges = map[string][]*Node{}
	}

	n.edges[name] = append(n.edges[name], target)

	return true
}

// RemoveEdge unlinks target (by instance) from the named property.
func (n *Node) RemoveEdge(name string, target *Node) bool {
	targets := n.edges[name]
	for i, t := range targets {
		if t == target {
			n.setList(&n.edges, name, slices.Delete(slices.Clone(targets), i, i+1))
			return true
		}
	}

	return false
}

// OutboundEdges returns every object-property value, ordered by property
// name and then insertion order.
func (n *Node) OutboundEdges() []Edge {
	return flatten(n.edges)
}

// SetEdge replaces all values of an object property. Duplicate targets
// (by id) are dropped; an empty slice removes the property.
func (n *Node) SetEdge(name string, targets []*Node) {
	n.setList(&n.edges, name, dedupe(targets))
}

// Inverse returns the back-references recorded under name.
func (n *Node) Inverse(name string) []*Node {
	return n.inverse[name]
}

// AddInverse records a back-reference. Nothing keeps these in sync with
// outbound edges; see the reference repair pass of the merge engine.
func (n *Node) AddInverse(name string, source *Node) {
	for _, s := range n.inverse[name] {
		if s == source {
			return
		}
	}

	if n.inverse == nil {
		n.inverse = map[string][]*Node{}
	}

	n.inverse[name] = append(n.inverse[name], source)
}

// InverseEdges returns all recorded back-references.
func (n *Node) InverseEdges() []Edge {
	return flatten(n.inverse)
}

// SetInverse replaces the back-references recorded under name.
func (n *Node) SetInverse(name string, sources []*Node) {
	n.setList(&n.inverse, name, dedupe(sources))
}

// XrefsOfKind returns the node's cross-references of the given kind, sorted
// by (db, id).
func (n *Node) XrefsOfKind(kind XrefKind) []*Node {
	var out []*Node

	for _, x := range n.edges[PropXref] {
		if x.Xref != nil && x.Xref.Kind == kind {
			out = append(out, x)
		}
	}

	SortXrefs(out)

	return out
}

// HasXref reports whether n already carries a non-publication xref with the
// given db and id (db compared case-insensitively).
func (n *Node) HasXref(db, id string) bool {
	for _, x := range n.edges[PropXref] {
		if x.Xref != nil && x.Xref.Kind != XrefPublication && x.Xref.Matches(db, id) {
			return true
		}
	}

	return false
}

func (n *Node) setList(m *map[string][]*Node, name string, list []*Node) {
	if len(list) == 0 {
		delete(*m, name)
		return
	}

	if *m == nil {
		*m = map[string][]*Node{}
	}

	(*m)[name] = list
}

func dedupe(nodes []*Node) []*Node {
	seen := make(map[string]bool, len(nodes))
	out := make([]*Node, 0, len(nodes))

	for _, t := range nodes {
		if t == nil || seen[t.ID] {
			continue
		}

		seen[t.ID] = true
		out = append(out, t)
	}

	return out
}

func flatten(m map[string][]*Node) []Edge {
	var out []Edge

	for _, name := range sortedKeys(m) {
		for _, t := range m[name] {
			out = append(out, Edge{Name: name, Target: t})
		}
	}

	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}
