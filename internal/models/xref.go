package models

import (
	"sort"
	"strings"
)

// XrefKind classifies a cross-reference.
type XrefKind string

// Cross-reference kinds. Unification asserts identity, relationship a looser
// association; publication xrefs never take part in identifier mapping.
const (
	XrefUnification  XrefKind = "unification"
	XrefRelationship XrefKind = "relationship"
	XrefPublication  XrefKind = "publication"
)

// TypeName returns the concrete node type used for xref nodes of this kind.
func (k XrefKind) TypeName() string {
	switch k {
	case XrefUnification:
		return "UnificationXref"
	case XrefRelationship:
		return "RelationshipXref"
	case XrefPublication:
		return "PublicationXref"
	default:
		return "Xref"
	}
}

// Valid reports whether k is one of the known kinds.
func (k XrefKind) Valid() bool {
	return k == XrefUnification || k == XrefRelationship || k == XrefPublication
}

// XrefInfo holds the attributes of a cross-reference node.
type XrefInfo struct {
	DB   string   `json:"db"`
	ID   string   `json:"id"`
	Kind XrefKind `json:"kind"`
}

// Matches compares db case-insensitively and id exactly.
func (x *XrefInfo) Matches(db, id string) bool {
	return strings.EqualFold(x.DB, db) && x.ID == id
}

// Usable reports whether the xref can take part in identifier mapping.
func (x *XrefInfo) Usable() bool {
	return x.Kind != XrefPublication && x.DB != "" && x.ID != ""
}

// SortXrefs orders xref nodes by lower-cased db, then id, then node id.
func SortXrefs(xrefs []*Node) {
	sort.SliceStable(xrefs, func(i, j int) bool {
		a, b := xrefs[i].Xref, xrefs[j].Xref
		da, db := strings.ToLower(a.DB), strings.ToLower(b.DB)

		if da != db {
			return da < db
		}

		if a.ID != b.ID {
			return a.ID < b.ID
		}

		return xrefs[i].ID < xrefs[j].ID
	})
}
