package mapping

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"

	"github.com/persistorai/pathmerge/internal/models"
)

// Table is an immutable identifier -> canonical accession table for one
// namespace, together with the identifiers excluded as ambiguous. An
// identifier is in exactly one of the two.
type Table struct {
	ns        Namespace
	entries   map[string]string
	ambiguous map[string][]string
}

// NewTable rebuilds a table from stored entries. An identifier listed in
// both entries and ambiguous is kept as ambiguous only.
func NewTable(ns Namespace, entries []models.MappingEntry, ambiguous []models.AmbiguousEntry) *Table {
	t := &Table{
		ns:        ns,
		entries:   make(map[string]string, len(entries)),
		ambiguous: make(map[string][]string, len(ambiguous)),
	}

	for _, a := range ambiguous {
		accs := slices.Clone(a.Accessions)
		sort.Strings(accs)
		t.ambiguous[a.SourceID] = slices.Compact(accs)
	}

	for _, e := range entries {
		if _, bad := t.ambiguous[e.SourceID]; !bad {
			t.entries[e.SourceID] = e.Accession
		}
	}

	return t
}

// Namespace returns the table's target namespace.
func (t *Table) Namespace() Namespace {
	return t.ns
}

// Len returns the number of unambiguous entries.
func (t *Table) Len() int {
	return len(t.entries)
}

// AmbiguousLen returns the number of ambiguous identifiers.
func (t *Table) AmbiguousLen() int {
	return len(t.ambiguous)
}

// Lookup returns the accession a (normalised) identifier maps to.
func (t *Table) Lookup(id string) (string, bool) {
	acc, ok := t.entries[id]
	return acc, ok
}

// Ambiguous returns the conflicting accessions of an excluded identifier.
func (t *Table) Ambiguous(id string) ([]string, bool) {
	accs, ok := t.ambiguous[id]
	return slices.Clone(accs), ok
}

// Map normalises id using the db hint and looks it up. It returns no
// accession for unknown or ambiguous identifiers and exactly one otherwise.
func (t *Table) Map(db, id string) []string {
	if id == "" || SkipDB(db) {
		return nil
	}

	if acc, ok := t.entries[NormalizeID(db, id)]; ok {
		return []string{acc}
	}

	return nil
}

// MapXrefs maps every usable xref node and returns the distinct accessions
// found, sorted.
func (t *Table) MapXrefs(xrefs []*models.Node) []string {
	set := map[string]bool{}

	for _, x := range xrefs {
		if x.Xref == nil || !x.Xref.Usable() {
			continue
		}

		for _, acc := range t.Map(x.Xref.DB, x.Xref.ID) {
			set[acc] = true
		}
	}

	out := make([]string, 0, len(set))
	for acc := range set {
		out = append(out, acc)
	}

	sort.Strings(out)

	return out
}

// Entries returns the unambiguous entries sorted by source id.
func (t *Table) Entries() []models.MappingEntry {
	out := make([]models.MappingEntry, 0, len(t.entries))
	for id, acc := range t.entries {
		out = append(out, models.MappingEntry{SourceID: id, Accession: acc})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].SourceID < out[j].SourceID })

	return out
}

// AmbiguousEntries returns the ambiguous identifiers sorted by source id.
func (t *Table) AmbiguousEntries() []models.AmbiguousEntry {
	out := make([]models.AmbiguousEntry, 0, len(t.ambiguous))
	for id, accs := range t.ambiguous {
		out = append(out, models.AmbiguousEntry{SourceID: id, Accessions: slices.Clone(accs)})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].SourceID < out[j].SourceID })

	return out
}

type tableJSON struct {
	Namespace string                  `json:"namespace"`
	Entries   []models.MappingEntry   `json:"entries"`
	Ambiguous []models.AmbiguousEntry `json:"ambiguous"`
}

// MarshalJSON encodes the table with entries in a fixed order, so equal
// tables encode to identical bytes.
func (t *Table) MarshalJSON() ([]byte, error) {
	return json.Marshal(tableJSON{
		Namespace: t.ns.Name,
		Entries:   t.Entries(),
		Ambiguous: t.AmbiguousEntries(),
	})
}

// UnmarshalTable decodes a table written by MarshalJSON.
func UnmarshalTable(data []byte) (*Table, error) {
	var raw tableJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding mapping table: %w", err)
	}

	ns, err := Lookup(raw.Namespace)
	if err != nil {
		return nil, err
	}

	return NewTable(ns, raw.Entries, raw.Ambiguous), nil
}
