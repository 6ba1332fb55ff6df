package merge

import (
	"sort"
	"strings"

	"github.com/persistorai/pathmerge/internal/graph"
	"github.com/persistorai/pathmerge/internal/mapping"
	"github.com/persistorai/pathmerge/internal/models"
)

var nameKeys = []string{models.DataName, models.DataDisplayName, models.DataStandardName}

// nameIndex maps every lower-cased name of the canonical warehouse
// references of ns to the sorted accessions carrying it.
func nameIndex(warehouse *graph.Graph, ns mapping.Namespace) map[string][]string {
	sets := map[string]map[string]bool{}

	for _, ref := range warehouse.NodesOfKind(models.KindEntityReference) {
		if ref.Type != ns.ReferenceType || !ns.IsCanonical(ref.ID) {
			continue
		}

		acc := mapping.AccessionOf(ref.ID)

		for _, name := range names(ref) {
			if sets[name] == nil {
				sets[name] = map[string]bool{}
			}

			sets[name][acc] = true
		}
	}

	index := make(map[string][]string, len(sets))

	for name, set := range sets {
		accs := make([]string, 0, len(set))
		for acc := range set {
			accs = append(accs, acc)
		}

		sort.Strings(accs)
		index[name] = accs
	}

	return index
}

// names returns the distinct lower-cased names of n.
func names(n *models.Node) []string {
	seen := map[string]bool{}

	var out []string

	for _, key := range nameKeys {
		for _, v := range n.Values(key) {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "" || seen[v] {
				continue
			}

			seen[v] = true
			out = append(out, v)
		}
	}

	return out
}

// byName returns the sorted accessions any of n's names maps to in index.
func byName(index map[string][]string, n *models.Node) []string {
	if len(index) == 0 {
		return nil
	}

	set := map[string]bool{}

	for _, name := range names(n) {
		for _, acc := range index[name] {
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
