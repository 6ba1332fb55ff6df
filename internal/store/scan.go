package store

import (
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/persistorai/pathmerge/internal/models"
)

// nodeColumns lists the columns selected for node queries.
const nodeColumns = `id, kind, type, properties, xref_db, xref_id, xref_kind`

// joinedNodeColumns is nodeColumns qualified with the "n" alias.
const joinedNodeColumns = `n.id, n.kind, n.type, n.properties, n.xref_db, n.xref_id, n.xref_kind`

// scanNode scans a single row into a models.Node without edges.
func scanNode(scan func(dest ...any) error, extra ...any) (*models.Node, error) {
	var (
		id, kind, typ         string
		props                 []byte
		xrefDB, xrefID, xKind *string
	)

	dest := append(append([]any{}, extra...), &id, &kind, &typ, &props, &xrefDB, &xrefID, &xKind)
	if err := scan(dest...); err != nil {
		return nil, err
	}

	n := models.NewNode(models.Kind(kind), typ, id)

	if err := json.Unmarshal(props, &n.Properties); err != nil {
		return nil, fmt.Errorf("unmarshalling node properties: %w", err)
	}

	if n.Properties == nil {
		n.Properties = map[string][]string{}
	}

	if xrefDB != nil && xrefID != nil && xKind != nil {
		n.Xref = &models.XrefInfo{DB: *xrefDB, ID: *xrefID, Kind: models.XrefKind(*xKind)}
	}

	return n, nil
}

// collectNodes scans all rows into a map keyed by id.
func collectNodes(rows pgx.Rows) (map[string]*models.Node, error) {
	nodes := map[string]*models.Node{}

	for rows.Next() {
		n, err := scanNode(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning node row: %w", err)
		}

		nodes[n.ID] = n
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating node rows: %w", err)
	}

	return nodes, nil
}

// nodeArgs returns the insert/update arguments of n in nodeColumns order.
func nodeArgs(n *models.Node) ([]any, error) {
	props := n.Properties
	if props == nil {
		props = map[string][]string{}
	}

	data, err := json.Marshal(props)
	if err != nil {
		return nil, fmt.Errorf("marshalling properties of %s: %w", n.ID, err)
	}

	var xrefDB, xrefID, xrefKind *string
	if n.Xref != nil {
		kind := string(n.Xref.Kind)
		xrefDB, xrefID, xrefKind = &n.Xref.DB, &n.Xref.ID, &kind
	}

	return []any{n.ID, string(n.Kind), n.Type, data, xrefDB, xrefID, xrefKind}, nil
}
