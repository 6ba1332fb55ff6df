package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/pathmerge/internal/graph"
	"github.com/persistorai/pathmerge/internal/models"
)

const neo4jConnectTimeout = 10 * time.Second

// Neo4jConfig holds connection settings for a Neo4jTarget.
type Neo4jConfig struct {
	URI         string
	User        string
	Password    string
	Database    string
	MaxPoolSize int
}

// Neo4jTarget stores the merged graph in Neo4j. Nodes are :PathNode with
// their data properties encoded as a JSON string; edges are :LINK
// relationships carrying the property name, an inverse flag and a position.
type Neo4jTarget struct {
	driver   neo4j.DriverWithContext
	database string
	log      *logrus.Logger
}

// NewNeo4jTarget connects to Neo4j and ensures the id constraint exists.
func NewNeo4jTarget(ctx context.Context, cfg Neo4jConfig, log *logrus.Logger) (*Neo4jTarget, error) {
	maxPool := cfg.MaxPoolSize
	if maxPool <= 0 {
		maxPool = 50
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""), func(c *neo4j.Config) {
		c.MaxConnectionPoolSize = maxPool
		c.SocketConnectTimeout = neo4jConnectTimeout
	})
	if err != nil {
		return nil, fmt.Errorf("creating neo4j driver: %w", err)
	}

	vctx, cancel := context.WithTimeout(ctx, neo4jConnectTimeout)
	defer cancel()

	if err := driver.VerifyConnectivity(vctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verifying neo4j connectivity: %w", err)
	}

	t := &Neo4jTarget{driver: driver, database: cfg.Database, log: log}

	if err := t.ensureSchema(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, err
	}

	return t, nil
}

func (t *Neo4jTarget) ensureSchema(ctx context.Context) error {
	_, err := t.query(ctx,
		`CREATE CONSTRAINT path_node_id IF NOT EXISTS FOR (n:PathNode) REQUIRE n.id IS UNIQUE`, nil)
	if err != nil {
		return fmt.Errorf("creating neo4j constraint: %w", err)
	}

	return nil
}

func (t *Neo4jTarget) query(ctx context.Context, cypher string, params map[string]any) (*neo4j.EagerResult, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	return neo4j.ExecuteQuery(ctx, t.driver, cypher, params,
		neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithDatabase(t.database))
}

// HealthCheck verifies the server is reachable.
func (t *Neo4jTarget) HealthCheck(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if err := t.driver.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("neo4j health check: %w", err)
	}

	return nil
}

// Close releases the driver.
func (t *Neo4jTarget) Close(ctx context.Context) error {
	return t.driver.Close(ctx)
}

// GetByID returns a detached node with its direct neighbours, or (nil, nil)
// for an unknown id.
func (t *Neo4jTarget) GetByID(ctx context.Context, id string) (*models.Node, error) {
	res, err := t.query(ctx, `
		MATCH (n:PathNode {id: $id})
		OPTIONAL MATCH (n)-[r:LINK]->(m:PathNode)
		RETURN n, r.name AS name, r.inverse AS inverse, m
		ORDER BY r.inverse, r.name, r.position`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("getting node %s: %w", id, err)
	}

	if len(res.Records) == 0 {
		return nil, nil
	}

	var n *models.Node

	for _, rec := range res.Records {
		if n == nil {
			raw, _ := rec.Get("n")

			node, ok := raw.(neo4j.Node)
			if !ok {
				return nil, fmt.Errorf("getting node %s: unexpected value %T", id, raw)
			}

			if n, err = fromNeo4jNode(node); err != nil {
				return nil, err
			}
		}

		raw, _ := rec.Get("m")

		other, ok := raw.(neo4j.Node)
		if !ok {
			continue
		}

		target, err := fromNeo4jNode(other)
		if err != nil {
			return nil, err
		}

		if target.ID == n.ID {
			target = n
		}

		name, _ := rec.Get("name")
		inverse, _ := rec.Get("inverse")

		prop, _ := name.(string)
		if isInverse, _ := inverse.(bool); isInverse {
			n.AddInverse(prop, target)
		} else {
			n.AddEdge(prop, target)
		}
	}

	return n, nil
}

// Kinds returns the kind of every id that exists.
func (t *Neo4jTarget) Kinds(ctx context.Context, ids []string) (map[string]models.Kind, error) {
	res, err := t.query(ctx, `
		UNWIND $ids AS id
		MATCH (n:PathNode {id: id})
		RETURN n.id AS id, n.kind AS kind`, map[string]any{"ids": ids})
	if err != nil {
		return nil, fmt.Errorf("querying node kinds: %w", err)
	}

	out := make(map[string]models.Kind, len(res.Records))

	for _, rec := range res.Records {
		id, _ := rec.Get("id")
		kind, _ := rec.Get("kind")

		idStr, _ := id.(string)
		kindStr, _ := kind.(string)
		out[idStr] = models.Kind(kindStr)
	}

	return out, nil
}

// Count returns the number of nodes and forward links.
func (t *Neo4jTarget) Count(ctx context.Context) (nodes, edges int64, err error) {
	res, err := t.query(ctx, `
		MATCH (n:PathNode)
		OPTIONAL MATCH (n)-[r:LINK {inverse: false}]->()
		RETURN count(DISTINCT n) AS nodes, count(r) AS edges`, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("counting graph: %w", err)
	}

	if len(res.Records) == 0 {
		return 0, 0, nil
	}

	n, _ := res.Records[0].Get("nodes")
	e, _ := res.Records[0].Get("edges")
	nodes, _ = n.(int64)
	edges, _ = e.(int64)

	return nodes, edges, nil
}

// Export reads the whole stored graph in one read transaction.
func (t *Neo4jTarget) Export(ctx context.Context) (*graph.Graph, error) {
	ctx, cancel := context.WithTimeout(ctx, commitTimeout)
	defer cancel()

	session := t.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: t.database,
	})
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return exportNeo4j(ctx, tx)
	})
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}

	g, _ := out.(*graph.Graph)
	t.log.WithField("nodes", g.Len()).Info("target exported")

	return g, nil
}

func exportNeo4j(ctx context.Context, tx neo4j.ManagedTransaction) (*graph.Graph, error) {
	res, err := tx.Run(ctx, `MATCH (n:PathNode) RETURN n ORDER BY n.id`, nil)
	if err != nil {
		return nil, err
	}

	records, err := res.Collect(ctx)
	if err != nil {
		return nil, err
	}

	g := graph.New()

	for _, rec := range records {
		raw, _ := rec.Get("n")

		node, ok := raw.(neo4j.Node)
		if !ok {
			return nil, fmt.Errorf("unexpected node value %T", raw)
		}

		n, err := fromNeo4jNode(node)
		if err != nil {
			return nil, err
		}

		if err := g.Add(n); err != nil {
			return nil, err
		}
	}

	res, err = tx.Run(ctx, `
		MATCH (s:PathNode)-[r:LINK]->(t:PathNode)
		RETURN s.id AS source, r.name AS name, r.inverse AS inverse, t.id AS target
		ORDER BY source, inverse, name, r.position`, nil)
	if err != nil {
		return nil, err
	}

	records, err = res.Collect(ctx)
	if err != nil {
		return nil, err
	}

	for _, rec := range records {
		source, _ := rec.Get("source")
		name, _ := rec.Get("name")
		inverse, _ := rec.Get("inverse")
		target, _ := rec.Get("target")

		src, _ := source.(string)
		prop, _ := name.(string)
		tgt, _ := target.(string)
		isInverse, _ := inverse.(bool)

		if err := linkExported(g, src, prop, tgt, isInverse); err != nil {
			return nil, err
		}
	}

	return g, nil
}

// Commit merges staging into Neo4j in one write transaction.
func (t *Neo4jTarget) Commit(ctx context.Context, staging *graph.Graph) (models.CommitResult, error) {
	ctx, cancel := context.WithTimeout(ctx, commitTimeout)
	defer cancel()

	session := t.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: t.database,
	})
	defer session.Close(ctx)

	out, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return commitNeo4j(ctx, tx, staging)
	})
	if err != nil {
		return models.CommitResult{}, storeFailure("commit", err)
	}

	res, _ := out.(models.CommitResult)

	t.log.WithField("nodes_created", res.NodesCreated).
		WithField("nodes_updated", res.NodesUpdated).
		WithField("edges_created", res.EdgesCreated).
		Debug("staging graph committed to neo4j")

	return res, nil
}

func commitNeo4j(ctx context.Context, tx neo4j.ManagedTransaction, staging *graph.Graph) (models.CommitResult, error) {
	var res models.CommitResult

	nodes := staging.Nodes()

	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}

	result, err := tx.Run(ctx, `
		UNWIND $ids AS id
		MATCH (n:PathNode {id: id})
		RETURN n`, map[string]any{"ids": ids})
	if err != nil {
		return res, err
	}

	records, err := result.Collect(ctx)
	if err != nil {
		return res, err
	}

	existing := make(map[string]*models.Node, len(records))

	for _, rec := range records {
		raw, _ := rec.Get("n")

		node, ok := raw.(neo4j.Node)
		if !ok {
			continue
		}

		n, err := fromNeo4jNode(node)
		if err != nil {
			return res, err
		}

		existing[n.ID] = n
	}

	rows := make([]map[string]any, 0, len(nodes))

	for _, n := range nodes {
		cur, ok := existing[n.ID]
		if !ok {
			row, err := neo4jRow(n)
			if err != nil {
				return res, err
			}

			rows = append(rows, row)
			res.NodesCreated++

			continue
		}

		if cur.Kind != n.Kind {
			return res, fmt.Errorf("%s is %s in the target but %s in staging: %w", n.ID, cur.Kind, n.Kind, models.ErrKindConflict)
		}

		if cur.UnionProperties(n) == 0 {
			continue
		}

		row, err := neo4jRow(cur)
		if err != nil {
			return res, err
		}

		rows = append(rows, row)
		res.NodesUpdated++
	}

	if len(rows) > 0 {
		if err := runConsume(ctx, tx, `
			UNWIND $rows AS r
			MERGE (n:PathNode {id: r.id})
			SET n += r`, map[string]any{"rows": rows}); err != nil {
			return res, err
		}
	}

	var forward, inverse []map[string]any

	for _, n := range nodes {
		forward = appendLinks(forward, n.ID, n.OutboundEdges())
		inverse = appendLinks(inverse, n.ID, n.InverseEdges())
	}

	for _, set := range []struct {
		links   []map[string]any
		inverse bool
	}{{forward, false}, {inverse, true}} {
		if len(set.links) == 0 {
			continue
		}

		result, err := tx.Run(ctx, `
			UNWIND $links AS l
			MATCH (s:PathNode {id: l.source})
			MATCH (t:PathNode {id: l.target})
			MERGE (s)-[r:LINK {name: l.name, inverse: $inverse}]->(t)
			ON CREATE SET r.position = l.position`,
			map[string]any{"links": set.links, "inverse": set.inverse})
		if err != nil {
			return res, err
		}

		summary, err := result.Consume(ctx)
		if err != nil {
			return res, err
		}

		if !set.inverse {
			res.EdgesCreated = summary.Counters().RelationshipsCreated()
		}
	}

	return res, nil
}

func runConsume(ctx context.Context, tx neo4j.ManagedTransaction, cypher string, params map[string]any) error {
	result, err := tx.Run(ctx, cypher, params)
	if err != nil {
		return err
	}

	_, err = result.Consume(ctx)

	return err
}

func appendLinks(links []map[string]any, source string, edges []models.Edge) []map[string]any {
	position := map[string]int{}

	for _, e := range edges {
		links = append(links, map[string]any{
			"source":   source,
			"name":     e.Name,
			"target":   e.Target.ID,
			"position": position[e.Name],
		})
		position[e.Name]++
	}

	return links
}

func neo4jRow(n *models.Node) (map[string]any, error) {
	props, err := json.Marshal(n.Properties)
	if err != nil {
		return nil, fmt.Errorf("encoding properties of %s: %w", n.ID, err)
	}

	row := map[string]any{
		"id":         n.ID,
		"kind":       string(n.Kind),
		"type":       n.Type,
		"properties": string(props),
	}

	if n.Xref != nil {
		row["xref_db"] = n.Xref.DB
		row["xref_id"] = n.Xref.ID
		row["xref_kind"] = string(n.Xref.Kind)
	}

	return row, nil
}

func fromNeo4jNode(node neo4j.Node) (*models.Node, error) {
	str := func(key string) string {
		v, _ := node.Props[key].(string)
		return v
	}

	n := models.NewNode(models.Kind(str("kind")), str("type"), str("id"))

	if raw := str("properties"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &n.Properties); err != nil {
			return nil, fmt.Errorf("decoding properties of %s: %w", n.ID, err)
		}
	}

	if kind := str("xref_kind"); kind != "" {
		n.Xref = &models.XrefInfo{DB: str("xref_db"), ID: str("xref_id"), Kind: models.XrefKind(kind)}
	}

	return n, nil
}
