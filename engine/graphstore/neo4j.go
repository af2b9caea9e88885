package graphstore

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// result is the minimal interface needed from a neo4j result, kept as a
// seam so tests can fake a session without a live driver.
type result interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
}

// runner is the minimal interface needed from a neo4j session.
type runner interface {
	Run(ctx context.Context, cypher string, params map[string]any) (result, error)
	Close(ctx context.Context) error
}

// Neo4jProvider implements Provider against a live Neo4j database.
type Neo4jProvider struct {
	driver     neo4j.DriverWithContext
	newSession func(ctx context.Context) runner // overridden in tests
}

// NewNeo4jProvider creates a Neo4jProvider backed by driver.
func NewNeo4jProvider(driver neo4j.DriverWithContext) *Neo4jProvider {
	return &Neo4jProvider{driver: driver}
}

var _ Provider = (*Neo4jProvider)(nil)

type neo4jSessionAdapter struct {
	sess neo4j.SessionWithContext
}

func (a *neo4jSessionAdapter) Run(ctx context.Context, cypher string, params map[string]any) (result, error) {
	return a.sess.Run(ctx, cypher, params)
}

func (a *neo4jSessionAdapter) Close(ctx context.Context) error {
	return a.sess.Close(ctx)
}

func (g *Neo4jProvider) session(ctx context.Context) runner {
	if g.newSession != nil {
		return g.newSession(ctx)
	}
	return &neo4jSessionAdapter{sess: g.driver.NewSession(ctx, neo4j.SessionConfig{})}
}

// CreateNode upserts a node via MERGE on (label, id), matching the
// teacher's convention that "create" on an already-declared identity is
// idempotent (spec: node is "created when the entity is ingested, mutated
// only by a sync with the same identity").
func (g *Neo4jProvider) CreateNode(ctx context.Context, label string, props map[string]any) error {
	sess := g.session(ctx)
	defer sess.Close(ctx)

	id, ok := props["id"]
	if !ok {
		return fmt.Errorf("graphstore: CreateNode: props missing id")
	}
	cypher := fmt.Sprintf(`MERGE (n:%s {id: $id}) SET n += $props`, sanitizeLabel(label))
	_, err := sess.Run(ctx, cypher, map[string]any{"id": id, "props": props})
	return err
}

// UpdateNode sets properties on an existing node.
func (g *Neo4jProvider) UpdateNode(ctx context.Context, label, id string, props map[string]any) error {
	sess := g.session(ctx)
	defer sess.Close(ctx)

	cypher := fmt.Sprintf(`MATCH (n:%s {id: $id}) SET n += $props`, sanitizeLabel(label))
	_, err := sess.Run(ctx, cypher, map[string]any{"id": id, "props": props})
	return err
}

// DeleteNode removes a node by identity, detaching any relationships.
func (g *Neo4jProvider) DeleteNode(ctx context.Context, label, id string) (bool, error) {
	sess := g.session(ctx)
	defer sess.Close(ctx)

	cypher := fmt.Sprintf(`MATCH (n:%s {id: $id}) DETACH DELETE n RETURN count(n) AS deleted`, sanitizeLabel(label))
	res, err := sess.Run(ctx, cypher, map[string]any{"id": id})
	if err != nil {
		return false, err
	}
	if !res.Next(ctx) {
		return false, nil
	}
	n, ok := res.Record().Get("deleted")
	if !ok {
		return false, nil
	}
	return toInt64(n) > 0, nil
}

// NodeExists checks for a node by (label, id).
func (g *Neo4jProvider) NodeExists(ctx context.Context, label, id string) (bool, error) {
	_, found, err := g.GetNode(ctx, label, id)
	return found, err
}

// GetNode returns a node's persisted properties, or found=false if absent.
func (g *Neo4jProvider) GetNode(ctx context.Context, label, id string) (map[string]any, bool, error) {
	sess := g.session(ctx)
	defer sess.Close(ctx)

	cypher := fmt.Sprintf(`MATCH (n:%s {id: $id}) RETURN n`, sanitizeLabel(label))
	res, err := sess.Run(ctx, cypher, map[string]any{"id": id})
	if err != nil {
		return nil, false, err
	}
	if !res.Next(ctx) {
		return nil, false, nil
	}
	node, err := nodeProps(res.Record())
	if err != nil {
		return nil, false, err
	}
	return node, true, nil
}

// CreateRelationship creates an edge between two nodes if both endpoints
// exist. Returns false (not an error) if either endpoint is missing
// — spec: "attempting to create with a missing endpoint is recorded as
// skipped (not failed)".
func (g *Neo4jProvider) CreateRelationship(ctx context.Context, fromLabel, fromID, toLabel, toID, relType string, props map[string]any) (bool, error) {
	sess := g.session(ctx)
	defer sess.Close(ctx)

	cypher := fmt.Sprintf(
		`MATCH (a:%s {id: $fromID}), (b:%s {id: $toID})
		 MERGE (a)-[r:%s]->(b)
		 SET r += $props
		 RETURN count(r) AS created`,
		sanitizeLabel(fromLabel), sanitizeLabel(toLabel), sanitizeRelType(relType),
	)
	res, err := sess.Run(ctx, cypher, map[string]any{
		"fromID": fromID, "toID": toID, "props": props,
	})
	if err != nil {
		return false, err
	}
	if !res.Next(ctx) {
		return false, nil
	}
	n, _ := res.Record().Get("created")
	return toInt64(n) > 0, nil
}

// DeleteRelationship removes an edge of the given type between two nodes.
func (g *Neo4jProvider) DeleteRelationship(ctx context.Context, fromLabel, fromID, toLabel, toID, relType string) (bool, error) {
	sess := g.session(ctx)
	defer sess.Close(ctx)

	cypher := fmt.Sprintf(
		`MATCH (a:%s {id: $fromID})-[r:%s]->(b:%s {id: $toID})
		 DELETE r
		 RETURN count(r) AS deleted`,
		sanitizeLabel(fromLabel), sanitizeRelType(relType), sanitizeLabel(toLabel),
	)
	res, err := sess.Run(ctx, cypher, map[string]any{"fromID": fromID, "toID": toID})
	if err != nil {
		return false, err
	}
	if !res.Next(ctx) {
		return false, nil
	}
	n, _ := res.Record().Get("deleted")
	return toInt64(n) > 0, nil
}

// Query runs an arbitrary Cypher query (generated/validated upstream) and
// flattens rows into Row maps.
func (g *Neo4jProvider) Query(ctx context.Context, text string, params map[string]any) ([]Row, error) {
	sess := g.session(ctx)
	defer sess.Close(ctx)

	res, err := sess.Run(ctx, text, params)
	if err != nil {
		return nil, err
	}
	var rows []Row
	for res.Next(ctx) {
		rec := res.Record()
		row := make(Row, len(rec.Keys))
		for _, k := range rec.Keys {
			v, _ := rec.Get(k)
			row[k] = flattenValue(v)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// GetSchema discovers labels, relationship types, and property keys.
func (g *Neo4jProvider) GetSchema(ctx context.Context) (Schema, error) {
	labels, err := g.queryStrings(ctx, "CALL db.labels() YIELD label RETURN label", "label")
	if err != nil {
		return Schema{}, fmt.Errorf("graphstore: get labels: %w", err)
	}
	relTypes, err := g.queryStrings(ctx, "CALL db.relationshipTypes() YIELD relationshipType RETURN relationshipType", "relationshipType")
	if err != nil {
		return Schema{}, fmt.Errorf("graphstore: get relationship types: %w", err)
	}
	propKeys, err := g.queryStrings(ctx, "CALL db.propertyKeys() YIELD propertyKey RETURN propertyKey", "propertyKey")
	if err != nil {
		return Schema{}, fmt.Errorf("graphstore: get property keys: %w", err)
	}
	sortStrings(labels)
	sortStrings(relTypes)
	sortStrings(propKeys)
	return Schema{Labels: labels, RelationshipTypes: relTypes, PropertyKeys: propKeys}, nil
}

// SampleNodes reads up to limit nodes of a label, ordered by id.
func (g *Neo4jProvider) SampleNodes(ctx context.Context, label string, limit int) ([]map[string]any, error) {
	sess := g.session(ctx)
	defer sess.Close(ctx)

	cypher := fmt.Sprintf(`MATCH (n:%s) RETURN n ORDER BY n.id LIMIT $limit`, sanitizeLabel(label))
	res, err := sess.Run(ctx, cypher, map[string]any{"limit": limit})
	if err != nil {
		return nil, err
	}
	var out []map[string]any
	for res.Next(ctx) {
		props, err := nodeProps(res.Record())
		if err != nil {
			return nil, err
		}
		out = append(out, props)
	}
	return out, nil
}

func (g *Neo4jProvider) queryStrings(ctx context.Context, cypher, col string) ([]string, error) {
	sess := g.session(ctx)
	defer sess.Close(ctx)

	res, err := sess.Run(ctx, cypher, nil)
	if err != nil {
		return nil, err
	}
	var out []string
	for res.Next(ctx) {
		v, ok := res.Record().Get(col)
		if !ok {
			continue
		}
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func nodeProps(rec *neo4j.Record) (map[string]any, error) {
	node, _, err := neo4j.GetRecordValue[dbtype.Node](rec, "n")
	if err != nil {
		return nil, err
	}
	return node.Props, nil
}

func flattenValue(v any) any {
	switch t := v.(type) {
	case dbtype.Node:
		return t.Props
	case dbtype.Relationship:
		return t.Props
	default:
		return v
	}
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return 0
	}
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// sanitizeLabel ensures a label is a safe, bare Cypher identifier. Labels
// and relationship types cannot be parameterized in Cypher, so they must
// be validated before being interpolated into query text.
func sanitizeLabel(label string) string {
	return sanitizeIdent(label, "Entity")
}

// sanitizeRelType ensures a relationship type is a safe Cypher identifier,
// uppercased per Neo4j convention.
func sanitizeRelType(t string) string {
	safe := sanitizeIdent(t, "RELATED_TO")
	out := make([]byte, len(safe))
	for i := 0; i < len(safe); i++ {
		c := safe[i]
		if c >= 'a' && c <= 'z' {
			c -= 32
		}
		out[i] = c
	}
	return string(out)
}

func sanitizeIdent(s, fallback string) string {
	safe := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			safe = append(safe, c)
		}
	}
	if len(safe) == 0 {
		return fallback
	}
	return string(safe)
}
