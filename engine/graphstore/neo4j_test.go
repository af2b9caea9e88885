package graphstore

import (
	"context"
	"errors"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// fakeResult implements the result seam over a fixed slice of records.
type fakeResult struct {
	records []*neo4j.Record
	pos     int
	runErr  error
}

func (f *fakeResult) Next(context.Context) bool {
	if f.pos >= len(f.records) {
		return false
	}
	f.pos++
	return true
}

func (f *fakeResult) Record() *neo4j.Record {
	return f.records[f.pos-1]
}

// fakeRunner implements the runner seam, returning a scripted result or
// error for every Run call.
type fakeRunner struct {
	res       *fakeResult
	runErr    error
	closeErr  error
	lastQuery string
	lastArgs  map[string]any
}

func (f *fakeRunner) Run(_ context.Context, cypher string, params map[string]any) (result, error) {
	f.lastQuery = cypher
	f.lastArgs = params
	if f.runErr != nil {
		return nil, f.runErr
	}
	return f.res, nil
}

func (f *fakeRunner) Close(context.Context) error { return f.closeErr }

func newProviderWithRunner(r *fakeRunner) *Neo4jProvider {
	g := &Neo4jProvider{}
	g.newSession = func(context.Context) runner { return r }
	return g
}

func countRecord(key string, n int64) *neo4j.Record {
	return &neo4j.Record{Keys: []string{key}, Values: []any{n}}
}

func nodeRecord(props map[string]any) *neo4j.Record {
	return &neo4j.Record{Keys: []string{"n"}, Values: []any{dbtype.Node{Props: props}}}
}

func stringRecord(key, value string) *neo4j.Record {
	return &neo4j.Record{Keys: []string{key}, Values: []any{value}}
}

func TestCreateNodeRequiresID(t *testing.T) {
	g := newProviderWithRunner(&fakeRunner{res: &fakeResult{}})
	err := g.CreateNode(context.Background(), "Customer", map[string]any{"name": "Acme"})
	if err == nil {
		t.Fatal("expected error when props has no id")
	}
}

func TestCreateNodeSuccess(t *testing.T) {
	r := &fakeRunner{res: &fakeResult{}}
	g := newProviderWithRunner(r)
	err := g.CreateNode(context.Background(), "Customer", map[string]any{"id": "1", "name": "Acme"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.lastArgs["id"] != "1" {
		t.Fatalf("lastArgs[id] = %v", r.lastArgs["id"])
	}
}

func TestUpdateNode(t *testing.T) {
	r := &fakeRunner{res: &fakeResult{}}
	g := newProviderWithRunner(r)
	if err := g.UpdateNode(context.Background(), "Customer", "1", map[string]any{"name": "Acme"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDeleteNodeFound(t *testing.T) {
	r := &fakeRunner{res: &fakeResult{records: []*neo4j.Record{countRecord("deleted", 1)}}}
	g := newProviderWithRunner(r)
	ok, err := g.DeleteNode(context.Background(), "Customer", "1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected deleted=true")
	}
}

func TestDeleteNodeNotFound(t *testing.T) {
	r := &fakeRunner{res: &fakeResult{records: []*neo4j.Record{countRecord("deleted", 0)}}}
	g := newProviderWithRunner(r)
	ok, err := g.DeleteNode(context.Background(), "Customer", "1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected deleted=false")
	}
}

func TestDeleteNodeRunError(t *testing.T) {
	r := &fakeRunner{runErr: errors.New("boom")}
	g := newProviderWithRunner(r)
	if _, err := g.DeleteNode(context.Background(), "Customer", "1"); err == nil {
		t.Fatal("expected error")
	}
}

func TestGetNodeFound(t *testing.T) {
	r := &fakeRunner{res: &fakeResult{records: []*neo4j.Record{nodeRecord(map[string]any{"name": "Acme"})}}}
	g := newProviderWithRunner(r)
	props, found, err := g.GetNode(context.Background(), "Customer", "1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found {
		t.Fatal("expected found=true")
	}
	if props["name"] != "Acme" {
		t.Fatalf("props = %+v", props)
	}
}

func TestGetNodeNotFound(t *testing.T) {
	r := &fakeRunner{res: &fakeResult{}}
	g := newProviderWithRunner(r)
	_, found, err := g.GetNode(context.Background(), "Customer", "1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Fatal("expected found=false")
	}
}

func TestNodeExistsDelegatesToGetNode(t *testing.T) {
	r := &fakeRunner{res: &fakeResult{records: []*neo4j.Record{nodeRecord(map[string]any{"name": "Acme"})}}}
	g := newProviderWithRunner(r)
	ok, err := g.NodeExists(context.Background(), "Customer", "1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected exists=true")
	}
}

func TestCreateRelationshipMissingEndpoint(t *testing.T) {
	r := &fakeRunner{res: &fakeResult{records: []*neo4j.Record{countRecord("created", 0)}}}
	g := newProviderWithRunner(r)
	ok, err := g.CreateRelationship(context.Background(), "Customer", "1", "Order", "2", "placed", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected skipped (created=false) on missing endpoint")
	}
}

func TestCreateRelationshipSuccess(t *testing.T) {
	r := &fakeRunner{res: &fakeResult{records: []*neo4j.Record{countRecord("created", 1)}}}
	g := newProviderWithRunner(r)
	ok, err := g.CreateRelationship(context.Background(), "Customer", "1", "Order", "2", "placed", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected created=true")
	}
}

func TestDeleteRelationship(t *testing.T) {
	r := &fakeRunner{res: &fakeResult{records: []*neo4j.Record{countRecord("deleted", 1)}}}
	g := newProviderWithRunner(r)
	ok, err := g.DeleteRelationship(context.Background(), "Customer", "1", "Order", "2", "placed")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected deleted=true")
	}
}

func TestQueryFlattensRows(t *testing.T) {
	r := &fakeRunner{res: &fakeResult{records: []*neo4j.Record{
		{Keys: []string{"count"}, Values: []any{int64(5)}},
	}}}
	g := newProviderWithRunner(r)
	rows, err := g.Query(context.Background(), "MATCH (n) RETURN count(n) AS count", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 || rows[0]["count"] != int64(5) {
		t.Fatalf("rows = %+v", rows)
	}
}

func TestQueryRunError(t *testing.T) {
	r := &fakeRunner{runErr: errors.New("boom")}
	g := newProviderWithRunner(r)
	if _, err := g.Query(context.Background(), "MATCH (n) RETURN n", nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestGetSchema(t *testing.T) {
	calls := 0
	records := [][]*neo4j.Record{
		{stringRecord("label", "Customer"), stringRecord("label", "Order")},
		{stringRecord("relationshipType", "PLACED")},
		{stringRecord("propertyKey", "name")},
	}
	g := &Neo4jProvider{}
	g.newSession = func(context.Context) runner {
		idx := calls
		calls++
		return &fakeRunner{res: &fakeResult{records: records[idx]}}
	}

	schema, err := g.GetSchema(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(schema.Labels) != 2 || schema.Labels[0] != "Customer" {
		t.Fatalf("labels = %+v", schema.Labels)
	}
	if len(schema.RelationshipTypes) != 1 || schema.RelationshipTypes[0] != "PLACED" {
		t.Fatalf("relTypes = %+v", schema.RelationshipTypes)
	}
	if len(schema.PropertyKeys) != 1 || schema.PropertyKeys[0] != "name" {
		t.Fatalf("propKeys = %+v", schema.PropertyKeys)
	}
}

func TestSampleNodes(t *testing.T) {
	r := &fakeRunner{res: &fakeResult{records: []*neo4j.Record{
		nodeRecord(map[string]any{"id": "1"}),
		nodeRecord(map[string]any{"id": "2"}),
	}}}
	g := newProviderWithRunner(r)
	out, err := g.SampleNodes(context.Background(), "Customer", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2", len(out))
	}
}

func TestSanitizeLabelFallsBackOnEmpty(t *testing.T) {
	if got := sanitizeLabel("Customer-1"); got != "Customer1" {
		t.Fatalf("sanitizeLabel = %q", got)
	}
	if got := sanitizeLabel("!!!"); got != "Entity" {
		t.Fatalf("sanitizeLabel fallback = %q", got)
	}
}

func TestSanitizeRelTypeUppercases(t *testing.T) {
	if got := sanitizeRelType("placed-order"); got != "PLACEDORDER" {
		t.Fatalf("sanitizeRelType = %q", got)
	}
	if got := sanitizeRelType(""); got != "RELATED_TO" {
		t.Fatalf("sanitizeRelType fallback = %q", got)
	}
}

func TestToInt64(t *testing.T) {
	if toInt64(int64(5)) != 5 {
		t.Fatal("int64 case failed")
	}
	if toInt64(3) != 3 {
		t.Fatal("int case failed")
	}
	if toInt64("nope") != 0 {
		t.Fatal("default case should return 0")
	}
}

func TestSortStrings(t *testing.T) {
	s := []string{"c", "a", "b"}
	sortStrings(s)
	if s[0] != "a" || s[1] != "b" || s[2] != "c" {
		t.Fatalf("sortStrings = %+v", s)
	}
}
