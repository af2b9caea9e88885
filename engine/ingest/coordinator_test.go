package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/WessleyAI/knowcore/engine/domain"
	"github.com/WessleyAI/knowcore/engine/graphstore"
	"github.com/WessleyAI/knowcore/engine/vectorstore"
)

type fakeGraph struct {
	nodes        map[string]map[string]any
	createErr    error
	deleteErr    error
	existsErr    error
	relCreateErr error
	deleteCalls  []string
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{nodes: make(map[string]map[string]any)}
}

func key(label, id string) string { return label + ":" + id }

func (f *fakeGraph) CreateNode(_ context.Context, label string, props map[string]any) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.nodes[key(label, props["id"].(string))] = props
	return nil
}

func (f *fakeGraph) UpdateNode(_ context.Context, label, id string, props map[string]any) error {
	f.nodes[key(label, id)] = props
	return nil
}

func (f *fakeGraph) DeleteNode(_ context.Context, label, id string) (bool, error) {
	f.deleteCalls = append(f.deleteCalls, key(label, id))
	if f.deleteErr != nil {
		return false, f.deleteErr
	}
	_, existed := f.nodes[key(label, id)]
	delete(f.nodes, key(label, id))
	return existed, nil
}

func (f *fakeGraph) NodeExists(_ context.Context, label, id string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	_, ok := f.nodes[key(label, id)]
	return ok, nil
}

func (f *fakeGraph) GetNode(_ context.Context, label, id string) (map[string]any, bool, error) {
	n, ok := f.nodes[key(label, id)]
	return n, ok, nil
}

func (f *fakeGraph) CreateRelationship(context.Context, string, string, string, string, string, map[string]any) (bool, error) {
	if f.relCreateErr != nil {
		return false, f.relCreateErr
	}
	return true, nil
}

func (f *fakeGraph) DeleteRelationship(context.Context, string, string, string, string, string) (bool, error) {
	return true, nil
}

func (f *fakeGraph) Query(context.Context, string, map[string]any) ([]graphstore.Row, error) {
	return nil, nil
}
func (f *fakeGraph) GetSchema(context.Context) (graphstore.Schema, error) { return graphstore.Schema{}, nil }
func (f *fakeGraph) SampleNodes(context.Context, string, int) ([]map[string]any, error) {
	return nil, nil
}

var _ graphstore.Provider = (*fakeGraph)(nil)

type fakeVector struct {
	points      map[string]vectorstore.Point
	upsertErr   error
	deleteErr   error
	upsertCalls int
}

func newFakeVector() *fakeVector {
	return &fakeVector{points: make(map[string]vectorstore.Point)}
}

func (v *fakeVector) CollectionExists(context.Context, string) (bool, error) { return true, nil }
func (v *fakeVector) CreateCollection(context.Context, string, int) error    { return nil }
func (v *fakeVector) Upsert(_ context.Context, _ string, points []vectorstore.Point) error {
	v.upsertCalls++
	if v.upsertErr != nil {
		return v.upsertErr
	}
	for _, p := range points {
		v.points[p.ID] = p
	}
	return nil
}
func (v *fakeVector) Search(context.Context, string, []float32, int, float32, map[string]string) ([]vectorstore.Hit, error) {
	return nil, nil
}
func (v *fakeVector) DeletePoints(_ context.Context, _ string, ids []string) error {
	if v.deleteErr != nil {
		return v.deleteErr
	}
	for _, id := range ids {
		delete(v.points, id)
	}
	return nil
}
func (v *fakeVector) Count(context.Context, string, map[string]string) (int64, error) {
	return int64(len(v.points)), nil
}

var _ vectorstore.Provider = (*fakeVector)(nil)

type fakeEmbedder struct {
	vec     []float32
	err     error
	batches int
}

func (e *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, domain.ErrMissingEmbedField
	}
	if e.err != nil {
		return nil, e.err
	}
	return e.vec, nil
}
func (e *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.batches++
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = e.vec
	}
	return out, nil
}
func (e *fakeEmbedder) Dimensions() int { return len(e.vec) }
func (e *fakeEmbedder) Model() string   { return "fake" }
func (e *fakeEmbedder) MaxLength() int  { return 1000 }

func testEntity(id string) domain.EntityDescriptor {
	return domain.EntityDescriptor{
		ID:         id,
		Attributes: map[string]any{"name": "Acme " + id},
		Graph:      domain.GraphConfig{Label: "Customer", Properties: []string{"name"}},
		Vector:     domain.VectorConfig{Collection: "customers", EmbedFields: []string{"name"}, PayloadFields: []string{"name"}},
	}
}

func TestIngestSingleHappyPath(t *testing.T) {
	g, v, e := newFakeGraph(), newFakeVector(), &fakeEmbedder{vec: []float32{0.1, 0.2}}
	c := New(g, v, e, nil, nil)

	status, err := c.IngestSingle(context.Background(), testEntity("1"))
	if err != nil {
		t.Fatalf("IngestSingle: %v", err)
	}
	if !status.GraphStored || !status.VectorStored {
		t.Fatalf("status = %+v", status)
	}
	if _, ok := g.nodes[key("Customer", "1")]; !ok {
		t.Fatal("expected graph node to be persisted")
	}
	if _, ok := v.points["1"]; !ok {
		t.Fatal("expected vector point to be persisted")
	}
}

func TestIngestSingleGraphFailureSkipsVector(t *testing.T) {
	g, v, e := newFakeGraph(), newFakeVector(), &fakeEmbedder{vec: []float32{0.1}}
	g.createErr = errors.New("graph down")
	c := New(g, v, e, nil, nil)

	_, err := c.IngestSingle(context.Background(), testEntity("1"))
	if err == nil {
		t.Fatal("expected error")
	}
	var consistency *domain.DataConsistencyError
	if !errors.As(err, &consistency) {
		t.Fatalf("expected *DataConsistencyError, got %T: %v", err, err)
	}
	if consistency.GraphSuccess || consistency.VectorSuccess || consistency.RolledBack {
		t.Fatalf("consistency = %+v", consistency)
	}
	if v.upsertCalls != 0 {
		t.Fatal("expected no vector call when graph write failed")
	}
}

func TestIngestSingleVectorFailureRollsBackGraph(t *testing.T) {
	g, v, e := newFakeGraph(), newFakeVector(), &fakeEmbedder{}
	e.err = errors.New("embed service down")
	c := New(g, v, e, nil, nil)

	_, err := c.IngestSingle(context.Background(), testEntity("1"))
	var consistency *domain.DataConsistencyError
	if !errors.As(err, &consistency) {
		t.Fatalf("expected *DataConsistencyError, got %T: %v", err, err)
	}
	if !consistency.GraphSuccess || consistency.VectorSuccess || !consistency.RolledBack {
		t.Fatalf("consistency = %+v", consistency)
	}
	if len(g.deleteCalls) != 1 {
		t.Fatalf("expected exactly one compensating delete, got %d", len(g.deleteCalls))
	}
	if _, ok := g.nodes[key("Customer", "1")]; ok {
		t.Fatal("expected graph node to be rolled back")
	}
}

func TestIngestSingleRollbackFailureIsCritical(t *testing.T) {
	g, v, e := newFakeGraph(), newFakeVector(), &fakeEmbedder{}
	e.err = errors.New("embed service down")
	g.deleteErr = errors.New("graph unreachable")
	c := New(g, v, e, nil, nil)

	_, err := c.IngestSingle(context.Background(), testEntity("1"))
	var critical *domain.CriticalConsistencyError
	if !errors.As(err, &critical) {
		t.Fatalf("expected *CriticalConsistencyError, got %T: %v", err, err)
	}
}

func TestIngestSingleEmptyEmbedTextRollsBack(t *testing.T) {
	g, v, e := newFakeGraph(), newFakeVector(), &fakeEmbedder{vec: []float32{0.1}}
	c := New(g, v, e, nil, nil)

	entity := testEntity("1")
	entity.Vector.EmbedFields = nil // no fields configured -> empty embed text

	_, err := c.IngestSingle(context.Background(), entity)
	var consistency *domain.DataConsistencyError
	if !errors.As(err, &consistency) {
		t.Fatalf("expected *DataConsistencyError, got %T: %v", err, err)
	}
	if !consistency.RolledBack {
		t.Fatalf("expected rollback after empty embed text, got %+v", consistency)
	}
}

func TestIngestBatchGroupsByCollection(t *testing.T) {
	g, v, e := newFakeGraph(), newFakeVector(), &fakeEmbedder{vec: []float32{0.1}}
	c := New(g, v, e, nil, nil)

	entities := []domain.EntityDescriptor{testEntity("1"), testEntity("2"), testEntity("3")}
	summary := c.IngestBatch(context.Background(), entities)

	if summary.Succeeded != 3 {
		t.Fatalf("summary = %+v", summary)
	}
	if e.batches != 1 {
		t.Fatalf("expected one embedding batch call for one collection, got %d", e.batches)
	}
}

func TestIngestBatchPartialVectorFailure(t *testing.T) {
	g, v, e := newFakeGraph(), newFakeVector(), &fakeEmbedder{vec: []float32{0.1}}
	v.upsertErr = errors.New("qdrant down")
	c := New(g, v, e, nil, nil)

	summary := c.IngestBatch(context.Background(), []domain.EntityDescriptor{testEntity("1")})
	if summary.PartiallySucceeded != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if _, ok := g.nodes[key("Customer", "1")]; !ok {
		t.Fatal("graph-succeeded entity should stay graph-succeeded")
	}
}

func TestRemoveRestoresGraphOnVectorFailure(t *testing.T) {
	g, v, e := newFakeGraph(), newFakeVector(), &fakeEmbedder{vec: []float32{0.1}}
	c := New(g, v, e, nil, nil)

	entity := testEntity("1")
	if _, err := c.IngestSingle(context.Background(), entity); err != nil {
		t.Fatalf("IngestSingle: %v", err)
	}

	v.deleteErr = errors.New("qdrant down")
	ok, err := c.Remove(context.Background(), entity)
	if ok {
		t.Fatal("expected Remove to report failure")
	}
	var consistency *domain.DataConsistencyError
	if !errors.As(err, &consistency) {
		t.Fatalf("expected *DataConsistencyError, got %T: %v", err, err)
	}
	if _, exists := g.nodes[key("Customer", "1")]; !exists {
		t.Fatal("expected graph node to be restored")
	}
}

func TestSyncCreatesWhenAbsentUpdatesWhenPresent(t *testing.T) {
	g, v, e := newFakeGraph(), newFakeVector(), &fakeEmbedder{vec: []float32{0.1}}
	c := New(g, v, e, nil, nil)

	entity := testEntity("1")
	first := c.Sync(context.Background(), entity)
	if first.Action != SyncActionCreated {
		t.Fatalf("expected created, got %+v", first)
	}

	second := c.Sync(context.Background(), entity)
	if second.Action != SyncActionUpdated {
		t.Fatalf("expected updated, got %+v", second)
	}
}

func TestSyncRelationshipsSkipsMissingEndpoints(t *testing.T) {
	g, v, e := newFakeGraph(), newFakeVector(), &fakeEmbedder{vec: []float32{0.1}}
	c := New(g, v, e, nil, nil)

	entity := testEntity("1")
	entity.Graph.Edges = []domain.EdgeConfig{{Type: "OWNS", TargetLabel: "Order", ForeignKey: "order_id"}}
	entity.Attributes["order_id"] = "o-1"

	if _, err := c.IngestSingle(context.Background(), entity); err != nil {
		t.Fatalf("IngestSingle: %v", err)
	}

	result := c.SyncRelationships(context.Background(), []domain.EntityDescriptor{entity})
	if result.Created != 0 || result.Skipped != 1 {
		t.Fatalf("expected skip for missing target node, got %+v", result)
	}

	g.nodes[key("Order", "o-1")] = map[string]any{"id": "o-1"}
	result = c.SyncRelationships(context.Background(), []domain.EntityDescriptor{entity})
	if result.Created != 1 {
		t.Fatalf("expected create once target exists, got %+v", result)
	}
}
