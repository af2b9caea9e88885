package queryexec

import (
	"context"
	"errors"
	"testing"

	"github.com/WessleyAI/knowcore/engine/graphstore"
)

// fakeStore implements graphstore.Provider with scripted Query results.
type fakeStore struct {
	rows       []graphstore.Row
	err        error
	lastQuery  string
	lastParams map[string]any
	queryCalls int
}

func (f *fakeStore) CreateNode(context.Context, string, map[string]any) error { return nil }
func (f *fakeStore) UpdateNode(context.Context, string, string, map[string]any) error { return nil }
func (f *fakeStore) DeleteNode(context.Context, string, string) (bool, error) { return true, nil }
func (f *fakeStore) NodeExists(context.Context, string, string) (bool, error) { return true, nil }
func (f *fakeStore) GetNode(context.Context, string, string) (map[string]any, bool, error) {
	return nil, false, nil
}
func (f *fakeStore) CreateRelationship(context.Context, string, string, string, string, string, map[string]any) (bool, error) {
	return true, nil
}
func (f *fakeStore) DeleteRelationship(context.Context, string, string, string, string, string) (bool, error) {
	return true, nil
}
func (f *fakeStore) Query(_ context.Context, text string, params map[string]any) ([]graphstore.Row, error) {
	f.queryCalls++
	f.lastQuery = text
	f.lastParams = params
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}
func (f *fakeStore) GetSchema(context.Context) (graphstore.Schema, error) { return graphstore.Schema{}, nil }
func (f *fakeStore) SampleNodes(context.Context, string, int) ([]map[string]any, error) {
	return nil, nil
}

var _ graphstore.Provider = (*fakeStore)(nil)

func TestExecuteRejectsReadOnlyViolation(t *testing.T) {
	store := &fakeStore{}
	exec := New(store, DefaultConfig(), nil, nil)

	_, err := exec.Execute(context.Background(), "MATCH (n:Customer) DELETE n", nil, Options{ReadOnly: true})
	if err == nil {
		t.Fatal("expected ReadOnlyViolation")
	}
	var violation *ReadOnlyViolation
	if !errors.As(err, &violation) {
		t.Fatalf("expected *ReadOnlyViolation, got %T: %v", err, err)
	}
	if store.queryCalls != 0 {
		t.Fatalf("expected no dispatch to the graph store, got %d calls", store.queryCalls)
	}
}

func TestExecuteInjectsAndClampsLimit(t *testing.T) {
	store := &fakeStore{rows: []graphstore.Row{{"n": "a"}}}
	cfg := DefaultConfig()
	cfg.MaxLimit = 10
	exec := New(store, cfg, nil, nil)

	_, err := exec.Execute(context.Background(), "MATCH (n:Customer) RETURN n", nil, Options{Limit: 9999})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !contains(store.lastQuery, "LIMIT 10") {
		t.Fatalf("lastQuery = %q, expected clamped LIMIT 10", store.lastQuery)
	}
}

func TestExecuteReturnsRowsAndStats(t *testing.T) {
	store := &fakeStore{rows: []graphstore.Row{{"n": "a"}, {"n": "b"}}}
	exec := New(store, DefaultConfig(), nil, nil)

	result, err := exec.Execute(context.Background(), "MATCH (n:Customer) RETURN n LIMIT 5", nil, Options{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Success || len(result.Data) != 2 {
		t.Fatalf("result = %+v", result)
	}
	if result.Stats.RowsReturned != 2 {
		t.Fatalf("RowsReturned = %d, want 2", result.Stats.RowsReturned)
	}
}

func TestExecuteWrapsStoreError(t *testing.T) {
	store := &fakeStore{err: errors.New("boom")}
	exec := New(store, DefaultConfig(), nil, nil)

	_, err := exec.Execute(context.Background(), "MATCH (n:Customer) RETURN n", nil, Options{})
	if err == nil {
		t.Fatal("expected error")
	}
	var execErr *QueryExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected *QueryExecutionError, got %T: %v", err, err)
	}
}

func TestExecuteRejectsEmptyQuery(t *testing.T) {
	exec := New(&fakeStore{}, DefaultConfig(), nil, nil)
	if _, err := exec.Execute(context.Background(), "   ", nil, Options{}); err == nil {
		t.Fatal("expected error for empty query")
	}
}

func TestExecuteCountRewritesReturnClause(t *testing.T) {
	store := &fakeStore{rows: []graphstore.Row{{"total": int64(7)}}}
	exec := New(store, DefaultConfig(), nil, nil)

	total, err := exec.ExecuteCount(context.Background(), "MATCH (n:Customer) RETURN n", nil, Options{})
	if err != nil {
		t.Fatalf("ExecuteCount: %v", err)
	}
	if total != 7 {
		t.Fatalf("total = %d, want 7", total)
	}
	if !contains(store.lastQuery, "count(*)") {
		t.Fatalf("lastQuery = %q, expected count(*) rewrite", store.lastQuery)
	}
}

func TestExecutePaginatedComputesLastPage(t *testing.T) {
	store := &fakeStore{rows: []graphstore.Row{{"n": "a"}, {"n": "b"}, {"n": "c"}}}
	exec := New(&countAwareStore{fakeStore: store}, DefaultConfig(), nil, nil)

	result, err := exec.ExecutePaginated(context.Background(), "MATCH (n:Customer) RETURN n", nil, 2, 10, Options{})
	if err != nil {
		t.Fatalf("ExecutePaginated: %v", err)
	}
	if result.Pagination.CurrentPage != 2 || result.Pagination.PerPage != 10 {
		t.Fatalf("pagination = %+v", result.Pagination)
	}
	if result.Pagination.Total != 25 {
		t.Fatalf("Total = %d, want 25", result.Pagination.Total)
	}
	if result.Pagination.LastPage != 3 {
		t.Fatalf("LastPage = %d, want 3 (ceil(25/10))", result.Pagination.LastPage)
	}
	if len(result.Data) > 10 {
		t.Fatalf("len(Data) = %d, expected <= per_page", len(result.Data))
	}
}

// countAwareStore returns a fixed total for count(*) queries and the base
// rows otherwise, exercising ExecutePaginated's two-call protocol.
type countAwareStore struct {
	*fakeStore
}

func (c *countAwareStore) Query(ctx context.Context, text string, params map[string]any) ([]graphstore.Row, error) {
	if contains(text, "count(*)") {
		return []graphstore.Row{{"total": int64(25)}}, c.fakeStore.err
	}
	return c.fakeStore.Query(ctx, text, params)
}

func TestExplainDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableExplain = false
	exec := New(&fakeStore{}, cfg, nil, nil)

	if _, err := exec.Explain(context.Background(), "MATCH (n) RETURN n", nil); err == nil {
		t.Fatal("expected explain-disabled error")
	}
}

func TestTestOperationReportsSuccess(t *testing.T) {
	exec := New(&fakeStore{rows: []graphstore.Row{}}, DefaultConfig(), nil, nil)
	if !exec.Test(context.Background(), "MATCH (n) RETURN n") {
		t.Fatal("expected Test to succeed against a healthy store")
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
