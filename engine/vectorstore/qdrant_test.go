package vectorstore

import (
	"context"
	"errors"
	"testing"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
)

type mockPoints struct {
	upsertResp *pb.PointsOperationResponse
	upsertErr  error
	deleteResp *pb.PointsOperationResponse
	deleteErr  error
	searchResp *pb.SearchResponse
	searchErr  error
	countResp  *pb.CountResponse
	countErr   error
}

func (m *mockPoints) Upsert(context.Context, *pb.UpsertPoints, ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	return m.upsertResp, m.upsertErr
}
func (m *mockPoints) Delete(context.Context, *pb.DeletePoints, ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	return m.deleteResp, m.deleteErr
}
func (m *mockPoints) Search(context.Context, *pb.SearchPoints, ...grpc.CallOption) (*pb.SearchResponse, error) {
	return m.searchResp, m.searchErr
}
func (m *mockPoints) Count(context.Context, *pb.CountPoints, ...grpc.CallOption) (*pb.CountResponse, error) {
	return m.countResp, m.countErr
}

type mockCollections struct {
	listResp   *pb.ListCollectionsResponse
	listErr    error
	createResp *pb.CollectionOperationResponse
	createErr  error
}

func (m *mockCollections) List(context.Context, *pb.ListCollectionsRequest, ...grpc.CallOption) (*pb.ListCollectionsResponse, error) {
	return m.listResp, m.listErr
}
func (m *mockCollections) Create(context.Context, *pb.CreateCollection, ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	return m.createResp, m.createErr
}

func TestQdrantProviderClose(t *testing.T) {
	v := NewWithClients(&mockPoints{}, &mockCollections{})
	if err := v.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestCollectionExists(t *testing.T) {
	cols := &mockCollections{listResp: &pb.ListCollectionsResponse{
		Collections: []*pb.CollectionDescription{{Name: "customers"}},
	}}
	v := NewWithClients(&mockPoints{}, cols)

	ok, err := v.CollectionExists(context.Background(), "customers")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected collection to exist")
	}

	ok, err = v.CollectionExists(context.Background(), "widgets")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected collection to not exist")
	}
}

func TestCollectionExistsListError(t *testing.T) {
	cols := &mockCollections{listErr: errors.New("rpc fail")}
	v := NewWithClients(&mockPoints{}, cols)
	if _, err := v.CollectionExists(context.Background(), "customers"); err == nil {
		t.Fatal("expected error")
	}
}

func TestCreateCollection(t *testing.T) {
	cols := &mockCollections{createResp: &pb.CollectionOperationResponse{Result: true}}
	v := NewWithClients(&mockPoints{}, cols)
	if err := v.CreateCollection(context.Background(), "customers", 768); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateCollectionError(t *testing.T) {
	cols := &mockCollections{createErr: errors.New("create fail")}
	v := NewWithClients(&mockPoints{}, cols)
	if err := v.CreateCollection(context.Background(), "customers", 768); err == nil {
		t.Fatal("expected error")
	}
}

func TestUpsertEmptyIsNoop(t *testing.T) {
	v := NewWithClients(&mockPoints{}, &mockCollections{})
	if err := v.Upsert(context.Background(), "customers", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUpsertSuccess(t *testing.T) {
	pts := &mockPoints{upsertResp: &pb.PointsOperationResponse{}}
	v := NewWithClients(pts, &mockCollections{})

	points := []Point{{
		ID:     "p1",
		Vector: []float32{1, 0, 0, 0},
		Payload: map[string]any{
			"name":    "Acme",
			"count":   42,
			"count64": int64(99),
			"score":   3.14,
			"active":  true,
			"other":   []int{1, 2},
		},
	}}
	if err := v.Upsert(context.Background(), "customers", points); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUpsertError(t *testing.T) {
	pts := &mockPoints{upsertErr: errors.New("fail")}
	v := NewWithClients(pts, &mockCollections{})
	points := []Point{{ID: "p1", Vector: []float32{1, 0}}}
	if err := v.Upsert(context.Background(), "customers", points); err == nil {
		t.Fatal("expected error")
	}
}

func TestSearch(t *testing.T) {
	pts := &mockPoints{searchResp: &pb.SearchResponse{
		Result: []*pb.ScoredPoint{
			{
				Id:    &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: "p1"}},
				Score: 0.95,
				Payload: map[string]*pb.Value{
					"name": {Kind: &pb.Value_StringValue{StringValue: "Acme"}},
				},
			},
			{
				Id:    &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: "p2"}},
				Score: 0.10,
			},
		},
	}}
	v := NewWithClients(pts, &mockCollections{})

	hits, err := v.Search(context.Background(), "customers", []float32{1, 0}, 5, 0.5, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("len(hits) = %d, want 1 (client-side score threshold should drop p2)", len(hits))
	}
	if hits[0].ID != "p1" || hits[0].Payload["name"] != "Acme" {
		t.Fatalf("hits[0] = %+v", hits[0])
	}
}

func TestSearchError(t *testing.T) {
	pts := &mockPoints{searchErr: errors.New("fail")}
	v := NewWithClients(pts, &mockCollections{})
	if _, err := v.Search(context.Background(), "customers", []float32{1, 0}, 5, 0, nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestDeletePointsEmptyIsNoop(t *testing.T) {
	v := NewWithClients(&mockPoints{}, &mockCollections{})
	if err := v.DeletePoints(context.Background(), "customers", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDeletePoints(t *testing.T) {
	pts := &mockPoints{deleteResp: &pb.PointsOperationResponse{}}
	v := NewWithClients(pts, &mockCollections{})
	if err := v.DeletePoints(context.Background(), "customers", []string{"p1", "p2"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDeletePointsError(t *testing.T) {
	pts := &mockPoints{deleteErr: errors.New("fail")}
	v := NewWithClients(pts, &mockCollections{})
	if err := v.DeletePoints(context.Background(), "customers", []string{"p1"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestCount(t *testing.T) {
	pts := &mockPoints{countResp: &pb.CountResponse{Result: &pb.CountResult{Count: 7}}}
	v := NewWithClients(pts, &mockCollections{})
	n, err := v.Count(context.Background(), "customers", map[string]string{"status": "active"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 7 {
		t.Fatalf("n = %d, want 7", n)
	}
}

func TestCountError(t *testing.T) {
	pts := &mockPoints{countErr: errors.New("fail")}
	v := NewWithClients(pts, &mockCollections{})
	if _, err := v.Count(context.Background(), "customers", nil); err == nil {
		t.Fatal("expected error")
	}
}
