package vectorstore

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// QdrantProvider implements Provider against a live Qdrant instance. Unlike
// the teacher's single-collection VectorStore, every call here takes an
// explicit collection name: this module writes into a collection per
// VectorConfig plus a fixed "questions" collection for query-memory
// points, so the collection can never be baked into the struct.
type QdrantProvider struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	distance    pb.Distance
}

// NewQdrantProvider dials Qdrant's gRPC endpoint at addr.
func NewQdrantProvider(addr string) (*QdrantProvider, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("vectorstore: dial qdrant %s: %w", addr, err)
	}
	return &QdrantProvider{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		distance:    pb.Distance_Cosine,
	}, nil
}

// NewWithClients builds a QdrantProvider directly from gRPC client
// interfaces, bypassing the dial — used by tests to inject fakes.
func NewWithClients(points pb.PointsClient, collections pb.CollectionsClient) *QdrantProvider {
	return &QdrantProvider{points: points, collections: collections, distance: pb.Distance_Cosine}
}

var _ Provider = (*QdrantProvider)(nil)

// Close closes the underlying gRPC connection. A no-op when the provider
// was built with NewWithClients, which has no connection to close.
func (v *QdrantProvider) Close() error {
	if v.conn == nil {
		return nil
	}
	return v.conn.Close()
}

// CollectionExists reports whether a collection is already present.
func (v *QdrantProvider) CollectionExists(ctx context.Context, name string) (bool, error) {
	list, err := v.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return false, fmt.Errorf("vectorstore: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == name {
			return true, nil
		}
	}
	return false, nil
}

// CreateCollection creates a collection sized for vectorSize-dimensional
// embeddings, using cosine distance — the metric every pack repo that
// touches Qdrant defaults to.
func (v *QdrantProvider) CreateCollection(ctx context.Context, name string, vectorSize int) error {
	_, err := v.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: name,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(vectorSize),
					Distance: v.distance,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("vectorstore: create collection %s: %w", name, err)
	}
	return nil
}

// Upsert stores points into a collection.
func (v *QdrantProvider) Upsert(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	pbPoints := make([]*pb.PointStruct, len(points))
	for i, p := range points {
		payload := make(map[string]*pb.Value, len(p.Payload))
		for k, val := range p.Payload {
			payload[k] = toQdrantValue(val)
		}
		pbPoints[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: p.ID},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: p.Vector},
				},
			},
			Payload: payload,
		}
	}

	wait := true
	_, err := v.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: collection,
		Wait:           &wait,
		Points:         pbPoints,
	})
	if err != nil {
		return fmt.Errorf("vectorstore: upsert %d points into %s: %w", len(points), collection, err)
	}
	return nil
}

// Search performs k-NN similarity search with optional keyword filters.
// scoreThreshold filters hits client-side in addition to being passed to
// Qdrant, since not every caller can rely on server-side thresholding.
func (v *QdrantProvider) Search(ctx context.Context, collection string, vector []float32, limit int, scoreThreshold float32, filter map[string]string) ([]Hit, error) {
	req := &pb.SearchPoints{
		CollectionName: collection,
		Vector:         vector,
		Limit:          uint64(limit),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	}
	if scoreThreshold > 0 {
		st := scoreThreshold
		req.ScoreThreshold = &st
	}
	if len(filter) > 0 {
		must := make([]*pb.Condition, 0, len(filter))
		for k, val := range filter {
			must = append(must, fieldMatch(k, val))
		}
		req.Filter = &pb.Filter{Must: must}
	}

	resp, err := v.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: search %s: %w", collection, err)
	}

	hits := make([]Hit, 0, len(resp.GetResult()))
	for _, r := range resp.GetResult() {
		if r.GetScore() < scoreThreshold {
			continue
		}
		payload := make(map[string]any, len(r.GetPayload()))
		for k, val := range r.GetPayload() {
			payload[k] = fromQdrantValue(val)
		}
		hits = append(hits, Hit{
			ID:      pointIDString(r.GetId()),
			Score:   r.GetScore(),
			Payload: payload,
		})
	}
	return hits, nil
}

// DeletePoints removes points by id from a collection.
func (v *QdrantProvider) DeletePoints(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	pointIDs := make([]*pb.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id}}
	}
	wait := true
	_, err := v.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{Ids: pointIDs},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("vectorstore: delete %d points from %s: %w", len(ids), collection, err)
	}
	return nil
}

// Count reports the number of points in a collection, optionally filtered.
func (v *QdrantProvider) Count(ctx context.Context, collection string, filter map[string]string) (int64, error) {
	req := &pb.CountPoints{CollectionName: collection}
	if len(filter) > 0 {
		must := make([]*pb.Condition, 0, len(filter))
		for k, val := range filter {
			must = append(must, fieldMatch(k, val))
		}
		req.Filter = &pb.Filter{Must: must}
	}
	resp, err := v.points.Count(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("vectorstore: count %s: %w", collection, err)
	}
	return int64(resp.GetResult().GetCount()), nil
}

func fieldMatch(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: key,
				Match: &pb.Match{
					MatchValue: &pb.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}

func pointIDString(id *pb.PointId) string {
	if id == nil {
		return ""
	}
	if u := id.GetUuid(); u != "" {
		return u
	}
	return fmt.Sprint(id.GetNum())
}

func toQdrantValue(v any) *pb.Value {
	switch tv := v.(type) {
	case string:
		return &pb.Value{Kind: &pb.Value_StringValue{StringValue: tv}}
	case int:
		return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(tv)}}
	case int64:
		return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: tv}}
	case float64:
		return &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: tv}}
	case float32:
		return &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: float64(tv)}}
	case bool:
		return &pb.Value{Kind: &pb.Value_BoolValue{BoolValue: tv}}
	default:
		return &pb.Value{Kind: &pb.Value_StringValue{StringValue: fmt.Sprint(tv)}}
	}
}

func fromQdrantValue(v *pb.Value) any {
	switch k := v.GetKind().(type) {
	case *pb.Value_StringValue:
		return k.StringValue
	case *pb.Value_IntegerValue:
		return k.IntegerValue
	case *pb.Value_DoubleValue:
		return k.DoubleValue
	case *pb.Value_BoolValue:
		return k.BoolValue
	default:
		return nil
	}
}
