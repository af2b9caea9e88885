// Package vectorstore declares the vector-store capability the core
// consumes (spec §6) and a Qdrant-backed implementation of it.
package vectorstore

import "context"

// Point is a single vector point to upsert.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// Hit is a single similarity search result.
type Hit struct {
	ID      string
	Score   float32
	Payload map[string]any
}

// Provider is the vector-store capability every component in this module
// consumes. Implementations are external to the core; QdrantProvider is
// the reference implementation shipped alongside it.
type Provider interface {
	CollectionExists(ctx context.Context, name string) (bool, error)
	CreateCollection(ctx context.Context, name string, vectorSize int) error
	Upsert(ctx context.Context, collection string, points []Point) error
	Search(ctx context.Context, collection string, vector []float32, limit int, scoreThreshold float32, filter map[string]string) ([]Hit, error)
	DeletePoints(ctx context.Context, collection string, ids []string) error
	Count(ctx context.Context, collection string, filter map[string]string) (int64, error)
}
