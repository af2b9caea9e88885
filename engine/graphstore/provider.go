// Package graphstore declares the graph-store capability the core consumes
// (spec §6) and a Neo4j-backed implementation of it.
package graphstore

import "context"

// Schema is the sorted catalog of labels, relationship types, and property
// keys present in the database, as returned by GetSchema.
type Schema struct {
	Labels            []string
	RelationshipTypes []string
	PropertyKeys      []string
}

// Row is one result row from Query: column name to value.
type Row map[string]any

// Provider is the graph-store capability every component in this module
// consumes. Implementations are external to the core; Neo4jProvider is
// the reference implementation shipped alongside it.
type Provider interface {
	CreateNode(ctx context.Context, label string, props map[string]any) error
	UpdateNode(ctx context.Context, label, id string, props map[string]any) error
	DeleteNode(ctx context.Context, label, id string) (bool, error)
	NodeExists(ctx context.Context, label, id string) (bool, error)
	GetNode(ctx context.Context, label, id string) (map[string]any, bool, error)
	CreateRelationship(ctx context.Context, fromLabel, fromID, toLabel, toID, relType string, props map[string]any) (bool, error)
	DeleteRelationship(ctx context.Context, fromLabel, fromID, toLabel, toID, relType string) (bool, error)
	Query(ctx context.Context, text string, params map[string]any) ([]Row, error)
	GetSchema(ctx context.Context) (Schema, error)
	// SampleNodes returns up to limit nodes of the given label, ordered by
	// id, with all persisted properties — used by the context retriever.
	SampleNodes(ctx context.Context, label string, limit int) ([]map[string]any, error)
}
