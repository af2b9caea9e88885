// Package embedprovider declares the embedding capability the core
// consumes (spec §6) and an Ollama-backed implementation of it.
package embedprovider

import "context"

// Provider is the embedding capability every component in this module
// consumes. Must fail on empty text, per spec.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Model() string
	MaxLength() int
}
