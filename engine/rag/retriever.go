// Package rag implements the Context Retriever: it assembles a prompt
// context bundle from three best-effort sources — vector similarity
// search over a query-memory collection, graph schema discovery, and
// sample-entity reads — tolerating partial failure in any one of them.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/WessleyAI/knowcore/engine/domain"
	"github.com/WessleyAI/knowcore/engine/embedprovider"
	"github.com/WessleyAI/knowcore/engine/graphstore"
	"github.com/WessleyAI/knowcore/engine/vectorstore"
)

// SemanticSearcher abstracts vector similarity search over the
// query-memory collection.
type SemanticSearcher interface {
	Search(ctx context.Context, collection string, vector []float32, limit int, scoreThreshold float32, filter map[string]string) ([]vectorstore.Hit, error)
}

// GraphEnricher abstracts schema discovery and sample-entity reads.
type GraphEnricher interface {
	GetSchema(ctx context.Context) (graphstore.Schema, error)
	SampleNodes(ctx context.Context, label string, limit int) ([]map[string]any, error)
}

// Options configures RetrieveContext (spec §4.2 "Retrieve context").
type Options struct {
	Collection       string
	Limit            int
	IncludeSchema    bool
	IncludeExamples  bool
	ExamplesPerLabel int
	ScoreThreshold   float32
	SearchTimeout    time.Duration
}

// DefaultOptions returns spec §6's "rag" defaults.
func DefaultOptions() Options {
	return Options{
		Collection:       "questions",
		Limit:            5,
		IncludeSchema:    true,
		IncludeExamples:  true,
		ExamplesPerLabel: 3,
		ScoreThreshold:   0.7,
		SearchTimeout:    5 * time.Second,
	}
}

// Service is the Context Retriever.
type Service struct {
	search SemanticSearcher
	graph  GraphEnricher
	embed  embedprovider.Provider
	opts   Options
	logger *slog.Logger

	cacheMu sync.RWMutex
	cache   map[embedCacheKey][]float32
}

type embedCacheKey struct {
	text  string
	model string
}

// New creates a Context Retriever.
func New(search SemanticSearcher, graph GraphEnricher, embed embedprovider.Provider, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		search: search,
		graph:  graph,
		embed:  embed,
		opts:   opts,
		logger: logger,
		cache:  make(map[embedCacheKey][]float32),
	}
}

// embedCached embeds text once per (text, model) pair, reusing cached
// vectors for repeated questions (spec §5 caching policy).
func (s *Service) embedCached(ctx context.Context, text string) ([]float32, error) {
	key := embedCacheKey{text: text, model: s.embed.Model()}

	s.cacheMu.RLock()
	if v, ok := s.cache[key]; ok {
		s.cacheMu.RUnlock()
		return v, nil
	}
	s.cacheMu.RUnlock()

	vec, err := s.embed.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	s.cacheMu.Lock()
	s.cache[key] = vec
	s.cacheMu.Unlock()
	return vec, nil
}

// RetrieveContext runs the three best-effort sources independently and
// assembles a context bundle (spec §4.2 "Retrieve context").
func (s *Service) RetrieveContext(ctx context.Context, question string, opts Options) domain.ContextBundle {
	bundle := domain.ContextBundle{
		RelevantEntities: make(map[string][]map[string]any),
	}

	similar, err := s.SearchSimilar(ctx, question, opts)
	if err != nil {
		s.logger.Warn("rag: similar-query search failed", "error", err)
		bundle.Errors = append(bundle.Errors, fmt.Sprintf("similar_queries: %v", err))
	} else {
		bundle.SimilarQueries = similar
	}

	var schema graphstore.Schema
	if opts.IncludeSchema {
		schema, err = s.GetSchema(ctx)
		if err != nil {
			s.logger.Warn("rag: schema discovery failed", "error", err)
			bundle.Errors = append(bundle.Errors, fmt.Sprintf("schema: %v", err))
		} else {
			bundle.Schema = domain.Schema{
				Labels:            schema.Labels,
				RelationshipTypes: schema.RelationshipTypes,
				PropertyKeys:      schema.PropertyKeys,
			}
		}
	}

	if opts.IncludeExamples && len(schema.Labels) > 0 {
		perLabel := opts.ExamplesPerLabel
		if perLabel <= 0 {
			perLabel = DefaultOptions().ExamplesPerLabel
		}
		for _, label := range schema.Labels {
			samples, err := s.SampleEntities(ctx, label, perLabel)
			if err != nil {
				s.logger.Warn("rag: sample-entity read failed", "label", label, "error", err)
				bundle.Errors = append(bundle.Errors, fmt.Sprintf("sample_entities[%s]: %v", label, err))
				continue
			}
			bundle.RelevantEntities[label] = samples
		}
	}

	return bundle
}

// SearchSimilar embeds question and queries the configured vector
// collection for the most similar prior questions (spec §4.2 "Search
// similar").
func (s *Service) SearchSimilar(ctx context.Context, question string, opts Options) ([]domain.SimilarQuery, error) {
	searchCtx := ctx
	var cancel context.CancelFunc
	if opts.SearchTimeout > 0 {
		searchCtx, cancel = context.WithTimeout(ctx, opts.SearchTimeout)
		defer cancel()
	}

	vec, err := s.embedCached(searchCtx, question)
	if err != nil {
		return nil, fmt.Errorf("rag: embed question: %w", err)
	}

	collection := opts.Collection
	if collection == "" {
		collection = DefaultOptions().Collection
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultOptions().Limit
	}

	hits, err := s.search.Search(searchCtx, collection, vec, limit, opts.ScoreThreshold, nil)
	if err != nil {
		return nil, fmt.Errorf("rag: vector search: %w", err)
	}

	out := make([]domain.SimilarQuery, 0, len(hits))
	for _, h := range hits {
		q, _ := h.Payload["question"].(string)
		query, _ := h.Payload["query"].(string)
		out = append(out, domain.SimilarQuery{
			Question: q,
			Query:    query,
			Score:    h.Score,
			Metadata: h.Payload,
		})
	}
	return out, nil
}

// GetSchema returns the graph's current label/relationship-type/
// property-key catalog (spec §4.2 "Get schema").
func (s *Service) GetSchema(ctx context.Context) (graphstore.Schema, error) {
	if s.graph == nil {
		return graphstore.Schema{}, fmt.Errorf("rag: no graph enricher configured")
	}
	return s.graph.GetSchema(ctx)
}

// SampleEntities reads up to limit nodes of label, stable-ordered by id,
// with all persisted properties (spec §4.2 "Sample entities").
func (s *Service) SampleEntities(ctx context.Context, label string, limit int) ([]map[string]any, error) {
	if s.graph == nil {
		return nil, fmt.Errorf("rag: no graph enricher configured")
	}
	return s.graph.SampleNodes(ctx, label, limit)
}
