// Package facade wires the Context Retriever, Query Generator, Query
// Executor, and Ingestion Coordinator behind one entry point: Ask answers
// a question end to end, Ingest/IngestBatch delegate straight to the
// coordinator.
package facade

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/WessleyAI/knowcore/engine/domain"
	"github.com/WessleyAI/knowcore/engine/embedprovider"
	"github.com/WessleyAI/knowcore/engine/graphstore"
	"github.com/WessleyAI/knowcore/engine/ingest"
	"github.com/WessleyAI/knowcore/engine/llmprovider"
	"github.com/WessleyAI/knowcore/engine/querygen"
	"github.com/WessleyAI/knowcore/engine/queryexec"
	"github.com/WessleyAI/knowcore/engine/rag"
	"github.com/WessleyAI/knowcore/engine/vectorstore"
	"github.com/WessleyAI/knowcore/pkg/fn"
	"github.com/WessleyAI/knowcore/pkg/metrics"
)

// Config bundles the per-component options, loaded once at startup.
type Config struct {
	RAG       rag.Options
	QueryGen  querygen.Options
	QueryExec queryexec.Config
}

// DefaultConfig mirrors each component's own DefaultOptions/DefaultConfig.
func DefaultConfig() Config {
	return Config{
		RAG:       rag.DefaultOptions(),
		QueryGen:  querygen.DefaultOptions(),
		QueryExec: queryexec.DefaultConfig(),
	}
}

// Answer is the end-to-end result of Ask.
type Answer struct {
	Text       string
	Cypher     string
	Confidence float64
	RowCount   int
	Warnings   []string
}

// Core wires the four components into one question-answering pipeline.
type Core struct {
	retriever *rag.Service
	generator *querygen.Generator
	executor  *queryexec.Executor
	coord     *ingest.Coordinator
	llm       llmprovider.Provider
	cfg       Config
	logger    *slog.Logger
}

// New builds a Core from provider adapters. A nil logger defaults to
// slog.Default(); a nil registry disables metrics recording.
func New(
	graph graphstore.Provider,
	vector vectorstore.Provider,
	embed embedprovider.Provider,
	llm llmprovider.Provider,
	catalog querygen.EntityCatalog,
	cfg Config,
	logger *slog.Logger,
	reg *metrics.Registry,
) *Core {
	if logger == nil {
		logger = slog.Default()
	}

	retriever := rag.New(vector, graph, embed, cfg.RAG, logger)
	generator := querygen.New(llm, catalog, cfg.QueryGen)
	executor := queryexec.New(graph, cfg.QueryExec, logger, reg)
	coord := ingest.New(graph, vector, embed, logger, reg)

	return &Core{
		retriever: retriever,
		generator: generator,
		executor:  executor,
		coord:     coord,
		llm:       llm,
		cfg:       cfg,
		logger:    logger,
	}
}

// askState threads through the Ask pipeline's stages, each one filling in
// the field it owns.
type askState struct {
	question  string
	bundle    domain.ContextBundle
	generated *querygen.Generated
	result    *queryexec.Result
	answer    *Answer
}

// Ask runs the full pipeline: retrieve context, generate a query, execute
// it, and narrate the results into a natural-language answer (spec §2's
// data-flow diagram), composed the way the teacher composes its own
// multi-step flows — a `fn.Pipeline` of `fn.TracedStage`s, each getting its
// own span and short-circuiting the rest on error.
func (c *Core) Ask(ctx context.Context, question string) (*Answer, error) {
	if err := domain.ValidateQuestion(question); err != nil {
		return nil, err
	}

	pipeline := fn.Pipeline(
		fn.TracedStage("facade.retrieve", fn.Stage[askState, askState](c.retrieveStage)),
		fn.TracedStage("facade.generate", fn.Stage[askState, askState](c.generateStage)),
		fn.TracedStage("facade.execute", fn.Stage[askState, askState](c.executeStage)),
		fn.TracedStage("facade.narrate", fn.Stage[askState, askState](c.narrateStage)),
	)

	final, err := pipeline(ctx, askState{question: question}).Unwrap()
	if err != nil {
		return nil, err
	}
	return final.answer, nil
}

func (c *Core) retrieveStage(ctx context.Context, s askState) fn.Result[askState] {
	s.bundle = c.retriever.RetrieveContext(ctx, s.question, c.cfg.RAG)
	return fn.Ok(s)
}

func (c *Core) generateStage(ctx context.Context, s askState) fn.Result[askState] {
	generated, err := c.generator.Generate(ctx, s.question, s.bundle, c.cfg.QueryGen)
	if err != nil {
		return fn.Err[askState](fmt.Errorf("facade: generate query: %w", err))
	}
	s.generated = generated
	return fn.Ok(s)
}

func (c *Core) executeStage(ctx context.Context, s askState) fn.Result[askState] {
	result, err := c.executor.Execute(ctx, s.generated.Cypher, nil, queryexec.Options{})
	if err != nil {
		return fn.Err[askState](fmt.Errorf("facade: execute query: %w", err))
	}
	s.result = result
	return fn.Ok(s)
}

func (c *Core) narrateStage(ctx context.Context, s askState) fn.Result[askState] {
	text, err := c.narrate(ctx, s.question, s.generated.Cypher, s.result)
	if err != nil {
		return fn.Err[askState](fmt.Errorf("facade: narrate results: %w", err))
	}
	s.answer = &Answer{
		Text:       text,
		Cypher:     s.generated.Cypher,
		Confidence: s.generated.Confidence,
		RowCount:   len(s.result.Data),
		Warnings:   append(s.generated.Warnings, s.result.Errors...),
	}
	return fn.Ok(s)
}

// Ingest delegates to the Ingestion Coordinator (spec §4.1 "Ingest
// single").
func (c *Core) Ingest(ctx context.Context, e domain.EntityDescriptor) (ingest.Status, error) {
	return c.coord.IngestSingle(ctx, e)
}

// IngestBatch delegates to the Ingestion Coordinator (spec §4.1 "Ingest
// batch").
func (c *Core) IngestBatch(ctx context.Context, entities []domain.EntityDescriptor) ingest.BatchSummary {
	return c.coord.IngestBatch(ctx, entities)
}

// Coordinator exposes the underlying Ingestion Coordinator for callers
// that need Remove/Sync/SyncRelationships directly.
func (c *Core) Coordinator() *ingest.Coordinator { return c.coord }
