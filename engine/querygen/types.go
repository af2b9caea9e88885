// Package querygen turns a question plus a retrieved context bundle into
// a validated, read-only graph query, using template short-circuits,
// entity/scope detection, and a bounded-retry LLM fallback.
package querygen

import (
	"errors"
	"fmt"

	"github.com/WessleyAI/knowcore/engine/domain"
)

// QueryPattern is a named, parameterized query template (spec §3).
type QueryPattern struct {
	Name             string
	Description      string
	Parameters       []PatternParameter
	SemanticTemplate string
	Examples         []PatternExample
	TriggerPhrases   []string
	// Build renders the pattern into a query using the given label and
	// concrete parameters. Built-in patterns supply this; patterns loaded
	// purely as prompt hints (no native builder) leave it nil.
	Build func(label string, params map[string]any) (string, error)
}

// PatternParameter documents one named input to a pattern.
type PatternParameter struct {
	Name        string
	Description string
}

// PatternExample is a worked instantiation used as a prompt hint.
type PatternExample struct {
	Parameters  map[string]any
	Description string
}

// ContextBundle is an alias for the Context Retriever's output type,
// consumed here to build the generation prompt (spec §3 "Context
// bundle"). Defined in engine/domain so rag does not need to import
// querygen to produce it.
type ContextBundle = domain.ContextBundle

// SimilarQuery is one query-memory hit surfaced to the prompt.
type SimilarQuery = domain.SimilarQuery

// Schema mirrors graphstore.Schema without importing it, keeping querygen
// decoupled from the concrete provider package.
type Schema = domain.Schema

// DetectedEntity is one entity-metadata match found in the question text.
type DetectedEntity struct {
	Label   string
	Alias   string
	AtIndex int
}

// DetectedScope is one scope-name match found in the question text.
type DetectedScope struct {
	ScopeName string
	AtIndex   int
}

// EntityCatalog is the set of known entity labels + their aliases/scopes,
// supplied by the caller at generator construction (spec §6 "entity
// metadata ... loaded from configuration at startup").
type EntityCatalog struct {
	Entities []CatalogEntity
}

// CatalogEntity pairs a graph label with its detection aliases and scopes.
type CatalogEntity struct {
	Label   string
	Aliases []string
	Scopes  []CatalogScope
}

// CatalogScope is a named, detectable scope attached to a catalog entity.
type CatalogScope struct {
	Name string
}

// Options configures a single Generate call (spec §4.3 "Generate").
type Options struct {
	Temperature       float64
	Explain           bool
	AllowWrite        bool
	MaxComplexity     int
	EnableTemplates   bool
	TemplateThreshold float64
	MaxRetries        int
	DefaultLimit      int
	MaxTokens         int
}

// DefaultOptions returns the spec's documented defaults (§6
// "query_generation").
func DefaultOptions() Options {
	return Options{
		Temperature:       0.2,
		AllowWrite:        false,
		MaxComplexity:     12,
		EnableTemplates:   true,
		TemplateThreshold: 0.6,
		MaxRetries:        2,
		DefaultLimit:      100,
		MaxTokens:         1024,
	}
}

// Metadata carries non-essential bookkeeping about how a query was produced.
type Metadata struct {
	TemplateUsed string
	RetryCount   int
}

// Generated is the output of Generate.
type Generated struct {
	Cypher      string
	Explanation string
	Confidence  float64
	Warnings    []string
	Metadata    Metadata
}

// ValidateOptions configures Validate.
type ValidateOptions struct {
	AllowWrite    bool
	MaxComplexity int
}

// Validation is the output of Validate.
type Validation struct {
	Valid      bool
	IsReadOnly bool
	Complexity int
	Errors     []string
	Warnings   []string
}

// QueryGenerationError is raised when all generation retries are exhausted.
type QueryGenerationError struct {
	Question string
	Attempts int
	Errors   []string
}

func (e *QueryGenerationError) Error() string {
	return fmt.Sprintf("querygen: generation failed for %q after %d attempts: %v", e.Question, e.Attempts, e.Errors)
}

// QueryValidationError describes a hard validation failure. Generate does
// not return it: once its retries are exhausted it returns
// QueryGenerationError.
type QueryValidationError struct {
	Query  string
	Errors []string
}

func (e *QueryValidationError) Error() string {
	return fmt.Sprintf("querygen: query invalid: %v", e.Errors)
}

var (
	// ErrMissingLabel is returned by a template Build when no label could
	// be resolved from entity detection or the context bundle.
	ErrMissingLabel = errors.New("querygen: template requires a resolved label")
)
