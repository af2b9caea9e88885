package querygen

import (
	"context"
	"fmt"
	"strings"

	"github.com/WessleyAI/knowcore/engine/llmprovider"
	"github.com/WessleyAI/knowcore/engine/promptbuilder"
	"github.com/WessleyAI/knowcore/pkg/fn"
	"github.com/WessleyAI/knowcore/pkg/resilience"
)

// Generator turns a question + context bundle into a validated query,
// per spec §4.3's state machine: TemplateTry -> (TemplateHit |
// PromptBuild -> LLMCall -> Extract -> Validate) -> Validate(Retry?) ->
// Sanitize -> (Explain?) -> Done.
type Generator struct {
	llm      llmprovider.Provider
	breaker  *resilience.Breaker
	catalog  EntityCatalog
	patterns []QueryPattern
	opts     Options
}

// New creates a Generator with its own circuit breaker around LLM calls,
// using resilience.DefaultBreakerOpts.
func New(llm llmprovider.Provider, catalog EntityCatalog, opts Options) *Generator {
	return &Generator{
		llm:      llm,
		breaker:  resilience.NewBreaker(resilience.DefaultBreakerOpts),
		catalog:  catalog,
		patterns: builtinPatterns(opts.DefaultLimit),
		opts:     opts,
	}
}

// Patterns exposes the static catalog (spec §4.3 "Get/detect template").
func (g *Generator) Patterns() []QueryPattern {
	return append([]QueryPattern(nil), g.patterns...)
}

// DetectTemplate returns the best-scoring template name, or "" if none
// scored above zero.
func (g *Generator) DetectTemplate(question string) (string, float64) {
	return DetectTemplate(question, g.patterns)
}

// Generate runs the full decision procedure for one question.
func (g *Generator) Generate(ctx context.Context, question string, bundle ContextBundle, opts Options) (*Generated, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("querygen: question must not be empty")
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = g.opts.DefaultLimit
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = g.opts.MaxRetries
	}
	if opts.MaxComplexity <= 0 {
		opts.MaxComplexity = g.opts.MaxComplexity
	}

	detectedEntities := DetectEntities(question, g.catalog)
	detectedScopes := DetectScopes(question, g.catalog)

	// 1. Template detection / short-circuit.
	if opts.EnableTemplates {
		if name, score := DetectTemplate(question, g.patterns); name != "" && score >= opts.TemplateThreshold {
			pattern, ok := patternByName(g.patterns, name)
			if ok && pattern.Build != nil {
				label := ResolveLabel(detectedEntities, bundle.Schema)
				cypher, err := pattern.Build(label, nil)
				if err == nil {
					return &Generated{
						Cypher:     cypher,
						Confidence: score,
						Metadata:   Metadata{TemplateUsed: name},
					}, nil
				}
				// Template builder couldn't instantiate (e.g. missing
				// label) — fall through to the LLM path.
			}
		}
	}

	// 2/3. Prompt assembly + LLM call, with bounded retry on validation
	// failure, refining the prompt with the prior attempt and its errors.
	var (
		lastQuery  string
		lastErrors []string
		allErrors  []string
	)

	retryOpts := fn.RetryOpts{MaxAttempts: opts.MaxRetries + 1, InitialWait: 0, MaxWait: 0, Jitter: false}
	result := fn.Retry(ctx, retryOpts, func(ctx context.Context) fn.Result[string] {
		prompt := g.buildPrompt(question, bundle, detectedEntities, detectedScopes, lastQuery, lastErrors)

		raw, err := g.callLLM(ctx, prompt, opts)
		if err != nil {
			lastErrors = []string{err.Error()}
			allErrors = append(allErrors, err.Error())
			return fn.Errf[string]("llm call: %w", err)
		}

		extracted := extractQuery(raw)
		v := Validate(extracted, ValidateOptions{AllowWrite: opts.AllowWrite, MaxComplexity: opts.MaxComplexity})
		if !v.Valid {
			lastQuery = extracted
			lastErrors = v.Errors
			allErrors = append(allErrors, v.Errors...)
			return fn.Errf[string]("validation: %s", strings.Join(v.Errors, "; "))
		}
		return fn.Ok(extracted)
	})

	extracted, err := result.Unwrap()
	if err != nil {
		// Spec §4.3: "After all retries fail, raise QueryGenerationError
		// with the accumulated validator messages."
		return nil, &QueryGenerationError{Question: question, Attempts: opts.MaxRetries + 1, Errors: allErrors}
	}

	// 6. Sanitization.
	sanitized := Sanitize(extracted, opts.DefaultLimit)
	finalValidation := Validate(sanitized, ValidateOptions{AllowWrite: opts.AllowWrite, MaxComplexity: opts.MaxComplexity})

	gen := &Generated{
		Cypher:     sanitized,
		Confidence: 1.0,
		Warnings:   finalValidation.Warnings,
		Metadata:   Metadata{RetryCount: len(allErrors)},
	}

	// 7. Optional explanation.
	if opts.Explain {
		explanation, err := g.explain(ctx, question, sanitized, opts)
		if err == nil {
			gen.Explanation = explanation
		}
	}

	return gen, nil
}

func (g *Generator) callLLM(ctx context.Context, prompt string, opts Options) (string, error) {
	result := resilience.CallResult(g.breaker, ctx, func(ctx context.Context) fn.Result[string] {
		text, err := g.llm.Complete(ctx, prompt, querySystemPrompt, llmprovider.Options{
			Temperature: opts.Temperature,
			MaxTokens:   opts.MaxTokens,
		})
		if err != nil {
			return fn.Err[string](err)
		}
		return fn.Ok(text)
	})
	return result.Unwrap()
}

func (g *Generator) explain(ctx context.Context, question, cypher string, opts Options) (string, error) {
	prompt := fmt.Sprintf(
		"Question: %s\n\nGenerated query:\n%s\n\nWrite one short paragraph in plain language explaining what this query retrieves.",
		question, cypher,
	)
	return g.llm.Complete(ctx, prompt, explainSystemPrompt, llmprovider.Options{
		Temperature: 0.3,
		MaxTokens:   256,
	})
}

const querySystemPrompt = `You translate natural-language questions into a single read-only graph query. Return only the query, with no surrounding prose and no code fences.`

const explainSystemPrompt = `You explain graph queries to non-technical readers in one short paragraph.`

func (g *Generator) buildPrompt(question string, bundle ContextBundle, entities []DetectedEntity, scopes []DetectedScope, priorQuery string, priorErrors []string) string {
	b := promptbuilder.New(promptbuilder.QueryTimeSections()...)

	ctx := map[string]any{
		promptbuilder.KeySchema:           formatSchema(bundle.Schema),
		promptbuilder.KeyExampleEntities:  formatSampleEntities(bundle.RelevantEntities),
		promptbuilder.KeySimilarQueries:   formatSimilarQueries(bundle.SimilarQueries),
		promptbuilder.KeyDetectedEntities: formatEntityHints(entities),
		promptbuilder.KeyDetectedScopes:   formatScopeHints(scopes),
		promptbuilder.KeyQueryRules:       queryRulesText,
		promptbuilder.KeyTaskInstructions: taskInstructionsText,
	}

	question = buildRefinedQuestion(question, priorQuery, priorErrors)
	return b.Build(question, ctx, nil)
}

// buildRefinedQuestion appends the prior failed attempt and its validator
// errors to the question text on a retry, per spec §4.3 step 5.
func buildRefinedQuestion(question, priorQuery string, priorErrors []string) string {
	if priorQuery == "" {
		return question
	}
	var b strings.Builder
	b.WriteString(question)
	b.WriteString("\n\nThe previous attempt was invalid:\n")
	b.WriteString(priorQuery)
	b.WriteString("\n\nValidator errors:\n- ")
	b.WriteString(strings.Join(priorErrors, "\n- "))
	b.WriteString("\n\nFix these issues and return a corrected query.")
	return b.String()
}

const queryRulesText = "Use only labels, relationship types, and properties listed in the schema. Always return an explicit LIMIT. Never use write clauses (CREATE, MERGE, SET, DELETE, REMOVE, DROP)."

const taskInstructionsText = "Generate exactly one read-only graph query answering the question above. Output only the query text."

// extractQuery strips code-fence markers and any language tag, then trims
// whitespace (spec §4.3 step 4).
func extractQuery(raw string) string {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if nl := strings.IndexByte(text, '\n'); nl != -1 {
			firstLine := strings.TrimSpace(text[:nl])
			if firstLine != "" && !strings.ContainsAny(firstLine, "(){};") {
				text = text[nl+1:]
			}
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	return strings.TrimSpace(text)
}

func formatSchema(s Schema) string {
	if len(s.Labels) == 0 && len(s.RelationshipTypes) == 0 && len(s.PropertyKeys) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Labels: " + strings.Join(s.Labels, ", ") + "\n")
	b.WriteString("Relationship types: " + strings.Join(s.RelationshipTypes, ", ") + "\n")
	b.WriteString("Property keys: " + strings.Join(s.PropertyKeys, ", "))
	return b.String()
}

func formatSampleEntities(byLabel map[string][]map[string]any) string {
	if len(byLabel) == 0 {
		return ""
	}
	var b strings.Builder
	for label, samples := range byLabel {
		b.WriteString(label + ":\n")
		for _, s := range samples {
			b.WriteString(fmt.Sprintf("  %v\n", s))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatSimilarQueries(queries []SimilarQuery) string {
	if len(queries) == 0 {
		return ""
	}
	var b strings.Builder
	for _, q := range queries {
		b.WriteString(fmt.Sprintf("Q: %s\nQuery: %s\nScore: %.2f\n\n", q.Question, q.Query, q.Score))
	}
	return strings.TrimRight(b.String(), "\n")
}
