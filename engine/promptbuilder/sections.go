package promptbuilder

import "fmt"

// Context keys are pre-rendered text segments produced by the caller
// (querygen, rag) before Build is invoked. Keeping section Format
// functions as plain map lookups + headers mirrors the teacher's
// buildContextParts: callers assemble the text, the builder only orders
// and concatenates it.
const (
	KeyProjectContext   = "project_context"
	KeyGenericContext   = "generic_context"
	KeySchema           = "schema"
	KeyRelationships    = "relationships"
	KeyExampleEntities  = "example_entities"
	KeySimilarQueries   = "similar_queries"
	KeyDetectedEntities = "detected_entities"
	KeyDetectedScopes   = "detected_scopes"
	KeyPatternLibrary   = "pattern_library"
	KeyQueryRules       = "query_rules"
	KeyTaskInstructions = "task_instructions"

	KeySystem     = "system"
	KeyQuery      = "query"
	KeyData       = "data"
	KeyStatistics = "statistics"
	KeyGuidelines = "guidelines"
	KeyTask       = "task"
)

func textOf(ctx map[string]any, key string) string {
	v, ok := ctx[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func hasText(key string) func(string, map[string]any, map[string]any) bool {
	return func(_ string, ctx map[string]any, _ map[string]any) bool {
		return textOf(ctx, key) != ""
	}
}

func headeredSection(key, header string) Section {
	return Section{
		Format: func(_ string, ctx map[string]any, _ map[string]any) string {
			body := textOf(ctx, key)
			if body == "" {
				return ""
			}
			if header == "" {
				return body
			}
			return header + "\n" + body
		},
	}
}

// QueryTimeSections returns the query-generation section set, priorities
// per spec §4.5: project_context(10), generic_context/date(15), schema(20),
// relationships(30), example_entities(40), similar_queries(50),
// detected_entities(60), detected_scopes(65), pattern_library(70),
// query_rules(75), question(80), task_instructions(90).
func QueryTimeSections() []Section {
	sections := []struct {
		name     string
		priority int
		key      string
		header   string
	}{
		{"project_context", 10, KeyProjectContext, ""},
		{"generic_context", 15, KeyGenericContext, ""},
		{"schema", 20, KeySchema, "## Graph schema"},
		{"relationships", 30, KeyRelationships, "## Relationship types"},
		{"example_entities", 40, KeyExampleEntities, "## Example entities"},
		{"similar_queries", 50, KeySimilarQueries, "## Similar prior questions"},
		{"detected_entities", 60, KeyDetectedEntities, "## Detected entities"},
		{"detected_scopes", 65, KeyDetectedScopes, "## Detected scopes"},
		{"pattern_library", 70, KeyPatternLibrary, "## Available query patterns"},
		{"query_rules", 75, KeyQueryRules, "## Query rules"},
	}
	out := make([]Section, 0, len(sections)+2)
	for _, s := range sections {
		sec := headeredSection(s.key, s.header)
		sec.Name = s.name
		sec.Priority = s.priority
		sec.ShouldInclude = hasText(s.key)
		out = append(out, sec)
	}
	out = append(out, Section{
		Name:          "question",
		Priority:      80,
		ShouldInclude: func(q string, _ map[string]any, _ map[string]any) bool { return q != "" },
		Format: func(q string, _ map[string]any, _ map[string]any) string {
			return "## Question\n" + q
		},
	})
	out = append(out, Section{
		Name:          "task_instructions",
		Priority:      90,
		ShouldInclude: hasText(KeyTaskInstructions),
		Format: func(_ string, ctx map[string]any, _ map[string]any) string {
			return textOf(ctx, KeyTaskInstructions)
		},
	})
	return out
}

// NarrationSections returns the narration section set, priorities per
// spec §4.5: system(10), project_context(20), question(30), query(40),
// data(50), statistics(60), guidelines(70), task(80).
func NarrationSections() []Section {
	sections := []struct {
		name     string
		priority int
		key      string
		header   string
	}{
		{"system", 10, KeySystem, ""},
		{"project_context", 20, KeyProjectContext, ""},
		{"query", 40, KeyQuery, "## Query executed"},
		{"data", 50, KeyData, "## Results"},
		{"statistics", 60, KeyStatistics, "## Statistics"},
		{"guidelines", 70, KeyGuidelines, "## Guidelines"},
		{"task", 80, KeyTask, ""},
	}
	out := make([]Section, 0, len(sections)+1)
	for _, s := range sections {
		sec := headeredSection(s.key, s.header)
		sec.Name = s.name
		sec.Priority = s.priority
		sec.ShouldInclude = hasText(s.key)
		out = append(out, sec)
	}
	out = append(out, Section{
		Name:          "question",
		Priority:      30,
		ShouldInclude: func(q string, _ map[string]any, _ map[string]any) bool { return q != "" },
		Format: func(q string, _ map[string]any, _ map[string]any) string {
			return "## Question\n" + q
		},
	})
	return out
}
