package facade

import (
	"context"
	"fmt"
	"strings"

	"github.com/WessleyAI/knowcore/engine/llmprovider"
	"github.com/WessleyAI/knowcore/engine/promptbuilder"
	"github.com/WessleyAI/knowcore/engine/queryexec"
)

const narrationSystemPrompt = `You turn graph query results into a short, direct natural-language answer. Do not mention the query or the underlying database. If the result set is empty, say plainly that nothing matching the question was found.`

const narrationGuidelines = `Answer in plain prose, no bullet points unless the data is naturally a list. Cite specific values from the results rather than summarizing vaguely. Keep the answer under 200 words.`

// narrate turns executor rows into a natural-language answer via one more
// LLM call, using the narration section set (spec §4.5, supplying the
// narrator step the data-flow diagram names in §2 but §4 never gives an
// operation to).
func (c *Core) narrate(ctx context.Context, question, cypher string, result *queryexec.Result) (string, error) {
	if len(result.Data) == 0 {
		return "No results matched that question.", nil
	}

	b := promptbuilder.New(promptbuilder.NarrationSections()...)
	prompt := b.Build(question, map[string]any{
		promptbuilder.KeySystem:     narrationSystemPrompt,
		promptbuilder.KeyQuery:      cypher,
		promptbuilder.KeyData:       formatResultRows(result.Data),
		promptbuilder.KeyStatistics: formatResultStats(result),
		promptbuilder.KeyGuidelines: narrationGuidelines,
		promptbuilder.KeyTask:       "## Task\nAnswer the question using only the results above.",
	}, nil)

	return c.llm.Complete(ctx, prompt, narrationSystemPrompt, llmprovider.Options{Temperature: 0.3, MaxTokens: 512})
}

func formatResultRows(rows []map[string]any) string {
	var b strings.Builder
	limit := len(rows)
	if limit > 20 {
		limit = 20
	}
	for i := 0; i < limit; i++ {
		fmt.Fprintf(&b, "%d. %v\n", i+1, rows[i])
	}
	if len(rows) > limit {
		fmt.Fprintf(&b, "... and %d more rows\n", len(rows)-limit)
	}
	return b.String()
}

func formatResultStats(result *queryexec.Result) string {
	return fmt.Sprintf("rows returned: %d, execution time: %dms", result.Stats.RowsReturned, result.Stats.ExecutionTimeMS)
}
