package querygen

import (
	"fmt"
	"regexp"
	"strings"
)

// clauseKeywordRe matches the start of any recognized Cypher clause,
// write or read. Sanitize walks the query by these boundaries so a write
// clause's entire payload (not just its keyword) is removed.
var clauseKeywordRe = regexp.MustCompile(
	`(?i)\b(optional\s+match|match|where|with|return|order\s+by|skip|limit|call|` +
		`detach\s+delete|delete|create|merge|set|remove|drop)\b`,
)

var writeClauseNames = map[string]bool{
	"create": true, "merge": true, "set": true, "delete": true,
	"detach delete": true, "remove": true, "drop": true,
}

func normalizeClauseName(raw string) string {
	return strings.Join(strings.Fields(strings.ToLower(raw)), " ")
}

// Sanitize removes any write clauses (and their payload up to the next
// clause boundary) and injects an explicit LIMIT if none is present,
// placed after the final return clause (spec §4.3 "Sanitize").
func Sanitize(query string, defaultLimit int) string {
	stripped := stripWriteClauses(query)
	if limitRe.MatchString(stripped) {
		return stripped
	}
	return injectLimit(stripped, defaultLimit)
}

func stripWriteClauses(query string) string {
	locs := clauseKeywordRe.FindAllStringIndex(query, -1)
	if len(locs) == 0 {
		return query
	}

	var b strings.Builder
	b.WriteString(query[:locs[0][0]])
	for i, loc := range locs {
		name := normalizeClauseName(query[loc[0]:loc[1]])
		end := len(query)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		if writeClauseNames[name] {
			continue
		}
		b.WriteString(query[loc[0]:end])
	}
	return strings.TrimSpace(b.String())
}

// injectLimit appends "LIMIT <n>" after the final return clause's trailing
// ORDER BY/SKIP block, or at the end of the query if no return clause is
// found. LIMIT must come after ORDER BY and SKIP in Cypher's clause order,
// so it is never inserted ahead of either.
func injectLimit(query string, defaultLimit int) string {
	if defaultLimit <= 0 {
		defaultLimit = DefaultOptions().DefaultLimit
	}
	limitClause := fmt.Sprintf(" LIMIT %d", defaultLimit)

	matches := returnRe.FindAllStringIndex(query, -1)
	if len(matches) == 0 {
		return strings.TrimSpace(query) + limitClause
	}
	last := matches[len(matches)-1]

	insertAt := len(query)
	pos := last[1]
	for {
		loc := clauseKeywordRe.FindStringIndex(query[pos:])
		if loc == nil {
			break
		}
		name := normalizeClauseName(query[pos+loc[0] : pos+loc[1]])
		if name != "order by" && name != "skip" {
			insertAt = pos + loc[0]
			break
		}
		pos += loc[1]
	}

	prefix := strings.TrimSpace(query[:insertAt])
	suffix := strings.TrimSpace(query[insertAt:])
	if suffix == "" {
		return prefix + limitClause
	}
	return prefix + limitClause + " " + suffix
}
