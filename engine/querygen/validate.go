package querygen

import (
	"regexp"
	"strings"
)

var lineCommentRe = regexp.MustCompile(`//[^\n]*`)

var writeKeywordRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bcreate\b`),
	regexp.MustCompile(`(?i)\bmerge\b`),
	regexp.MustCompile(`(?i)\bset\b`),
	regexp.MustCompile(`(?i)\bdetach\s+delete\b`),
	regexp.MustCompile(`(?i)\bdelete\b`),
	regexp.MustCompile(`(?i)\bremove\b`),
	regexp.MustCompile(`(?i)\bdrop\b`),
}

var (
	matchOrCallRe   = regexp.MustCompile(`(?i)\b(match|call)\b`)
	returnRe        = regexp.MustCompile(`(?i)\breturn\b`)
	limitRe         = regexp.MustCompile(`(?i)\blimit\s+\d+`)
	whereRe         = regexp.MustCompile(`(?i)\bwhere\b`)
	withRe          = regexp.MustCompile(`(?i)\bwith\b`)
	optionalMatchRe = regexp.MustCompile(`(?i)\boptional\s+match\b`)
	patternStepRe   = regexp.MustCompile(`-\[[^\]]*\]->|<-\[[^\]]*\]-`)
	aggregateRe     = regexp.MustCompile(`(?i)\b(count|sum|avg|min|max|collect)\s*\(`)
)

// stripLineComments removes "// ..." to end-of-line, the only comment
// form the validator recognizes per spec §4.3.
func stripLineComments(query string) string {
	return lineCommentRe.ReplaceAllString(query, "")
}

// writeKeywordMatches returns the distinct write-keyword clause names
// found in the normalized query text.
func writeKeywordMatches(normalized string) []string {
	var hits []string
	seen := map[string]bool{}
	names := []string{"create", "merge", "set", "detach delete", "delete", "remove", "drop"}
	for i, re := range writeKeywordRes {
		if re.MatchString(normalized) && !seen[names[i]] {
			hits = append(hits, names[i])
			seen[names[i]] = true
		}
	}
	return hits
}

// complexity sums the structural-complexity heuristic: 1 point each for
// match/where/with/optional-match tokens and pattern-traversal steps, 2
// points per aggregate function call.
func complexity(normalized string) int {
	score := len(matchOrCallRe.FindAllString(normalized, -1))
	score += len(whereRe.FindAllString(normalized, -1))
	score += len(withRe.FindAllString(normalized, -1))
	score += len(optionalMatchRe.FindAllString(normalized, -1))
	score += len(patternStepRe.FindAllString(normalized, -1))
	score += 2 * len(aggregateRe.FindAllString(normalized, -1))
	return score
}

// Validate checks query shape, write-safety, and complexity per spec
// §4.3 "Validate".
func Validate(query string, opts ValidateOptions) Validation {
	normalized := stripLineComments(query)
	trimmed := strings.TrimSpace(normalized)

	v := Validation{Valid: true, IsReadOnly: true}

	if trimmed == "" {
		v.Valid = false
		v.Errors = append(v.Errors, "query is empty")
		return v
	}

	if !matchOrCallRe.MatchString(normalized) || !returnRe.MatchString(normalized) {
		v.Valid = false
		v.Errors = append(v.Errors, "query must contain a match-or-call clause and a return clause")
	}

	writes := writeKeywordMatches(normalized)
	if len(writes) > 0 {
		v.IsReadOnly = false
		if !opts.AllowWrite {
			v.Valid = false
			v.Errors = append(v.Errors, "query contains write clause(s): "+strings.Join(writes, ", "))
		}
	}

	v.Complexity = complexity(normalized)
	maxComplexity := opts.MaxComplexity
	if maxComplexity <= 0 {
		maxComplexity = DefaultOptions().MaxComplexity
	}
	if v.Complexity > maxComplexity {
		v.Warnings = append(v.Warnings, "query complexity exceeds configured threshold")
	}

	if !limitRe.MatchString(normalized) {
		v.Warnings = append(v.Warnings, "query has no explicit row limit")
	}

	return v
}
