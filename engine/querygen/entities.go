package querygen

import (
	"regexp"
	"strings"
)

var wordBoundaryCache = map[string]*regexp.Regexp{}

// wordBoundaryPattern compiles (and caches) a case-insensitive
// word-boundary regexp for a phrase that may itself contain spaces.
func wordBoundaryPattern(phrase string) *regexp.Regexp {
	if re, ok := wordBoundaryCache[phrase]; ok {
		return re
	}
	re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(phrase) + `\b`)
	wordBoundaryCache[phrase] = re
	return re
}

// DetectEntities scans question for case-insensitive, word-boundary
// matches against every catalog entity's aliases (spec §4.3 "Entity &
// scope detection"). Matches are returned in the order they occur in the
// question text.
func DetectEntities(question string, catalog EntityCatalog) []DetectedEntity {
	var out []DetectedEntity
	for _, entity := range catalog.Entities {
		for _, alias := range entity.Aliases {
			if alias == "" {
				continue
			}
			loc := wordBoundaryPattern(alias).FindStringIndex(question)
			if loc == nil {
				continue
			}
			out = append(out, DetectedEntity{Label: entity.Label, Alias: alias, AtIndex: loc[0]})
		}
	}
	sortByIndex(out)
	return out
}

// DetectScopes scans question for case-insensitive, word-boundary matches
// against every catalog entity's declared scope names.
func DetectScopes(question string, catalog EntityCatalog) []DetectedScope {
	var out []DetectedScope
	for _, entity := range catalog.Entities {
		for _, scope := range entity.Scopes {
			if scope.Name == "" {
				continue
			}
			loc := wordBoundaryPattern(scope.Name).FindStringIndex(question)
			if loc == nil {
				continue
			}
			out = append(out, DetectedScope{ScopeName: scope.Name, AtIndex: loc[0]})
		}
	}
	sortScopesByIndex(out)
	return out
}

func sortByIndex(items []DetectedEntity) {
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && items[j-1].AtIndex > items[j].AtIndex; j-- {
			items[j-1], items[j] = items[j], items[j-1]
		}
	}
}

func sortScopesByIndex(items []DetectedScope) {
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && items[j-1].AtIndex > items[j].AtIndex; j-- {
			items[j-1], items[j] = items[j], items[j-1]
		}
	}
}

// ResolveLabel picks the best label for template instantiation: the first
// detected entity's label, falling back to the first schema label, or ""
// if neither is available.
func ResolveLabel(detected []DetectedEntity, schema Schema) string {
	if len(detected) > 0 {
		return detected[0].Label
	}
	if len(schema.Labels) > 0 {
		return schema.Labels[0]
	}
	return ""
}

// formatEntityHints renders detected entities as a prompt-ready bullet list.
func formatEntityHints(detected []DetectedEntity) string {
	if len(detected) == 0 {
		return ""
	}
	var b strings.Builder
	for _, d := range detected {
		b.WriteString("- \"")
		b.WriteString(d.Alias)
		b.WriteString("\" -> label ")
		b.WriteString(d.Label)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatScopeHints renders detected scopes as a prompt-ready bullet list.
func formatScopeHints(detected []DetectedScope) string {
	if len(detected) == 0 {
		return ""
	}
	var b strings.Builder
	for _, d := range detected {
		b.WriteString("- ")
		b.WriteString(d.ScopeName)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
