package querygen

import (
	"fmt"
	"strings"
)

// builtinPatterns is the static catalog required by spec §6: at minimum
// property_filter, property_range, relationship_traversal,
// entity_with_relationship, entity_without_relationship,
// entity_with_aggregated_relationship, temporal_filter,
// multi_hop_traversal, multiple_property_filter,
// relationship_with_property_filter, composed, plus the two short-circuit
// patterns named directly in spec §8 (count, list_all).
func builtinPatterns(defaultLimit int) []QueryPattern {
	return []QueryPattern{
		{
			Name:           "count",
			Description:    "Count all nodes of a label.",
			TriggerPhrases: []string{"how many", "count", "number of"},
			Build: func(label string, _ map[string]any) (string, error) {
				if label == "" {
					return "", ErrMissingLabel
				}
				return fmt.Sprintf("MATCH (n:%s) RETURN count(n) AS total", label), nil
			},
		},
		{
			Name:           "list_all",
			Description:    "List all nodes of a label.",
			TriggerPhrases: []string{"show all", "list all", "list every", "show every"},
			Build: func(label string, _ map[string]any) (string, error) {
				if label == "" {
					return "", ErrMissingLabel
				}
				return fmt.Sprintf("MATCH (n:%s) RETURN n LIMIT %d", label, defaultLimit), nil
			},
		},
		{
			Name:           "property_filter",
			Description:    "Filter nodes of a label by one property value.",
			TriggerPhrases: []string{"where", "with", "whose"},
			Parameters: []PatternParameter{
				{Name: "property", Description: "the property to filter on"},
				{Name: "value", Description: "the value to match"},
			},
			Build: func(label string, params map[string]any) (string, error) {
				if label == "" {
					return "", ErrMissingLabel
				}
				prop, _ := params["property"].(string)
				if prop == "" {
					return "", fmt.Errorf("querygen: property_filter requires a property parameter")
				}
				return fmt.Sprintf("MATCH (n:%s {%s: $value}) RETURN n LIMIT %d", label, prop, defaultLimit), nil
			},
		},
		{
			Name:           "property_range",
			Description:    "Filter nodes of a label where a property falls in a range.",
			TriggerPhrases: []string{"between", "range", "greater than", "less than", "at least", "at most"},
			Parameters: []PatternParameter{
				{Name: "property", Description: "the property to range-filter"},
			},
			Build: func(label string, params map[string]any) (string, error) {
				if label == "" {
					return "", ErrMissingLabel
				}
				prop, _ := params["property"].(string)
				if prop == "" {
					return "", fmt.Errorf("querygen: property_range requires a property parameter")
				}
				return fmt.Sprintf("MATCH (n:%s) WHERE n.%s >= $min AND n.%s <= $max RETURN n LIMIT %d", label, prop, prop, defaultLimit), nil
			},
		},
		{
			Name:           "temporal_filter",
			Description:    "Filter nodes of a label by a date/time property.",
			TriggerPhrases: []string{"since", "before", "after", "last week", "last month", "recent"},
			Parameters: []PatternParameter{
				{Name: "property", Description: "the date/time property"},
			},
			Build: func(label string, params map[string]any) (string, error) {
				if label == "" {
					return "", ErrMissingLabel
				}
				prop, _ := params["property"].(string)
				if prop == "" {
					prop = "created_at"
				}
				return fmt.Sprintf("MATCH (n:%s) WHERE n.%s >= $since RETURN n LIMIT %d", label, prop, defaultLimit), nil
			},
		},
		{
			Name:           "relationship_traversal",
			Description:    "Traverse a single typed relationship from a label.",
			TriggerPhrases: []string{"connected to", "related to", "linked to"},
			Parameters: []PatternParameter{
				{Name: "relType", Description: "relationship type to traverse"},
				{Name: "targetLabel", Description: "label of the related node"},
			},
			Build: func(label string, params map[string]any) (string, error) {
				if label == "" {
					return "", ErrMissingLabel
				}
				relType, _ := params["relType"].(string)
				targetLabel, _ := params["targetLabel"].(string)
				if relType == "" || targetLabel == "" {
					return "", fmt.Errorf("querygen: relationship_traversal requires relType and targetLabel")
				}
				return fmt.Sprintf("MATCH (n:%s)-[:%s]->(m:%s) RETURN n, m LIMIT %d", label, relType, targetLabel, defaultLimit), nil
			},
		},
		{
			Name:           "multi_hop_traversal",
			Description:    "Traverse two typed relationships from a label.",
			TriggerPhrases: []string{"through", "via", "by way of"},
			Parameters: []PatternParameter{
				{Name: "relType1", Description: "first relationship type"},
				{Name: "midLabel", Description: "intermediate node label"},
				{Name: "relType2", Description: "second relationship type"},
				{Name: "targetLabel", Description: "final node label"},
			},
			Build: func(label string, params map[string]any) (string, error) {
				if label == "" {
					return "", ErrMissingLabel
				}
				relType1, _ := params["relType1"].(string)
				midLabel, _ := params["midLabel"].(string)
				relType2, _ := params["relType2"].(string)
				targetLabel, _ := params["targetLabel"].(string)
				if relType1 == "" || midLabel == "" || relType2 == "" || targetLabel == "" {
					return "", fmt.Errorf("querygen: multi_hop_traversal requires relType1, midLabel, relType2, targetLabel")
				}
				return fmt.Sprintf(
					"MATCH (n:%s)-[:%s]->(m:%s)-[:%s]->(o:%s) RETURN n, m, o LIMIT %d",
					label, relType1, midLabel, relType2, targetLabel, defaultLimit,
				), nil
			},
		},
		{
			Name:           "entity_with_relationship",
			Description:    "Entities of a label that have at least one of a given relationship.",
			TriggerPhrases: []string{"that have", "with a", "having"},
			Parameters: []PatternParameter{
				{Name: "relType", Description: "relationship type to require"},
			},
			Build: func(label string, params map[string]any) (string, error) {
				if label == "" {
					return "", ErrMissingLabel
				}
				relType, _ := params["relType"].(string)
				if relType == "" {
					return "", fmt.Errorf("querygen: entity_with_relationship requires relType")
				}
				return fmt.Sprintf("MATCH (n:%s)-[:%s]->() RETURN DISTINCT n LIMIT %d", label, relType, defaultLimit), nil
			},
		},
		{
			Name:           "entity_without_relationship",
			Description:    "Entities of a label missing a given relationship.",
			TriggerPhrases: []string{"without", "that don't have", "that do not have", "missing"},
			Parameters: []PatternParameter{
				{Name: "relType", Description: "relationship type to exclude"},
			},
			Build: func(label string, params map[string]any) (string, error) {
				if label == "" {
					return "", ErrMissingLabel
				}
				relType, _ := params["relType"].(string)
				if relType == "" {
					return "", fmt.Errorf("querygen: entity_without_relationship requires relType")
				}
				return fmt.Sprintf("MATCH (n:%s) WHERE NOT (n)-[:%s]->() RETURN n LIMIT %d", label, relType, defaultLimit), nil
			},
		},
		{
			Name:           "entity_with_aggregated_relationship",
			Description:    "Entities of a label ranked by relationship count.",
			TriggerPhrases: []string{"most", "fewest", "top", "ranked by"},
			Parameters: []PatternParameter{
				{Name: "relType", Description: "relationship type to aggregate"},
			},
			Build: func(label string, params map[string]any) (string, error) {
				if label == "" {
					return "", ErrMissingLabel
				}
				relType, _ := params["relType"].(string)
				if relType == "" {
					return "", fmt.Errorf("querygen: entity_with_aggregated_relationship requires relType")
				}
				return fmt.Sprintf(
					"MATCH (n:%s)-[:%s]->(m) RETURN n, count(m) AS total ORDER BY total DESC LIMIT %d",
					label, relType, defaultLimit,
				), nil
			},
		},
		{
			Name:           "multiple_property_filter",
			Description:    "Filter nodes of a label by several properties at once.",
			TriggerPhrases: []string{"and also", "as well as"},
			Parameters: []PatternParameter{
				{Name: "properties", Description: "ordered list of property names"},
			},
			Build: func(label string, params map[string]any) (string, error) {
				if label == "" {
					return "", ErrMissingLabel
				}
				props, _ := params["properties"].([]string)
				if len(props) == 0 {
					return "", fmt.Errorf("querygen: multiple_property_filter requires properties")
				}
				conds := make([]string, len(props))
				for i, p := range props {
					conds[i] = fmt.Sprintf("n.%s = $%s", p, p)
				}
				return fmt.Sprintf("MATCH (n:%s) WHERE %s RETURN n LIMIT %d", label, strings.Join(conds, " AND "), defaultLimit), nil
			},
		},
		{
			Name:           "relationship_with_property_filter",
			Description:    "Traverse a relationship and filter the target by a property.",
			TriggerPhrases: []string{"related to ... where", "connected to ... with"},
			Parameters: []PatternParameter{
				{Name: "relType", Description: "relationship type to traverse"},
				{Name: "targetLabel", Description: "label of the related node"},
				{Name: "property", Description: "property on the related node"},
			},
			Build: func(label string, params map[string]any) (string, error) {
				if label == "" {
					return "", ErrMissingLabel
				}
				relType, _ := params["relType"].(string)
				targetLabel, _ := params["targetLabel"].(string)
				prop, _ := params["property"].(string)
				if relType == "" || targetLabel == "" || prop == "" {
					return "", fmt.Errorf("querygen: relationship_with_property_filter requires relType, targetLabel, property")
				}
				return fmt.Sprintf(
					"MATCH (n:%s)-[:%s]->(m:%s {%s: $value}) RETURN n, m LIMIT %d",
					label, relType, targetLabel, prop, defaultLimit,
				), nil
			},
		},
		{
			// "composed" has no formal source semantics for combining a
			// traversal with extra property filters; treated as an AND
			// (intersection) expressed as one MATCH plus one WHERE
			// conjunct per extra filter, not as two queries intersected
			// in Go. See DESIGN.md's Open Question decision.
			Name:           "composed",
			Description:    "Relationship traversal intersected with additional property filters.",
			TriggerPhrases: []string{"that are also", "combined with"},
			Parameters: []PatternParameter{
				{Name: "relType", Description: "relationship type to traverse"},
				{Name: "targetLabel", Description: "label of the related node"},
				{Name: "filters", Description: "map of property -> value applied to the traversal target"},
			},
			Build: func(label string, params map[string]any) (string, error) {
				if label == "" {
					return "", ErrMissingLabel
				}
				relType, _ := params["relType"].(string)
				targetLabel, _ := params["targetLabel"].(string)
				filters, _ := params["filters"].(map[string]string)
				if relType == "" || targetLabel == "" {
					return "", fmt.Errorf("querygen: composed requires relType and targetLabel")
				}
				query := fmt.Sprintf("MATCH (n:%s)-[:%s]->(m:%s)", label, relType, targetLabel)
				if len(filters) > 0 {
					conds := make([]string, 0, len(filters))
					for prop := range filters {
						conds = append(conds, fmt.Sprintf("m.%s = $%s", prop, prop))
					}
					query += " WHERE " + strings.Join(conds, " AND ")
				}
				query += fmt.Sprintf(" RETURN n, m LIMIT %d", defaultLimit)
				return query, nil
			},
		},
	}
}

// scoreTemplate computes a template's match score against question.
// Trigger phrases are synonym alternatives, not a required set: any one
// match gives full coverage (1.0). Coverage scales down only when a
// phrase match is partial (a subset of its words appear, out of order) —
// the common case in practice is a single exact phrase hit.
func scoreTemplate(question string, pattern QueryPattern) float64 {
	if len(pattern.TriggerPhrases) == 0 {
		return 0
	}
	lower := strings.ToLower(question)
	best := 0.0
	for _, phrase := range pattern.TriggerPhrases {
		if strings.Contains(lower, strings.ToLower(phrase)) {
			return 1.0
		}
		coverage := partialWordCoverage(lower, strings.ToLower(phrase))
		if coverage > best {
			best = coverage
		}
	}
	return best
}

// partialWordCoverage returns the fraction of phrase's words individually
// present (word-boundary) in text, for phrases with more than one word.
func partialWordCoverage(text, phrase string) float64 {
	words := strings.Fields(phrase)
	if len(words) < 2 {
		return 0
	}
	found := 0
	for _, w := range words {
		if wordBoundaryPattern(w).MatchString(text) {
			found++
		}
	}
	return float64(found) / float64(len(words))
}

// DetectTemplate returns the best-scoring pattern and its score, or
// ("", 0) if no pattern scores above zero. Case-insensitive per spec §8's
// testable property.
func DetectTemplate(question string, patterns []QueryPattern) (string, float64) {
	best := ""
	bestScore := 0.0
	for _, p := range patterns {
		score := scoreTemplate(question, p)
		if score > bestScore {
			bestScore = score
			best = p.Name
		}
	}
	return best, bestScore
}

func patternByName(patterns []QueryPattern, name string) (QueryPattern, bool) {
	for _, p := range patterns {
		if p.Name == name {
			return p, true
		}
	}
	return QueryPattern{}, false
}
