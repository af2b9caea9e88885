package domain

// ScopeKind identifies which of the three scope specification shapes a
// Scope carries.
type ScopeKind string

const (
	ScopePropertyFilter        ScopeKind = "property_filter"
	ScopeRelationshipTraversal ScopeKind = "relationship_traversal"
	ScopePattern               ScopeKind = "pattern"
)

// Scope is a named, reusable filter attached to an entity's metadata.
type Scope struct {
	Name       string
	Kind       ScopeKind
	Property   *PropertyFilter
	Traversal  *RelationshipTraversal
	PatternRef *PatternReference
}

// PropertyFilter is "attribute op value".
type PropertyFilter struct {
	Attribute string
	Op        string // =, !=, <, <=, >, >=, contains, in
	Value     any
}

// TraversalStep is one hop of a relationship traversal.
type TraversalStep struct {
	EdgeType  string
	Direction string // "out", "in", "either"
	Label     string
	Filter    *PropertyFilter
}

// RelationshipTraversal walks a path of typed edges from a starting label.
type RelationshipTraversal struct {
	StartLabel string
	Steps      []TraversalStep
	Distinct   bool
}

// PatternReference points at a query pattern in the pattern library plus
// the concrete parameters to instantiate it with.
type PatternReference struct {
	PatternName string
	Parameters  map[string]any
}
