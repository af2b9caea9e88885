// Package domain defines the data model shared by every component of the
// question-answering core: entity descriptors, scopes, and the error
// taxonomy components raise against them.
package domain

import "strconv"

// EntityID is the set of types a domain entity may be keyed by.
type EntityID interface {
	~string | ~int | ~int64
}

// EntityDescriptor is the canonical input record for a domain object
// presented to the core. The core never discovers this shape on its own;
// callers (an ORM, a fluent builder, a static config file) supply it.
type EntityDescriptor struct {
	ID         any
	Attributes map[string]any
	Graph      GraphConfig
	Vector     VectorConfig
	Metadata   EntityMetadata
}

// GraphConfig describes how an entity maps onto a graph node and its
// outgoing relationships.
type GraphConfig struct {
	Label      string
	Properties []string
	Edges      []EdgeConfig
}

// EdgeConfig describes one outgoing relationship declared by an entity.
type EdgeConfig struct {
	Type        string
	TargetLabel string
	ForeignKey  string
	Properties  []string
}

// VectorConfig describes how an entity maps onto a vector point.
type VectorConfig struct {
	Collection    string
	EmbedFields   []string
	PayloadFields []string
}

// EntityMetadata carries prompt-time hints: aliases used for entity
// detection in free-form questions, and the scopes declared against this
// entity type.
type EntityMetadata struct {
	Aliases []string
	Scopes  []Scope
}

// IDString renders the descriptor's id as a string, the form every graph
// and vector operation keys on.
func (e EntityDescriptor) IDString() string {
	switch v := e.ID.(type) {
	case string:
		return v
	case int:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		// JSON numbers decode to float64; entity ids arriving over HTTP
		// land here rather than as int.
		return strconv.FormatInt(int64(v), 10)
	default:
		return ""
	}
}
