// Package ingest implements the Ingestion Coordinator: it synchronizes
// entity descriptors into the graph store and vector store together,
// applying compensating rollback when one side of a dual-store write
// fails (spec §4.1).
package ingest

import (
	"fmt"
	"strings"

	"github.com/WessleyAI/knowcore/engine/domain"
)

// Status is the result of IngestSingle.
type Status struct {
	GraphStored          bool
	VectorStored         bool
	RelationshipsCreated int
	Errors               []string
}

// BatchSummary is the result of IngestBatch.
type BatchSummary struct {
	Total              int
	Succeeded          int
	PartiallySucceeded int
	Failed             int
	Errors             map[string]string // entity id -> error
}

// SyncAction records whether Sync created or updated the graph node.
type SyncAction string

const (
	SyncActionCreated SyncAction = "created"
	SyncActionUpdated SyncAction = "updated"
)

// SyncResult is the result of Sync.
type SyncResult struct {
	Action       SyncAction
	GraphSynced  bool
	VectorSynced bool
	Errors       []string
}

// RelationshipSyncResult is the result of SyncRelationships.
type RelationshipSyncResult struct {
	Created int
	Skipped int
	Failed  int
	Errors  []string
}

// embedText joins an entity's configured embed fields with a single
// space, in declaration order (spec §4.1 step 3).
func embedText(e domain.EntityDescriptor) string {
	var parts []string
	for _, field := range e.Vector.EmbedFields {
		v, ok := e.Attributes[field]
		if !ok {
			continue
		}
		if s := fmt.Sprint(v); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// vectorPayload assembles a vector point's payload from the entity's
// configured payload fields plus its id.
func vectorPayload(e domain.EntityDescriptor) map[string]any {
	payload := map[string]any{"id": e.IDString()}
	for _, field := range e.Vector.PayloadFields {
		if v, ok := e.Attributes[field]; ok {
			payload[field] = v
		}
	}
	return payload
}

// graphProps extracts the property subset declared in GraphConfig,
// keyed by the entity id.
func graphProps(e domain.EntityDescriptor) map[string]any {
	props := make(map[string]any, len(e.Graph.Properties)+1)
	props["id"] = e.IDString()
	for _, field := range e.Graph.Properties {
		if v, ok := e.Attributes[field]; ok {
			props[field] = v
		}
	}
	return props
}
