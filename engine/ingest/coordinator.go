package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/WessleyAI/knowcore/engine/domain"
	"github.com/WessleyAI/knowcore/engine/embedprovider"
	"github.com/WessleyAI/knowcore/engine/graphstore"
	"github.com/WessleyAI/knowcore/engine/vectorstore"
	"github.com/WessleyAI/knowcore/pkg/fn"
	"github.com/WessleyAI/knowcore/pkg/metrics"
)

// Coordinator is the Ingestion Coordinator (spec §4.1).
type Coordinator struct {
	graph  graphstore.Provider
	vector vectorstore.Provider
	embed  embedprovider.Provider
	logger *slog.Logger

	ingested   *metrics.Counter
	rolledBack *metrics.Counter
	critical   *metrics.Counter
}

// New creates a Coordinator. A nil logger defaults to slog.Default(); a
// nil registry disables metrics recording.
func New(graph graphstore.Provider, vector vectorstore.Provider, embed embedprovider.Provider, logger *slog.Logger, reg *metrics.Registry) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Coordinator{graph: graph, vector: vector, embed: embed, logger: logger}
	if reg != nil {
		c.ingested = reg.Counter("ingest_entities_total", "entities ingested")
		c.rolledBack = reg.Counter("ingest_rollbacks_total", "compensating rollbacks attempted")
		c.critical = reg.Counter("ingest_critical_inconsistencies_total", "rollback attempts that themselves failed")
	}
	return c
}

// IngestSingle writes one entity into both stores, applying compensating
// rollback on partial failure (spec §4.1 "Ingest single").
func (c *Coordinator) IngestSingle(ctx context.Context, e domain.EntityDescriptor) (Status, error) {
	status := Status{}

	if e.Graph.Label == "" {
		return status, domain.ErrNotDescriptor
	}

	if err := c.graph.CreateNode(ctx, e.Graph.Label, graphProps(e)); err != nil {
		status.Errors = append(status.Errors, fmt.Sprintf("graph create: %v", err))
		return status, &domain.DataConsistencyError{
			EntityID: e.IDString(), Operation: "ingest",
			GraphSuccess: false, VectorSuccess: false, RolledBack: false,
		}
	}
	status.GraphStored = true

	status.RelationshipsCreated = c.createRelationships(ctx, e, &status.Errors)

	text := embedText(e)
	if text == "" {
		return c.rollbackAfterVectorFailure(ctx, e, &status, fmt.Errorf("%w", domain.ErrMissingEmbedField))
	}

	vec, err := c.embed.Embed(ctx, text)
	if err != nil {
		return c.rollbackAfterVectorFailure(ctx, e, &status, fmt.Errorf("embed: %w", err))
	}

	point := vectorstore.Point{ID: e.IDString(), Vector: vec, Payload: vectorPayload(e)}
	if err := c.vector.Upsert(ctx, e.Vector.Collection, []vectorstore.Point{point}); err != nil {
		return c.rollbackAfterVectorFailure(ctx, e, &status, fmt.Errorf("vector upsert: %w", err))
	}
	status.VectorStored = true

	if c.ingested != nil {
		c.ingested.Inc()
	}
	return status, nil
}

// rollbackAfterVectorFailure implements spec §4.1's compensating-delete
// path: graph succeeded, vector failed, so the graph node is deleted to
// restore a consistent (empty) state.
func (c *Coordinator) rollbackAfterVectorFailure(ctx context.Context, e domain.EntityDescriptor, status *Status, cause error) (Status, error) {
	status.Errors = append(status.Errors, cause.Error())

	deleted, delErr := c.graph.DeleteNode(ctx, e.Graph.Label, e.IDString())
	if c.rolledBack != nil {
		c.rolledBack.Inc()
	}
	if delErr != nil || !deleted {
		if c.critical != nil {
			c.critical.Inc()
		}
		critical := &domain.CriticalConsistencyError{EntityID: e.IDString(), Operation: "ingest", Cause: cause}
		c.logger.Error("ingest: compensating rollback failed, manual reconciliation required",
			"entity_id", e.IDString(), "cause", cause, "delete_error", delErr)
		return *status, critical
	}

	status.GraphStored = false
	c.logger.Warn("ingest: rolled back graph write after vector failure", "entity_id", e.IDString(), "cause", cause)
	return *status, &domain.DataConsistencyError{
		EntityID: e.IDString(), Operation: "ingest",
		GraphSuccess: true, VectorSuccess: false, RolledBack: true,
	}
}

// createRelationships attempts every declared edge whose foreign key is
// present and non-null, skipping (not erroring) when the target node
// does not yet exist.
func (c *Coordinator) createRelationships(ctx context.Context, e domain.EntityDescriptor, errs *[]string) int {
	created := 0
	for _, edge := range e.Graph.Edges {
		fk, ok := e.Attributes[edge.ForeignKey]
		if !ok || fk == nil {
			continue
		}
		targetID := fmt.Sprint(fk)

		exists, err := c.graph.NodeExists(ctx, edge.TargetLabel, targetID)
		if err != nil {
			*errs = append(*errs, fmt.Sprintf("relationship %s check: %v", edge.Type, err))
			continue
		}
		if !exists {
			continue
		}

		ok, err = c.graph.CreateRelationship(ctx, e.Graph.Label, e.IDString(), edge.TargetLabel, targetID, edge.Type, nil)
		if err != nil {
			*errs = append(*errs, fmt.Sprintf("relationship %s create: %v", edge.Type, err))
			continue
		}
		if ok {
			created++
		}
	}
	return created
}

// IngestBatch writes every entity's graph node sequentially, then groups
// entities by vector collection to embed and upsert in G calls instead of
// N (spec §4.1 "Ingest batch").
func (c *Coordinator) IngestBatch(ctx context.Context, entities []domain.EntityDescriptor) BatchSummary {
	summary := BatchSummary{Total: len(entities), Errors: make(map[string]string)}

	graphOK := make(map[string]bool, len(entities))
	valid := make([]domain.EntityDescriptor, 0, len(entities))

	for _, e := range entities {
		if e.Graph.Label == "" {
			summary.Failed++
			summary.Errors[e.IDString()] = domain.ErrNotDescriptor.Error()
			continue
		}
		valid = append(valid, e)

		if err := c.graph.CreateNode(ctx, e.Graph.Label, graphProps(e)); err != nil {
			summary.Errors[e.IDString()] = fmt.Sprintf("graph create: %v", err)
			continue
		}
		graphOK[e.IDString()] = true
	}

	groups := fn.GroupBy(valid, func(e domain.EntityDescriptor) string { return e.Vector.Collection })

	vectorOK := make(map[string]bool, len(valid))
	for collection, group := range groups {
		c.upsertGroup(ctx, collection, group, vectorOK, summary.Errors)
	}

	for _, e := range valid {
		id := e.IDString()
		switch {
		case graphOK[id] && vectorOK[id]:
			summary.Succeeded++
		case graphOK[id] || vectorOK[id]:
			summary.PartiallySucceeded++
		default:
			summary.Failed++
			if _, has := summary.Errors[id]; !has {
				summary.Errors[id] = "both graph and vector writes failed"
			}
		}
	}

	if c.ingested != nil {
		c.ingested.Add(int64(summary.Succeeded))
	}
	return summary
}

func (c *Coordinator) upsertGroup(ctx context.Context, collection string, group []domain.EntityDescriptor, vectorOK map[string]bool, errs map[string]string) {
	texts := fn.Map(group, embedText)
	vecs, err := c.embed.EmbedBatch(ctx, texts)
	if err != nil {
		for _, e := range group {
			errs[e.IDString()] = fmt.Sprintf("embed batch: %v", err)
		}
		return
	}

	points := make([]vectorstore.Point, 0, len(group))
	for i, e := range group {
		if i >= len(vecs) || texts[i] == "" {
			errs[e.IDString()] = "embed batch: missing embedding"
			continue
		}
		points = append(points, vectorstore.Point{ID: e.IDString(), Vector: vecs[i], Payload: vectorPayload(e)})
	}

	if err := c.vector.Upsert(ctx, collection, points); err != nil {
		for _, e := range group {
			errs[e.IDString()] = fmt.Sprintf("vector upsert: %v", err)
		}
		return
	}

	for _, p := range points {
		vectorOK[p.ID] = true
	}
}

// Remove deletes an entity from both stores (spec §4.1 "Remove").
func (c *Coordinator) Remove(ctx context.Context, e domain.EntityDescriptor) (bool, error) {
	graphDeleted, graphErr := c.graph.DeleteNode(ctx, e.Graph.Label, e.IDString())
	vectorErr := c.vector.DeletePoints(ctx, e.Vector.Collection, []string{e.IDString()})

	switch {
	case graphDeleted && vectorErr == nil:
		return true, nil
	case graphDeleted && vectorErr != nil:
		if err := c.graph.CreateNode(ctx, e.Graph.Label, graphProps(e)); err != nil {
			if c.critical != nil {
				c.critical.Inc()
			}
			return false, &domain.CriticalConsistencyError{EntityID: e.IDString(), Operation: "remove", Cause: vectorErr}
		}
		if c.rolledBack != nil {
			c.rolledBack.Inc()
		}
		return false, &domain.DataConsistencyError{
			EntityID: e.IDString(), Operation: "remove",
			GraphSuccess: false, VectorSuccess: false, RolledBack: true,
		}
	case !graphDeleted && vectorErr == nil:
		return true, nil
	default:
		_ = graphErr
		return false, nil
	}
}

// Sync creates or updates the graph node depending on whether it already
// exists, and always upserts the vector side (spec §4.1 "Sync").
func (c *Coordinator) Sync(ctx context.Context, e domain.EntityDescriptor) SyncResult {
	result := SyncResult{}

	exists, err := c.graph.NodeExists(ctx, e.Graph.Label, e.IDString())
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("node exists check: %v", err))
	}

	if exists {
		result.Action = SyncActionUpdated
		if err := c.graph.UpdateNode(ctx, e.Graph.Label, e.IDString(), graphProps(e)); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("graph update: %v", err))
		} else {
			result.GraphSynced = true
		}
	} else {
		result.Action = SyncActionCreated
		if err := c.graph.CreateNode(ctx, e.Graph.Label, graphProps(e)); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("graph create: %v", err))
		} else {
			result.GraphSynced = true
		}
	}

	text := embedText(e)
	if text == "" {
		result.Errors = append(result.Errors, domain.ErrMissingEmbedField.Error())
		return result
	}
	vec, err := c.embed.Embed(ctx, text)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("embed: %v", err))
		return result
	}
	point := vectorstore.Point{ID: e.IDString(), Vector: vec, Payload: vectorPayload(e)}
	if err := c.vector.Upsert(ctx, e.Vector.Collection, []vectorstore.Point{point}); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("vector upsert: %v", err))
		return result
	}
	result.VectorSynced = true
	return result
}

// SyncRelationships creates any declared edge whose endpoints both
// currently exist and which is not already present, for every entity in
// the batch. Idempotent (spec §4.1 "Sync relationships").
func (c *Coordinator) SyncRelationships(ctx context.Context, entities []domain.EntityDescriptor) RelationshipSyncResult {
	result := RelationshipSyncResult{}

	for _, e := range entities {
		for _, edge := range e.Graph.Edges {
			fk, ok := e.Attributes[edge.ForeignKey]
			if !ok || fk == nil {
				result.Skipped++
				continue
			}
			targetID := fmt.Sprint(fk)

			fromExists, err := c.graph.NodeExists(ctx, e.Graph.Label, e.IDString())
			if err != nil {
				result.Failed++
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", edge.Type, err))
				continue
			}
			toExists, err := c.graph.NodeExists(ctx, edge.TargetLabel, targetID)
			if err != nil {
				result.Failed++
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", edge.Type, err))
				continue
			}
			if !fromExists || !toExists {
				result.Skipped++
				continue
			}

			created, err := c.graph.CreateRelationship(ctx, e.Graph.Label, e.IDString(), edge.TargetLabel, targetID, edge.Type, nil)
			if err != nil {
				result.Failed++
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", edge.Type, err))
				continue
			}
			if created {
				result.Created++
			} else {
				result.Skipped++
			}
		}
	}
	return result
}
