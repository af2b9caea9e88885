package ingest

import (
	"context"
	"errors"

	"github.com/WessleyAI/knowcore/engine/domain"
	"github.com/WessleyAI/knowcore/pkg/natsutil"
	"github.com/nats-io/nats.go"
)

// AutoSyncSubject is the NATS subject auto-sync ingestion is dispatched
// to when Config.Queue is enabled (spec §6 "auto_sync").
const AutoSyncSubject = "ingest.auto_sync"

// AutoSyncOperation names which write a queued message requests.
type AutoSyncOperation string

const (
	OpCreate AutoSyncOperation = "create"
	OpUpdate AutoSyncOperation = "update"
	OpDelete AutoSyncOperation = "delete"
)

// AutoSyncConfig controls whether ingestion runs inline or is dispatched
// into a queue (spec §6 "auto_sync").
type AutoSyncConfig struct {
	Enabled      bool
	Queue        bool
	Operations   map[AutoSyncOperation]bool
	FailSilently bool
}

// DefaultAutoSyncConfig enables all three operations inline.
func DefaultAutoSyncConfig() AutoSyncConfig {
	return AutoSyncConfig{
		Enabled: true,
		Queue:   false,
		Operations: map[AutoSyncOperation]bool{
			OpCreate: true, OpUpdate: true, OpDelete: true,
		},
	}
}

// autoSyncMessage is the envelope published to AutoSyncSubject.
type autoSyncMessage struct {
	Operation AutoSyncOperation
	Entity    domain.EntityDescriptor
}

// Dispatch runs op inline, or publishes it to the auto-sync queue when
// cfg.Queue is set, per spec §6's "auto_sync.queue" switch.
func (c *Coordinator) Dispatch(ctx context.Context, nc *nats.Conn, op AutoSyncOperation, e domain.EntityDescriptor, cfg AutoSyncConfig) error {
	if !cfg.Enabled || !cfg.Operations[op] {
		return nil
	}

	if cfg.Queue {
		return natsutil.Publish(ctx, nc, AutoSyncSubject, autoSyncMessage{Operation: op, Entity: e})
	}

	return c.runInline(ctx, op, e, cfg)
}

func (c *Coordinator) runInline(ctx context.Context, op AutoSyncOperation, e domain.EntityDescriptor, cfg AutoSyncConfig) error {
	var err error
	switch op {
	case OpCreate, OpUpdate:
		result := c.Sync(ctx, e)
		if len(result.Errors) > 0 {
			err = errors.New(result.Errors[0])
		}
	case OpDelete:
		ok, dispatchErr := c.Remove(ctx, e)
		if dispatchErr != nil {
			err = dispatchErr
		} else if !ok {
			err = errors.New("remove: neither store confirmed deletion")
		}
	}
	return c.escalate(err, cfg)
}

// escalate applies the fail_silently policy: DataConsistencyError may be
// swallowed (logged only); CriticalConsistencyError is never swallowed.
func (c *Coordinator) escalate(err error, cfg AutoSyncConfig) error {
	if err == nil {
		return nil
	}

	var critical *domain.CriticalConsistencyError
	if errors.As(err, &critical) {
		return err
	}

	var consistency *domain.DataConsistencyError
	if cfg.FailSilently && errors.As(err, &consistency) {
		c.logger.Warn("ingest: swallowed data consistency error at auto_sync boundary", "error", err)
		return nil
	}
	return err
}

// StartAutoSyncConsumer subscribes to AutoSyncSubject and runs each queued
// operation through the coordinator inline, honoring cfg.FailSilently.
func (c *Coordinator) StartAutoSyncConsumer(nc *nats.Conn, cfg AutoSyncConfig) (*nats.Subscription, error) {
	return natsutil.Subscribe(nc, AutoSyncSubject, func(ctx context.Context, msg autoSyncMessage) {
		if err := c.runInline(ctx, msg.Operation, msg.Entity, cfg); err != nil {
			c.logger.Error("ingest: auto_sync consumer failed", "operation", msg.Operation, "entity_id", msg.Entity.IDString(), "error", err)
		}
	})
}
