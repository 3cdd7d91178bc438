package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkarpov/papersync/internal/client/models"
	"github.com/dkarpov/papersync/internal/client/repositories/queue"
	"github.com/dkarpov/papersync/internal/common"
	"github.com/dkarpov/papersync/internal/logging"
	"golang.org/x/sync/errgroup"
)

// Queue is the consolidating offline operation queue. Enqueue collapses
// redundant operations per entity before they ever reach the network;
// Drain applies pending operations oldest-first per entity.
//
// The queue is an explicit service object (no package-level state) so each
// session, and each test, owns an isolated instance.
type Queue struct {
	logger logging.Logger
	bus    *Bus

	// MaxDrainAttempts is how many drain cycles may fail for one operation
	// before it is parked as failed and surfaced to the caller.
	MaxDrainAttempts int

	// MaxFileTransfers bounds concurrent uploads of independent attachments.
	MaxFileTransfers int
}

// NewQueue constructs a Queue publishing lifecycle events to bus.
func NewQueue(logger logging.Logger, bus *Bus) *Queue {
	return &Queue{
		logger:           logger,
		bus:              bus,
		MaxDrainAttempts: 5,
		MaxFileTransfers: common.MaxFileTransfers,
	}
}

// Enqueue records op durably, consolidating with pending operations for the
// same entity: create+update collapses into one create carrying the final
// state, update+delete into a delete, and a create+delete of a never-pushed
// entity vanishes entirely. The repo is typically transaction-bound so the
// queue entry commits atomically with the local mutation.
func (q *Queue) Enqueue(ctx context.Context, repo queue.Repository, op *models.SyncOperation) error {
	pending, err := repo.ListPendingByEntity(ctx, op.EntitySyncID)
	if err != nil {
		return err
	}

	if len(pending) == 0 {
		if _, err := repo.Insert(ctx, op); err != nil {
			return err
		}
		q.publish(EventQueued, op.EntitySyncID)
		return nil
	}

	// one consolidated operation per entity is the steady state
	last := pending[len(pending)-1]

	merged, drop, err := consolidate(last, op)
	if err != nil {
		return err
	}
	if drop {
		if err := repo.DeleteByEntity(ctx, op.EntitySyncID); err != nil {
			return err
		}
		q.logger.Debug(ctx, "queue entries dropped by consolidation", "entity", op.EntitySyncID)
		return nil
	}
	if err := repo.Update(ctx, merged); err != nil {
		return err
	}
	q.publish(EventQueued, op.EntitySyncID)
	return nil
}

// consolidate merges an incoming operation into the pending one for the
// same entity. It returns the rewritten pending operation, or drop=true
// when both cancel out.
func consolidate(pending, incoming *models.SyncOperation) (*models.SyncOperation, bool, error) {
	switch in := incoming.Payload.(type) {

	case models.CreateDocumentPayload:
		if pending.Type == models.OpDeleteDocument {
			return nil, false, fmt.Errorf("%w: %s", common.ErrTombstoned, incoming.EntitySyncID)
		}
		return nil, false, fmt.Errorf("%w: create already queued for %s",
			common.ErrDuplicateID, incoming.EntitySyncID)

	case models.UpdateDocumentPayload:
		switch pending.Type {
		case models.OpCreateDocument:
			// the remote never saw this entity; fold the edit into the create
			pending.Payload = models.CreateDocumentPayload{Document: in.Document}
			return pending, false, nil
		case models.OpUpdateDocument:
			pending.Payload = in
			return pending, false, nil
		case models.OpDeleteDocument:
			return nil, false, fmt.Errorf("%w: cannot update deleted %s",
				common.ErrValidation, incoming.EntitySyncID)
		}

	case models.DeleteDocumentPayload:
		switch pending.Type {
		case models.OpCreateDocument:
			// never reached the remote: nothing to delete there
			return nil, true, nil
		case models.OpUpdateDocument:
			pending.Type = models.OpDeleteDocument
			pending.Payload = in
			return pending, false, nil
		case models.OpDeleteDocument:
			return pending, false, nil
		}

	case models.UploadFilePayload:
		if pending.Type == models.OpUploadFile {
			pending.Payload = in
			return pending, false, nil
		}
		return nil, false, fmt.Errorf("%w: upload after delete for %s",
			common.ErrValidation, incoming.EntitySyncID)

	case models.DeleteFilePayload:
		switch pending.Type {
		case models.OpUploadFile:
			up := pending.Payload.(models.UploadFilePayload)
			if !up.Attachment.Uploaded() {
				// content never left this device
				return nil, true, nil
			}
			pending.Type = models.OpDeleteFile
			pending.Payload = in
			return pending, false, nil
		case models.OpDeleteFile:
			return pending, false, nil
		}
	}

	return nil, false, fmt.Errorf("%w: cannot consolidate %s onto %s",
		common.ErrValidation, incoming.Type, pending.Type)
}

// ApplyFunc applies one consolidated operation against the remote side.
type ApplyFunc func(ctx context.Context, op *models.SyncOperation) error

// DrainStats summarizes one drain cycle.
type DrainStats struct {
	Applied int
	Failed  int
	Skipped int
}

// Drain processes pending operations. Document operations run on a single
// worker in queue order, so writes to one entity are never concurrent and
// causal order holds. Independent attachment transfers run concurrently,
// bounded by MaxFileTransfers. Each attempt goes through rm; an operation
// that keeps failing past MaxDrainAttempts is parked as failed.
func (q *Queue) Drain(ctx context.Context, repo queue.Repository, rm *RetryManager, apply ApplyFunc) (DrainStats, error) {
	pending, err := repo.ListPending(ctx)
	if err != nil {
		return DrainStats{}, err
	}

	var stats DrainStats

	var docOps []*models.SyncOperation
	fileGroups := make(map[string][]*models.SyncOperation)
	var fileOrder []string

	for _, op := range pending {
		switch op.Type {
		case models.OpUploadFile, models.OpDeleteFile:
			if _, seen := fileGroups[op.EntitySyncID]; !seen {
				fileOrder = append(fileOrder, op.EntitySyncID)
			}
			fileGroups[op.EntitySyncID] = append(fileGroups[op.EntitySyncID], op)
		default:
			docOps = append(docOps, op)
		}
	}

	// document metadata: strictly sequential
	blocked := make(map[string]bool)
	for _, op := range docOps {
		if blocked[op.EntitySyncID] {
			stats.Skipped++
			continue
		}
		switch q.applyOne(ctx, repo, rm, apply, op) {
		case applied:
			stats.Applied++
		case parked:
			stats.Failed++
			blocked[op.EntitySyncID] = true
		case deferred:
			stats.Skipped++
			blocked[op.EntitySyncID] = true
		}
	}

	// attachments: bounded parallelism across entities, order kept within one
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(q.MaxFileTransfers)
	results := make(chan applyResult, len(pending))

	for _, entity := range fileOrder {
		ops := fileGroups[entity]
		g.Go(func() error {
			for _, op := range ops {
				r := q.applyOne(gctx, repo, rm, apply, op)
				results <- r
				if r != applied {
					break
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	close(results)
	for r := range results {
		switch r {
		case applied:
			stats.Applied++
		case parked:
			stats.Failed++
		case deferred:
			stats.Skipped++
		}
	}

	return stats, nil
}

type applyResult int

const (
	applied applyResult = iota
	parked
	deferred
)

func (q *Queue) applyOne(ctx context.Context, repo queue.Repository, rm *RetryManager, apply ApplyFunc, op *models.SyncOperation) applyResult {
	err := rm.Execute(ctx, string(op.Type), func(ctx context.Context) error {
		return apply(ctx, op)
	})
	if err == nil {
		if derr := repo.Delete(ctx, op.ID); derr != nil {
			q.logger.Error(ctx, "failed to remove applied operation", "id", op.ID, "error", derr.Error())
		}
		return applied
	}

	if errors.Is(err, common.ErrCircuitOpen) {
		// dependency is down; leave pending for the next drain
		return deferred
	}

	if ierr := repo.IncrementRetry(ctx, op.ID); ierr != nil {
		q.logger.Error(ctx, "failed to bump retry count", "id", op.ID, "error", ierr.Error())
	}
	op.RetryCount++

	if !Retryable(err) || op.RetryCount >= q.MaxDrainAttempts {
		if merr := repo.MarkFailed(ctx, op.ID); merr != nil {
			q.logger.Error(ctx, "failed to park operation", "id", op.ID, "error", merr.Error())
		}
		q.logger.Warn(ctx, "operation parked after repeated failures",
			"id", op.ID, "entity", op.EntitySyncID, "type", op.Type, "error", err.Error())
		q.bus.Publish(Event{Type: EventError, SyncID: op.EntitySyncID, Err: err.Error()})
		return parked
	}

	q.logger.Debug(ctx, "operation deferred", "id", op.ID, "error", err.Error())
	return deferred
}

func (q *Queue) publish(t EventType, syncID string) {
	q.bus.Publish(Event{Type: t, SyncID: syncID})
}
