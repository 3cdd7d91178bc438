package sync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkarpov/papersync/internal/client/models"
	"github.com/dkarpov/papersync/internal/client/remote"
	"github.com/dkarpov/papersync/internal/client/store"
	"github.com/dkarpov/papersync/internal/common"
	"github.com/dkarpov/papersync/internal/logging"
)

// Coordinator drives the sync session for one signed-in owner: it drains the
// offline queue against the remote document and object stores, pulls remote
// changes back down, and routes divergences to the resolver. One Sync cycle
// runs at a time; overlapping triggers coalesce.
type Coordinator struct {
	store    *store.Store
	docs     remote.DocumentStore
	objects  remote.ObjectStore
	queue    *Queue
	retry    *RetryManager
	resolver *Resolver
	logger   logging.Logger
	bus      *Bus

	owner    string
	interval time.Duration

	mu     sync.Mutex
	paused atomic.Bool
	// since is the highest server change cursor observed this session; the
	// first pull of a session is always full.
	since atomic.Int64
	now   func() time.Time
}

// NewCoordinator wires a Coordinator for owner. interval is the cadence of
// periodic sync while online.
func NewCoordinator(st *store.Store, docs remote.DocumentStore, objects remote.ObjectStore,
	q *Queue, rm *RetryManager, res *Resolver, logger logging.Logger, bus *Bus,
	owner string, interval time.Duration) *Coordinator {
	return &Coordinator{
		store:    st,
		docs:     docs,
		objects:  objects,
		queue:    q,
		retry:    rm,
		resolver: res,
		logger:   logger,
		bus:      bus,
		owner:    owner,
		interval: interval,
		now:      time.Now,
	}
}

// Pause stops future cycles; local operations keep queueing.
func (c *Coordinator) Pause() { c.paused.Store(true) }

// Resume re-enables sync cycles.
func (c *Coordinator) Resume() { c.paused.Store(false) }

// Paused reports whether sync is paused.
func (c *Coordinator) Paused() bool { return c.paused.Load() }

// Run triggers sync cycles until ctx is done: immediately when connectivity
// comes back (transitions arrive on online) and on the periodic interval.
func (c *Coordinator) Run(ctx context.Context, online <-chan bool) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	connected := true
	for {
		select {
		case <-ctx.Done():
			return
		case up, ok := <-online:
			if !ok {
				return
			}
			connected = up
			if up {
				c.syncAndLog(ctx)
			}
		case <-ticker.C:
			if connected {
				c.syncAndLog(ctx)
			}
		}
	}
}

func (c *Coordinator) syncAndLog(ctx context.Context) {
	if _, err := c.Sync(ctx); err != nil {
		c.logger.Warn(ctx, "sync cycle failed", "error", err.Error())
	}
}

// SyncStats summarizes one full cycle.
type SyncStats struct {
	Drain     DrainStats
	Pulled    int
	Conflicts int
	Purged    int64
}

// Sync runs one full push-then-pull cycle. It is a no-op while paused.
func (c *Coordinator) Sync(ctx context.Context) (SyncStats, error) {
	if c.Paused() {
		return SyncStats{}, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	var stats SyncStats

	drain, err := c.queue.Drain(ctx, c.store.Repos().Queue, c.retry, c.apply)
	stats.Drain = drain
	if err != nil {
		return stats, fmt.Errorf("push: %w", err)
	}

	pulled, conflicts, err := c.pull(ctx)
	stats.Pulled, stats.Conflicts = pulled, conflicts
	if err != nil {
		return stats, fmt.Errorf("pull: %w", err)
	}

	// a completed cycle is the safe moment to let old tombstones go
	purged, err := c.store.Repos().Tombstones.PurgeOlderThan(ctx, c.now().Add(-common.TombstoneRetention))
	if err != nil {
		return stats, err
	}
	stats.Purged = purged

	c.logger.Info(ctx, "sync cycle complete",
		"applied", drain.Applied, "failed", drain.Failed, "pulled", pulled, "conflicts", conflicts)
	return stats, nil
}

// RequeueFailed puts parked operations back into the pending queue with a
// fresh retry budget.
func (c *Coordinator) RequeueFailed(ctx context.Context) (int, error) {
	failed, err := c.store.Repos().Queue.ListFailed(ctx)
	if err != nil {
		return 0, err
	}
	for _, op := range failed {
		if err := c.store.Repos().Queue.Requeue(ctx, op.ID); err != nil {
			return 0, err
		}
	}
	return len(failed), nil
}

// apply pushes one queued operation to the remote side.
func (c *Coordinator) apply(ctx context.Context, op *models.SyncOperation) error {
	switch p := op.Payload.(type) {
	case models.CreateDocumentPayload:
		return c.pushDocument(ctx, p.Document)
	case models.UpdateDocumentPayload:
		return c.pushDocument(ctx, p.Document)
	case models.DeleteDocumentPayload:
		return c.pushDeletion(ctx, p)
	case models.UploadFilePayload:
		return c.uploadFile(ctx, p.Attachment)
	case models.DeleteFilePayload:
		return c.objects.Delete(ctx, p.RemoteKey)
	default:
		return fmt.Errorf("%w: unknown operation type %s", common.ErrValidation, op.Type)
	}
}

func (c *Coordinator) pushDocument(ctx context.Context, doc models.Document) error {
	c.bus.Publish(Event{Type: EventUploading, SyncID: doc.SyncID})
	_ = c.store.WithTx(ctx, func(ctx context.Context, r *store.Repos) error {
		// best effort; the row may already be gone
		return r.Documents.UpdateState(ctx, doc.SyncID, models.StateUploading)
	})

	payload := remote.RemoteDocument{Document: doc}
	atts, err := c.store.Repos().Attachments.ListByDocument(ctx, doc.SyncID)
	if err != nil {
		return err
	}
	for _, a := range atts {
		payload.Attachments = append(payload.Attachments, *a)
	}

	version, err := c.docs.Put(ctx, payload)
	switch {
	case err == nil:
		return c.confirmPush(ctx, doc.SyncID, version)
	case errors.Is(err, common.ErrVersionConflict):
		return c.handleVersionConflict(ctx, doc.SyncID)
	case errors.Is(err, common.ErrTombstoned):
		// the id was deleted elsewhere; deletion wins over the edit
		return c.applyRemoteDeletion(ctx, doc.SyncID, "")
	default:
		_ = c.store.WithTx(ctx, func(ctx context.Context, r *store.Repos) error {
			return r.Documents.UpdateState(ctx, doc.SyncID, models.StatePendingUpload)
		})
		return err
	}
}

func (c *Coordinator) confirmPush(ctx context.Context, syncID string, version int64) error {
	err := c.store.WithTx(ctx, func(ctx context.Context, r *store.Repos) error {
		d, err := r.Documents.Get(ctx, syncID)
		if err != nil {
			return err
		}
		d.Version = version
		d.EverSynced = true
		d.SyncState = models.StateSynced
		return r.Documents.Update(ctx, d)
	})
	if err != nil {
		return err
	}
	c.bus.Publish(Event{Type: EventSynced, SyncID: syncID})
	return nil
}

// handleVersionConflict runs when a push hit a stale version. The remote copy
// is fetched and either absorbed or turned into an open conflict; the queued
// operation is consumed either way.
func (c *Coordinator) handleVersionConflict(ctx context.Context, syncID string) error {
	rd, err := c.docs.Get(ctx, syncID)
	if err != nil {
		return err
	}
	if rd.Deleted {
		return c.applyRemoteDeletion(ctx, syncID, "")
	}

	return c.store.WithTx(ctx, func(ctx context.Context, r *store.Repos) error {
		local, err := r.Documents.Get(ctx, syncID)
		if err != nil {
			return err
		}
		switch Match(local, &rd.Document) {
		case MatchIdentical, MatchRemoteNewer:
			return c.absorbRemote(ctx, r, local, rd)
		default:
			_, err := c.resolver.Detect(ctx, r, local, rd.Document)
			return err
		}
	})
}

func (c *Coordinator) uploadFile(ctx context.Context, att models.FileAttachment) error {
	f, err := os.Open(att.LocalPath)
	if err != nil {
		return fmt.Errorf("%w: attachment content missing: %v", common.ErrPermanentFailure, err)
	}
	defer f.Close()

	key := remote.ObjectKey(c.owner, att.DocumentSyncID, att.FileName)
	c.bus.Publish(Event{Type: EventUploading, SyncID: att.SyncID})

	err = c.objects.Upload(ctx, key, f, att.FileSize, func(transferred, total int64) {
		c.logger.Debug(ctx, "uploading attachment",
			"syncId", att.SyncID, "transferred", transferred, "total", total)
	})
	if err != nil {
		return err
	}

	err = c.store.WithTx(ctx, func(ctx context.Context, r *store.Repos) error {
		stored, err := r.Attachments.Get(ctx, att.SyncID)
		if err != nil {
			return err
		}
		stored.RemoteKey = key
		return r.Attachments.Update(ctx, stored)
	})
	if err != nil {
		return err
	}

	// Queue a metadata push so other devices learn the object key without
	// waiting for the next content edit. Going through the queue keeps
	// document writes serialized even when several attachments of one
	// document upload concurrently. Best effort: the document may be
	// mid-edit or already gone.
	if doc, derr := c.store.Repos().Documents.Get(ctx, att.DocumentSyncID); derr == nil && doc.SyncState == models.StateSynced {
		qerr := c.store.WithTx(ctx, func(ctx context.Context, r *store.Repos) error {
			return c.queue.Enqueue(ctx, r.Queue, &models.SyncOperation{
				EntitySyncID: doc.SyncID,
				Type:         models.OpUpdateDocument,
				Payload:      models.UpdateDocumentPayload{Document: *doc},
				QueuedAt:     c.now().UTC(),
				Status:       models.OpStatusPending,
			})
		})
		if qerr != nil {
			c.logger.Warn(ctx, "attachment key propagation failed", "syncId", att.SyncID, "error", qerr.Error())
		}
	}

	c.bus.Publish(Event{Type: EventSynced, SyncID: att.SyncID})
	return nil
}

// DownloadAttachment fetches the content of a remote-known attachment into
// destPath and records the local path.
func (c *Coordinator) DownloadAttachment(ctx context.Context, syncID, destPath string, progress remote.Progress) error {
	att, err := c.store.Repos().Attachments.Get(ctx, syncID)
	if err != nil {
		return err
	}
	if !att.Uploaded() {
		return fmt.Errorf("%w: attachment %s has no remote content", common.ErrValidation, syncID)
	}

	f, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := c.objects.Download(ctx, att.RemoteKey, f, progress); err != nil {
		return err
	}

	att.LocalPath = destPath
	return c.store.Repos().Attachments.Update(ctx, att)
}

func (c *Coordinator) pushDeletion(ctx context.Context, p models.DeleteDocumentPayload) error {
	if err := c.docs.Delete(ctx, p.SyncID, p.Version); err != nil {
		return err
	}
	return c.store.WithTx(ctx, func(ctx context.Context, r *store.Repos) error {
		if err := r.Attachments.DeleteByDocument(ctx, p.SyncID); err != nil {
			return err
		}
		err := r.Documents.Delete(ctx, p.SyncID)
		if errors.Is(err, common.ErrNotFound) {
			return nil
		}
		return err
	})
}

// pull brings remote changes down: new and updated documents, tombstoned
// deletions, and attachment metadata.
func (c *Coordinator) pull(ctx context.Context) (pulled, conflicts int, err error) {
	remotes, err := c.docs.List(ctx, c.since.Load())
	if err != nil {
		return 0, 0, err
	}

	watermark := c.since.Load()
	for _, rd := range remotes {
		if rd.Seq > watermark {
			watermark = rd.Seq
		}

		if rd.Deleted {
			if err := c.applyRemoteDeletion(ctx, rd.Document.SyncID, rd.Document.OwnerID); err != nil {
				return pulled, conflicts, err
			}
			pulled++
			continue
		}

		conflicted, err := c.applyRemoteDocument(ctx, rd)
		if err != nil {
			return pulled, conflicts, err
		}
		pulled++
		if conflicted {
			conflicts++
		}
	}

	c.since.Store(watermark)
	return pulled, conflicts, nil
}

func (c *Coordinator) applyRemoteDocument(ctx context.Context, rd *remote.RemoteDocument) (conflicted bool, err error) {
	syncID := rd.Document.SyncID

	// ids on the local deletion ledger never come back
	dead, err := c.store.Repos().Tombstones.Exists(ctx, syncID)
	if err != nil {
		return false, err
	}
	if dead {
		return false, nil
	}

	err = c.store.WithTx(ctx, func(ctx context.Context, r *store.Repos) error {
		local, err := r.Documents.Get(ctx, syncID)
		if errors.Is(err, common.ErrNotFound) {
			d := rd.Document.Clone()
			d.SyncState = models.StateSynced
			d.EverSynced = true
			d.Rehash()
			if err := r.Documents.Insert(ctx, d); err != nil {
				return err
			}
			if err := c.reconcileAttachments(ctx, r, rd); err != nil {
				return err
			}
			c.bus.Publish(Event{Type: EventSynced, SyncID: syncID})
			return nil
		}
		if err != nil {
			return err
		}

		switch Match(local, &rd.Document) {
		case MatchIdentical:
			if local.Version != rd.Document.Version {
				local.Version = rd.Document.Version
				return r.Documents.Update(ctx, local)
			}
			return nil
		case MatchLocalNewer:
			// the push side owns this document
			return nil
		case MatchRemoteNewer:
			return c.absorbRemote(ctx, r, local, rd)
		default:
			_, derr := c.resolver.Detect(ctx, r, local, rd.Document)
			conflicted = true
			return derr
		}
	})
	return conflicted, err
}

// absorbRemote overwrites the local copy with the remote one.
func (c *Coordinator) absorbRemote(ctx context.Context, r *store.Repos, local *models.Document, rd *remote.RemoteDocument) error {
	d := rd.Document.Clone()
	d.SyncState = models.StateSynced
	d.EverSynced = true
	d.ConflictID = local.ConflictID
	d.Rehash()
	if err := r.Documents.Update(ctx, d); err != nil {
		return err
	}
	if err := c.reconcileAttachments(ctx, r, rd); err != nil {
		return err
	}
	c.bus.Publish(Event{Type: EventSynced, SyncID: d.SyncID})
	return nil
}

// reconcileAttachments adds attachment records the remote knows and this
// device does not. Content stays remote until explicitly downloaded.
func (c *Coordinator) reconcileAttachments(ctx context.Context, r *store.Repos, rd *remote.RemoteDocument) error {
	existing, err := r.Attachments.ListByDocument(ctx, rd.Document.SyncID)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(existing))
	for _, a := range existing {
		known[a.SyncID] = true
	}

	for _, ra := range rd.Attachments {
		if known[ra.SyncID] {
			continue
		}
		a := ra
		a.LocalPath = ""
		if err := r.Attachments.Insert(ctx, &a); err != nil {
			return err
		}
	}
	return nil
}

// applyRemoteDeletion removes the local copy of a remotely deleted document
// and records the tombstone. Unsynced local edits are preserved as a new
// document first rather than silently discarded.
func (c *Coordinator) applyRemoteDeletion(ctx context.Context, syncID, owner string) error {
	if owner == "" {
		owner = c.owner
	}
	return c.store.WithTx(ctx, func(ctx context.Context, r *store.Repos) error {
		local, err := r.Documents.Get(ctx, syncID)
		if err != nil && !errors.Is(err, common.ErrNotFound) {
			return err
		}

		if local != nil && localDirty(local.SyncState) {
			if err := c.resolver.preserveCopy(ctx, r, local); err != nil {
				return err
			}
		}

		if local != nil {
			if err := r.Attachments.DeleteByDocument(ctx, syncID); err != nil {
				return err
			}
			if err := r.Queue.DeleteByEntity(ctx, syncID); err != nil {
				return err
			}
			if err := r.Documents.Delete(ctx, syncID); err != nil {
				return err
			}
		}

		return r.Tombstones.Insert(ctx, &models.Tombstone{
			SyncID:    syncID,
			OwnerID:   owner,
			DeletedAt: c.now().UTC(),
			DeletedBy: "remote",
			Reason:    "deleted on another device",
		})
	})
}
