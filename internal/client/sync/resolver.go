package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/dkarpov/papersync/internal/client/models"
	"github.com/dkarpov/papersync/internal/client/store"
	"github.com/dkarpov/papersync/internal/common"
	"github.com/dkarpov/papersync/internal/identity"
	"github.com/dkarpov/papersync/internal/logging"
)

// Resolver settles divergent local and remote copies of a document. Both
// versions stay untouched in the conflict record until a strategy is applied;
// the winner always keeps the original sync id, and losing content that would
// otherwise vanish is preserved as a new document under a fresh sync id.
type Resolver struct {
	queue  *Queue
	logger logging.Logger
	bus    *Bus
	now    func() time.Time
}

// NewResolver constructs a Resolver enqueueing follow-up operations on q.
func NewResolver(q *Queue, logger logging.Logger, bus *Bus) *Resolver {
	return &Resolver{queue: q, logger: logger, bus: bus, now: time.Now}
}

// Detect opens a conflict for a document whose local and remote copies have
// diverged. The local row moves to the conflict state and keeps a pointer to
// the conflict record; neither version is modified.
func (r *Resolver) Detect(ctx context.Context, repos *store.Repos, local *models.Document, remote models.Document) (*models.Conflict, error) {
	if !models.CanTransition(local.SyncState, models.StateConflict) {
		return nil, fmt.Errorf("%w: document %s in state %s cannot enter conflict",
			common.ErrValidation, local.SyncID, local.SyncState)
	}

	c := &models.Conflict{
		DocumentSyncID: local.SyncID,
		LocalVersion:   *local.Clone(),
		RemoteVersion:  remote,
		DetectedAt:     r.now().UTC(),
	}
	id, err := repos.Conflicts.Insert(ctx, c)
	if err != nil {
		return nil, err
	}
	c.ID = id

	local.SyncState = models.StateConflict
	local.ConflictID = &id
	if err := repos.Documents.Update(ctx, local); err != nil {
		return nil, err
	}

	r.logger.Warn(ctx, "conflict detected",
		"syncId", local.SyncID, "localVersion", local.Version, "remoteVersion", remote.Version)
	r.bus.Publish(Event{Type: EventConflictDetected, SyncID: local.SyncID})
	return c, nil
}

// Resolve closes an open conflict with the given strategy. For userChoice the
// caller supplies the winning content in choice; the other strategies ignore
// it. The resolved document is returned in its post-resolution state.
func (r *Resolver) Resolve(ctx context.Context, repos *store.Repos, conflictID int64, strategy models.ResolutionStrategy, choice *models.Document) (*models.Document, error) {
	c, err := repos.Conflicts.Get(ctx, conflictID)
	if err != nil {
		return nil, err
	}
	if c.Resolved() {
		return nil, fmt.Errorf("%w: conflict %d already resolved", common.ErrValidation, conflictID)
	}

	var winner *models.Document
	var loser *models.Document
	reupload := true

	switch strategy {
	case models.StrategyKeepLocal:
		winner = c.LocalVersion.Clone()
		loser = c.RemoteVersion.Clone()
	case models.StrategyKeepRemote:
		winner = c.RemoteVersion.Clone()
		loser = c.LocalVersion.Clone()
		reupload = false
	case models.StrategyMerge:
		m := mergeDocuments(c.LocalVersion, c.RemoteVersion)
		winner = &m
	case models.StrategyUserChoice:
		if choice == nil {
			return nil, fmt.Errorf("%w: userChoice requires the chosen content", common.ErrValidation)
		}
		winner = choice.Clone()
		winner.SyncID = c.DocumentSyncID
		if winner.ContentHash != c.LocalVersion.ContentHash {
			loser = c.LocalVersion.Clone()
		} else {
			loser = c.RemoteVersion.Clone()
		}
	default:
		return nil, fmt.Errorf("%w: unknown resolution strategy %q", common.ErrValidation, strategy)
	}

	// the winner continues the document's history under the original id,
	// aligned with the version the remote currently holds
	winner.SyncID = c.DocumentSyncID
	winner.Version = c.RemoteVersion.Version
	winner.ConflictID = nil
	winner.EverSynced = true
	winner.Rehash()
	if reupload {
		winner.SyncState = models.StatePendingUpload
	} else {
		winner.SyncState = models.StateSynced
	}
	if err := repos.Documents.Update(ctx, winner); err != nil {
		return nil, err
	}

	if reupload {
		err := r.queue.Enqueue(ctx, repos.Queue, &models.SyncOperation{
			EntitySyncID: winner.SyncID,
			Type:         models.OpUpdateDocument,
			Payload:      models.UpdateDocumentPayload{Document: *winner},
			QueuedAt:     r.now().UTC(),
			Status:       models.OpStatusPending,
		})
		if err != nil {
			return nil, err
		}
	}

	// losing content survives as a separate document rather than vanishing
	if loser != nil && loser.ContentHash != winner.ContentHash {
		if err := r.preserveCopy(ctx, repos, loser); err != nil {
			return nil, err
		}
	}

	if err := repos.Conflicts.Resolve(ctx, conflictID, strategy, r.now().UTC()); err != nil {
		return nil, err
	}

	r.logger.Info(ctx, "conflict resolved",
		"syncId", winner.SyncID, "strategy", strategy, "version", winner.Version)
	r.bus.Publish(Event{Type: EventConflictResolved, SyncID: winner.SyncID})
	return winner, nil
}

// preserveCopy stores src as a brand-new document with a fresh identity and
// queues it for upload.
func (r *Resolver) preserveCopy(ctx context.Context, repos *store.Repos, src *models.Document) error {
	now := r.now().UTC()
	cp := src.Clone()
	cp.SyncID = identity.Generate()
	cp.Title = src.Title + " (conflicted copy)"
	cp.CreatedAt = now
	cp.LastModified = now
	cp.Version = 0
	cp.SyncState = models.StatePendingUpload
	cp.ConflictID = nil
	cp.EverSynced = false
	cp.Rehash()

	if err := repos.Documents.Insert(ctx, cp); err != nil {
		return err
	}
	return r.queue.Enqueue(ctx, repos.Queue, &models.SyncOperation{
		EntitySyncID: cp.SyncID,
		Type:         models.OpCreateDocument,
		Payload:      models.CreateDocumentPayload{Document: *cp},
		QueuedAt:     now,
		Status:       models.OpStatusPending,
	})
}

// mergeDocuments combines two divergent copies, last writer wins per field:
// the side edited later contributes its values, and fields it left empty are
// backfilled from the other side.
func mergeDocuments(local, remote models.Document) models.Document {
	newer, older := local, remote
	if remote.LastModified.After(local.LastModified) {
		newer, older = remote, local
	}

	m := *newer.Clone()
	if m.Category == "" {
		m.Category = older.Category
	}
	if m.Notes == "" {
		m.Notes = older.Notes
	}
	if m.RenewalDate == nil && older.RenewalDate != nil {
		t := *older.RenewalDate
		m.RenewalDate = &t
	}
	return m
}
