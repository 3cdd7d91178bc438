package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dkarpov/papersync/internal/client/models"
	"github.com/dkarpov/papersync/internal/client/store"
	"github.com/dkarpov/papersync/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func newResolver() *Resolver {
	bus := NewBus()
	return NewResolver(NewQueue(testLogger(), bus), testLogger(), bus)
}

func conflictPair() (*models.Document, models.Document) {
	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	local := &models.Document{
		SyncID:       docID,
		Title:        "Passport",
		Notes:        "renewed at the consulate",
		OwnerID:      "o1",
		CreatedAt:    base,
		LastModified: base.Add(2 * time.Hour),
		Version:      3,
		SyncState:    models.StateSynced,
		EverSynced:   true,
	}
	local.Rehash()

	remote := models.Document{
		SyncID:       docID,
		Title:        "Passport",
		Category:     "identity",
		OwnerID:      "o1",
		CreatedAt:    base,
		LastModified: base.Add(1 * time.Hour),
		Version:      4,
		EverSynced:   true,
	}
	remote.Rehash()
	return local, remote
}

func detect(t *testing.T, st *store.Store, r *Resolver) *models.Conflict {
	t.Helper()
	ctx := context.Background()
	local, remote := conflictPair()
	require.NoError(t, st.Repos().Documents.Insert(ctx, local))

	c, err := r.Detect(ctx, st.Repos(), local, remote)
	require.NoError(t, err)
	return c
}

func TestDetect_OpensConflictAndMarksDocument(t *testing.T) {
	st := openStore(t)
	r := newResolver()
	ctx := context.Background()

	c := detect(t, st, r)
	assert.Equal(t, docID, c.DocumentSyncID)
	assert.False(t, c.Resolved())
	assert.Equal(t, int64(3), c.LocalVersion.Version, "local snapshot retained")
	assert.Equal(t, int64(4), c.RemoteVersion.Version, "remote snapshot retained")

	d, err := st.Repos().Documents.Get(ctx, docID)
	require.NoError(t, err)
	assert.Equal(t, models.StateConflict, d.SyncState)
	require.NotNil(t, d.ConflictID)
	assert.Equal(t, c.ID, *d.ConflictID)

	open, err := st.Repos().Conflicts.ListOpen(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
}

func TestDetect_RejectsIllegalState(t *testing.T) {
	st := openStore(t)
	r := newResolver()
	ctx := context.Background()

	local, remote := conflictPair()
	local.SyncState = models.StatePendingDeletion
	require.NoError(t, st.Repos().Documents.Insert(ctx, local))

	_, err := r.Detect(ctx, st.Repos(), local, remote)
	assert.True(t, errors.Is(err, common.ErrValidation))
}

func TestResolve_KeepLocal(t *testing.T) {
	st := openStore(t)
	r := newResolver()
	ctx := context.Background()

	c := detect(t, st, r)
	winner, err := r.Resolve(ctx, st.Repos(), c.ID, models.StrategyKeepLocal, nil)
	require.NoError(t, err)

	assert.Equal(t, docID, winner.SyncID, "winner keeps the original identity")
	assert.Equal(t, "renewed at the consulate", winner.Notes)
	assert.Equal(t, int64(4), winner.Version, "aligned with the remote's current version")
	assert.Equal(t, models.StatePendingUpload, winner.SyncState)
	assert.Nil(t, winner.ConflictID)

	// local content goes back up as an update
	pending, err := st.Repos().Queue.ListPendingByEntity(ctx, docID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, models.OpUpdateDocument, pending[0].Type)

	// the overwritten remote content survives as a separate document
	docs, err := st.Repos().Documents.ListByOwner(ctx, "o1")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	var copyDoc *models.Document
	for _, d := range docs {
		if d.SyncID != docID {
			copyDoc = d
		}
	}
	require.NotNil(t, copyDoc)
	assert.Equal(t, "Passport (conflicted copy)", copyDoc.Title)
	assert.Equal(t, "identity", copyDoc.Category)
	assert.Equal(t, models.StatePendingUpload, copyDoc.SyncState)
	assert.False(t, copyDoc.EverSynced)
}

func TestResolve_KeepRemote(t *testing.T) {
	st := openStore(t)
	r := newResolver()
	ctx := context.Background()

	c := detect(t, st, r)
	winner, err := r.Resolve(ctx, st.Repos(), c.ID, models.StrategyKeepRemote, nil)
	require.NoError(t, err)

	assert.Equal(t, docID, winner.SyncID)
	assert.Equal(t, "identity", winner.Category)
	assert.Empty(t, winner.Notes)
	assert.Equal(t, models.StateSynced, winner.SyncState, "nothing left to push")
	assert.Equal(t, int64(4), winner.Version)

	// no update queued for the winner; only the preserved local copy's create
	pending, err := st.Repos().Queue.ListPendingByEntity(ctx, docID)
	require.NoError(t, err)
	assert.Empty(t, pending)

	docs, err := st.Repos().Documents.ListByOwner(ctx, "o1")
	require.NoError(t, err)
	assert.Len(t, docs, 2, "local edits preserved under a new identity")
}

func TestResolve_Merge(t *testing.T) {
	st := openStore(t)
	r := newResolver()
	ctx := context.Background()

	c := detect(t, st, r)
	winner, err := r.Resolve(ctx, st.Repos(), c.ID, models.StrategyMerge, nil)
	require.NoError(t, err)

	// local edited later, so its notes win; the remote's category backfills
	assert.Equal(t, "renewed at the consulate", winner.Notes)
	assert.Equal(t, "identity", winner.Category)
	assert.Equal(t, c.LocalVersion.LastModified, winner.LastModified, "merged record takes the later timestamp")
	assert.Equal(t, models.StatePendingUpload, winner.SyncState)

	docs, err := st.Repos().Documents.ListByOwner(ctx, "o1")
	require.NoError(t, err)
	assert.Len(t, docs, 1, "merge preserves nothing separately")
}

func TestResolve_UserChoiceRequiresContent(t *testing.T) {
	st := openStore(t)
	r := newResolver()
	ctx := context.Background()

	c := detect(t, st, r)
	_, err := r.Resolve(ctx, st.Repos(), c.ID, models.StrategyUserChoice, nil)
	assert.True(t, errors.Is(err, common.ErrValidation))
}

func TestResolve_OnlyOnce(t *testing.T) {
	st := openStore(t)
	r := newResolver()
	ctx := context.Background()

	c := detect(t, st, r)
	_, err := r.Resolve(ctx, st.Repos(), c.ID, models.StrategyMerge, nil)
	require.NoError(t, err)

	_, err = r.Resolve(ctx, st.Repos(), c.ID, models.StrategyKeepLocal, nil)
	assert.True(t, errors.Is(err, common.ErrValidation))
}

func TestMergeDocuments_FieldLevelLastWriterWins(t *testing.T) {
	local, remote := conflictPair()
	renewal := time.Date(2027, 5, 1, 0, 0, 0, 0, time.UTC)
	remote.RenewalDate = &renewal

	m := mergeDocuments(*local, remote)
	assert.Equal(t, local.Notes, m.Notes, "later side wins its fields")
	assert.Equal(t, remote.Category, m.Category, "empty fields backfilled from the other side")
	require.NotNil(t, m.RenewalDate)
	assert.Equal(t, renewal, *m.RenewalDate)
}
