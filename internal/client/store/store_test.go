package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dkarpov/papersync/internal/client/models"
	"github.com/dkarpov/papersync/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func doc(id string) *models.Document {
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	d := &models.Document{
		SyncID:       id,
		Title:        "Insurance",
		Category:     "insurance",
		OwnerID:      "owner-1",
		CreatedAt:    now,
		LastModified: now,
		SyncState:    models.StateLocalOnly,
	}
	d.Rehash()
	return d
}

const id = "9f2d4c3a-5e6b-4a7d-8c1e-0a1b2c3d4e5f"

func TestOpen_RunsMigrations(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	// all five tables are usable
	require.NoError(t, s.Repos().Documents.Insert(ctx, doc(id)))

	att := &models.FileAttachment{
		SyncID:         "11111111-2222-4333-8444-555566667777",
		DocumentSyncID: id,
		FileName:       "policy.pdf",
		AddedAt:        time.Now().UTC(),
	}
	require.NoError(t, s.Repos().Attachments.Insert(ctx, att))

	ok, err := s.Repos().Tombstones.Exists(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	open, err := s.Repos().Conflicts.ListOpen(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)

	pending, err := s.Repos().Queue.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestWithTx_MultiRowAtomicity(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(ctx context.Context, r *Repos) error {
		if err := r.Documents.Insert(ctx, doc(id)); err != nil {
			return err
		}
		att := &models.FileAttachment{
			SyncID:         "11111111-2222-4333-8444-555566667777",
			DocumentSyncID: id,
			FileName:       "policy.pdf",
			AddedAt:        time.Now().UTC(),
		}
		if err := r.Attachments.Insert(ctx, att); err != nil {
			return err
		}
		return errors.New("forced rollback")
	})
	require.Error(t, err)

	_, err = s.Repos().Documents.Get(ctx, id)
	assert.True(t, errors.Is(err, common.ErrNotFound), "document insert must be rolled back")

	atts, err := s.Repos().Attachments.ListByDocument(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, atts, "attachment insert must be rolled back")
}

func TestTransition_EnforcesStateMachine(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.Repos().Documents.Insert(ctx, doc(id)))

	require.NoError(t, s.Transition(ctx, s.Repos(), id, models.StatePendingUpload))
	require.NoError(t, s.Transition(ctx, s.Repos(), id, models.StateUploading))
	require.NoError(t, s.Transition(ctx, s.Repos(), id, models.StateSynced))

	err := s.Transition(ctx, s.Repos(), id, models.StateLocalOnly)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrValidation))

	got, err := s.Repos().Documents.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StateSynced, got.SyncState, "illegal transition must not change state")
}
