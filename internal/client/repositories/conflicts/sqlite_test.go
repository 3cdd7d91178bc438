package conflicts

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/dkarpov/papersync/internal/client/models"
	"github.com/dkarpov/papersync/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE conflicts (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  document_sync_id TEXT NOT NULL,
  local_version BLOB NOT NULL,
  remote_version BLOB NOT NULL,
  detected_at TIMESTAMP NOT NULL,
  strategy TEXT NOT NULL DEFAULT '',
  resolved_at TIMESTAMP
);
`)
	require.NoError(t, err)
	return db
}

const docID = "9f2d4c3a-5e6b-4a7d-8c1e-0a1b2c3d4e5f"

func sample() *models.Conflict {
	return &models.Conflict{
		DocumentSyncID: docID,
		LocalVersion:   models.Document{SyncID: docID, Title: "local", OwnerID: "o1", Version: 2},
		RemoteVersion:  models.Document{SyncID: docID, Title: "remote", OwnerID: "o1", Version: 2},
		DetectedAt:     time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestInsertGet_PreservesBothVersions(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	c := sample()
	id, err := r.Insert(ctx, c)
	require.NoError(t, err)
	require.Greater(t, id, int64(0))

	got, err := r.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "local", got.LocalVersion.Title)
	assert.Equal(t, "remote", got.RemoteVersion.Title)
	assert.Equal(t, docID, got.LocalVersion.SyncID)
	assert.Equal(t, docID, got.RemoteVersion.SyncID)
	assert.False(t, got.Resolved())
}

func TestResolve_ClosesOnlyOnce(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	id, err := r.Insert(ctx, sample())
	require.NoError(t, err)

	at := time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC)
	require.NoError(t, r.Resolve(ctx, id, models.StrategyKeepLocal, at))

	got, err := r.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, got.Resolved())
	assert.Equal(t, models.StrategyKeepLocal, got.Strategy)

	err = r.Resolve(ctx, id, models.StrategyKeepRemote, at)
	assert.True(t, errors.Is(err, common.ErrNotFound), "already-resolved conflict cannot be resolved again")
}

func TestListOpen_ExcludesResolved(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	id1, err := r.Insert(ctx, sample())
	require.NoError(t, err)
	id2, err := r.Insert(ctx, sample())
	require.NoError(t, err)

	require.NoError(t, r.Resolve(ctx, id1, models.StrategyKeepRemote, time.Now().UTC()))

	open, err := r.ListOpen(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, id2, open[0].ID)
}

func TestDelete(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	id, err := r.Insert(ctx, sample())
	require.NoError(t, err)
	require.NoError(t, r.Delete(ctx, id))

	_, err = r.Get(ctx, id)
	assert.True(t, errors.Is(err, common.ErrNotFound))
}
