package tombstones

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/dkarpov/papersync/internal/client/models"
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
CREATE TABLE tombstones (
  sync_id TEXT PRIMARY KEY,
  owner_id TEXT NOT NULL,
  deleted_at TIMESTAMP NOT NULL,
  deleted_by TEXT NOT NULL DEFAULT '',
  reason TEXT NOT NULL DEFAULT ''
);
`)
	require.NoError(t, err)
	return db
}

const id = "9f2d4c3a-5e6b-4a7d-8c1e-0a1b2c3d4e5f"

func TestInsertAndExists(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	ok, err := r.Exists(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	ts := &models.Tombstone{
		SyncID:    id,
		OwnerID:   "owner-1",
		DeletedAt: time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC),
		DeletedBy: "device-a",
		Reason:    "user delete",
	}
	require.NoError(t, r.Insert(ctx, ts))

	ok, err = r.Exists(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := r.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "device-a", got.DeletedBy)
}

func TestInsert_FirstRecordWins(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	first := &models.Tombstone{SyncID: id, OwnerID: "owner-1",
		DeletedAt: time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC), DeletedBy: "device-a"}
	require.NoError(t, r.Insert(ctx, first))

	second := &models.Tombstone{SyncID: id, OwnerID: "owner-1",
		DeletedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), DeletedBy: "device-b"}
	require.NoError(t, r.Insert(ctx, second), "re-recording must be a no-op, not an error")

	got, err := r.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "device-a", got.DeletedBy)
}

func TestPurgeOlderThan(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	old := &models.Tombstone{SyncID: "11111111-2222-4333-8444-555566667771", OwnerID: "o",
		DeletedAt: time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)}
	fresh := &models.Tombstone{SyncID: "11111111-2222-4333-8444-555566667772", OwnerID: "o",
		DeletedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, r.Insert(ctx, old))
	require.NoError(t, r.Insert(ctx, fresh))

	n, err := r.PurgeOlderThan(ctx, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	ok, err := r.Exists(ctx, old.SyncID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = r.Exists(ctx, fresh.SyncID)
	require.NoError(t, err)
	assert.True(t, ok)
}
