package attachments

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
CREATE TABLE attachments (
  sync_id TEXT PRIMARY KEY,
  document_sync_id TEXT NOT NULL,
  file_name TEXT NOT NULL,
  local_path TEXT NOT NULL DEFAULT '',
  remote_key TEXT NOT NULL DEFAULT '',
  file_size INTEGER NOT NULL DEFAULT 0,
  checksum TEXT NOT NULL DEFAULT '',
  added_at TIMESTAMP NOT NULL
);
`)
	require.NoError(t, err)

	return db
}

func sample(id, docID string) *models.FileAttachment {
	return &models.FileAttachment{
		SyncID:         id,
		DocumentSyncID: docID,
		FileName:       "scan.pdf",
		LocalPath:      "/tmp/scan.pdf",
		FileSize:       1024,
		Checksum:       "abc",
		AddedAt:        time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC),
	}
}

const docID = "9f2d4c3a-5e6b-4a7d-8c1e-0a1b2c3d4e5f"

func TestInsertGet_RoundTripIncludingEmptyOptionals(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	a := sample("11111111-2222-4333-8444-555566667777", docID)
	require.NoError(t, r.Insert(ctx, a))

	got, err := r.Get(ctx, a.SyncID)
	require.NoError(t, err)
	assert.Equal(t, a.SyncID, got.SyncID)
	assert.Equal(t, a.DocumentSyncID, got.DocumentSyncID)
	assert.Equal(t, "", got.RemoteKey, "not yet uploaded")
	assert.False(t, got.Uploaded())
}

func TestInsert_DuplicateRejected(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	a := sample("11111111-2222-4333-8444-555566667777", docID)
	require.NoError(t, r.Insert(ctx, a))
	err := r.Insert(ctx, a)
	assert.True(t, errors.Is(err, common.ErrDuplicateID))
}

func TestUpdate_SetsRemoteKey(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	a := sample("11111111-2222-4333-8444-555566667777", docID)
	require.NoError(t, r.Insert(ctx, a))

	a.RemoteKey = "owner-1/" + docID + "/scan.pdf"
	require.NoError(t, r.Update(ctx, a))

	got, err := r.Get(ctx, a.SyncID)
	require.NoError(t, err)
	assert.True(t, got.Uploaded())
	assert.Equal(t, a.RemoteKey, got.RemoteKey)
}

func TestListByDocumentAndCascade(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Insert(ctx, sample("11111111-2222-4333-8444-555566667771", docID)))
	require.NoError(t, r.Insert(ctx, sample("11111111-2222-4333-8444-555566667772", docID)))
	require.NoError(t, r.Insert(ctx, sample("11111111-2222-4333-8444-555566667773", "other-doc")))

	got, err := r.ListByDocument(ctx, docID)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	require.NoError(t, r.DeleteByDocument(ctx, docID))
	got, err = r.ListByDocument(ctx, docID)
	require.NoError(t, err)
	assert.Empty(t, got)

	// unrelated document untouched
	other, err := r.ListByDocument(ctx, "other-doc")
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestDelete_NotFound(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	err := r.Delete(context.Background(), "11111111-2222-4333-8444-555566667777")
	assert.True(t, errors.Is(err, common.ErrNotFound))
}
