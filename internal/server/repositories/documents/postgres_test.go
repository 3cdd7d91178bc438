package documents

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dkarpov/papersync/internal/common"
	"github.com/dkarpov/papersync/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewPostgresRepository(db), mock, db
}

func documentRows(docs ...*models.Document) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"sync_id", "owner_id", "title", "category", "notes",
		"renewal_date", "created_at", "last_modified", "version", "content_hash", "deleted", "seq"})
	for _, d := range docs {
		rows.AddRow(d.SyncID, d.OwnerID, d.Title, d.Category, d.Notes,
			d.RenewalDate, d.CreatedAt, d.LastModified, d.Version, d.ContentHash, d.Deleted, d.Seq)
	}
	return rows
}

func TestGet_ReturnsRow(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	doc := &models.Document{SyncID: "d1", OwnerID: "u1", Title: "Passport",
		CreatedAt: now, LastModified: now, Version: 3, ContentHash: "h"}
	mock.ExpectQuery(`(?s)SELECT\s+sync_id,.*FROM\s+documents`).
		WithArgs("u1", "d1").
		WillReturnRows(documentRows(doc))

	got, err := repo.Get(context.Background(), "u1", "d1")
	require.NoError(t, err)
	assert.Equal(t, "Passport", got.Title)
	assert.Equal(t, int64(3), got.Version)
	assert.Nil(t, got.RenewalDate)
}

func TestGet_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)SELECT\s+sync_id,.*FROM\s+documents`).
		WithArgs("u1", "ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "u1", "ghost")
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestUpdate_MissingRowIsNotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE\s+documents`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &models.Document{SyncID: "ghost", OwnerID: "u1"})
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestMarkDeleted_ClearsContent(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	at := time.Now()
	mock.ExpectExec(`UPDATE\s+documents\s+SET\s+title\s*=\s*''`).
		WithArgs(int64(4), at, "u1", "d1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkDeleted(context.Background(), "u1", "d1", 4, at))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListSince_PagesOnChangeCursor(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	// d2 is brand-new at version 1 but changed after d1; the cursor, not
	// the version, decides visibility
	a := &models.Document{SyncID: "d1", OwnerID: "u1", Title: "A", CreatedAt: now, LastModified: now, Version: 5, Seq: 7, Deleted: true}
	b := &models.Document{SyncID: "d2", OwnerID: "u1", Title: "B", CreatedAt: now, LastModified: now, Version: 1, Seq: 8}
	mock.ExpectQuery(`(?s)SELECT\s+sync_id,.*FROM\s+documents.*seq\s*>\s*\$2`).
		WithArgs("u1", int64(6)).
		WillReturnRows(documentRows(a, b))

	docs, err := repo.ListSince(context.Background(), "u1", 6)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.True(t, docs[0].Deleted)
	assert.Equal(t, int64(8), docs[1].Seq)
	assert.Equal(t, int64(1), docs[1].Version)
}

func TestUpdate_AdvancesChangeCursor(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)UPDATE\s+documents\s+SET\s+.*seq\s*=\s*nextval\('documents_change_seq'\)`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), &models.Document{SyncID: "d1", OwnerID: "u1"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceAttachments_DeletesThenInserts(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`DELETE\s+FROM\s+attachments`).
		WithArgs("d1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT\s+INTO\s+attachments`).
		WithArgs("f1", "d1", "scan.pdf", int64(42), "sum", "u1/d1/scan.pdf", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.ReplaceAttachments(context.Background(), "d1", []models.Attachment{{
		SyncID: "f1", DocumentSyncID: "d1", FileName: "scan.pdf",
		FileSize: 42, Checksum: "sum", RemoteKey: "u1/d1/scan.pdf", AddedAt: time.Now(),
	}})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
