package attachments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dkarpov/papersync/internal/client/models"
	"github.com/dkarpov/papersync/internal/common"
	"github.com/dkarpov/papersync/internal/dbx"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const attColumns = `sync_id, document_sync_id, file_name, local_path, remote_key,
	file_size, checksum, added_at`

// Insert adds a new attachment row. Duplicate sync ids fail with
// ErrDuplicateID; an attachment id must also never equal its document's id,
// which the store layer checks before calling here.
func (r *SQLiteRepository) Insert(ctx context.Context, a *models.FileAttachment) error {
	query := `INSERT INTO attachments (` + attColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		a.SyncID, a.DocumentSyncID, a.FileName, a.LocalPath, a.RemoteKey,
		a.FileSize, a.Checksum, a.AddedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: %s", common.ErrDuplicateID, a.SyncID)
		}
		return fmt.Errorf("failed to insert attachment: %w", err)
	}
	return nil
}

// Update rewrites the mutable columns (paths, size, checksum).
func (r *SQLiteRepository) Update(ctx context.Context, a *models.FileAttachment) error {
	query := `UPDATE attachments SET file_name=?, local_path=?, remote_key=?,
		file_size=?, checksum=? WHERE sync_id=?`
	res, err := r.db.ExecContext(ctx, query,
		a.FileName, a.LocalPath, a.RemoteKey, a.FileSize, a.Checksum, a.SyncID)
	if err != nil {
		return fmt.Errorf("failed to update attachment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: attachment %s", common.ErrNotFound, a.SyncID)
	}
	return nil
}

// Get returns a single attachment or ErrNotFound.
func (r *SQLiteRepository) Get(ctx context.Context, syncID string) (*models.FileAttachment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+attColumns+` FROM attachments WHERE sync_id=?`, syncID)

	a := &models.FileAttachment{}
	err := row.Scan(&a.SyncID, &a.DocumentSyncID, &a.FileName, &a.LocalPath,
		&a.RemoteKey, &a.FileSize, &a.Checksum, &a.AddedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: attachment %s", common.ErrNotFound, syncID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get attachment: %w", err)
	}
	return a, nil
}

// ListByDocument returns all attachments of one document.
func (r *SQLiteRepository) ListByDocument(ctx context.Context, documentSyncID string) ([]*models.FileAttachment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+attColumns+` FROM attachments WHERE document_sync_id=? ORDER BY added_at`,
		documentSyncID)
	if err != nil {
		return nil, fmt.Errorf("failed to select attachments: %w", err)
	}
	defer rows.Close()

	var result []*models.FileAttachment
	for rows.Next() {
		a := &models.FileAttachment{}
		if err := rows.Scan(&a.SyncID, &a.DocumentSyncID, &a.FileName, &a.LocalPath,
			&a.RemoteKey, &a.FileSize, &a.Checksum, &a.AddedAt); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes one attachment row.
func (r *SQLiteRepository) Delete(ctx context.Context, syncID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM attachments WHERE sync_id=?`, syncID)
	if err != nil {
		return fmt.Errorf("failed to delete attachment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: attachment %s", common.ErrNotFound, syncID)
	}
	return nil
}

// DeleteByDocument removes all attachments of a document (cascade delete).
func (r *SQLiteRepository) DeleteByDocument(ctx context.Context, documentSyncID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM attachments WHERE document_sync_id=?`, documentSyncID)
	if err != nil {
		return fmt.Errorf("failed to cascade-delete attachments: %w", err)
	}
	return nil
}
