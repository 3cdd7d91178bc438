package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dkarpov/papersync/internal/common"
	"github.com/dkarpov/papersync/internal/dbx"
	"github.com/dkarpov/papersync/internal/server/models"
)

// PostgresRepository implements the documents repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const documentColumns = `sync_id, owner_id, title, category, notes, renewal_date,
	created_at, last_modified, version, content_hash, deleted, seq`

func scanDocument(row interface{ Scan(...any) error }) (*models.Document, error) {
	d := &models.Document{}
	var renewal sql.NullTime
	err := row.Scan(&d.SyncID, &d.OwnerID, &d.Title, &d.Category, &d.Notes, &renewal,
		&d.CreatedAt, &d.LastModified, &d.Version, &d.ContentHash, &d.Deleted, &d.Seq)
	if err != nil {
		return nil, err
	}
	if renewal.Valid {
		d.RenewalDate = &renewal.Time
	}
	return d, nil
}

func (r *PostgresRepository) Get(ctx context.Context, ownerID, syncID string) (*models.Document, error) {
	query := `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE owner_id = $1 AND sync_id = $2
	`
	d, err := scanDocument(r.db.QueryRowContext(ctx, query, ownerID, syncID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return d, nil
}

func (r *PostgresRepository) Insert(ctx context.Context, doc *models.Document) error {
	query := `
		INSERT INTO documents (sync_id, owner_id, title, category, notes, renewal_date,
			created_at, last_modified, version, content_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		doc.SyncID, doc.OwnerID, doc.Title, doc.Category, doc.Notes, doc.RenewalDate,
		doc.CreatedAt, doc.LastModified, doc.Version, doc.ContentHash)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Update(ctx context.Context, doc *models.Document) error {
	query := `
		UPDATE documents
		SET title = $1, category = $2, notes = $3, renewal_date = $4,
			last_modified = $5, version = $6, content_hash = $7,
			seq = nextval('documents_change_seq')
		WHERE owner_id = $8 AND sync_id = $9
	`
	res, err := r.db.ExecContext(ctx, query,
		doc.Title, doc.Category, doc.Notes, doc.RenewalDate,
		doc.LastModified, doc.Version, doc.ContentHash,
		doc.OwnerID, doc.SyncID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) MarkDeleted(ctx context.Context, ownerID, syncID string, version int64, at time.Time) error {
	query := `
		UPDATE documents
		SET title = '', category = '', notes = '', renewal_date = NULL,
			content_hash = '', version = $1, last_modified = $2,
			deleted = TRUE, deleted_at = $2,
			seq = nextval('documents_change_seq')
		WHERE owner_id = $3 AND sync_id = $4
	`
	res, err := r.db.ExecContext(ctx, query, version, at, ownerID, syncID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrNotFound
	}
	return nil
}

// ListSince pages on the change cursor, not the document version: a fresh
// document at version 1 must still show up after an unrelated document
// reached a higher version.
func (r *PostgresRepository) ListSince(ctx context.Context, ownerID string, since int64) ([]*models.Document, error) {
	query := `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE owner_id = $1 AND seq > $2
		ORDER BY seq
	`
	rows, err := r.db.QueryContext(ctx, query, ownerID, since)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) ReplaceAttachments(ctx context.Context, docSyncID string, atts []models.Attachment) error {
	del := `
		DELETE FROM attachments
		WHERE document_sync_id = $1
	`
	if _, err := r.db.ExecContext(ctx, del, docSyncID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	ins := `
		INSERT INTO attachments (sync_id, document_sync_id, file_name, file_size, checksum, remote_key, added_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for _, a := range atts {
		if _, err := r.db.ExecContext(ctx, ins,
			a.SyncID, docSyncID, a.FileName, a.FileSize, a.Checksum, a.RemoteKey, a.AddedAt); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
	}
	return nil
}

func (r *PostgresRepository) ListAttachments(ctx context.Context, docSyncID string) ([]models.Attachment, error) {
	query := `
		SELECT sync_id, document_sync_id, file_name, file_size, checksum, remote_key, added_at
		FROM attachments
		WHERE document_sync_id = $1
		ORDER BY added_at
	`
	rows, err := r.db.QueryContext(ctx, query, docSyncID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.Attachment
	for rows.Next() {
		var a models.Attachment
		if err := rows.Scan(&a.SyncID, &a.DocumentSyncID, &a.FileName, &a.FileSize,
			&a.Checksum, &a.RemoteKey, &a.AddedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}
