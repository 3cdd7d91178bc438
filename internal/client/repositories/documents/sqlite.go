package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

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

const docColumns = `sync_id, title, category, notes, renewal_date, owner_id,
	created_at, last_modified, version, sync_state, content_hash, conflict_id, ever_synced`

// Insert adds a new document. A duplicate sync id fails with ErrDuplicateID;
// ids are assigned once and never reused.
func (r *SQLiteRepository) Insert(ctx context.Context, d *models.Document) error {
	query := `INSERT INTO documents (` + docColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		d.SyncID, d.Title, d.Category, d.Notes, nullTime(d.RenewalDate), d.OwnerID,
		d.CreatedAt, d.LastModified, d.Version, d.SyncState, d.ContentHash,
		nullInt(d.ConflictID), d.EverSynced)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: %s", common.ErrDuplicateID, d.SyncID)
		}
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

// Update rewrites all mutable columns of an existing row. The sync id
// itself is never part of the SET list.
func (r *SQLiteRepository) Update(ctx context.Context, d *models.Document) error {
	query := `UPDATE documents SET title=?, category=?, notes=?, renewal_date=?,
		last_modified=?, version=?, sync_state=?, content_hash=?, conflict_id=?, ever_synced=?
		WHERE sync_id=?`
	res, err := r.db.ExecContext(ctx, query,
		d.Title, d.Category, d.Notes, nullTime(d.RenewalDate),
		d.LastModified, d.Version, d.SyncState, d.ContentHash,
		nullInt(d.ConflictID), d.EverSynced, d.SyncID)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	return expectOneRow(res, d.SyncID)
}

// UpdateState changes only the sync state column.
func (r *SQLiteRepository) UpdateState(ctx context.Context, syncID string, state models.SyncState) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE documents SET sync_state=? WHERE sync_id=?`, state, syncID)
	if err != nil {
		return fmt.Errorf("failed to update sync state: %w", err)
	}
	return expectOneRow(res, syncID)
}

// Get returns a single document or ErrNotFound.
func (r *SQLiteRepository) Get(ctx context.Context, syncID string) (*models.Document, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+docColumns+` FROM documents WHERE sync_id=?`, syncID)
	d, err := scanDocument(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: document %s", common.ErrNotFound, syncID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return d, nil
}

// ListByOwner returns all documents of one owner.
func (r *SQLiteRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.Document, error) {
	return r.list(ctx,
		`SELECT `+docColumns+` FROM documents WHERE owner_id=? ORDER BY created_at`, ownerID)
}

// ListByState returns all documents currently in the given sync state.
func (r *SQLiteRepository) ListByState(ctx context.Context, state models.SyncState) ([]*models.Document, error) {
	return r.list(ctx,
		`SELECT `+docColumns+` FROM documents WHERE sync_state=? ORDER BY created_at`, state)
}

// Delete physically removes the row. The caller is responsible for cascade
// and tombstone handling inside the same transaction.
func (r *SQLiteRepository) Delete(ctx context.Context, syncID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE sync_id=?`, syncID)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return expectOneRow(res, syncID)
}

func (r *SQLiteRepository) list(ctx context.Context, query string, arg any) ([]*models.Document, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to select documents: %w", err)
	}
	defer rows.Close()

	var result []*models.Document
	for rows.Next() {
		d, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanDocument(scan func(...any) error) (*models.Document, error) {
	d := &models.Document{}
	var renewal sql.NullTime
	var conflict sql.NullInt64
	if err := scan(
		&d.SyncID, &d.Title, &d.Category, &d.Notes, &renewal, &d.OwnerID,
		&d.CreatedAt, &d.LastModified, &d.Version, &d.SyncState, &d.ContentHash,
		&conflict, &d.EverSynced,
	); err != nil {
		return nil, err
	}
	if renewal.Valid {
		t := renewal.Time
		d.RenewalDate = &t
	}
	if conflict.Valid {
		id := conflict.Int64
		d.ConflictID = &id
	}
	return d, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func expectOneRow(res sql.Result, syncID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: document %s", common.ErrNotFound, syncID)
	}
	if n != 1 {
		return fmt.Errorf("wrong rows affected count: %d", n)
	}
	return nil
}
