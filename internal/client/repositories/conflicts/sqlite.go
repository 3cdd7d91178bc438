package conflicts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dkarpov/papersync/internal/client/models"
	"github.com/dkarpov/papersync/internal/common"
	"github.com/dkarpov/papersync/internal/dbx"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
// Both document versions are stored as JSON snapshots so they stay untouched
// while the conflict is open.
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Insert persists a new conflict and returns its id.
func (r *SQLiteRepository) Insert(ctx context.Context, c *models.Conflict) (int64, error) {
	local, err := json.Marshal(c.LocalVersion)
	if err != nil {
		return 0, fmt.Errorf("failed to encode local version: %w", err)
	}
	remote, err := json.Marshal(c.RemoteVersion)
	if err != nil {
		return 0, fmt.Errorf("failed to encode remote version: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO conflicts (document_sync_id, local_version, remote_version, detected_at, strategy)
		 VALUES (?, ?, ?, ?, ?)`,
		c.DocumentSyncID, local, remote, c.DetectedAt, c.Strategy)
	if err != nil {
		return 0, fmt.Errorf("failed to insert conflict: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get inserted id: %w", err)
	}
	c.ID = id
	return id, nil
}

// Get returns a conflict by id or ErrNotFound.
func (r *SQLiteRepository) Get(ctx context.Context, id int64) (*models.Conflict, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, document_sync_id, local_version, remote_version, detected_at, strategy, resolved_at
		 FROM conflicts WHERE id=?`, id)
	c, err := scanConflict(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: conflict %d", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conflict: %w", err)
	}
	return c, nil
}

// ListOpen returns conflicts that have not been resolved yet.
func (r *SQLiteRepository) ListOpen(ctx context.Context) ([]*models.Conflict, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, document_sync_id, local_version, remote_version, detected_at, strategy, resolved_at
		 FROM conflicts WHERE resolved_at IS NULL ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to select conflicts: %w", err)
	}
	defer rows.Close()

	var result []*models.Conflict
	for rows.Next() {
		c, err := scanConflict(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Resolve closes a conflict, recording the strategy used.
func (r *SQLiteRepository) Resolve(ctx context.Context, id int64, strategy models.ResolutionStrategy, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE conflicts SET strategy=?, resolved_at=? WHERE id=? AND resolved_at IS NULL`,
		strategy, at, id)
	if err != nil {
		return fmt.Errorf("failed to resolve conflict: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: open conflict %d", common.ErrNotFound, id)
	}
	return nil
}

// Delete removes a conflict record.
func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM conflicts WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete conflict: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: conflict %d", common.ErrNotFound, id)
	}
	return nil
}

func scanConflict(scan func(...any) error) (*models.Conflict, error) {
	c := &models.Conflict{}
	var local, remote []byte
	var resolved sql.NullTime
	if err := scan(&c.ID, &c.DocumentSyncID, &local, &remote,
		&c.DetectedAt, &c.Strategy, &resolved); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(local, &c.LocalVersion); err != nil {
		return nil, fmt.Errorf("failed to decode local version: %w", err)
	}
	if err := json.Unmarshal(remote, &c.RemoteVersion); err != nil {
		return nil, fmt.Errorf("failed to decode remote version: %w", err)
	}
	if resolved.Valid {
		t := resolved.Time
		c.ResolvedAt = &t
	}
	return c, nil
}
