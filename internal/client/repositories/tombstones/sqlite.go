package tombstones

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
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

// Insert records a deletion. A tombstone is created exactly once per sync
// id; re-recording the same id is a no-op, the first record wins.
func (r *SQLiteRepository) Insert(ctx context.Context, t *models.Tombstone) error {
	query := `INSERT INTO tombstones (sync_id, owner_id, deleted_at, deleted_by, reason)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(sync_id) DO NOTHING`
	_, err := r.db.ExecContext(ctx, query,
		t.SyncID, t.OwnerID, t.DeletedAt, t.DeletedBy, t.Reason)
	if err != nil {
		return fmt.Errorf("failed to insert tombstone: %w", err)
	}
	return nil
}

// Exists reports whether syncID is tombstoned.
func (r *SQLiteRepository) Exists(ctx context.Context, syncID string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM tombstones WHERE sync_id=?`, syncID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check tombstone: %w", err)
	}
	return true, nil
}

// Get returns the tombstone for syncID or ErrNotFound.
func (r *SQLiteRepository) Get(ctx context.Context, syncID string) (*models.Tombstone, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT sync_id, owner_id, deleted_at, deleted_by, reason FROM tombstones WHERE sync_id=?`,
		syncID)

	t := &models.Tombstone{}
	err := row.Scan(&t.SyncID, &t.OwnerID, &t.DeletedAt, &t.DeletedBy, &t.Reason)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: tombstone %s", common.ErrNotFound, syncID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tombstone: %w", err)
	}
	return t, nil
}

// PurgeOlderThan removes tombstones deleted before cutoff and returns how
// many were purged.
func (r *SQLiteRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM tombstones WHERE deleted_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge tombstones: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}
