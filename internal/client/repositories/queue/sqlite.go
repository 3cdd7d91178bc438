package queue

import (
	"context"
	"fmt"

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

// Insert persists a new queue entry and returns its id.
func (r *SQLiteRepository) Insert(ctx context.Context, op *models.SyncOperation) (int64, error) {
	payload, err := models.EncodePayload(op.Payload)
	if err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO sync_queue (entity_sync_id, op_type, payload, queued_at, retry_count, status)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		op.EntitySyncID, op.Type, payload, op.QueuedAt, op.RetryCount, op.Status)
	if err != nil {
		return 0, fmt.Errorf("failed to enqueue operation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get inserted id: %w", err)
	}
	op.ID = id
	return id, nil
}

// Update rewrites type and payload of an existing entry, used when
// consolidation collapses several operations into one.
func (r *SQLiteRepository) Update(ctx context.Context, op *models.SyncOperation) error {
	payload, err := models.EncodePayload(op.Payload)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE sync_queue SET op_type=?, payload=?, retry_count=?, status=? WHERE id=?`,
		op.Type, payload, op.RetryCount, op.Status, op.ID)
	if err != nil {
		return fmt.Errorf("failed to update operation: %w", err)
	}
	return expectOneRow(res.RowsAffected, op.ID)
}

// Delete removes an entry, typically after it was applied remotely.
func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete operation: %w", err)
	}
	return expectOneRow(res.RowsAffected, id)
}

// DeleteByEntity removes every queued operation for one entity.
func (r *SQLiteRepository) DeleteByEntity(ctx context.Context, entitySyncID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sync_queue WHERE entity_sync_id=?`, entitySyncID)
	if err != nil {
		return fmt.Errorf("failed to delete operations for entity: %w", err)
	}
	return nil
}

// ListPending returns pending operations oldest-first, preserving causal
// order per entity.
func (r *SQLiteRepository) ListPending(ctx context.Context) ([]*models.SyncOperation, error) {
	return r.list(ctx,
		`SELECT id, entity_sync_id, op_type, payload, queued_at, retry_count, status
		 FROM sync_queue WHERE status=? ORDER BY id`, models.OpStatusPending)
}

// ListPendingByEntity returns pending operations for one entity, oldest-first.
func (r *SQLiteRepository) ListPendingByEntity(ctx context.Context, entitySyncID string) ([]*models.SyncOperation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, entity_sync_id, op_type, payload, queued_at, retry_count, status
		 FROM sync_queue WHERE status=? AND entity_sync_id=? ORDER BY id`,
		models.OpStatusPending, entitySyncID)
	if err != nil {
		return nil, fmt.Errorf("failed to select operations: %w", err)
	}
	return scanOps(rows)
}

// ListFailed returns parked operations awaiting manual retry.
func (r *SQLiteRepository) ListFailed(ctx context.Context) ([]*models.SyncOperation, error) {
	return r.list(ctx,
		`SELECT id, entity_sync_id, op_type, payload, queued_at, retry_count, status
		 FROM sync_queue WHERE status=? ORDER BY id`, models.OpStatusFailed)
}

// IncrementRetry bumps the retry counter after a failed attempt.
func (r *SQLiteRepository) IncrementRetry(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sync_queue SET retry_count=retry_count+1 WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("failed to increment retry count: %w", err)
	}
	return expectOneRow(res.RowsAffected, id)
}

// MarkFailed parks an operation that exhausted its retries.
func (r *SQLiteRepository) MarkFailed(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sync_queue SET status=? WHERE id=?`, models.OpStatusFailed, id)
	if err != nil {
		return fmt.Errorf("failed to mark operation failed: %w", err)
	}
	return expectOneRow(res.RowsAffected, id)
}

// Requeue returns a failed operation to the pending state with a fresh
// retry budget.
func (r *SQLiteRepository) Requeue(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sync_queue SET status=?, retry_count=0 WHERE id=?`, models.OpStatusPending, id)
	if err != nil {
		return fmt.Errorf("failed to requeue operation: %w", err)
	}
	return expectOneRow(res.RowsAffected, id)
}

func (r *SQLiteRepository) list(ctx context.Context, query string, args ...any) ([]*models.SyncOperation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select operations: %w", err)
	}
	return scanOps(rows)
}

func scanOps(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
	Close() error
}) ([]*models.SyncOperation, error) {
	defer rows.Close()

	var result []*models.SyncOperation
	for rows.Next() {
		op := &models.SyncOperation{}
		var raw []byte
		if err := rows.Scan(&op.ID, &op.EntitySyncID, &op.Type, &raw,
			&op.QueuedAt, &op.RetryCount, &op.Status); err != nil {
			return nil, err
		}
		payload, err := models.DecodePayload(op.Type, raw)
		if err != nil {
			return nil, err
		}
		op.Payload = payload
		result = append(result, op)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func expectOneRow(rowsAffected func() (int64, error), id int64) error {
	n, err := rowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: operation %d", common.ErrNotFound, id)
	}
	return nil
}
