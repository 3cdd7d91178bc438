// Package queue stores pending sync operations durably so mutations made
// offline survive restarts until they reach the remote side.
package queue

import (
	"context"

	"github.com/dkarpov/papersync/internal/client/models"
)

// Repository is the persistence contract for the offline operation queue.
type Repository interface {
	Insert(ctx context.Context, op *models.SyncOperation) (int64, error)
	Update(ctx context.Context, op *models.SyncOperation) error
	Delete(ctx context.Context, id int64) error
	DeleteByEntity(ctx context.Context, entitySyncID string) error
	ListPending(ctx context.Context) ([]*models.SyncOperation, error)
	ListPendingByEntity(ctx context.Context, entitySyncID string) ([]*models.SyncOperation, error)
	ListFailed(ctx context.Context) ([]*models.SyncOperation, error)
	IncrementRetry(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64) error
	Requeue(ctx context.Context, id int64) error
}
