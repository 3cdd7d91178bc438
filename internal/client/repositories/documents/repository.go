// Package documents provides local persistence for Document rows.
package documents

import (
	"context"

	"github.com/dkarpov/papersync/internal/client/models"
)

// Repository is the persistence contract for documents.
type Repository interface {
	Insert(ctx context.Context, d *models.Document) error
	Update(ctx context.Context, d *models.Document) error
	UpdateState(ctx context.Context, syncID string, state models.SyncState) error
	Get(ctx context.Context, syncID string) (*models.Document, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Document, error)
	ListByState(ctx context.Context, state models.SyncState) ([]*models.Document, error)
	Delete(ctx context.Context, syncID string) error
}
