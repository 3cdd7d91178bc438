// Package attachments provides local persistence for FileAttachment rows.
package attachments

import (
	"context"

	"github.com/dkarpov/papersync/internal/client/models"
)

// Repository is the persistence contract for file attachments.
type Repository interface {
	Insert(ctx context.Context, a *models.FileAttachment) error
	Update(ctx context.Context, a *models.FileAttachment) error
	Get(ctx context.Context, syncID string) (*models.FileAttachment, error)
	ListByDocument(ctx context.Context, documentSyncID string) ([]*models.FileAttachment, error)
	Delete(ctx context.Context, syncID string) error
	DeleteByDocument(ctx context.Context, documentSyncID string) error
}
