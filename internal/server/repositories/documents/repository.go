// Package documents declares the server-side repository contract for the
// authoritative document copies and their attachment metadata.
package documents

import (
	"context"
	"time"

	"github.com/dkarpov/papersync/internal/server/models"
)

type Repository interface {
	// Get returns the owner's document with the given sync id, including
	// tombstoned rows, or common.ErrNotFound.
	Get(ctx context.Context, ownerID, syncID string) (*models.Document, error)

	// Insert stores a brand-new document row and assigns it a change cursor.
	Insert(ctx context.Context, doc *models.Document) error

	// Update overwrites the content fields and version of an existing row
	// and advances its change cursor.
	Update(ctx context.Context, doc *models.Document) error

	// MarkDeleted tombstones the document, clearing its content fields,
	// setting the given version and advancing the change cursor.
	MarkDeleted(ctx context.Context, ownerID, syncID string, version int64, at time.Time) error

	// ListSince returns the owner's documents with a change cursor greater
	// than since, tombstoned rows included, ordered by cursor.
	ListSince(ctx context.Context, ownerID string, since int64) ([]*models.Document, error)

	// ReplaceAttachments swaps the attachment metadata set of a document.
	ReplaceAttachments(ctx context.Context, docSyncID string, atts []models.Attachment) error

	// ListAttachments returns the attachment metadata of a document.
	ListAttachments(ctx context.Context, docSyncID string) ([]models.Attachment, error)
}
