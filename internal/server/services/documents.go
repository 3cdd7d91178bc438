package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dkarpov/papersync/internal/common"
	"github.com/dkarpov/papersync/internal/dbx"
	"github.com/dkarpov/papersync/internal/server/models"
	"github.com/dkarpov/papersync/internal/server/repositories/repomanager"
)

// SyncedDocument is one document as it goes over the wire: the authoritative
// copy plus its attachment metadata. Deleted marks a tombstoned id whose
// content fields are cleared. Seq is the account-wide change cursor clients
// page incremental listing on; it has no meaning on a push.
type SyncedDocument struct {
	Document    models.Document     `json:"document"`
	Attachments []models.Attachment `json:"attachments,omitempty"`
	Deleted     bool                `json:"deleted,omitempty"`
	Seq         int64               `json:"seq,omitempty"`
}

// DocumentService is the authoritative document store. Writes use
// optimistic concurrency: the caller's base version must equal the stored
// version, and every accepted write bumps it by one. Deleted ids are kept
// as tombstones and never come back.
type DocumentService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	now         func() time.Time
}

// NewDocumentService constructs a DocumentService over the given repositories.
func NewDocumentService(db *sql.DB, m repomanager.RepositoryManager) *DocumentService {
	return &DocumentService{db: db, repomanager: m, now: time.Now}
}

// Put creates or updates the owner's document. doc.Version is the base the
// client last synced: 0 means create. A stale base fails with
// ErrVersionConflict, a tombstoned id with ErrTombstoned. Returns the new
// stored version.
func (s *DocumentService) Put(ctx context.Context, ownerID string, doc models.Document, atts []models.Attachment) (int64, error) {
	var newVersion int64
	err := s.repomanager.WithTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Documents(tx)

		current, err := repo.Get(ctx, ownerID, doc.SyncID)
		switch {
		case errors.Is(err, common.ErrNotFound):
			if doc.Version != 0 {
				return fmt.Errorf("%w: document unknown but base version is %d", common.ErrVersionConflict, doc.Version)
			}
			newVersion = 1
			stored := s.storedCopy(ownerID, doc, newVersion)
			if stored.CreatedAt.IsZero() {
				stored.CreatedAt = s.now().UTC()
			}
			if err := repo.Insert(ctx, &stored); err != nil {
				return err
			}
		case err != nil:
			return err
		case current.Deleted:
			return fmt.Errorf("%w: %s", common.ErrTombstoned, doc.SyncID)
		case current.Version != doc.Version:
			return fmt.Errorf("%w: stored version is %d, base is %d", common.ErrVersionConflict, current.Version, doc.Version)
		default:
			newVersion = current.Version + 1
			stored := s.storedCopy(ownerID, doc, newVersion)
			stored.CreatedAt = current.CreatedAt
			if err := repo.Update(ctx, &stored); err != nil {
				return err
			}
		}

		for i := range atts {
			atts[i].DocumentSyncID = doc.SyncID
		}
		return repo.ReplaceAttachments(ctx, doc.SyncID, atts)
	})
	if err != nil {
		return 0, err
	}
	return newVersion, nil
}

// Get returns the owner's document with its attachment metadata. Tombstoned
// ids come back with Deleted set and cleared content.
func (s *DocumentService) Get(ctx context.Context, ownerID, syncID string) (*SyncedDocument, error) {
	repo := s.repomanager.Documents(s.db)

	doc, err := repo.Get(ctx, ownerID, syncID)
	if err != nil {
		return nil, err
	}
	result := &SyncedDocument{Document: *doc, Deleted: doc.Deleted, Seq: doc.Seq}
	if !doc.Deleted {
		if result.Attachments, err = repo.ListAttachments(ctx, syncID); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// Delete tombstones the owner's document. The version argument is the base
// the client last synced; it is accepted even when stale, because a
// deletion always wins over concurrent edits. Deleting an unknown id
// returns ErrNotFound, an already tombstoned one is a no-op.
func (s *DocumentService) Delete(ctx context.Context, ownerID, syncID string, version int64) error {
	return s.repomanager.WithTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Documents(tx)

		current, err := repo.Get(ctx, ownerID, syncID)
		if err != nil {
			return err
		}
		if current.Deleted {
			return nil
		}
		if err := repo.MarkDeleted(ctx, ownerID, syncID, current.Version+1, s.now().UTC()); err != nil {
			return err
		}
		return repo.ReplaceAttachments(ctx, syncID, nil)
	})
}

// List returns the owner's documents changed after the since cursor,
// tombstones included so deletions propagate to other devices. The cursor
// is the account-wide change sequence, not a document version: a brand-new
// document at version 1 still lands after an older one at version 9.
func (s *DocumentService) List(ctx context.Context, ownerID string, since int64) ([]*SyncedDocument, error) {
	repo := s.repomanager.Documents(s.db)

	docs, err := repo.ListSince(ctx, ownerID, since)
	if err != nil {
		return nil, err
	}

	result := make([]*SyncedDocument, 0, len(docs))
	for _, d := range docs {
		sd := &SyncedDocument{Document: *d, Deleted: d.Deleted, Seq: d.Seq}
		if !d.Deleted {
			if sd.Attachments, err = repo.ListAttachments(ctx, d.SyncID); err != nil {
				return nil, err
			}
		}
		result = append(result, sd)
	}
	return result, nil
}

// storedCopy maps the incoming wire document onto the row the server keeps.
// Client-only fields never reach storage.
func (s *DocumentService) storedCopy(ownerID string, doc models.Document, version int64) models.Document {
	return models.Document{
		SyncID:       doc.SyncID,
		OwnerID:      ownerID,
		Title:        doc.Title,
		Category:     doc.Category,
		Notes:        doc.Notes,
		RenewalDate:  doc.RenewalDate,
		CreatedAt:    doc.CreatedAt,
		LastModified: doc.LastModified,
		Version:      version,
		ContentHash:  doc.ContentHash,
	}
}
