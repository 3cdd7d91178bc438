// Package services exposes the command and query API the CLI (or any other
// surface) talks to. Every mutation is applied locally first and committed
// in one transaction together with its queue entry, so local work never
// depends on connectivity.
package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dkarpov/papersync/internal/client/models"
	"github.com/dkarpov/papersync/internal/client/store"
	syncx "github.com/dkarpov/papersync/internal/client/sync"
	"github.com/dkarpov/papersync/internal/common"
	"github.com/dkarpov/papersync/internal/filex"
	"github.com/dkarpov/papersync/internal/identity"
	"github.com/dkarpov/papersync/internal/logging"
)

// DocumentInput carries the user-editable fields of a document.
type DocumentInput struct {
	Title       string `validate:"required"`
	Category    string
	Notes       string
	RenewalDate *time.Time
}

// DocumentService is the local-first command and query API for documents
// and their attachments.
type DocumentService interface {
	Create(ctx context.Context, in DocumentInput) (*models.Document, error)
	Update(ctx context.Context, syncID string, in DocumentInput) (*models.Document, error)
	Delete(ctx context.Context, syncID string) error

	AttachFile(ctx context.Context, docSyncID, sourcePath string) (*models.FileAttachment, error)
	DetachFile(ctx context.Context, attachmentSyncID string) error

	List(ctx context.Context) ([]*models.Document, error)
	Get(ctx context.Context, syncID string) (*models.Document, error)
	Attachments(ctx context.Context, docSyncID string) ([]*models.FileAttachment, error)

	OpenConflicts(ctx context.Context) ([]*models.Conflict, error)
	ResolveConflict(ctx context.Context, conflictID int64, strategy models.ResolutionStrategy, choice *models.Document) (*models.Document, error)
}

type documentService struct {
	store    *store.Store
	queue    *syncx.Queue
	resolver *syncx.Resolver
	validate *validator.Validate
	logger   logging.Logger

	owner string
	// filesDir is where attachment content is copied so documents stay
	// self-contained even if the source file moves.
	filesDir string
	now      func() time.Time
}

// NewDocumentService constructs the service for the signed-in owner.
func NewDocumentService(st *store.Store, q *syncx.Queue, res *syncx.Resolver,
	logger logging.Logger, owner, filesDir string) DocumentService {
	return &documentService{
		store:    st,
		queue:    q,
		resolver: res,
		validate: validator.New(),
		logger:   logger,
		owner:    owner,
		filesDir: filesDir,
		now:      time.Now,
	}
}

func (s *documentService) Create(ctx context.Context, in DocumentInput) (*models.Document, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrValidation, err)
	}

	now := s.now().UTC()
	d := newLocalDocument(s.owner, in, now)

	// The document is born localOnly and moves to pendingUpload once its
	// create operation is on the queue, all in one transaction.
	err := s.store.WithTx(ctx, func(ctx context.Context, r *store.Repos) error {
		if err := r.Documents.Insert(ctx, d); err != nil {
			return err
		}
		if err := s.queue.Enqueue(ctx, r.Queue, &models.SyncOperation{
			EntitySyncID: d.SyncID,
			Type:         models.OpCreateDocument,
			Payload:      models.CreateDocumentPayload{Document: *d},
			QueuedAt:     now,
			Status:       models.OpStatusPending,
		}); err != nil {
			return err
		}
		if err := s.store.Transition(ctx, r, d.SyncID, models.StatePendingUpload); err != nil {
			return err
		}
		d.SyncState = models.StatePendingUpload
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}

	s.logger.Info(ctx, "document created", "syncId", d.SyncID)
	return d, nil
}

// newLocalDocument builds a fresh document in the localOnly state, the entry
// point of the sync lifecycle.
func newLocalDocument(owner string, in DocumentInput, now time.Time) *models.Document {
	d := &models.Document{
		SyncID:       identity.Generate(),
		Title:        in.Title,
		Category:     in.Category,
		Notes:        in.Notes,
		RenewalDate:  in.RenewalDate,
		OwnerID:      owner,
		CreatedAt:    now,
		LastModified: now,
		SyncState:    models.StateLocalOnly,
	}
	d.Rehash()
	return d
}

func (s *documentService) Update(ctx context.Context, syncID string, in DocumentInput) (*models.Document, error) {
	syncID, err := identity.ValidateOrFail(syncID)
	if err != nil {
		return nil, err
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrValidation, err)
	}

	var updated *models.Document
	err = s.store.WithTx(ctx, func(ctx context.Context, r *store.Repos) error {
		d, err := r.Documents.Get(ctx, syncID)
		if err != nil {
			return err
		}
		switch d.SyncState {
		case models.StatePendingDeletion:
			return fmt.Errorf("%w: document %s is being deleted", common.ErrValidation, syncID)
		case models.StateConflict:
			return fmt.Errorf("%w: document %s has an open conflict, resolve it first", common.ErrValidation, syncID)
		}

		d.Title = in.Title
		d.Category = in.Category
		d.Notes = in.Notes
		d.RenewalDate = in.RenewalDate
		d.LastModified = s.now().UTC()
		d.SyncState = models.StatePendingUpload
		d.Rehash()

		if err := r.Documents.Update(ctx, d); err != nil {
			return err
		}
		updated = d
		return s.queue.Enqueue(ctx, r.Queue, &models.SyncOperation{
			EntitySyncID: d.SyncID,
			Type:         models.OpUpdateDocument,
			Payload:      models.UpdateDocumentPayload{Document: *d},
			QueuedAt:     s.now().UTC(),
			Status:       models.OpStatusPending,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("update document: %w", err)
	}
	return updated, nil
}

// Delete removes a document. One that the remote has seen leaves a tombstone
// and waits for the remote delete to confirm; a purely local one vanishes
// without a trace.
func (s *documentService) Delete(ctx context.Context, syncID string) error {
	syncID, err := identity.ValidateOrFail(syncID)
	if err != nil {
		return err
	}

	err = s.store.WithTx(ctx, func(ctx context.Context, r *store.Repos) error {
		d, err := r.Documents.Get(ctx, syncID)
		if err != nil {
			return err
		}

		atts, err := r.Attachments.ListByDocument(ctx, syncID)
		if err != nil {
			return err
		}

		if !d.EverSynced {
			// consolidation cancels the queued create; no tombstone needed
			if err := s.queue.Enqueue(ctx, r.Queue, deleteOp(d, s.now().UTC())); err != nil {
				return err
			}
			for _, a := range atts {
				if err := r.Queue.DeleteByEntity(ctx, a.SyncID); err != nil {
					return err
				}
			}
			if err := r.Attachments.DeleteByDocument(ctx, syncID); err != nil {
				return err
			}
			return r.Documents.Delete(ctx, syncID)
		}

		now := s.now().UTC()
		if err := r.Tombstones.Insert(ctx, &models.Tombstone{
			SyncID:    syncID,
			OwnerID:   s.owner,
			DeletedAt: now,
			DeletedBy: "local",
			Reason:    "deleted by user",
		}); err != nil {
			return err
		}
		if err := r.Documents.UpdateState(ctx, syncID, models.StatePendingDeletion); err != nil {
			return err
		}
		for _, a := range atts {
			if !a.Uploaded() {
				if err := r.Queue.DeleteByEntity(ctx, a.SyncID); err != nil {
					return err
				}
				continue
			}
			op := &models.SyncOperation{
				EntitySyncID: a.SyncID,
				Type:         models.OpDeleteFile,
				Payload: models.DeleteFilePayload{
					SyncID:         a.SyncID,
					DocumentSyncID: syncID,
					RemoteKey:      a.RemoteKey,
				},
				QueuedAt: now,
				Status:   models.OpStatusPending,
			}
			if err := s.queue.Enqueue(ctx, r.Queue, op); err != nil {
				return err
			}
		}
		return s.queue.Enqueue(ctx, r.Queue, deleteOp(d, now))
	})
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	s.logger.Info(ctx, "document deleted", "syncId", syncID)
	return nil
}

func deleteOp(d *models.Document, at time.Time) *models.SyncOperation {
	return &models.SyncOperation{
		EntitySyncID: d.SyncID,
		Type:         models.OpDeleteDocument,
		Payload: models.DeleteDocumentPayload{
			SyncID:  d.SyncID,
			OwnerID: d.OwnerID,
			Version: d.Version,
		},
		QueuedAt: at,
		Status:   models.OpStatusPending,
	}
}

// AttachFile copies the source file into managed storage and queues the
// upload. The attachment gets its own identity, distinct from the document's.
func (s *documentService) AttachFile(ctx context.Context, docSyncID, sourcePath string) (*models.FileAttachment, error) {
	docSyncID, err := identity.ValidateOrFail(docSyncID)
	if err != nil {
		return nil, err
	}

	id := identity.Generate()
	for id == docSyncID {
		id = identity.Generate()
	}

	var att *models.FileAttachment
	err = s.store.WithTx(ctx, func(ctx context.Context, r *store.Repos) error {
		d, err := r.Documents.Get(ctx, docSyncID)
		if err != nil {
			return err
		}
		if d.SyncState == models.StatePendingDeletion {
			return fmt.Errorf("%w: document %s is being deleted", common.ErrValidation, docSyncID)
		}

		localPath, err := s.copyIntoStorage(docSyncID, sourcePath)
		if err != nil {
			return err
		}
		checksum, err := filex.Checksum(localPath)
		if err != nil {
			return err
		}
		size, err := filex.FileSize(localPath)
		if err != nil {
			return err
		}

		att = &models.FileAttachment{
			SyncID:         id,
			DocumentSyncID: docSyncID,
			FileName:       filepath.Base(sourcePath),
			LocalPath:      localPath,
			FileSize:       size,
			Checksum:       checksum,
			AddedAt:        s.now().UTC(),
		}
		if err := r.Attachments.Insert(ctx, att); err != nil {
			return err
		}
		return s.queue.Enqueue(ctx, r.Queue, &models.SyncOperation{
			EntitySyncID: att.SyncID,
			Type:         models.OpUploadFile,
			Payload:      models.UploadFilePayload{Attachment: *att},
			QueuedAt:     s.now().UTC(),
			Status:       models.OpStatusPending,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("attach file: %w", err)
	}
	return att, nil
}

func (s *documentService) copyIntoStorage(docSyncID, sourcePath string) (string, error) {
	src, err := os.Open(sourcePath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrValidation, err)
	}
	defer src.Close()

	dir, err := filex.EnsureSubDir(s.filesDir, docSyncID)
	if err != nil {
		return "", err
	}
	dest := filepath.Join(dir, filepath.Base(sourcePath))
	dst, err := os.Create(dest)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", err
	}
	return dest, nil
}

func (s *documentService) DetachFile(ctx context.Context, attachmentSyncID string) error {
	attachmentSyncID, err := identity.ValidateOrFail(attachmentSyncID)
	if err != nil {
		return err
	}

	err = s.store.WithTx(ctx, func(ctx context.Context, r *store.Repos) error {
		a, err := r.Attachments.Get(ctx, attachmentSyncID)
		if err != nil {
			return err
		}
		if err := r.Attachments.Delete(ctx, attachmentSyncID); err != nil {
			return err
		}
		return s.queue.Enqueue(ctx, r.Queue, &models.SyncOperation{
			EntitySyncID: a.SyncID,
			Type:         models.OpDeleteFile,
			Payload: models.DeleteFilePayload{
				SyncID:         a.SyncID,
				DocumentSyncID: a.DocumentSyncID,
				RemoteKey:      a.RemoteKey,
			},
			QueuedAt: s.now().UTC(),
			Status:   models.OpStatusPending,
		})
	})
	if err != nil {
		return fmt.Errorf("detach file: %w", err)
	}
	return nil
}

func (s *documentService) List(ctx context.Context) ([]*models.Document, error) {
	return s.store.Repos().Documents.ListByOwner(ctx, s.owner)
}

func (s *documentService) Get(ctx context.Context, syncID string) (*models.Document, error) {
	syncID, err := identity.ValidateOrFail(syncID)
	if err != nil {
		return nil, err
	}
	return s.store.Repos().Documents.Get(ctx, syncID)
}

func (s *documentService) Attachments(ctx context.Context, docSyncID string) ([]*models.FileAttachment, error) {
	docSyncID, err := identity.ValidateOrFail(docSyncID)
	if err != nil {
		return nil, err
	}
	return s.store.Repos().Attachments.ListByDocument(ctx, docSyncID)
}

func (s *documentService) OpenConflicts(ctx context.Context) ([]*models.Conflict, error) {
	return s.store.Repos().Conflicts.ListOpen(ctx)
}

func (s *documentService) ResolveConflict(ctx context.Context, conflictID int64, strategy models.ResolutionStrategy, choice *models.Document) (*models.Document, error) {
	var resolved *models.Document
	err := s.store.WithTx(ctx, func(ctx context.Context, r *store.Repos) error {
		d, err := s.resolver.Resolve(ctx, r, conflictID, strategy, choice)
		if err != nil {
			return err
		}
		resolved = d
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("resolve conflict: %w", err)
	}
	return resolved, nil
}
