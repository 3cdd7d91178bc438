package documents

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dkarpov/papersync/internal/common"
	"github.com/dkarpov/papersync/internal/server/models"
)

// MemoryRepository is a map-backed Repository used by tests and by the
// in-memory repository manager.
type MemoryRepository struct {
	mu          sync.RWMutex
	docs        map[string]*models.Document    // keyed by sync id
	attachments map[string][]models.Attachment // keyed by document sync id
	seq         int64                          // change cursor source
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		docs:        make(map[string]*models.Document),
		attachments: make(map[string][]models.Attachment),
	}
}

func (r *MemoryRepository) Get(ctx context.Context, ownerID, syncID string) (*models.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.docs[syncID]
	if !ok || d.OwnerID != ownerID {
		return nil, common.ErrNotFound
	}
	c := *d
	return &c, nil
}

func (r *MemoryRepository) Insert(ctx context.Context, doc *models.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	c := *doc
	c.Seq = r.seq
	r.docs[doc.SyncID] = &c
	return nil
}

func (r *MemoryRepository) Update(ctx context.Context, doc *models.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[doc.SyncID]; !ok {
		return common.ErrNotFound
	}
	r.seq++
	c := *doc
	c.Seq = r.seq
	r.docs[doc.SyncID] = &c
	return nil
}

func (r *MemoryRepository) MarkDeleted(ctx context.Context, ownerID, syncID string, version int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[syncID]
	if !ok || d.OwnerID != ownerID {
		return common.ErrNotFound
	}
	r.seq++
	d.Title, d.Category, d.Notes, d.ContentHash = "", "", "", ""
	d.RenewalDate = nil
	d.Version = version
	d.LastModified = at
	d.Deleted = true
	d.Seq = r.seq
	return nil
}

func (r *MemoryRepository) ListSince(ctx context.Context, ownerID string, since int64) ([]*models.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []*models.Document
	for _, d := range r.docs {
		if d.OwnerID == ownerID && d.Seq > since {
			c := *d
			result = append(result, &c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Seq < result[j].Seq })
	return result, nil
}

func (r *MemoryRepository) ReplaceAttachments(ctx context.Context, docSyncID string, atts []models.Attachment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(atts) == 0 {
		delete(r.attachments, docSyncID)
		return nil
	}
	r.attachments[docSyncID] = append([]models.Attachment(nil), atts...)
	return nil
}

func (r *MemoryRepository) ListAttachments(ctx context.Context, docSyncID string) ([]models.Attachment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]models.Attachment(nil), r.attachments[docSyncID]...), nil
}
