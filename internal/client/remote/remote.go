// Package remote defines the contracts the sync engine has with the server
// side: a document store for metadata and an object store for attachment
// content. Implementations must map their transport failures onto the
// sentinel errors in internal/common so the retry and conflict machinery
// can classify them.
package remote

import (
	"context"
	"fmt"
	"io"

	"github.com/dkarpov/papersync/internal/client/models"
)

// RemoteDocument is one document as the server knows it, with its attachment
// metadata. Deleted marks a tombstoned id: content fields are absent and the
// id must never be reused. Seq is the server-assigned change cursor used to
// resume incremental listing; it is zero on a push.
type RemoteDocument struct {
	Document    models.Document         `json:"document"`
	Attachments []models.FileAttachment `json:"attachments,omitempty"`
	Deleted     bool                    `json:"deleted,omitempty"`
	Seq         int64                   `json:"seq,omitempty"`
}

// DocumentStore is the metadata side of the remote. All calls are scoped to
// the authenticated principal.
type DocumentStore interface {
	// Ping checks reachability and authentication.
	Ping(ctx context.Context) error

	// Put writes doc and its attachment metadata using optimistic
	// concurrency: doc.Document.Version must equal the version the server
	// currently holds (0 for a new document). On success the server's new
	// version is returned. A stale base fails with ErrVersionConflict; a
	// tombstoned id with ErrTombstoned.
	Put(ctx context.Context, doc RemoteDocument) (int64, error)

	// Delete tombstones the document remotely. Deleting an unknown id is
	// not an error; the outcome is the same.
	Delete(ctx context.Context, syncID string, version int64) error

	// Get fetches one document by sync id.
	Get(ctx context.Context, syncID string) (*RemoteDocument, error)

	// List returns the principal's documents changed after the since
	// cursor, including tombstoned entries so deletions propagate. The
	// cursor is the server's change sequence (RemoteDocument.Seq), not a
	// document version.
	List(ctx context.Context, since int64) ([]*RemoteDocument, error)
}

// Progress reports transferred bytes during an object transfer. Total is -1
// when unknown.
type Progress func(transferred, total int64)

// ObjectStore moves attachment content. Keys come from ObjectKey, so a
// retried upload overwrites its own previous attempt instead of duplicating.
type ObjectStore interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64, progress Progress) error
	Download(ctx context.Context, key string, w io.Writer, progress Progress) error
	Delete(ctx context.Context, key string) error
}

// ObjectKey builds the deterministic storage key for an attachment.
func ObjectKey(owner, docSyncID, fileName string) string {
	return fmt.Sprintf("%s/%s/%s", owner, docSyncID, fileName)
}

// countingReader feeds Progress callbacks as bytes pass through.
type countingReader struct {
	r        io.Reader
	total    int64
	read     int64
	progress Progress
}

func newCountingReader(r io.Reader, total int64, progress Progress) io.Reader {
	if progress == nil {
		return r
	}
	return &countingReader{r: r, total: total, progress: progress}
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.read += int64(n)
		c.progress(c.read, c.total)
	}
	return n, err
}

// countingWriter is the download-side counterpart of countingReader.
type countingWriter struct {
	w        io.Writer
	total    int64
	written  int64
	progress Progress
}

func newCountingWriter(w io.Writer, total int64, progress Progress) io.Writer {
	if progress == nil {
		return w
	}
	return &countingWriter{w: w, total: total, progress: progress}
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	if n > 0 {
		c.written += int64(n)
		c.progress(c.written, c.total)
	}
	return n, err
}
