package remote

import (
	"context"
	"io"
	"net/http"
	"time"
)

// Presigner issues short-lived transfer URLs and deletes stored objects.
// *Client satisfies it.
type Presigner interface {
	PresignUpload(ctx context.Context, key string) (string, error)
	PresignDownload(ctx context.Context, key string) (string, error)
	DeleteObject(ctx context.Context, key string) error
}

// PresignedObjectStore transfers attachment content over plain HTTP against
// URLs presigned by the server, so the client needs no storage credentials
// of its own.
type PresignedObjectStore struct {
	presigner Presigner
	http      *http.Client
}

// NewPresignedObjectStore builds an ObjectStore on top of p.
func NewPresignedObjectStore(p Presigner, timeout time.Duration) *PresignedObjectStore {
	return &PresignedObjectStore{
		presigner: p,
		http:      &http.Client{Timeout: timeout},
	}
}

// Upload implements ObjectStore.
func (s *PresignedObjectStore) Upload(ctx context.Context, key string, r io.Reader, size int64, progress Progress) error {
	u, err := s.presigner.PresignUpload(ctx, key)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, newCountingReader(r, size, progress))
	if err != nil {
		return err
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := s.http.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return statusError(resp.StatusCode, "")
	}
	return nil
}

// Download implements ObjectStore.
func (s *PresignedObjectStore) Download(ctx context.Context, key string, w io.Writer, progress Progress) error {
	u, err := s.presigner.PresignDownload(ctx, key)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp.StatusCode, "")
	}

	_, err = io.Copy(newCountingWriter(w, resp.ContentLength, progress), resp.Body)
	return err
}

// Delete implements ObjectStore.
func (s *PresignedObjectStore) Delete(ctx context.Context, key string) error {
	return s.presigner.DeleteObject(ctx, key)
}
