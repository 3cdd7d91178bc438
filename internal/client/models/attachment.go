package models

import "time"

// FileAttachment is a file belonging to a document. It carries its own
// SyncID, independent of the parent document's id; attachments are matched
// and tombstoned separately from their parent.
type FileAttachment struct {
	SyncID         string    `json:"syncId" validate:"required,len=36"`
	DocumentSyncID string    `json:"documentSyncId" validate:"required,len=36"`
	FileName       string    `json:"fileName" validate:"required"`
	LocalPath      string    `json:"localPath,omitempty"` // empty until downloaded
	RemoteKey      string    `json:"remoteKey,omitempty"` // empty until uploaded
	FileSize       int64     `json:"fileSize"`
	Checksum       string    `json:"checksum"`
	AddedAt        time.Time `json:"addedAt"`
}

// Uploaded reports whether the attachment content has reached the remote
// object store.
func (a *FileAttachment) Uploaded() bool {
	return a.RemoteKey != ""
}
