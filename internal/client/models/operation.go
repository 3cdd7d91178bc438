package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// OpType names a queued mutation kind.
type OpType string

const (
	OpCreateDocument OpType = "createDocument"
	OpUpdateDocument OpType = "updateDocument"
	OpDeleteDocument OpType = "deleteDocument"
	OpUploadFile     OpType = "uploadFile"
	OpDeleteFile     OpType = "deleteFile"
)

// OpStatus tracks a queue entry's lifecycle.
type OpStatus string

const (
	OpStatusPending OpStatus = "pending"
	OpStatusFailed  OpStatus = "failed"
)

// OpPayload is the tagged union of operation payloads; exactly one variant
// exists per OpType so consolidation and application logic stay exhaustive.
type OpPayload interface {
	OpType() OpType
}

// CreateDocumentPayload carries the full document to create remotely.
type CreateDocumentPayload struct {
	Document Document `json:"document"`
}

func (CreateDocumentPayload) OpType() OpType { return OpCreateDocument }

// UpdateDocumentPayload carries the full updated document state.
type UpdateDocumentPayload struct {
	Document Document `json:"document"`
}

func (UpdateDocumentPayload) OpType() OpType { return OpUpdateDocument }

// DeleteDocumentPayload identifies the document to delete remotely.
type DeleteDocumentPayload struct {
	SyncID  string `json:"syncId"`
	OwnerID string `json:"ownerId"`
	Version int64  `json:"version"`
}

func (DeleteDocumentPayload) OpType() OpType { return OpDeleteDocument }

// UploadFilePayload carries the attachment record whose local content must
// be pushed to the object store.
type UploadFilePayload struct {
	Attachment FileAttachment `json:"attachment"`
}

func (UploadFilePayload) OpType() OpType { return OpUploadFile }

// DeleteFilePayload identifies a remote attachment object to remove.
type DeleteFilePayload struct {
	SyncID         string `json:"syncId"`
	DocumentSyncID string `json:"documentSyncId"`
	RemoteKey      string `json:"remoteKey"`
}

func (DeleteFilePayload) OpType() OpType { return OpDeleteFile }

// SyncOperation is a durable queue entry for a mutation that could not be
// applied remotely yet.
type SyncOperation struct {
	ID           int64
	EntitySyncID string
	Type         OpType
	Payload      OpPayload
	QueuedAt     time.Time
	RetryCount   int
	Status       OpStatus
}

// EncodePayload serializes a payload variant for the queue table.
func EncodePayload(p OpPayload) ([]byte, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", p.OpType(), err)
	}
	return b, nil
}

// DecodePayload deserializes the payload column back into its variant.
func DecodePayload(t OpType, data []byte) (OpPayload, error) {
	var p OpPayload
	switch t {
	case OpCreateDocument:
		p = &CreateDocumentPayload{}
	case OpUpdateDocument:
		p = &UpdateDocumentPayload{}
	case OpDeleteDocument:
		p = &DeleteDocumentPayload{}
	case OpUploadFile:
		p = &UploadFilePayload{}
	case OpDeleteFile:
		p = &DeleteFilePayload{}
	default:
		return nil, fmt.Errorf("unknown operation type %q", t)
	}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", t, err)
	}
	switch v := p.(type) {
	case *CreateDocumentPayload:
		return *v, nil
	case *UpdateDocumentPayload:
		return *v, nil
	case *DeleteDocumentPayload:
		return *v, nil
	case *UploadFilePayload:
		return *v, nil
	case *DeleteFilePayload:
		return *v, nil
	}
	return nil, fmt.Errorf("unknown operation type %q", t)
}
