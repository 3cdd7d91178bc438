package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadUnion_RoundTripPreservesVariant(t *testing.T) {
	d := Document{SyncID: "9f2d4c3a-5e6b-4a7d-8c1e-0a1b2c3d4e5f", Title: "Passport", OwnerID: "o1", Version: 2}

	payloads := []OpPayload{
		CreateDocumentPayload{Document: d},
		UpdateDocumentPayload{Document: d},
		DeleteDocumentPayload{SyncID: d.SyncID, OwnerID: "o1", Version: 2},
		UploadFilePayload{Attachment: FileAttachment{SyncID: "11111111-2222-4333-8444-555566667777", DocumentSyncID: d.SyncID, FileName: "scan.pdf"}},
		DeleteFilePayload{SyncID: "11111111-2222-4333-8444-555566667777", DocumentSyncID: d.SyncID, RemoteKey: "o1/doc/scan.pdf"},
	}

	for _, p := range payloads {
		b, err := EncodePayload(p)
		require.NoError(t, err)

		got, err := DecodePayload(p.OpType(), b)
		require.NoError(t, err)
		assert.Equal(t, p, got)
		assert.Equal(t, p.OpType(), got.OpType())
	}
}

func TestDecodePayload_UnknownType(t *testing.T) {
	_, err := DecodePayload(OpType("mystery"), []byte(`{}`))
	require.Error(t, err)
}

func TestDocument_RehashAndClone(t *testing.T) {
	d := &Document{SyncID: "9f2d4c3a-5e6b-4a7d-8c1e-0a1b2c3d4e5f", Title: "Passport", OwnerID: "o1"}
	d.Rehash()
	require.NotEmpty(t, d.ContentHash)

	renewal := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	d.RenewalDate = &renewal

	c := d.Clone()
	assert.Equal(t, d, c)

	// mutating the clone must not leak into the original
	*c.RenewalDate = renewal.AddDate(1, 0, 0)
	assert.Equal(t, renewal, *d.RenewalDate)
}
