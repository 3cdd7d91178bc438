// Package models defines the client-side entities of the sync engine:
// documents, file attachments, tombstones, queued operations, and conflicts.
package models

import (
	"time"

	"github.com/dkarpov/papersync/internal/hashx"
)

// Document is the primary user-owned record. SyncID is assigned once at
// creation and never changes; it is the sole key used for cross-device
// matching. Version is bumped on every accepted remote update and never
// decreases.
type Document struct {
	SyncID       string     `json:"syncId" validate:"required,len=36"`
	Title        string     `json:"title" validate:"required"`
	Category     string     `json:"category"`
	Notes        string     `json:"notes"`
	RenewalDate  *time.Time `json:"renewalDate,omitempty"`
	OwnerID      string     `json:"ownerId" validate:"required"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastModified time.Time  `json:"lastModified"`
	Version      int64      `json:"version"`
	SyncState    SyncState  `json:"syncState"`
	ContentHash  string     `json:"contentHash"`
	ConflictID   *int64     `json:"conflictId,omitempty"`

	// EverSynced records whether the remote side has ever observed this
	// document. Only such documents need a tombstone and a remote delete;
	// a purely local one is discarded with no trace.
	EverSynced bool `json:"everSynced"`
}

// Content returns the mutable fields covered by the content digest.
func (d *Document) Content() hashx.Content {
	return hashx.Content{
		Title:       d.Title,
		Category:    d.Category,
		Notes:       d.Notes,
		RenewalDate: d.RenewalDate,
	}
}

// Rehash recomputes and stores the content digest.
func (d *Document) Rehash() {
	d.ContentHash = hashx.Sum(d.Content())
}

// Clone returns a deep copy.
func (d *Document) Clone() *Document {
	c := *d
	if d.RenewalDate != nil {
		t := *d.RenewalDate
		c.RenewalDate = &t
	}
	if d.ConflictID != nil {
		id := *d.ConflictID
		c.ConflictID = &id
	}
	return &c
}
