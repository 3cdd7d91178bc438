// Package models defines the server-side entities: accounts, refresh
// tokens, and the authoritative copies of synchronized documents and their
// attachment metadata.
package models

import "time"

// User is a registered account. Passwords are stored as bcrypt hashes only.
type User struct {
	ID           string
	Email        string
	PasswordHash []byte
	CreatedAt    time.Time
}

// RefreshToken is a server-stored opaque token that can be exchanged for a
// fresh token pair. Tokens are single use and rotated on refresh.
type RefreshToken struct {
	UserID  string
	Token   string
	Expires time.Time
}

// Document is the server's authoritative copy of one synchronized document.
// Version increases by one on every accepted write, including deletion.
// A deleted row is kept as a tombstone so the id can never be reused and
// other devices observe the removal through incremental listing.
//
// Seq is the account-wide change cursor: every accepted write draws a fresh
// value from a single monotonic sequence, so listing by seq sees every
// change regardless of the per-document version it landed on.
type Document struct {
	SyncID       string     `json:"syncId"`
	OwnerID      string     `json:"ownerId"`
	Title        string     `json:"title"`
	Category     string     `json:"category"`
	Notes        string     `json:"notes"`
	RenewalDate  *time.Time `json:"renewalDate,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastModified time.Time  `json:"lastModified"`
	Version      int64      `json:"version"`
	ContentHash  string     `json:"contentHash"`
	Deleted      bool       `json:"-"`
	Seq          int64      `json:"-"`
}

// Attachment is the metadata of one file belonging to a document. The
// content itself lives in the object store under RemoteKey.
type Attachment struct {
	SyncID         string    `json:"syncId"`
	DocumentSyncID string    `json:"documentSyncId"`
	FileName       string    `json:"fileName"`
	FileSize       int64     `json:"fileSize"`
	Checksum       string    `json:"checksum"`
	RemoteKey      string    `json:"remoteKey,omitempty"`
	AddedAt        time.Time `json:"addedAt"`
}
