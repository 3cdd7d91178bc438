package models

import "time"

// Tombstone is durable proof that a sync id was deleted. Its presence
// forbids any pull or push from ever recreating an entity with that id.
type Tombstone struct {
	SyncID    string    `json:"syncId"`
	OwnerID   string    `json:"ownerId"`
	DeletedAt time.Time `json:"deletedAt"`
	DeletedBy string    `json:"deletedBy"` // device/session id
	Reason    string    `json:"reason"`
}
