package models

import "time"

// ResolutionStrategy names how a conflict was (or will be) resolved.
type ResolutionStrategy string

const (
	StrategyKeepLocal  ResolutionStrategy = "keepLocal"
	StrategyKeepRemote ResolutionStrategy = "keepRemote"
	// StrategyMerge merges field-by-field, last writer wins per field.
	StrategyMerge ResolutionStrategy = "merge"
	// StrategyUserChoice parks the conflict and surfaces both versions.
	StrategyUserChoice ResolutionStrategy = "userChoice"
)

// Conflict records a divergence between local and remote copies of one
// document. Both versions are retained untouched until resolution.
type Conflict struct {
	ID             int64              `json:"id"`
	DocumentSyncID string             `json:"documentSyncId"`
	LocalVersion   Document           `json:"localVersion"`
	RemoteVersion  Document           `json:"remoteVersion"`
	DetectedAt     time.Time          `json:"detectedAt"`
	Strategy       ResolutionStrategy `json:"strategy"`
	ResolvedAt     *time.Time         `json:"resolvedAt,omitempty"`
}

// Resolved reports whether the conflict has been closed.
func (c *Conflict) Resolved() bool {
	return c.ResolvedAt != nil
}
