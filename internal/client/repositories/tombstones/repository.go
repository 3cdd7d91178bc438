// Package tombstones stores deletion records so stale copies can never
// resurrect a deleted entity.
package tombstones

import (
	"context"
	"time"

	"github.com/dkarpov/papersync/internal/client/models"
)

// Repository is the persistence contract for the tombstone ledger.
type Repository interface {
	Insert(ctx context.Context, t *models.Tombstone) error
	Exists(ctx context.Context, syncID string) (bool, error)
	Get(ctx context.Context, syncID string) (*models.Tombstone, error)
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
