// Package conflicts stores open and resolved conflict records.
package conflicts

import (
	"context"
	"time"

	"github.com/dkarpov/papersync/internal/client/models"
)

// Repository is the persistence contract for conflicts.
type Repository interface {
	Insert(ctx context.Context, c *models.Conflict) (int64, error)
	Get(ctx context.Context, id int64) (*models.Conflict, error)
	ListOpen(ctx context.Context) ([]*models.Conflict, error)
	Resolve(ctx context.Context, id int64, strategy models.ResolutionStrategy, at time.Time) error
	Delete(ctx context.Context, id int64) error
}
