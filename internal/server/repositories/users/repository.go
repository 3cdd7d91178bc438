// Package users declares the server-side repository contract for accounts.
package users

import (
	"context"

	"github.com/dkarpov/papersync/internal/server/models"
)

type Repository interface {
	// Create stores a new user and returns it with the assigned id.
	// A duplicate email yields common.ErrDuplicateID.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// GetByEmail returns the user with the given email, or common.ErrNotFound.
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}
