package repositories

import (
	"context"

	"notesaver/internal/models"
)

// UserRepository defines the interface for user data access.
// Emails are compared exactly; callers normalize them first.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
}
