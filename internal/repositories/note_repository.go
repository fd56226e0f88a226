package repositories

import (
	"context"

	"notesaver/internal/models"
)

// NoteRepository defines the interface for note data access. Ownership is
// not checked here.
type NoteRepository interface {
	// ListByOwner returns the owner's notes, newest created first.
	ListByOwner(ctx context.Context, ownerID string) ([]models.Note, error)
	GetByID(ctx context.Context, id string) (*models.Note, error)
	Create(ctx context.Context, note *models.Note) error
	// Update applies the non-nil fields of patch and returns the stored note.
	Update(ctx context.Context, id string, patch models.NotePatch) (*models.Note, error)
	Delete(ctx context.Context, id string) error
}
