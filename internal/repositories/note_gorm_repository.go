package repositories

import (
	"context"

	"notesaver/internal/models"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// GORMNoteRepository is a GORM implementation of NoteRepository.
type GORMNoteRepository struct {
	db *gorm.DB
}

// NewGORMNoteRepository creates a new instance of GORMNoteRepository.
func NewGORMNoteRepository(db *gorm.DB) *GORMNoteRepository {
	return &GORMNoteRepository{
		db: db,
	}
}

// ListByOwner retrieves all notes of ownerID, newest first. Notes with the
// same created_at are ordered by descending id.
func (r *GORMNoteRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Note, error) {
	notes := []models.Note{}
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&notes).Error
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list notes of owner %s", ownerID)
	}
	return notes, nil
}

// GetByID retrieves a single note by its ID from the database.
func (r *GORMNoteRepository) GetByID(ctx context.Context, id string) (*models.Note, error) {
	var note models.Note
	if err := r.db.WithContext(ctx).First(&note, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(ErrNotFound, "note with ID %s", id)
		}
		return nil, errors.Wrapf(err, "failed to get note by ID %s", id)
	}
	return &note, nil
}

// Create creates a new note in the database.
func (r *GORMNoteRepository) Create(ctx context.Context, note *models.Note) error {
	if note.ID == "" {
		note.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(note).Error; err != nil {
		return errors.Wrap(err, "failed to create note")
	}
	return nil
}

// Update writes the patched fields in a single UPDATE and reads the row back.
func (r *GORMNoteRepository) Update(ctx context.Context, id string, patch models.NotePatch) (*models.Note, error) {
	fields := map[string]interface{}{}
	if patch.Title != nil {
		fields["title"] = *patch.Title
	}
	if patch.Content != nil {
		fields["content"] = *patch.Content
	}

	if len(fields) > 0 {
		res := r.db.WithContext(ctx).Model(&models.Note{}).Where("id = ?", id).Updates(fields)
		if res.Error != nil {
			return nil, errors.Wrapf(res.Error, "failed to update note %s", id)
		}
		if res.RowsAffected == 0 {
			return nil, errors.Wrapf(ErrNotFound, "note with ID %s for update", id)
		}
	}

	return r.GetByID(ctx, id)
}

// Delete deletes a note by its ID from the database.
func (r *GORMNoteRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&models.Note{}, "id = ?", id)
	if res.Error != nil {
		return errors.Wrapf(res.Error, "failed to delete note %s", id)
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(ErrNotFound, "note with ID %s for deletion", id)
	}
	return nil
}
