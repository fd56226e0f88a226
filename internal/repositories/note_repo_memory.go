package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"notesaver/internal/models"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// MemoryNoteRepository is an in-memory implementation of NoteRepository.
type MemoryNoteRepository struct {
	notes map[string]models.Note
	// last is the newest CreatedAt handed out; creation times strictly increase.
	last time.Time
	now  func() time.Time
	mu   sync.RWMutex
}

// NewMemoryNoteRepository creates a new instance of MemoryNoteRepository.
func NewMemoryNoteRepository() *MemoryNoteRepository {
	return &MemoryNoteRepository{
		notes: make(map[string]models.Note),
		now:   time.Now,
	}
}

// ListByOwner returns the owner's notes, newest first, ties broken by
// descending id as in GORMNoteRepository.
func (r *MemoryNoteRepository) ListByOwner(_ context.Context, ownerID string) ([]models.Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	notes := make([]models.Note, 0)
	for _, n := range r.notes {
		if n.OwnerID == ownerID {
			notes = append(notes, n)
		}
	}
	sort.Slice(notes, func(i, j int) bool {
		if !notes[i].CreatedAt.Equal(notes[j].CreatedAt) {
			return notes[i].CreatedAt.After(notes[j].CreatedAt)
		}
		return notes[i].ID > notes[j].ID
	})
	return notes, nil
}

// GetByID returns a note by its ID.
func (r *MemoryNoteRepository) GetByID(_ context.Context, id string) (*models.Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	note, ok := r.notes[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "note with ID %s", id)
	}
	return &note, nil
}

// Create adds a new note and stamps its timestamps.
func (r *MemoryNoteRepository) Create(_ context.Context, note *models.Note) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if note.ID == "" {
		note.ID = uuid.New().String()
	}
	now := r.now()
	if !now.After(r.last) {
		now = r.last.Add(time.Nanosecond)
	}
	r.last = now
	note.CreatedAt = now
	note.UpdatedAt = now

	r.notes[note.ID] = *note
	return nil
}

// Update applies the non-nil fields of patch.
func (r *MemoryNoteRepository) Update(_ context.Context, id string, patch models.NotePatch) (*models.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	note, ok := r.notes[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "note with ID %s for update", id)
	}
	if patch.Title != nil {
		note.Title = *patch.Title
	}
	if patch.Content != nil {
		note.Content = *patch.Content
	}
	if patch.Title != nil || patch.Content != nil {
		note.UpdatedAt = r.now()
	}
	r.notes[id] = note

	return &note, nil
}

// Delete removes a note by its ID.
func (r *MemoryNoteRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.notes[id]; !ok {
		return errors.Wrapf(ErrNotFound, "note with ID %s for deletion", id)
	}
	delete(r.notes, id)
	return nil
}
