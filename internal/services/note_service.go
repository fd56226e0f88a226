package services

import (
	"context"
	"strings"
	"time"

	"notesaver/internal/models"
	"notesaver/internal/repositories"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Limits on note fields, counted in characters.
const (
	MaxTitleLength   = 100
	MaxContentLength = 50000
)

// Note activity event names.
const (
	EventNoteCreated = "note.created"
	EventNoteUpdated = "note.updated"
	EventNoteDeleted = "note.deleted"
)

// NoteEvent describes a change to a note.
type NoteEvent struct {
	Event   string    `json:"event"`
	NoteID  string    `json:"noteId"`
	OwnerID string    `json:"ownerId"`
	At      time.Time `json:"at"`
}

// EventPublisher delivers note events to interested parties.
type EventPublisher interface {
	Publish(payload interface{}) error
}

type noteFields struct {
	Title   string `validate:"required,max=100"`
	Content string `validate:"required,max=50000"`
}

// NoteService handles business logic for notes. Every operation is scoped
// to the identity of the caller.
type NoteService struct {
	notes    repositories.NoteRepository
	events   EventPublisher
	validate *validator.Validate
	log      *zap.Logger
}

// NewNoteService creates a new NoteService. events may be nil.
func NewNoteService(notes repositories.NoteRepository, events EventPublisher, log *zap.Logger) *NoteService {
	return &NoteService{
		notes:    notes,
		events:   events,
		validate: validator.New(),
		log:      log,
	}
}

// List returns the caller's notes, newest first.
func (s *NoteService) List(ctx context.Context, ownerID string) ([]models.Note, error) {
	if ownerID == "" {
		return nil, ErrUnauthenticated
	}
	notes, err := s.notes.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return notes, nil
}

// Get returns a note the caller owns. A missing note is NotFound; a note
// owned by someone else is Unauthorized.
func (s *NoteService) Get(ctx context.Context, ownerID, noteID string) (*models.Note, error) {
	return s.loadOwned(ctx, ownerID, noteID)
}

// Create stores a new note owned by the caller.
func (s *NoteService) Create(ctx context.Context, ownerID, title, content string) (*models.Note, error) {
	if ownerID == "" {
		return nil, ErrUnauthenticated
	}

	fields := noteFields{Title: strings.TrimSpace(title), Content: content}
	if err := s.validate.Struct(fields); err != nil {
		return nil, noteValidationError(err)
	}

	note := &models.Note{
		Title:   fields.Title,
		Content: fields.Content,
		OwnerID: ownerID,
	}
	if err := s.notes.Create(ctx, note); err != nil {
		return nil, err
	}

	s.publish(EventNoteCreated, note)
	return note, nil
}

// Update changes the title and/or content of a note the caller owns.
// The owner and id of a note never change.
func (s *NoteService) Update(ctx context.Context, ownerID, noteID string, patch models.NotePatch) (*models.Note, error) {
	if _, err := s.loadOwned(ctx, ownerID, noteID); err != nil {
		return nil, err
	}

	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if err := s.validate.Var(title, "required,max=100"); err != nil {
			return nil, fieldValidationError("Title", err)
		}
		patch.Title = &title
	}
	if patch.Content != nil {
		if err := s.validate.Var(*patch.Content, "required,max=50000"); err != nil {
			return nil, fieldValidationError("Content", err)
		}
	}

	note, err := s.notes.Update(ctx, noteID, patch)
	if err != nil {
		// Deleted between the ownership check and the write.
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	s.publish(EventNoteUpdated, note)
	return note, nil
}

// Delete removes a note the caller owns and returns its id.
func (s *NoteService) Delete(ctx context.Context, ownerID, noteID string) (string, error) {
	note, err := s.loadOwned(ctx, ownerID, noteID)
	if err != nil {
		return "", err
	}

	if err := s.notes.Delete(ctx, noteID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}

	s.publish(EventNoteDeleted, note)
	return noteID, nil
}

// loadOwned checks existence before ownership, so non-owners can tell a
// missing note from someone else's.
func (s *NoteService) loadOwned(ctx context.Context, ownerID, noteID string) (*models.Note, error) {
	if ownerID == "" {
		return nil, ErrUnauthenticated
	}

	note, err := s.notes.GetByID(ctx, noteID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if note.OwnerID != ownerID {
		return nil, ErrUnauthorized
	}
	return note, nil
}

func (s *NoteService) publish(event string, note *models.Note) {
	if s.events == nil {
		return
	}
	err := s.events.Publish(NoteEvent{
		Event:   event,
		NoteID:  note.ID,
		OwnerID: note.OwnerID,
		At:      time.Now().UTC(),
	})
	if err != nil {
		s.log.Warn("failed to publish note event",
			zap.String("event", event),
			zap.String("note_id", note.ID),
			zap.Error(err),
		)
	}
}

func noteValidationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		for _, fe := range verrs {
			if fe.Tag() == "required" {
				return validationError("Please add title and content")
			}
		}
		return fieldValidationError(verrs[0].Field(), verrs[0])
	}
	return errors.Wrap(err, "failed to validate note")
}

func fieldValidationError(field string, err error) error {
	if validationTag(err) == "required" {
		return validationError(field + " cannot be empty")
	}
	if field == "Title" {
		return validationError("Title cannot exceed 100 characters")
	}
	return validationError("Content cannot exceed 50000 characters")
}

func validationTag(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return verrs[0].Tag()
	}
	var fe validator.FieldError
	if errors.As(err, &fe) {
		return fe.Tag()
	}
	return ""
}
