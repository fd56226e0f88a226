package handlers

import (
	"notesaver/internal/middleware"
	"notesaver/internal/models"
	"notesaver/internal/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// NoteHandler handles HTTP requests for notes, exposed as /files.
type NoteHandler struct {
	noteService *services.NoteService
	log         *zap.Logger
}

// NewNoteHandler creates a new NoteHandler.
func NewNoteHandler(noteService *services.NoteService, log *zap.Logger) *NoteHandler {
	return &NoteHandler{noteService: noteService, log: log}
}

// RegisterRoutes registers the note routes behind guards, which must
// include middleware.AuthRequired.
func (h *NoteHandler) RegisterRoutes(router fiber.Router, guards ...fiber.Handler) {
	noteRoutes := router.Group("/files", guards...)
	noteRoutes.Get("/", h.HandleListNotes)
	noteRoutes.Post("/", h.HandleCreateNote)
	noteRoutes.Get("/:id", h.HandleGetNote)
	noteRoutes.Put("/:id", h.HandleUpdateNote)
	noteRoutes.Delete("/:id", h.HandleDeleteNote)
}

// CreateNoteRequest represents the request body for creating a note.
type CreateNoteRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// HandleListNotes returns the caller's notes, newest first.
func (h *NoteHandler) HandleListNotes(c *fiber.Ctx) error {
	notes, err := h.noteService.List(c.UserContext(), ownerID(c))
	if err != nil {
		return err
	}
	return c.JSON(notes)
}

// HandleCreateNote creates a note owned by the caller.
func (h *NoteHandler) HandleCreateNote(c *fiber.Ctx) error {
	var req CreateNoteRequest
	if err := c.BodyParser(&req); err != nil {
		h.log.Debug("invalid note body", zap.Error(err))
		return invalidBody(c)
	}

	note, err := h.noteService.Create(c.UserContext(), ownerID(c), req.Title, req.Content)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(note)
}

// HandleGetNote returns a single note.
func (h *NoteHandler) HandleGetNote(c *fiber.Ctx) error {
	note, err := h.noteService.Get(c.UserContext(), ownerID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(note)
}

// HandleUpdateNote applies a partial update to a note.
func (h *NoteHandler) HandleUpdateNote(c *fiber.Ctx) error {
	var patch models.NotePatch
	if err := c.BodyParser(&patch); err != nil {
		h.log.Debug("invalid note patch", zap.Error(err))
		return invalidBody(c)
	}

	note, err := h.noteService.Update(c.UserContext(), ownerID(c), c.Params("id"), patch)
	if err != nil {
		return err
	}
	return c.JSON(note)
}

// HandleDeleteNote deletes a note and echoes its id.
func (h *NoteHandler) HandleDeleteNote(c *fiber.Ctx) error {
	id, err := h.noteService.Delete(c.UserContext(), ownerID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"id": id})
}

func ownerID(c *fiber.Ctx) string {
	if user := middleware.CurrentUser(c); user != nil {
		return user.ID
	}
	return ""
}
