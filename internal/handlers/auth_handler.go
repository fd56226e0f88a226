package handlers

import (
	"time"

	"notesaver/internal/middleware"
	"notesaver/internal/models"
	"notesaver/internal/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// AuthHandler handles HTTP requests for authentication.
type AuthHandler struct {
	authService *services.AuthService
	// trustClient makes google-login-api accept the client's email and name
	// without asking the provider.
	trustClient bool
	log         *zap.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService, trustClient bool, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		trustClient: trustClient,
		log:         log,
	}
}

// RegisterRoutes registers the authentication routes with the Fiber app.
func (h *AuthHandler) RegisterRoutes(router fiber.Router) {
	authRoutes := router.Group("/auth")
	authRoutes.Post("/register", h.HandleRegister)
	authRoutes.Post("/login", h.HandleLogin)
	authRoutes.Post("/google-login-api", h.HandleGoogleLogin)
	authRoutes.Get("/me", middleware.AuthRequired(h.authService), h.HandleMe)
}

// RegisterRequest represents the request body for registration.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// GoogleLoginRequest represents the request body for federated login. Email,
// Name and Password are only read when client assertions are trusted.
type GoogleLoginRequest struct {
	AccessToken string `json:"accessToken"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	Password    string `json:"password"`
}

// MeResponse is the profile returned by /auth/me.
type MeResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// HandleRegister handles new user registration.
func (h *AuthHandler) HandleRegister(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		h.log.Debug("invalid register body", zap.Error(err))
		return invalidBody(c)
	}

	session, err := h.authService.Register(c.UserContext(), req.Name, req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(session)
}

// HandleLogin handles user login and issues a token.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		h.log.Debug("invalid login body", zap.Error(err))
		return invalidBody(c)
	}

	session, err := h.authService.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(session)
}

// HandleGoogleLogin logs in with a Google account, creating the local
// account on first use.
func (h *AuthHandler) HandleGoogleLogin(c *fiber.Ctx) error {
	var req GoogleLoginRequest
	if err := c.BodyParser(&req); err != nil {
		h.log.Debug("invalid google login body", zap.Error(err))
		return invalidBody(c)
	}

	var (
		session *services.Session
		created bool
		err     error
	)
	if h.trustClient {
		session, created, err = h.authService.FederatedLogin(c.UserContext(), models.FederatedIdentity{
			Email: req.Email,
			Name:  req.Name,
		})
	} else {
		session, created, err = h.authService.GoogleLogin(c.UserContext(), req.AccessToken)
	}
	if err != nil {
		return err
	}

	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(session)
}

// HandleMe returns the profile of the authenticated user.
func (h *AuthHandler) HandleMe(c *fiber.Ctx) error {
	user, err := h.authService.CurrentUser(middleware.CurrentUser(c))
	if err != nil {
		return err
	}
	return c.JSON(MeResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	})
}

func invalidBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Invalid request body",
	})
}
