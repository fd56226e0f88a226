package services

import (
	"context"
	"strings"
	"sync"
	"unicode/utf8"

	"notesaver/internal/auth"
	"notesaver/internal/models"
	"notesaver/internal/repositories"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// MinPasswordLength is the shortest password accepted at registration.
const MinPasswordLength = 6

// PasswordHasher hashes and checks passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, digest string) (bool, error)
}

// TokenService issues session tokens and resolves them back to a user id.
type TokenService interface {
	Issue(userID string) (string, error)
	Verify(token string) (string, error)
}

// IdentityVerifier resolves an external provider credential to the identity
// the provider vouches for.
type IdentityVerifier interface {
	Verify(ctx context.Context, accessToken string) (*models.FederatedIdentity, error)
}

// Session is what a successful register or login hands back to the client.
type Session struct {
	User  models.Profile `json:"user"`
	Token string         `json:"token"`
}

// AuthService handles business logic for authentication.
type AuthService struct {
	users    repositories.UserRepository
	hasher   PasswordHasher
	tokens   TokenService
	verifier IdentityVerifier
	log      *zap.Logger

	decoyOnce   sync.Once
	decoyDigest string
}

// NewAuthService creates a new AuthService. verifier may be nil when
// federated logins are trusted without server-side verification.
func NewAuthService(users repositories.UserRepository, hasher PasswordHasher, tokens TokenService, verifier IdentityVerifier, log *zap.Logger) *AuthService {
	return &AuthService{
		users:    users,
		hasher:   hasher,
		tokens:   tokens,
		verifier: verifier,
		log:      log,
	}
}

// NormalizeEmail returns the comparison key for an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an account with a local password and logs it in.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*Session, error) {
	name = strings.TrimSpace(name)
	email = NormalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return nil, ErrValidation
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return nil, validationError("Password must be at least 6 characters")
	}
	if len(password) > auth.MaxPasswordBytes {
		return nil, validationError("Password must be at most 72 bytes")
	}

	_, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, ErrDuplicateEmail
	case !errors.Is(err, repositories.ErrNotFound):
		return nil, errors.Wrap(err, "failed to check existing user")
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		HasPassword:  true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, ErrDuplicateEmail
		}
		return nil, errors.Wrap(err, "failed to register user")
	}

	s.log.Info("user registered", zap.String("user_id", user.ID))
	return s.newSession(user)
}

// Login authenticates with email and password. An unknown email, a wrong
// password and an account without a local password all fail the same way.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrValidation
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			s.verifyDecoy(password)
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, "failed to look up user")
	}
	if !user.HasPassword {
		s.verifyDecoy(password)
		return nil, ErrInvalidCredentials
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, errors.Wrapf(err, "stored password of user %s", user.ID)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	return s.newSession(user)
}

// FederatedLogin logs in the account for an identity the caller has already
// verified with the provider, creating it on first use. created reports
// whether a new account was made. Accounts created here get an unusable
// local password.
func (s *AuthService) FederatedLogin(ctx context.Context, identity models.FederatedIdentity) (session *Session, created bool, err error) {
	email := NormalizeEmail(identity.Email)
	if email == "" {
		return nil, false, ErrValidation
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		session, err = s.newSession(user)
		return session, false, err
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, false, errors.Wrap(err, "failed to look up user")
	}

	name := strings.TrimSpace(identity.Name)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}

	placeholder, err := auth.RandomPassword()
	if err != nil {
		return nil, false, err
	}
	hash, err := s.hasher.Hash(placeholder)
	if err != nil {
		return nil, false, err
	}

	user = &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		HasPassword:  false,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if !errors.Is(err, repositories.ErrDuplicate) {
			return nil, false, errors.Wrap(err, "failed to create federated user")
		}
		// Lost a race with a concurrent first login for the same email.
		existing, lookupErr := s.users.GetByEmail(ctx, email)
		if lookupErr != nil {
			return nil, false, errors.Wrap(lookupErr, "failed to look up user")
		}
		session, err = s.newSession(existing)
		return session, false, err
	}

	s.log.Info("federated user created", zap.String("user_id", user.ID))
	session, err = s.newSession(user)
	return session, true, err
}

// GoogleLogin verifies accessToken with the identity provider and then
// performs a FederatedLogin for the identity it returns.
func (s *AuthService) GoogleLogin(ctx context.Context, accessToken string) (*Session, bool, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, false, validationError("Access token is required")
	}
	if s.verifier == nil {
		return nil, false, errors.New("no identity verifier configured")
	}

	identity, err := s.verifier.Verify(ctx, accessToken)
	if err != nil {
		if errors.Is(err, auth.ErrIdentityRejected) {
			s.log.Info("federated credential rejected", zap.Error(err))
			return nil, false, unauthenticatedError("Google authentication failed")
		}
		return nil, false, errors.Wrap(err, "failed to verify federated identity")
	}
	return s.FederatedLogin(ctx, *identity)
}

// Authenticate resolves a session token to its user. It fails with an
// Unauthenticated error when the token is invalid or the user is gone.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	userID, err := s.tokens.Verify(token)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return nil, unauthenticatedError("Not authorized, token expired")
		}
		return nil, unauthenticatedError("Not authorized, token failed")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, unauthenticatedError("Not authorized, user not found")
		}
		return nil, errors.Wrap(err, "failed to resolve token subject")
	}
	return user, nil
}

// CurrentUser returns the profile of an identity resolved upstream.
func (s *AuthService) CurrentUser(user *models.User) (*models.User, error) {
	if user == nil {
		return nil, ErrUnauthenticated
	}
	return user, nil
}

// verifyDecoy runs one password check against a throwaway digest of the
// configured cost. Login failures that never reach a stored hash call it.
func (s *AuthService) verifyDecoy(password string) {
	s.decoyOnce.Do(func() {
		placeholder, err := auth.RandomPassword()
		if err != nil {
			return
		}
		digest, err := s.hasher.Hash(placeholder)
		if err != nil {
			s.log.Warn("failed to prepare decoy digest", zap.Error(err))
			return
		}
		s.decoyDigest = digest
	})
	if s.decoyDigest != "" {
		_, _ = s.hasher.Verify(password, s.decoyDigest)
	}
}

func (s *AuthService) newSession(user *models.User) (*Session, error) {
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}
	return &Session{User: user.Profile(), Token: token}, nil
}
