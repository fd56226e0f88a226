package services_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"notesaver/internal/auth"
	"notesaver/internal/models"
	"notesaver/internal/repositories"
	"notesaver/internal/services"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const testJWTSecret = "test_jwt_secret"

// MockUserRepository is a mock implementation of repositories.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	if user.ID == "" {
		user.ID = "generated-id"
	}
	return args.Error(0)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

// MockIdentityVerifier is a mock implementation of services.IdentityVerifier
type MockIdentityVerifier struct {
	mock.Mock
}

func (m *MockIdentityVerifier) Verify(ctx context.Context, accessToken string) (*models.FederatedIdentity, error) {
	args := m.Called(ctx, accessToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FederatedIdentity), args.Error(1)
}

var notFound = errors.Wrap(repositories.ErrNotFound, "user")

func newAuthService(users repositories.UserRepository, verifier services.IdentityVerifier) (*services.AuthService, *auth.TokenService) {
	tokens := auth.NewTokenService(testJWTSecret, 30*24*time.Hour)
	hasher := auth.NewBcryptHasher(bcrypt.MinCost)
	return services.NewAuthService(users, hasher, tokens, verifier, zap.NewNop()), tokens
}

func hashOf(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func TestAuthService_Register(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService, tokens := newAuthService(mockRepo, nil)

	var created *models.User
	mockRepo.On("GetByEmail", ctx, "ann@x.com").Return(nil, notFound).Once()
	mockRepo.On("Create", ctx, mock.AnythingOfType("*models.User")).
		Run(func(args mock.Arguments) { created = args.Get(1).(*models.User) }).
		Return(nil).Once()

	session, err := authService.Register(ctx, "Ann", " Ann@X.com ", "secret1")
	require.NoError(t, err)
	mockRepo.AssertExpectations(t)

	assert.Equal(t, "Ann", session.User.Name)
	assert.Equal(t, "ann@x.com", session.User.Email)
	assert.Equal(t, created.ID, session.User.ID)
	assert.True(t, created.HasPassword)
	assert.NotEqual(t, "secret1", created.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte("secret1")))

	userID, err := tokens.Verify(session.Token)
	require.NoError(t, err)
	assert.Equal(t, created.ID, userID)
}

func TestAuthService_RegisterValidation(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService, _ := newAuthService(mockRepo, nil)

	tests := []struct {
		name, email, password string
		wantMessage           string
	}{
		{"", "ann@x.com", "secret1", "Please add all fields"},
		{"Ann", "", "secret1", "Please add all fields"},
		{"Ann", "ann@x.com", "", "Please add all fields"},
		{"   ", "ann@x.com", "secret1", "Please add all fields"},
		{"Ann", "ann@x.com", "12345", "Password must be at least 6 characters"},
		{"Ann", "ann@x.com", strings.Repeat("a", 73), "Password must be at most 72 bytes"},
	}

	for _, tt := range tests {
		_, err := authService.Register(ctx, tt.name, tt.email, tt.password)
		assert.ErrorIs(t, err, services.ErrValidation)
		assert.EqualError(t, err, tt.wantMessage)
	}
	mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestAuthService_RegisterPasswordBoundary(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService, _ := newAuthService(mockRepo, nil)

	mockRepo.On("GetByEmail", ctx, "ann@x.com").Return(nil, notFound).Once()
	mockRepo.On("Create", ctx, mock.AnythingOfType("*models.User")).Return(nil).Once()

	_, err := authService.Register(ctx, "Ann", "ann@x.com", "123456")
	assert.NoError(t, err)

	_, err = authService.Register(ctx, "Ann", "ann@x.com", "12345")
	assert.ErrorIs(t, err, services.ErrValidation)
	mockRepo.AssertExpectations(t)
}

func TestAuthService_RegisterDuplicate(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService, _ := newAuthService(mockRepo, nil)

	mockRepo.On("GetByEmail", ctx, "ann@x.com").Return(&models.User{ID: "1", Email: "ann@x.com"}, nil).Once()
	_, err := authService.Register(ctx, "Ann", "ANN@x.com", "secret1")
	assert.ErrorIs(t, err, services.ErrDuplicateEmail)

	// A concurrent registration wins between lookup and insert.
	mockRepo.On("GetByEmail", ctx, "ann@x.com").Return(nil, notFound).Once()
	mockRepo.On("Create", ctx, mock.AnythingOfType("*models.User")).
		Return(errors.Wrap(repositories.ErrDuplicate, "user")).Once()
	_, err = authService.Register(ctx, "Ann", "ann@x.com", "secret1")
	assert.ErrorIs(t, err, services.ErrDuplicateEmail)
	mockRepo.AssertExpectations(t)
}

func TestAuthService_RegisterStoreFailure(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService, _ := newAuthService(mockRepo, nil)

	mockRepo.On("GetByEmail", ctx, "ann@x.com").Return(nil, errors.New("connection refused")).Once()
	_, err := authService.Register(ctx, "Ann", "ann@x.com", "secret1")
	require.Error(t, err)

	var svcErr *services.Error
	assert.False(t, errors.As(err, &svcErr), "store failures are internal errors")
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService, tokens := newAuthService(mockRepo, nil)

	user := &models.User{
		ID:           "user-123",
		Name:         "Ann",
		Email:        "ann@x.com",
		PasswordHash: hashOf(t, "secret1"),
		HasPassword:  true,
	}

	// Test successful login
	mockRepo.On("GetByEmail", ctx, "ann@x.com").Return(user, nil).Once()
	session, err := authService.Login(ctx, "Ann@x.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, models.Profile{ID: "user-123", Name: "Ann", Email: "ann@x.com"}, session.User)

	userID, err := tokens.Verify(session.Token)
	assert.NoError(t, err)
	assert.Equal(t, "user-123", userID)

	// Test invalid credentials (wrong password)
	mockRepo.On("GetByEmail", ctx, "ann@x.com").Return(user, nil).Once()
	_, wrongPasswordErr := authService.Login(ctx, "ann@x.com", "wrongpassword")
	assert.ErrorIs(t, wrongPasswordErr, services.ErrInvalidCredentials)

	// Test invalid credentials (user not found)
	mockRepo.On("GetByEmail", ctx, "nobody@x.com").Return(nil, notFound).Once()
	_, unknownErr := authService.Login(ctx, "nobody@x.com", "secret1")
	assert.ErrorIs(t, unknownErr, services.ErrInvalidCredentials)

	// Both failures must be indistinguishable.
	assert.Equal(t, wrongPasswordErr.Error(), unknownErr.Error())
	assert.Equal(t, wrongPasswordErr.(*services.Error).Status(), unknownErr.(*services.Error).Status())
	mockRepo.AssertExpectations(t)
}

func TestAuthService_LoginValidation(t *testing.T) {
	ctx := context.Background()
	authService, _ := newAuthService(new(MockUserRepository), nil)

	_, err := authService.Login(ctx, "", "secret1")
	assert.ErrorIs(t, err, services.ErrValidation)
	_, err = authService.Login(ctx, "ann@x.com", "")
	assert.ErrorIs(t, err, services.ErrValidation)
}

func TestAuthService_LoginFederatedAccountRejected(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService, _ := newAuthService(mockRepo, nil)

	user := &models.User{
		ID:           "user-fed",
		Email:        "fed@x.com",
		PasswordHash: hashOf(t, "same123.456"),
		HasPassword:  false,
	}
	mockRepo.On("GetByEmail", ctx, "fed@x.com").Return(user, nil).Once()

	_, err := authService.Login(ctx, "fed@x.com", "same123.456")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)
}

func TestAuthService_LoginMalformedDigest(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService, _ := newAuthService(mockRepo, nil)

	mockRepo.On("GetByEmail", ctx, "ann@x.com").
		Return(&models.User{ID: "1", PasswordHash: "garbage", HasPassword: true}, nil).Once()

	_, err := authService.Login(ctx, "ann@x.com", "secret1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, services.ErrInvalidCredentials)
}

func TestAuthService_FederatedLoginExisting(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService, tokens := newAuthService(mockRepo, nil)

	existing := &models.User{ID: "user-123", Name: "Ann", Email: "ann@x.com", HasPassword: true}
	mockRepo.On("GetByEmail", ctx, "ann@x.com").Return(existing, nil).Once()

	session, created, err := authService.FederatedLogin(ctx, models.FederatedIdentity{Email: "ANN@x.com", Name: "Other Name"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "Ann", session.User.Name, "supplied name is ignored for existing accounts")

	userID, err := tokens.Verify(session.Token)
	assert.NoError(t, err)
	assert.Equal(t, "user-123", userID)
	mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestAuthService_FederatedLoginCreates(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService, _ := newAuthService(mockRepo, nil)

	var created *models.User
	mockRepo.On("GetByEmail", ctx, "new@x.com").Return(nil, notFound).Once()
	mockRepo.On("Create", ctx, mock.AnythingOfType("*models.User")).
		Run(func(args mock.Arguments) { created = args.Get(1).(*models.User) }).
		Return(nil).Once()

	session, wasCreated, err := authService.FederatedLogin(ctx, models.FederatedIdentity{Email: "new@x.com", Name: "Newcomer"})
	require.NoError(t, err)
	assert.True(t, wasCreated)
	assert.Equal(t, "Newcomer", session.User.Name)
	assert.False(t, created.HasPassword)
	assert.Error(t, bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte("same123.456")))
	mockRepo.AssertExpectations(t)
}

func TestAuthService_FederatedLoginNameFallback(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService, _ := newAuthService(mockRepo, nil)

	mockRepo.On("GetByEmail", ctx, "new@x.com").Return(nil, notFound).Once()
	mockRepo.On("Create", ctx, mock.AnythingOfType("*models.User")).Return(nil).Once()

	session, _, err := authService.FederatedLogin(ctx, models.FederatedIdentity{Email: "new@x.com"})
	require.NoError(t, err)
	assert.Equal(t, "new", session.User.Name)
}

func TestAuthService_FederatedLoginRace(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService, _ := newAuthService(mockRepo, nil)

	winner := &models.User{ID: "winner", Name: "Ann", Email: "ann@x.com"}
	mockRepo.On("GetByEmail", ctx, "ann@x.com").Return(nil, notFound).Once()
	mockRepo.On("Create", ctx, mock.AnythingOfType("*models.User")).
		Return(errors.Wrap(repositories.ErrDuplicate, "user")).Once()
	mockRepo.On("GetByEmail", ctx, "ann@x.com").Return(winner, nil).Once()

	session, created, err := authService.FederatedLogin(ctx, models.FederatedIdentity{Email: "ann@x.com", Name: "Ann"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "winner", session.User.ID)
	mockRepo.AssertExpectations(t)
}

func TestAuthService_FederatedLoginRequiresEmail(t *testing.T) {
	authService, _ := newAuthService(new(MockUserRepository), nil)

	_, _, err := authService.FederatedLogin(context.Background(), models.FederatedIdentity{Name: "Ann"})
	assert.ErrorIs(t, err, services.ErrValidation)
}

func TestAuthService_GoogleLogin(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	verifier := new(MockIdentityVerifier)
	authService, _ := newAuthService(mockRepo, verifier)

	verifier.On("Verify", ctx, "good-token").
		Return(&models.FederatedIdentity{Email: "ann@x.com", Name: "Ann"}, nil).Once()
	mockRepo.On("GetByEmail", ctx, "ann@x.com").Return(&models.User{ID: "user-123", Name: "Ann", Email: "ann@x.com"}, nil).Once()

	session, created, err := authService.GoogleLogin(ctx, "good-token")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "user-123", session.User.ID)

	verifier.On("Verify", ctx, "bad-token").
		Return(nil, errors.Wrap(auth.ErrIdentityRejected, "status 401")).Once()
	_, _, err = authService.GoogleLogin(ctx, "bad-token")
	assert.ErrorIs(t, err, services.ErrUnauthenticated)

	verifier.On("Verify", ctx, "flaky-token").Return(nil, errors.New("dial tcp: timeout")).Once()
	_, _, err = authService.GoogleLogin(ctx, "flaky-token")
	require.Error(t, err)
	assert.NotErrorIs(t, err, services.ErrUnauthenticated)

	_, _, err = authService.GoogleLogin(ctx, "  ")
	assert.ErrorIs(t, err, services.ErrValidation)

	verifier.AssertExpectations(t)
	mockRepo.AssertExpectations(t)
}

func TestAuthService_Authenticate(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService, tokens := newAuthService(mockRepo, nil)

	token, err := tokens.Issue("user-123")
	require.NoError(t, err)

	user := &models.User{ID: "user-123", Name: "Ann"}
	mockRepo.On("GetByID", ctx, "user-123").Return(user, nil).Once()
	got, err := authService.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user, got)

	// The user was removed after the token was issued.
	mockRepo.On("GetByID", ctx, "user-123").Return(nil, notFound).Once()
	_, err = authService.Authenticate(ctx, token)
	assert.ErrorIs(t, err, services.ErrUnauthenticated)

	_, err = authService.Authenticate(ctx, "invalid.token.string")
	assert.ErrorIs(t, err, services.ErrUnauthenticated)

	other := auth.NewTokenService("other-secret", time.Hour)
	forged, err := other.Issue("user-123")
	require.NoError(t, err)
	_, err = authService.Authenticate(ctx, forged)
	assert.ErrorIs(t, err, services.ErrUnauthenticated)

	expired := auth.NewTokenService(testJWTSecret, -time.Minute)
	old, err := expired.Issue("user-123")
	require.NoError(t, err)
	_, err = authService.Authenticate(ctx, old)
	assert.ErrorIs(t, err, services.ErrUnauthenticated)
	assert.Contains(t, err.Error(), "expired")

	mockRepo.AssertExpectations(t)
}

func TestAuthService_CurrentUser(t *testing.T) {
	authService, _ := newAuthService(new(MockUserRepository), nil)

	_, err := authService.CurrentUser(nil)
	assert.ErrorIs(t, err, services.ErrUnauthenticated)

	user := &models.User{ID: "user-123"}
	got, err := authService.CurrentUser(user)
	assert.NoError(t, err)
	assert.Equal(t, user, got)
}

// countingHasher records how many password checks reach bcrypt.
type countingHasher struct {
	*auth.BcryptHasher
	verifies int
}

func (h *countingHasher) Verify(password, digest string) (bool, error) {
	h.verifies++
	return h.BcryptHasher.Verify(password, digest)
}

func TestAuthService_LoginFailuresHashTheSame(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	hasher := &countingHasher{BcryptHasher: auth.NewBcryptHasher(bcrypt.MinCost)}
	authService := services.NewAuthService(mockRepo, hasher,
		auth.NewTokenService(testJWTSecret, time.Hour), nil, zap.NewNop())

	mockRepo.On("GetByEmail", ctx, "ann@x.com").
		Return(&models.User{ID: "1", PasswordHash: hashOf(t, "secret1"), HasPassword: true}, nil)
	mockRepo.On("GetByEmail", ctx, "fed@x.com").
		Return(&models.User{ID: "2", PasswordHash: hashOf(t, "random"), HasPassword: false}, nil)
	mockRepo.On("GetByEmail", ctx, "nobody@x.com").Return(nil, notFound)

	for _, email := range []string{"ann@x.com", "fed@x.com", "nobody@x.com"} {
		hasher.verifies = 0
		_, err := authService.Login(ctx, email, "wrong-password")
		assert.ErrorIs(t, err, services.ErrInvalidCredentials, email)
		assert.Equal(t, 1, hasher.verifies, email)
	}
}
