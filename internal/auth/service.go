package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/mindstash/mindstash-backend/internal/repository"
)

var (
	// ErrInvalidCredentials is returned when login credentials are invalid
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailAlreadyExists is returned when the email is already registered
	ErrEmailAlreadyExists = errors.New("email already registered")
	// ErrUserNotFound is returned when a user cannot be resolved
	ErrUserNotFound = errors.New("user not found")
)

// TokenPair is what a successful register, login, or refresh hands back
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Service handles account registration and token issuance
type Service struct {
	users repository.UserRepository
	jwt   *JWTService
}

// NewService creates an auth service
func NewService(users repository.UserRepository, jwtSecret string) *Service {
	return &Service{
		users: users,
		jwt:   NewJWTService(jwtSecret, "mindstash"),
	}
}

// Register creates an account and returns its first token pair
func (s *Service) Register(ctx context.Context, email, password string) (*repository.User, *TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, nil, errors.New("a valid email is required")
	}
	if err := ValidatePassword(password); err != nil {
		return nil, nil, err
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, nil, err
	}
	if existing != nil {
		return nil, nil, ErrEmailAlreadyExists
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, nil, err
	}

	user := &repository.User{
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, nil, err
	}

	tokens, err := s.tokenPair(user)
	if err != nil {
		return nil, nil, err
	}
	return user, tokens, nil
}

// Login checks credentials and returns a fresh token pair
func (s *Service) Login(ctx context.Context, email, password string) (*repository.User, *TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, nil, err
	}
	if user == nil || !CheckPassword(password, user.PasswordHash) {
		return nil, nil, ErrInvalidCredentials
	}

	tokens, err := s.tokenPair(user)
	if err != nil {
		return nil, nil, err
	}
	return user, tokens, nil
}

// Refresh exchanges a valid refresh token for a new token pair
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, ErrInvalidClaims
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return s.tokenPair(user)
}

// Authenticate resolves an access token to its user id
func (s *Service) Authenticate(tokenString string) (uuid.UUID, error) {
	claims, err := s.jwt.ValidateAccessToken(tokenString)
	if err != nil {
		return uuid.Nil, err
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return uuid.Nil, ErrInvalidClaims
	}
	return userID, nil
}

func (s *Service) tokenPair(user *repository.User) (*TokenPair, error) {
	access, refresh, err := s.jwt.GenerateTokenPair(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
