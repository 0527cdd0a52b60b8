package auth

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kontax/green-ledger/internal/apperr"
	"github.com/kontax/green-ledger/internal/models"
	"github.com/kontax/green-ledger/internal/repository"
)

// Service handles user registration and login
type Service struct {
	users  *repository.UserRepository
	tokens *TokenManager
	logger *zap.Logger
}

// NewService creates a new auth service
func NewService(users *repository.UserRepository, tokens *TokenManager, logger *zap.Logger) *Service {
	return &Service{
		users:  users,
		tokens: tokens,
		logger: logger,
	}
}

// RegisterInput is the payload for user creation.
type RegisterInput struct {
	Email    string  `json:"email" binding:"required,email"`
	Password string  `json:"password" binding:"required,min=8"`
	Rol      string  `json:"rol" binding:"required,oneof=admin contador usuario"`
	EntityID *string `json:"entity_id"`
}

// Register creates a new user with a hashed password.
func (s *Service) Register(input RegisterInput) (*models.User, error) {
	if input.Rol != models.RolAdmin && input.EntityID == nil {
		return nil, fmt.Errorf("rol %s requires an entity: %w", input.Rol, apperr.ErrValidation)
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:        input.Email,
		PasswordHash: hash,
		Rol:          input.Rol,
		EntityID:     input.EntityID,
	}
	if err := s.users.Create(user); err != nil {
		return nil, err
	}

	s.logger.Info("User registered",
		zap.String("user_id", user.ID),
		zap.String("rol", user.Rol))
	return user, nil
}

// Login verifies credentials and issues an access token. Unknown emails and
// wrong passwords are indistinguishable to the caller.
func (s *Service) Login(email, password string) (string, *models.User, error) {
	user, err := s.users.GetByEmail(email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return "", nil, fmt.Errorf("invalid credentials: %w", apperr.ErrUnauthorized)
		}
		return "", nil, err
	}

	if !VerifyPassword(user.PasswordHash, password) {
		s.logger.Warn("Login with wrong password", zap.String("user_id", user.ID))
		return "", nil, fmt.Errorf("invalid credentials: %w", apperr.ErrUnauthorized)
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// Me returns the user record behind a set of verified claims.
func (s *Service) Me(userID string) (*models.User, error) {
	return s.users.GetByID(userID)
}
