package repository

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kontax/green-ledger/internal/apperr"
	"github.com/kontax/green-ledger/internal/models"
)

// UserRepository handles user database operations
type UserRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB, logger *zap.Logger) *UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new user. Emails are stored lowercased.
func (r *UserRepository) Create(user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))

	_, err := r.db.Exec(`
		INSERT INTO users (id, email, password_hash, rol, entity_id)
		VALUES (?, ?, ?, ?, ?)
	`, user.ID, user.Email, user.PasswordHash, user.Rol, nullableString(user.EntityID))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %s: %w", user.Email, apperr.ErrDuplicate)
		}
		r.logger.Error("Failed to create user", zap.Error(err))
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(email string) (*models.User, error) {
	return r.getBy("email", strings.ToLower(strings.TrimSpace(email)))
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(id string) (*models.User, error) {
	return r.getBy("id", id)
}

func (r *UserRepository) getBy(column, value string) (*models.User, error) {
	var user models.User
	var entityID sql.NullString

	err := r.db.QueryRow(fmt.Sprintf(`
		SELECT id, email, password_hash, rol, entity_id, created_at
		FROM users WHERE %s = ?
	`, column), value).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Rol,
		&entityID,
		&user.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %s: %w", value, apperr.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get user", zap.String(column, value), zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if entityID.Valid {
		user.EntityID = &entityID.String
	}
	return &user, nil
}
